package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// EventStarter moves due planned events into progress.
type EventStarter interface {
	StartDueEvents(ctx context.Context) (int, error)
}

// Sweeper periodically starts planned events whose scheduled time has
// arrived. The actual transition runs as a system actor through the event
// lifecycle service, so the audit trail records it with no user.
type Sweeper struct {
	events   EventStarter
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper creates the lifecycle sweeper.
func NewSweeper(events EventStarter, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{events: events, interval: interval, logger: logger}
}

// Run ticks until ctx is done. An immediate first sweep catches events that
// came due while no worker was running.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("lifecycle sweeper stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	started, err := s.events.StartDueEvents(ctx)
	if err != nil {
		s.logger.Warn("sweep failed", zap.Error(err))
		return
	}
	if started > 0 {
		s.logger.Info("due events started", zap.Int("count", started))
	}
}
