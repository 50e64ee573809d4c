package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keepmyplanet/backend/pkg/queue"
)

// TopicResolver turns a push topic into the subscribed user ids.
type TopicResolver interface {
	TopicMembers(ctx context.Context, topic string) ([]uuid.UUID, error)
}

// TokenResolver maps user ids to their device tokens and prunes dead ones.
type TokenResolver interface {
	TokensForUsers(ctx context.Context, userIDs []uuid.UUID) ([]string, error)
	DeleteByToken(ctx context.Context, token string) error
}

// PushSender delivers a notification batch and reports dead tokens.
type PushSender interface {
	Send(ctx context.Context, tokens []string, title, body string, data map[string]string) (dead []string, err error)
}

// PushProcessor delivers push notification jobs: resolve topic members to
// device tokens, send through FCM, prune tokens FCM rejects.
type PushProcessor struct {
	topics TopicResolver
	tokens TokenResolver
	sender PushSender
	queue  *queue.Queue
	logger *zap.Logger
}

// NewPushProcessor creates a push delivery processor.
func NewPushProcessor(topics TopicResolver, tokens TokenResolver, sender PushSender, q *queue.Queue, logger *zap.Logger) *PushProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushProcessor{topics: topics, tokens: tokens, sender: sender, queue: q, logger: logger}
}

// Process executes one push job.
func (p *PushProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypePush {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.PushPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	userIDs, err := p.topics.TopicMembers(ctx, payload.Topic)
	if err != nil {
		return fmt.Errorf("resolve topic: %w", err)
	}
	tokens, err := p.tokens.TokensForUsers(ctx, userIDs)
	if err != nil {
		return fmt.Errorf("resolve tokens: %w", err)
	}
	if len(tokens) == 0 {
		p.logger.Debug("push skipped, no devices", zap.String("topic", payload.Topic))
		return nil
	}

	dead, err := p.sender.Send(ctx, tokens, payload.Title, payload.Body, payload.Data)
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	for _, token := range dead {
		if err := p.tokens.DeleteByToken(ctx, token); err != nil {
			p.logger.Warn("dead token not pruned", zap.Error(err))
		}
	}

	p.logger.Info("push delivered",
		zap.String("topic", payload.Topic),
		zap.Int("devices", len(tokens)),
		zap.Int("pruned", len(dead)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *PushProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("push worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
