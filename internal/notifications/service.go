package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/keepmyplanet/backend/internal/models"
	"github.com/keepmyplanet/backend/pkg/queue"
)

const topicPrefix = "topic:event:"

// TopicName returns the Redis set key holding an event's subscriber ids.
func TopicName(eventID uuid.UUID) string {
	return topicPrefix + eventID.String()
}

// Enqueuer submits push jobs for asynchronous delivery.
type Enqueuer interface {
	EnqueuePush(ctx context.Context, payload queue.PushPayload) error
}

// Service manages per-event notification topics and schedules push
// deliveries. Every method is fire-and-forget from the caller's view:
// failures are logged, never returned, so notification trouble cannot fail
// a domain operation.
type Service struct {
	redis  *redis.Client
	jobs   Enqueuer
	logger *zap.Logger
}

// NewService creates the notification service.
func NewService(redisClient *redis.Client, jobs Enqueuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{redis: redisClient, jobs: jobs, logger: logger}
}

// SubscribeToEvent adds the user to the event's topic.
func (s *Service) SubscribeToEvent(ctx context.Context, eventID, userID uuid.UUID) {
	if err := s.redis.SAdd(ctx, TopicName(eventID), userID.String()).Err(); err != nil {
		s.logger.Warn("topic subscribe failed",
			zap.String("event_id", eventID.String()), zap.Error(err))
	}
}

// UnsubscribeFromEvent removes the user from the event's topic.
func (s *Service) UnsubscribeFromEvent(ctx context.Context, eventID, userID uuid.UUID) {
	if err := s.redis.SRem(ctx, TopicName(eventID), userID.String()).Err(); err != nil {
		s.logger.Warn("topic unsubscribe failed",
			zap.String("event_id", eventID.String()), zap.Error(err))
	}
}

// EventChanged schedules a push to everyone following the event.
func (s *Service) EventChanged(ctx context.Context, event *models.Event, what string) {
	err := s.jobs.EnqueuePush(ctx, queue.PushPayload{
		Topic: TopicName(event.ID),
		Title: event.Title,
		Body:  what,
		Data: map[string]string{
			"event_id": event.ID.String(),
			"status":   string(event.Status),
		},
	})
	if err != nil {
		s.logger.Warn("push enqueue failed",
			zap.String("event_id", event.ID.String()), zap.Error(err))
	}
}

// TopicMembers resolves the user ids subscribed to a topic. The worker calls
// this at delivery time so late subscribers are included.
func (s *Service) TopicMembers(ctx context.Context, topic string) ([]uuid.UUID, error) {
	raw, err := s.redis.SMembers(ctx, topic).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		id, err := uuid.Parse(v)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
