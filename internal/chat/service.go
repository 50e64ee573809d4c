package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/keepmyplanet/backend/internal/models"
	"github.com/keepmyplanet/backend/pkg/apperr"
)

const maxContentLength = 2000

// MessageRepository is the chat persistence surface.
type MessageRepository interface {
	Create(ctx context.Context, m *models.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID, sincePosition int64) ([]models.Message, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteByEvent(ctx context.Context, eventID uuid.UUID) (int64, error)
}

// EventGetter loads the event a message belongs to.
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// UserGetter resolves the sender for name denormalization.
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Broadcaster pushes new messages to live subscribers. Implementations must
// not block.
type Broadcaster interface {
	Broadcast(eventID uuid.UUID, kind string, payload interface{})
}

// NopBroadcaster is used when no realtime hub is wired.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(uuid.UUID, string, interface{}) {}

// Service implements per-event chat. Chat is participant-only and closes
// when the event reaches a terminal status.
type Service struct {
	messages  MessageRepository
	events    EventGetter
	users     UserGetter
	broadcast Broadcaster
	logger    *zap.Logger
}

// NewService creates the chat service.
func NewService(messages MessageRepository, events EventGetter, users UserGetter, broadcast Broadcaster, logger *zap.Logger) *Service {
	if broadcast == nil {
		broadcast = NopBroadcaster{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{messages: messages, events: events, users: users, broadcast: broadcast, logger: logger}
}

func (s *Service) loadEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("event not found")
		}
		return nil, apperr.Internal("load event", err)
	}
	return event, nil
}

func requireParticipant(event *models.Event, userID uuid.UUID) error {
	if event.OrganizerID == userID || event.IsParticipant(userID) {
		return nil
	}
	return apperr.Authorization("only event participants may use the chat")
}

// AddMessage posts a message to the event's chat. The sender name is
// denormalized into the message so history survives account changes.
func (s *Service) AddMessage(ctx context.Context, eventID, senderID uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Validation("message content cannot be empty")
	}
	if len(content) > maxContentLength {
		return nil, apperr.Validation("message content is too long")
	}

	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(event, senderID); err != nil {
		return nil, err
	}
	if event.Status.IsTerminal() {
		return nil, apperr.Conflict("chat is closed for this event")
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("sender not found")
		}
		return nil, apperr.Internal("load sender", err)
	}

	msg := &models.Message{
		EventID:    eventID,
		SenderID:   senderID,
		SenderName: sender.FullName,
		Content:    content,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperr.Internal("store message", err)
	}

	s.broadcast.Broadcast(eventID, "chat_message", msg)
	return msg, nil
}

// AuthorizeRead checks that the user may follow the event's chat.
func (s *Service) AuthorizeRead(ctx context.Context, eventID, userID uuid.UUID) error {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return err
	}
	return requireParticipant(event, userID)
}

// ListMessages returns the event's chat history for a participant, in
// ascending chat position. sincePosition lets clients catch up after a
// dropped stream; pass -1 for everything.
func (s *Service) ListMessages(ctx context.Context, eventID, userID uuid.UUID, sincePosition int64) ([]models.Message, error) {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(event, userID); err != nil {
		return nil, err
	}
	list, err := s.messages.ListByEvent(ctx, eventID, sincePosition)
	if err != nil {
		return nil, apperr.Internal("list messages", err)
	}
	return list, nil
}

// DeleteMessage removes a message. The sender removes their own; the
// organizer moderates anything in their event.
func (s *Service) DeleteMessage(ctx context.Context, eventID, messageID, userID uuid.UUID) error {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return err
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("message not found")
		}
		return apperr.Internal("load message", err)
	}
	if msg.EventID != eventID {
		return apperr.NotFound("message not found")
	}
	if msg.SenderID != userID && event.OrganizerID != userID {
		return apperr.Authorization("only the sender or the organizer may delete a message")
	}

	if err := s.messages.DeleteByID(ctx, messageID); err != nil {
		return apperr.Internal("delete message", err)
	}
	s.broadcast.Broadcast(eventID, "chat_message_deleted", map[string]string{
		"message_id": messageID.String(),
	})
	return nil
}
