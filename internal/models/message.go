package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is one entry in an event's chat. ChatPosition is assigned by the
// repository as max(existing for the event)+1 inside a transaction, so
// positions start at 0 and are gapless and strictly increasing per event.
type Message struct {
	ID           uuid.UUID `json:"id"`
	EventID      uuid.UUID `json:"event_id"`
	SenderID     uuid.UUID `json:"sender_id"`
	SenderName   string    `json:"sender_name"`
	Content      string    `json:"content"`
	ChatPosition int64     `json:"chat_position"`
	CreatedAt    time.Time `json:"created_at"`
}
