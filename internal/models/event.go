package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle status of a cleanup event.
type EventStatus string

const (
	EventStatusPlanned    EventStatus = "planned"
	EventStatusInProgress EventStatus = "in_progress"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusCancelled  EventStatus = "cancelled"
	// EventStatusUnknown is the decode fallback for unrecognized stored
	// values. It is terminal: no transition leaves it.
	EventStatusUnknown EventStatus = "unknown"
)

// ParseEventStatus validates a status received at the API boundary.
func ParseEventStatus(s string) (EventStatus, bool) {
	switch EventStatus(s) {
	case EventStatusPlanned, EventStatusInProgress, EventStatusCompleted, EventStatusCancelled:
		return EventStatus(s), true
	}
	return "", false
}

// DecodeEventStatus maps a stored value to a status, falling back to
// EventStatusUnknown instead of failing the read.
func DecodeEventStatus(s string) EventStatus {
	if st, ok := ParseEventStatus(s); ok {
		return st
	}
	return EventStatusUnknown
}

// IsTerminal reports whether no transition may leave this status.
func (s EventStatus) IsTerminal() bool {
	return s == EventStatusCompleted || s == EventStatusCancelled || s == EventStatusUnknown
}

// Event is an organized cleanup activity tied to exactly one zone.
// The organizer is always a participant.
type Event struct {
	ID              uuid.UUID   `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	StartsAt        time.Time   `json:"starts_at"`
	EndsAt          *time.Time  `json:"ends_at,omitempty"`
	ZoneID          uuid.UUID   `json:"zone_id"`
	OrganizerID     uuid.UUID   `json:"organizer_id"`
	Status          EventStatus `json:"status"`
	MaxParticipants *int        `json:"max_participants,omitempty"`
	ParticipantIDs  []uuid.UUID `json:"participant_ids"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// IsParticipant reports whether the user is registered for the event.
func (e *Event) IsParticipant(userID uuid.UUID) bool {
	for _, id := range e.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsFull reports whether the participant limit, if any, is reached.
func (e *Event) IsFull() bool {
	return e.MaxParticipants != nil && len(e.ParticipantIDs) >= *e.MaxParticipants
}

// Duration returns the event length, defaulting to 2h when open-ended.
// Used for volunteering-hours aggregation.
func (e *Event) Duration() time.Duration {
	if e.EndsAt != nil {
		return e.EndsAt.Sub(e.StartsAt)
	}
	return 2 * time.Hour
}
