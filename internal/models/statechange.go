package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStateChange is one immutable audit record of an event status
// transition. Records are append-only; the repositories reject update and
// delete by contract.
type EventStateChange struct {
	ID        uuid.UUID   `json:"id"`
	EventID   uuid.UUID   `json:"event_id"`
	Status    EventStatus `json:"status"`
	// ChangedBy is nil for system transitions (lifecycle sweeper).
	ChangedBy *uuid.UUID `json:"changed_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ZoneStateChange is one immutable audit record of a zone status transition.
type ZoneStateChange struct {
	ID      uuid.UUID  `json:"id"`
	ZoneID  uuid.UUID  `json:"zone_id"`
	Status  ZoneStatus `json:"status"`
	// ChangedBy is nil when the change was cascaded by the event lifecycle.
	ChangedBy *uuid.UUID `json:"changed_by,omitempty"`
	// TriggeredByEventID links a cascade back to the event that caused it.
	TriggeredByEventID *uuid.UUID `json:"triggered_by_event_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}
