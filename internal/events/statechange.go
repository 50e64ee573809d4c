package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/keepmyplanet/backend/internal/models"
	"github.com/keepmyplanet/backend/internal/zones"
	"github.com/keepmyplanet/backend/pkg/apperr"
)

// transitions is the event lifecycle table. A status missing from the map is
// terminal. planned to in_progress is reserved for the lifecycle sweeper;
// callers with an actor are rejected before the table is consulted.
var transitions = map[models.EventStatus][]models.EventStatus{
	models.EventStatusPlanned:    {models.EventStatusInProgress, models.EventStatusCancelled},
	models.EventStatusInProgress: {models.EventStatusCompleted, models.EventStatusCancelled},
}

// CanTransition reports whether the lifecycle table permits from -> to.
func CanTransition(from, to models.EventStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// EventStore is the event persistence needed for status changes.
type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error
}

// AuditStore appends event status audit records.
type AuditStore interface {
	Create(ctx context.Context, sc *models.EventStateChange) error
}

// ZoneGetter loads the zone linked to an event.
type ZoneGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Zone, error)
}

// ZoneStatusChanger cascades event transitions onto the linked zone.
type ZoneStatusChanger interface {
	ChangeZoneStatus(ctx context.Context, zoneID uuid.UUID, newStatus models.ZoneStatus, opts zones.ChangeOptions) (*models.Zone, error)
}

// StateChangeService runs event lifecycle transitions, cascading terminal
// transitions onto the linked zone and appending to the audit trail. The
// steps are sequential and best-effort: a failed cascade leaves the event
// transition in place and is reported to the caller.
type StateChangeService struct {
	events     EventStore
	zoneReader ZoneGetter
	zones      ZoneStatusChanger
	audit      AuditStore
	logger     *zap.Logger
}

// NewStateChangeService creates the lifecycle service.
func NewStateChangeService(events EventStore, zoneReader ZoneGetter, zoneChanger ZoneStatusChanger, audit AuditStore, logger *zap.Logger) *StateChangeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateChangeService{events: events, zoneReader: zoneReader, zones: zoneChanger, audit: audit, logger: logger}
}

// ChangeEventStatus transitions the event to newStatus. changedBy identifies
// the acting user and must be the organizer; a nil changedBy marks a system
// transition and skips the organizer check.
func (s *StateChangeService) ChangeEventStatus(ctx context.Context, eventID uuid.UUID, newStatus models.EventStatus, changedBy *uuid.UUID) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("event not found")
		}
		return nil, apperr.Internal("load event", err)
	}

	if changedBy != nil {
		if event.OrganizerID != *changedBy {
			return nil, apperr.Authorization("only the organizer may change the event status")
		}
		if event.Status == models.EventStatusPlanned && newStatus == models.EventStatusInProgress {
			return nil, apperr.Conflict("events start automatically at their scheduled time")
		}
	}
	if !CanTransition(event.Status, newStatus) {
		return nil, apperr.Conflict(
			fmt.Sprintf("cannot transition event from %s to %s", event.Status, newStatus))
	}

	if err := s.events.UpdateStatus(ctx, eventID, newStatus); err != nil {
		return nil, apperr.Internal("update event status", err)
	}
	event.Status = newStatus

	if err := s.cascadeToZone(ctx, event, changedBy); err != nil {
		return nil, err
	}

	if err := s.audit.Create(ctx, &models.EventStateChange{
		EventID:   eventID,
		Status:    newStatus,
		ChangedBy: changedBy,
	}); err != nil {
		return nil, apperr.Internal("append event audit record", err)
	}

	s.logger.Info("event status changed",
		zap.String("event_id", eventID.String()),
		zap.String("status", string(newStatus)))
	return event, nil
}

// cascadeToZone moves the linked zone out of cleaning_scheduled when the
// event reaches a terminal status. The zone is only touched while it still
// points back at this event; a zone already relinked to a newer event is
// left alone.
func (s *StateChangeService) cascadeToZone(ctx context.Context, event *models.Event, changedBy *uuid.UUID) error {
	var target models.ZoneStatus
	switch event.Status {
	case models.EventStatusCancelled:
		target = models.ZoneStatusReported
	case models.EventStatusCompleted:
		target = models.ZoneStatusCleaned
	default:
		return nil
	}

	zone, err := s.zoneReader.GetByID(ctx, event.ZoneID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("linked zone missing during cascade",
				zap.String("event_id", event.ID.String()),
				zap.String("zone_id", event.ZoneID.String()))
			return nil
		}
		return apperr.Internal("load zone for cascade", err)
	}
	if zone.EventID == nil || *zone.EventID != event.ID {
		return nil
	}

	eventID := event.ID
	_, err = s.zones.ChangeZoneStatus(ctx, zone.ID, target, zones.ChangeOptions{
		ChangedBy:          changedBy,
		TriggeredByEventID: &eventID,
		ClearEventID:       true,
	})
	if err != nil {
		return apperr.Internal("cascade zone status", err)
	}
	return nil
}
