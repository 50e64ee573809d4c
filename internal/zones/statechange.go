package zones

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/keepmyplanet/backend/internal/models"
	"github.com/keepmyplanet/backend/pkg/apperr"
)

// ZoneStore is the zone persistence consumed by the state change service.
type ZoneStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Zone, error)
	Update(ctx context.Context, z *models.Zone) error
}

// AuditStore appends zone status audit records.
type AuditStore interface {
	Create(ctx context.Context, sc *models.ZoneStateChange) error
}

// ChangeOptions carries the actor and event-link side effects of a zone
// status change.
type ChangeOptions struct {
	// ChangedBy is nil for system cascades.
	ChangedBy *uuid.UUID
	// TriggeredByEventID links the audit record to the causing event.
	TriggeredByEventID *uuid.UUID
	// LinkEventID sets the zone's event link (scheduling a cleanup).
	LinkEventID *uuid.UUID
	// ClearEventID removes the zone's event link (event finished or gone).
	ClearEventID bool
}

// StateChangeService is the generic "set status, persist, log" primitive for
// zones. It enforces no transition table; callers only ever request legal
// cascades. Setting the current status again is a no-op: no write, no audit
// entry.
type StateChangeService struct {
	zones  ZoneStore
	audit  AuditStore
	logger *zap.Logger
}

// NewStateChangeService creates a zone state change service.
func NewStateChangeService(zones ZoneStore, audit AuditStore, logger *zap.Logger) *StateChangeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateChangeService{zones: zones, audit: audit, logger: logger}
}

// ChangeZoneStatus applies a status change to the zone, persists it and
// appends an audit record. The persist and the audit append are sequential,
// not one transaction.
func (s *StateChangeService) ChangeZoneStatus(ctx context.Context, zoneID uuid.UUID, newStatus models.ZoneStatus, opts ChangeOptions) (*models.Zone, error) {
	zone, err := s.zones.GetByID(ctx, zoneID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("zone not found")
		}
		return nil, apperr.Internal("load zone", err)
	}

	if zone.Status == newStatus {
		return zone, nil
	}

	zone.Status = newStatus
	if opts.LinkEventID != nil {
		zone.EventID = opts.LinkEventID
	}
	if opts.ClearEventID {
		zone.EventID = nil
	}

	if err := s.zones.Update(ctx, zone); err != nil {
		return nil, apperr.Internal("failed to update zone", err)
	}

	sc := &models.ZoneStateChange{
		ZoneID:             zone.ID,
		Status:             newStatus,
		ChangedBy:          opts.ChangedBy,
		TriggeredByEventID: opts.TriggeredByEventID,
	}
	if err := s.audit.Create(ctx, sc); err != nil {
		return nil, apperr.Internal("failed to log zone state change", err)
	}

	s.logger.Info("zone status changed",
		zap.String("zone_id", zone.ID.String()),
		zap.String("status", string(newStatus)))
	return zone, nil
}
