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

// ZoneRepository is the full zone persistence surface consumed by Service.
type ZoneRepository interface {
	ZoneStore
	Create(ctx context.Context, z *models.Zone) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
	AttachPhoto(ctx context.Context, zoneID, photoID uuid.UUID) error
	DetachPhoto(ctx context.Context, zoneID, photoID uuid.UUID) error
	FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.Zone, error)
	List(ctx context.Context) ([]models.Zone, error)
	FindNearLocation(ctx context.Context, center models.Location, radiusKm float64) ([]models.Zone, error)
}

// UserStore checks user existence.
type UserStore interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// PhotoStore resolves photo ownership.
type PhotoStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Photo, error)
}

// EventGetter resolves the event a zone is linked to.
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// HistoryStore reads a zone's audit trail.
type HistoryStore interface {
	FindByZoneID(ctx context.Context, zoneID uuid.UUID) ([]models.ZoneStateChange, error)
}

// Service orchestrates zone lifecycle operations.
type Service struct {
	zones   ZoneRepository
	users   UserStore
	photos  PhotoStore
	events  EventGetter
	history HistoryStore
	logger  *zap.Logger
}

// NewService creates a zone service.
func NewService(zones ZoneRepository, users UserStore, photos PhotoStore, events EventGetter, history HistoryStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{zones: zones, users: users, photos: photos, events: events, history: history, logger: logger}
}

// ReportParams are the inputs for ReportZone.
type ReportParams struct {
	Location    models.Location
	Description string
	Severity    models.ZoneSeverity
	PhotoIDs    []uuid.UUID
	ReporterID  uuid.UUID
}

// ReportZone creates a new polluted-zone report in REPORTED status. Every
// referenced photo must have been uploaded by the reporter.
func (s *Service) ReportZone(ctx context.Context, p ReportParams) (*models.Zone, error) {
	if p.Location.Latitude < -90 || p.Location.Latitude > 90 ||
		p.Location.Longitude < -180 || p.Location.Longitude > 180 {
		return nil, apperr.Validation("location out of range")
	}
	ok, err := s.users.Exists(ctx, p.ReporterID)
	if err != nil {
		return nil, apperr.Internal("failed to check reporter", err)
	}
	if !ok {
		return nil, apperr.NotFound("reporter not found")
	}
	for _, photoID := range p.PhotoIDs {
		photo, err := s.photos.GetByID(ctx, photoID)
		if err != nil {
			return nil, apperr.Validation("unknown photo id")
		}
		if photo.OwnerID != p.ReporterID {
			return nil, apperr.Authorization("photo was not uploaded by the reporter")
		}
	}

	zone := &models.Zone{
		Location:    p.Location,
		Description: p.Description,
		Severity:    p.Severity,
		Status:      models.ZoneStatusReported,
		PhotoIDs:    p.PhotoIDs,
		ReporterID:  p.ReporterID,
	}
	if err := s.zones.Create(ctx, zone); err != nil {
		return nil, apperr.Internal("failed to create zone", err)
	}
	s.logger.Info("zone reported", zap.String("zone_id", zone.ID.String()))
	return zone, nil
}

func (s *Service) loadZone(ctx context.Context, id uuid.UUID) (*models.Zone, error) {
	zone, err := s.zones.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("zone not found")
		}
		return nil, apperr.Internal("load zone", err)
	}
	return zone, nil
}

// GetZone returns an active zone.
func (s *Service) GetZone(ctx context.Context, id uuid.UUID) (*models.Zone, error) {
	return s.loadZone(ctx, id)
}

// ListZones returns all active zones.
func (s *Service) ListZones(ctx context.Context) ([]models.Zone, error) {
	list, err := s.zones.List(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list zones", err)
	}
	return list, nil
}

// FindNear returns active zones within radiusKm of the center.
func (s *Service) FindNear(ctx context.Context, center models.Location, radiusKm float64) ([]models.Zone, error) {
	if radiusKm <= 0 {
		return nil, apperr.Validation("radius must be positive")
	}
	list, err := s.zones.FindNearLocation(ctx, center, radiusKm)
	if err != nil {
		return nil, apperr.Internal("failed to search zones", err)
	}
	return list, nil
}

// UpdateParams are the optional direct edits for UpdateZone.
type UpdateParams struct {
	Description *string
	Severity    *models.ZoneSeverity
	Status      *models.ZoneStatus
}

// UpdateZone applies direct edits by the zone's authorized actor. Direct
// edits are not transition-table governed; only event-driven changes are.
func (s *Service) UpdateZone(ctx context.Context, zoneID, userID uuid.UUID, p UpdateParams) (*models.Zone, error) {
	zone, err := s.loadZone(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	if err := s.hasPermissionsOrFail(ctx, zone, userID); err != nil {
		return nil, err
	}

	if p.Description != nil {
		zone.Description = *p.Description
	}
	if p.Severity != nil {
		zone.Severity = *p.Severity
	}
	if p.Status != nil {
		zone.Status = *p.Status
	}
	if err := s.zones.Update(ctx, zone); err != nil {
		return nil, apperr.Internal("failed to update zone", err)
	}
	return zone, nil
}

// DeleteZone retires a zone. A zone scheduled for cleaning by a linked event
// cannot be deleted out from under it.
func (s *Service) DeleteZone(ctx context.Context, zoneID, userID uuid.UUID) error {
	zone, err := s.loadZone(ctx, zoneID)
	if err != nil {
		return err
	}
	if err := s.hasPermissionsOrFail(ctx, zone, userID); err != nil {
		return err
	}
	if zone.EventID != nil && zone.Status == models.ZoneStatusCleaningScheduled {
		return apperr.Conflict("zone is scheduled for cleaning by an event")
	}
	if err := s.zones.DeleteByID(ctx, zoneID); err != nil {
		return apperr.Internal("failed to delete zone", err)
	}
	s.logger.Info("zone deleted", zap.String("zone_id", zoneID.String()))
	return nil
}

// AttachPhoto links a photo owned by the acting user to the zone.
func (s *Service) AttachPhoto(ctx context.Context, zoneID, userID, photoID uuid.UUID) error {
	zone, err := s.loadZone(ctx, zoneID)
	if err != nil {
		return err
	}
	if err := s.hasPermissionsOrFail(ctx, zone, userID); err != nil {
		return err
	}
	photo, err := s.photos.GetByID(ctx, photoID)
	if err != nil {
		return apperr.Validation("unknown photo id")
	}
	if photo.OwnerID != userID {
		return apperr.Authorization("photo was not uploaded by the acting user")
	}
	if err := s.zones.AttachPhoto(ctx, zoneID, photoID); err != nil {
		return apperr.Internal("failed to attach photo", err)
	}
	return nil
}

// DetachPhoto unlinks a photo from the zone.
func (s *Service) DetachPhoto(ctx context.Context, zoneID, userID, photoID uuid.UUID) error {
	zone, err := s.loadZone(ctx, zoneID)
	if err != nil {
		return err
	}
	if err := s.hasPermissionsOrFail(ctx, zone, userID); err != nil {
		return err
	}
	if err := s.zones.DetachPhoto(ctx, zoneID, photoID); err != nil {
		return apperr.Internal("failed to detach photo", err)
	}
	return nil
}

// StatusHistory returns the zone's audit trail.
func (s *Service) StatusHistory(ctx context.Context, zoneID uuid.UUID) ([]models.ZoneStateChange, error) {
	if _, err := s.loadZone(ctx, zoneID); err != nil {
		return nil, err
	}
	list, err := s.history.FindByZoneID(ctx, zoneID)
	if err != nil {
		return nil, apperr.Internal("failed to load zone history", err)
	}
	return list, nil
}

// hasPermissionsOrFail authorizes a mutation: the original reporter when the
// zone is unlinked, the linked event's organizer when it is.
func (s *Service) hasPermissionsOrFail(ctx context.Context, zone *models.Zone, userID uuid.UUID) error {
	if zone.EventID == nil {
		if zone.ReporterID != userID {
			return apperr.Authorization("only the reporter may modify this zone")
		}
		return nil
	}
	event, err := s.events.GetByID(ctx, *zone.EventID)
	if err != nil {
		return apperr.Internal("failed to load linked event", err)
	}
	if event.OrganizerID != userID {
		return apperr.Authorization("only the linked event's organizer may modify this zone")
	}
	return nil
}
