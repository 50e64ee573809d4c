package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/keepmyplanet/backend/internal/models"
	"github.com/keepmyplanet/backend/internal/zones"
	"github.com/keepmyplanet/backend/pkg/apperr"
)

// EventRepository is the full event persistence surface used by the service.
type EventRepository interface {
	EventStore
	Create(ctx context.Context, e *models.Event) error
	Update(ctx context.Context, e *models.Event) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
	FindByZoneID(ctx context.Context, zoneID uuid.UUID) ([]models.Event, error)
	FindByOrganizerID(ctx context.Context, userID uuid.UUID) ([]models.Event, error)
	FindByParticipantID(ctx context.Context, userID uuid.UUID) ([]models.Event, error)
	FindByStatus(ctx context.Context, status models.EventStatus) ([]models.Event, error)
	ListDueToStart(ctx context.Context) ([]models.Event, error)
	AddParticipant(ctx context.Context, eventID, userID uuid.UUID) error
	RemoveParticipant(ctx context.Context, eventID, userID uuid.UUID) error
	AddAttendance(ctx context.Context, eventID, userID uuid.UUID) error
	HasAttended(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
	AttendeeIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
}

// UserStore checks user existence.
type UserStore interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// MessageStore deletes an event's chat history on event deletion.
type MessageStore interface {
	DeleteByEvent(ctx context.Context, eventID uuid.UUID) (int64, error)
}

// HistoryStore reads the event status audit trail.
type HistoryStore interface {
	FindByEventID(ctx context.Context, eventID uuid.UUID) ([]models.EventStateChange, error)
}

// Notifier handles push topics and announcements. Implementations must never
// block; failures are logged downstream and not surfaced here.
type Notifier interface {
	SubscribeToEvent(ctx context.Context, eventID, userID uuid.UUID)
	UnsubscribeFromEvent(ctx context.Context, eventID, userID uuid.UUID)
	EventChanged(ctx context.Context, event *models.Event, what string)
}

// NopNotifier is used when push delivery is disabled.
type NopNotifier struct{}

func (NopNotifier) SubscribeToEvent(context.Context, uuid.UUID, uuid.UUID)     {}
func (NopNotifier) UnsubscribeFromEvent(context.Context, uuid.UUID, uuid.UUID) {}
func (NopNotifier) EventChanged(context.Context, *models.Event, string)        {}

// Service implements cleanup event operations.
type Service struct {
	events     EventRepository
	users      UserStore
	zoneReader ZoneGetter
	zoneStatus ZoneStatusChanger
	lifecycle  *StateChangeService
	messages   MessageStore
	history    HistoryStore
	notifier   Notifier
	logger     *zap.Logger
}

// NewService creates the event service.
func NewService(events EventRepository, users UserStore, zoneReader ZoneGetter, zoneStatus ZoneStatusChanger,
	lifecycle *StateChangeService, messages MessageStore, history HistoryStore, notifier Notifier, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		events:     events,
		users:      users,
		zoneReader: zoneReader,
		zoneStatus: zoneStatus,
		lifecycle:  lifecycle,
		messages:   messages,
		history:    history,
		notifier:   notifier,
		logger:     logger,
	}
}

// CreateParams carries the fields for a new event.
type CreateParams struct {
	Title           string
	Description     string
	StartsAt        time.Time
	EndsAt          *time.Time
	ZoneID          uuid.UUID
	OrganizerID     uuid.UUID
	MaxParticipants *int
}

// CreateEvent schedules a cleanup for a zone. The zone moves to
// cleaning_scheduled and is linked back to the event. A zone may have at most
// one scheduled event at a time.
func (s *Service) CreateEvent(ctx context.Context, p CreateParams) (*models.Event, error) {
	if p.Title == "" {
		return nil, apperr.Validation("title is required")
	}
	if !p.StartsAt.After(time.Now()) {
		return nil, apperr.Validation("event start must be in the future")
	}
	if p.EndsAt != nil && !p.EndsAt.After(p.StartsAt) {
		return nil, apperr.Validation("event end must be after its start")
	}
	if p.MaxParticipants != nil && *p.MaxParticipants < 1 {
		return nil, apperr.Validation("max participants must be at least 1")
	}

	ok, err := s.users.Exists(ctx, p.OrganizerID)
	if err != nil {
		return nil, apperr.Internal("check organizer", err)
	}
	if !ok {
		return nil, apperr.NotFound("organizer not found")
	}

	zone, err := s.zoneReader.GetByID(ctx, p.ZoneID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("zone not found")
		}
		return nil, apperr.Internal("load zone", err)
	}
	if zone.EventID != nil {
		return nil, apperr.Conflict("zone already has a scheduled event")
	}
	if zone.Status == models.ZoneStatusCleaned {
		return nil, apperr.Conflict("zone is already cleaned")
	}

	event := &models.Event{
		Title:           p.Title,
		Description:     p.Description,
		StartsAt:        p.StartsAt,
		EndsAt:          p.EndsAt,
		ZoneID:          p.ZoneID,
		OrganizerID:     p.OrganizerID,
		Status:          models.EventStatusPlanned,
		MaxParticipants: p.MaxParticipants,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, apperr.Internal("create event", err)
	}

	eventID := event.ID
	if _, err := s.zoneStatus.ChangeZoneStatus(ctx, zone.ID, models.ZoneStatusCleaningScheduled, zones.ChangeOptions{
		ChangedBy:          &event.OrganizerID,
		TriggeredByEventID: &eventID,
		LinkEventID:        &eventID,
	}); err != nil {
		// The event exists but the zone was not linked. Sequential steps,
		// not a transaction; the caller sees the failure.
		return nil, apperr.Internal("link zone to event", err)
	}

	s.notifier.SubscribeToEvent(ctx, event.ID, event.OrganizerID)
	s.logger.Info("event created",
		zap.String("event_id", event.ID.String()),
		zap.String("zone_id", zone.ID.String()))
	return event, nil
}

// GetEvent fetches one event.
func (s *Service) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("event not found")
		}
		return nil, apperr.Internal("load event", err)
	}
	return event, nil
}

// ListEvents returns events filtered by status, or all planned and running
// events when no filter is given.
func (s *Service) ListEvents(ctx context.Context, status *models.EventStatus) ([]models.Event, error) {
	if status != nil {
		list, err := s.events.FindByStatus(ctx, *status)
		if err != nil {
			return nil, apperr.Internal("list events", err)
		}
		return list, nil
	}
	planned, err := s.events.FindByStatus(ctx, models.EventStatusPlanned)
	if err != nil {
		return nil, apperr.Internal("list events", err)
	}
	running, err := s.events.FindByStatus(ctx, models.EventStatusInProgress)
	if err != nil {
		return nil, apperr.Internal("list events", err)
	}
	return append(planned, running...), nil
}

// EventsByZone returns all events ever scheduled for a zone.
func (s *Service) EventsByZone(ctx context.Context, zoneID uuid.UUID) ([]models.Event, error) {
	list, err := s.events.FindByZoneID(ctx, zoneID)
	if err != nil {
		return nil, apperr.Internal("list zone events", err)
	}
	return list, nil
}

// EventsByUser returns events the user participates in.
func (s *Service) EventsByUser(ctx context.Context, userID uuid.UUID) ([]models.Event, error) {
	list, err := s.events.FindByParticipantID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list user events", err)
	}
	return list, nil
}

// JoinEvent registers the user as a participant. Joining is open while the
// event is planned or running.
func (s *Service) JoinEvent(ctx context.Context, eventID, userID uuid.UUID) (*models.Event, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status != models.EventStatusPlanned && event.Status != models.EventStatusInProgress {
		return nil, apperr.Conflict("event is no longer open for registration")
	}
	if event.IsParticipant(userID) {
		return nil, apperr.Conflict("already registered for this event")
	}
	if event.IsFull() {
		return nil, apperr.Conflict("event is full")
	}
	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("check user", err)
	}
	if !ok {
		return nil, apperr.NotFound("user not found")
	}

	if err := s.events.AddParticipant(ctx, eventID, userID); err != nil {
		return nil, apperr.Internal("add participant", err)
	}
	event.ParticipantIDs = append(event.ParticipantIDs, userID)

	s.notifier.SubscribeToEvent(ctx, eventID, userID)
	return event, nil
}

// LeaveEvent unregisters a participant. The organizer cannot leave their own
// event; leaving is only possible while the event is still planned.
func (s *Service) LeaveEvent(ctx context.Context, eventID, userID uuid.UUID) error {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.OrganizerID == userID {
		return apperr.Authorization("the organizer cannot leave their own event")
	}
	if event.Status != models.EventStatusPlanned {
		return apperr.Conflict("cannot leave an event that has started")
	}
	if !event.IsParticipant(userID) {
		return apperr.NotFound("not registered for this event")
	}

	if err := s.events.RemoveParticipant(ctx, eventID, userID); err != nil {
		return apperr.Internal("remove participant", err)
	}
	s.notifier.UnsubscribeFromEvent(ctx, eventID, userID)
	return nil
}

// UpdateParams carries optional event detail edits.
type UpdateParams struct {
	Title           *string
	Description     *string
	StartsAt        *time.Time
	EndsAt          *time.Time
	MaxParticipants *int
}

// UpdateEventDetails edits event details. Only the organizer may edit, only
// while the event is planned, and the participant limit can never drop below
// the current registration count.
func (s *Service) UpdateEventDetails(ctx context.Context, eventID, userID uuid.UUID, p UpdateParams) (*models.Event, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != userID {
		return nil, apperr.Authorization("only the organizer may edit the event")
	}
	if event.Status != models.EventStatusPlanned {
		return nil, apperr.Conflict("only planned events can be edited")
	}

	if p.Title != nil {
		if *p.Title == "" {
			return nil, apperr.Validation("title cannot be empty")
		}
		event.Title = *p.Title
	}
	if p.Description != nil {
		event.Description = *p.Description
	}
	if p.StartsAt != nil {
		if !p.StartsAt.After(time.Now()) {
			return nil, apperr.Validation("event start must be in the future")
		}
		event.StartsAt = *p.StartsAt
	}
	if p.EndsAt != nil {
		event.EndsAt = p.EndsAt
	}
	if event.EndsAt != nil && !event.EndsAt.After(event.StartsAt) {
		return nil, apperr.Validation("event end must be after its start")
	}
	if p.MaxParticipants != nil {
		if *p.MaxParticipants < len(event.ParticipantIDs) {
			return nil, apperr.Validation("max participants cannot drop below current registrations")
		}
		event.MaxParticipants = p.MaxParticipants
	}

	if err := s.events.Update(ctx, event); err != nil {
		return nil, apperr.Internal("update event", err)
	}
	s.notifier.EventChanged(ctx, event, "details updated")
	return event, nil
}

// ChangeEventStatus runs an organizer-initiated lifecycle transition.
func (s *Service) ChangeEventStatus(ctx context.Context, eventID, userID uuid.UUID, newStatus models.EventStatus) (*models.Event, error) {
	event, err := s.lifecycle.ChangeEventStatus(ctx, eventID, newStatus, &userID)
	if err != nil {
		return nil, err
	}
	s.notifier.EventChanged(ctx, event, "status changed to "+string(event.Status))
	return event, nil
}

// DeleteEvent removes an event entirely. Only the organizer may delete, and
// only while the event is planned or already cancelled. The linked zone
// returns to reported, and the event's chat history is removed. The steps are
// sequential and best-effort.
func (s *Service) DeleteEvent(ctx context.Context, eventID, userID uuid.UUID) error {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.OrganizerID != userID {
		return apperr.Authorization("only the organizer may delete the event")
	}
	if event.Status != models.EventStatusPlanned && event.Status != models.EventStatusCancelled {
		return apperr.Conflict("only planned or cancelled events can be deleted")
	}

	zone, err := s.zoneReader.GetByID(ctx, event.ZoneID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return apperr.Internal("load zone", err)
	}
	if zone != nil && zone.EventID != nil && *zone.EventID == event.ID {
		if _, err := s.zoneStatus.ChangeZoneStatus(ctx, zone.ID, models.ZoneStatusReported, zones.ChangeOptions{
			ChangedBy:          &userID,
			TriggeredByEventID: &eventID,
			ClearEventID:       true,
		}); err != nil {
			return apperr.Internal("unlink zone", err)
		}
	}

	if n, err := s.messages.DeleteByEvent(ctx, eventID); err != nil {
		s.logger.Warn("chat cleanup failed during event deletion",
			zap.String("event_id", eventID.String()), zap.Error(err))
	} else if n > 0 {
		s.logger.Info("chat history removed",
			zap.String("event_id", eventID.String()), zap.Int64("messages", n))
	}

	if err := s.events.DeleteByID(ctx, eventID); err != nil {
		return apperr.Internal("delete event", err)
	}
	s.logger.Info("event deleted", zap.String("event_id", eventID.String()))
	return nil
}

// CheckInUser records a participant's attendance. Only the organizer checks
// people in, only while the event is running.
func (s *Service) CheckInUser(ctx context.Context, eventID, organizerID, userID uuid.UUID) error {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.OrganizerID != organizerID {
		return apperr.Authorization("only the organizer may check in participants")
	}
	if event.Status != models.EventStatusInProgress {
		return apperr.Conflict("check-in is only open while the event is in progress")
	}
	if userID == event.OrganizerID {
		return apperr.Validation("the organizer does not check in")
	}
	if !event.IsParticipant(userID) {
		return apperr.NotFound("user is not registered for this event")
	}
	attended, err := s.events.HasAttended(ctx, eventID, userID)
	if err != nil {
		return apperr.Internal("check attendance", err)
	}
	if attended {
		return apperr.Conflict("user is already checked in")
	}
	if err := s.events.AddAttendance(ctx, eventID, userID); err != nil {
		return apperr.Internal("record attendance", err)
	}
	return nil
}

// Attendees returns the ids of users who checked in at the event.
func (s *Service) Attendees(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	ids, err := s.events.AttendeeIDs(ctx, eventID)
	if err != nil {
		return nil, apperr.Internal("list attendees", err)
	}
	return ids, nil
}

// StatusHistory returns the event's audit trail in chronological order.
func (s *Service) StatusHistory(ctx context.Context, eventID uuid.UUID) ([]models.EventStateChange, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	list, err := s.history.FindByEventID(ctx, eventID)
	if err != nil {
		return nil, apperr.Internal("load status history", err)
	}
	return list, nil
}

// StartDueEvents moves planned events whose start time has passed to
// in_progress as system transitions. Called periodically by the worker.
// One failing event does not stop the sweep.
func (s *Service) StartDueEvents(ctx context.Context) (int, error) {
	due, err := s.events.ListDueToStart(ctx)
	if err != nil {
		return 0, apperr.Internal("list due events", err)
	}
	started := 0
	for i := range due {
		event, err := s.lifecycle.ChangeEventStatus(ctx, due[i].ID, models.EventStatusInProgress, nil)
		if err != nil {
			s.logger.Warn("auto-start failed",
				zap.String("event_id", due[i].ID.String()), zap.Error(err))
			continue
		}
		s.notifier.EventChanged(ctx, event, "event started")
		started++
	}
	return started, nil
}
