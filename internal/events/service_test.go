package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/keepmyplanet/backend/internal/models"
	"github.com/keepmyplanet/backend/pkg/apperr"
)

type fakeEventRepo struct {
	*fakeEventStore
	attendance map[uuid.UUID][]uuid.UUID
	deleted    []uuid.UUID
	failStatus map[uuid.UUID]error
}

func newFakeEventRepo(es ...*models.Event) *fakeEventRepo {
	return &fakeEventRepo{
		fakeEventStore: newFakeEventStore(es...),
		attendance:     make(map[uuid.UUID][]uuid.UUID),
		failStatus:     make(map[uuid.UUID]error),
	}
}

func (f *fakeEventRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error {
	if err := f.failStatus[id]; err != nil {
		return err
	}
	return f.fakeEventStore.UpdateStatus(ctx, id, status)
}

func (f *fakeEventRepo) Create(_ context.Context, e *models.Event) error {
	e.ID = uuid.New()
	e.ParticipantIDs = []uuid.UUID{e.OrganizerID}
	cp := *e
	f.events[e.ID] = &cp
	return nil
}

func (f *fakeEventRepo) Update(_ context.Context, e *models.Event) error {
	if _, ok := f.events[e.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *e
	f.events[e.ID] = &cp
	return nil
}

func (f *fakeEventRepo) DeleteByID(_ context.Context, id uuid.UUID) error {
	if _, ok := f.events[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.events, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeEventRepo) FindByZoneID(_ context.Context, zoneID uuid.UUID) ([]models.Event, error) {
	var out []models.Event
	for _, e := range f.events {
		if e.ZoneID == zoneID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) FindByOrganizerID(_ context.Context, userID uuid.UUID) ([]models.Event, error) {
	var out []models.Event
	for _, e := range f.events {
		if e.OrganizerID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) FindByParticipantID(_ context.Context, userID uuid.UUID) ([]models.Event, error) {
	var out []models.Event
	for _, e := range f.events {
		if e.IsParticipant(userID) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) FindByStatus(_ context.Context, status models.EventStatus) ([]models.Event, error) {
	var out []models.Event
	for _, e := range f.events {
		if e.Status == status {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) ListDueToStart(_ context.Context) ([]models.Event, error) {
	var out []models.Event
	for _, e := range f.events {
		if e.Status == models.EventStatusPlanned && !e.StartsAt.After(time.Now()) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) AddParticipant(_ context.Context, eventID, userID uuid.UUID) error {
	e, ok := f.events[eventID]
	if !ok {
		return pgx.ErrNoRows
	}
	if !e.IsParticipant(userID) {
		e.ParticipantIDs = append(e.ParticipantIDs, userID)
	}
	return nil
}

func (f *fakeEventRepo) RemoveParticipant(_ context.Context, eventID, userID uuid.UUID) error {
	e, ok := f.events[eventID]
	if !ok {
		return pgx.ErrNoRows
	}
	kept := e.ParticipantIDs[:0]
	for _, id := range e.ParticipantIDs {
		if id != userID {
			kept = append(kept, id)
		}
	}
	e.ParticipantIDs = kept
	return nil
}

func (f *fakeEventRepo) AddAttendance(_ context.Context, eventID, userID uuid.UUID) error {
	f.attendance[eventID] = append(f.attendance[eventID], userID)
	return nil
}

func (f *fakeEventRepo) HasAttended(_ context.Context, eventID, userID uuid.UUID) (bool, error) {
	for _, id := range f.attendance[eventID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEventRepo) AttendeeIDs(_ context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	return f.attendance[eventID], nil
}

type fakeUsers struct {
	known map[uuid.UUID]bool
}

func (f *fakeUsers) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return f.known[id], nil
}

type fakeMessages struct {
	purged []uuid.UUID
}

func (f *fakeMessages) DeleteByEvent(_ context.Context, eventID uuid.UUID) (int64, error) {
	f.purged = append(f.purged, eventID)
	return 3, nil
}

type fakeEventHistory struct{}

func (fakeEventHistory) FindByEventID(_ context.Context, _ uuid.UUID) ([]models.EventStateChange, error) {
	return nil, nil
}

type serviceFixture struct {
	repo     *fakeEventRepo
	users    *fakeUsers
	zones    *fakeZoneReader
	changer  *fakeZoneChanger
	messages *fakeMessages
	svc      *Service
}

func newServiceFixture(events ...*models.Event) *serviceFixture {
	f := &serviceFixture{
		repo:     newFakeEventRepo(events...),
		users:    &fakeUsers{known: map[uuid.UUID]bool{}},
		zones:    &fakeZoneReader{zones: map[uuid.UUID]*models.Zone{}},
		changer:  &fakeZoneChanger{},
		messages: &fakeMessages{},
	}
	lifecycle := NewStateChangeService(f.repo, f.zones, f.changer, &fakeEventAudit{}, zap.NewNop())
	f.svc = NewService(f.repo, f.users, f.zones, f.changer, lifecycle, f.messages, fakeEventHistory{}, nil, zap.NewNop())
	return f
}

func (f *serviceFixture) knowUser(id uuid.UUID) {
	f.users.known[id] = true
}

func (f *serviceFixture) addZone(z *models.Zone) {
	f.zones.zones[z.ID] = z
}

func TestCreateEventValidation(t *testing.T) {
	fix := newServiceFixture()
	organizer := uuid.New()
	fix.knowUser(organizer)
	base := CreateParams{
		Title:       "beach cleanup",
		StartsAt:    time.Now().Add(time.Hour),
		ZoneID:      uuid.New(),
		OrganizerID: organizer,
	}

	t.Run("title required", func(t *testing.T) {
		p := base
		p.Title = ""
		_, err := fix.svc.CreateEvent(context.Background(), p)
		require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("start must be in the future", func(t *testing.T) {
		p := base
		p.StartsAt = time.Now().Add(-time.Minute)
		_, err := fix.svc.CreateEvent(context.Background(), p)
		require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("end must follow start", func(t *testing.T) {
		p := base
		ends := p.StartsAt.Add(-time.Minute)
		p.EndsAt = &ends
		_, err := fix.svc.CreateEvent(context.Background(), p)
		require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("limit of zero", func(t *testing.T) {
		p := base
		zero := 0
		p.MaxParticipants = &zero
		_, err := fix.svc.CreateEvent(context.Background(), p)
		require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

func TestCreateEventLinksZone(t *testing.T) {
	fix := newServiceFixture()
	organizer := uuid.New()
	fix.knowUser(organizer)
	zone := &models.Zone{ID: uuid.New(), Status: models.ZoneStatusReported, IsActive: true}
	fix.addZone(zone)

	event, err := fix.svc.CreateEvent(context.Background(), CreateParams{
		Title:       "beach cleanup",
		StartsAt:    time.Now().Add(time.Hour),
		ZoneID:      zone.ID,
		OrganizerID: organizer,
	})
	require.NoError(t, err)
	require.Equal(t, models.EventStatusPlanned, event.Status)
	require.Equal(t, []uuid.UUID{organizer}, event.ParticipantIDs)

	require.Len(t, fix.changer.calls, 1)
	call := fix.changer.calls[0]
	require.Equal(t, zone.ID, call.zoneID)
	require.Equal(t, models.ZoneStatusCleaningScheduled, call.status)
	require.NotNil(t, call.opts.LinkEventID)
	require.Equal(t, event.ID, *call.opts.LinkEventID)
}

func TestCreateEventZoneConflicts(t *testing.T) {
	fix := newServiceFixture()
	organizer := uuid.New()
	fix.knowUser(organizer)

	busy := uuid.New()
	taken := &models.Zone{ID: uuid.New(), Status: models.ZoneStatusCleaningScheduled, EventID: &busy}
	cleaned := &models.Zone{ID: uuid.New(), Status: models.ZoneStatusCleaned}
	fix.addZone(taken)
	fix.addZone(cleaned)

	p := CreateParams{Title: "cleanup", StartsAt: time.Now().Add(time.Hour), OrganizerID: organizer}

	p.ZoneID = taken.ID
	_, err := fix.svc.CreateEvent(context.Background(), p)
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	p.ZoneID = cleaned.ID
	_, err = fix.svc.CreateEvent(context.Background(), p)
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	p.ZoneID = uuid.New()
	_, err = fix.svc.CreateEvent(context.Background(), p)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestJoinEvent(t *testing.T) {
	organizer := uuid.New()

	t.Run("joins a planned event", func(t *testing.T) {
		event := plannedEvent(organizer)
		fix := newServiceFixture(event)
		joiner := uuid.New()
		fix.knowUser(joiner)

		got, err := fix.svc.JoinEvent(context.Background(), event.ID, joiner)
		require.NoError(t, err)
		require.True(t, got.IsParticipant(joiner))
		require.True(t, fix.repo.events[event.ID].IsParticipant(joiner))
	})

	t.Run("duplicate registration", func(t *testing.T) {
		event := plannedEvent(organizer)
		fix := newServiceFixture(event)

		_, err := fix.svc.JoinEvent(context.Background(), event.ID, organizer)
		require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("full event", func(t *testing.T) {
		event := plannedEvent(organizer)
		one := 1
		event.MaxParticipants = &one
		fix := newServiceFixture(event)
		joiner := uuid.New()
		fix.knowUser(joiner)

		_, err := fix.svc.JoinEvent(context.Background(), event.ID, joiner)
		require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("closed event", func(t *testing.T) {
		event := plannedEvent(organizer)
		event.Status = models.EventStatusCompleted
		fix := newServiceFixture(event)

		_, err := fix.svc.JoinEvent(context.Background(), event.ID, uuid.New())
		require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})
}

func TestLeaveEvent(t *testing.T) {
	organizer := uuid.New()
	member := uuid.New()

	t.Run("organizer cannot leave", func(t *testing.T) {
		event := plannedEvent(organizer)
		fix := newServiceFixture(event)

		err := fix.svc.LeaveEvent(context.Background(), event.ID, organizer)
		require.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	})

	t.Run("only while planned", func(t *testing.T) {
		event := plannedEvent(organizer)
		event.Status = models.EventStatusInProgress
		event.ParticipantIDs = append(event.ParticipantIDs, member)
		fix := newServiceFixture(event)

		err := fix.svc.LeaveEvent(context.Background(), event.ID, member)
		require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("participant leaves", func(t *testing.T) {
		event := plannedEvent(organizer)
		event.ParticipantIDs = append(event.ParticipantIDs, member)
		fix := newServiceFixture(event)

		require.NoError(t, fix.svc.LeaveEvent(context.Background(), event.ID, member))
		require.False(t, fix.repo.events[event.ID].IsParticipant(member))
	})

	t.Run("non participant", func(t *testing.T) {
		event := plannedEvent(organizer)
		fix := newServiceFixture(event)

		err := fix.svc.LeaveEvent(context.Background(), event.ID, member)
		require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}

func TestUpdateEventDetails(t *testing.T) {
	organizer := uuid.New()

	t.Run("organizer only", func(t *testing.T) {
		event := plannedEvent(organizer)
		fix := newServiceFixture(event)
		title := "new title"

		_, err := fix.svc.UpdateEventDetails(context.Background(), event.ID, uuid.New(), UpdateParams{Title: &title})
		require.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	})

	t.Run("planned only", func(t *testing.T) {
		event := plannedEvent(organizer)
		event.Status = models.EventStatusInProgress
		fix := newServiceFixture(event)
		title := "new title"

		_, err := fix.svc.UpdateEventDetails(context.Background(), event.ID, organizer, UpdateParams{Title: &title})
		require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("limit cannot undercut registrations", func(t *testing.T) {
		event := plannedEvent(organizer)
		event.ParticipantIDs = append(event.ParticipantIDs, uuid.New(), uuid.New())
		fix := newServiceFixture(event)
		two := 2

		_, err := fix.svc.UpdateEventDetails(context.Background(), event.ID, organizer, UpdateParams{MaxParticipants: &two})
		require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("edits persist", func(t *testing.T) {
		event := plannedEvent(organizer)
		fix := newServiceFixture(event)
		title := "forest path cleanup"
		starts := time.Now().Add(48 * time.Hour)

		got, err := fix.svc.UpdateEventDetails(context.Background(), event.ID, organizer, UpdateParams{
			Title:    &title,
			StartsAt: &starts,
		})
		require.NoError(t, err)
		require.Equal(t, title, got.Title)
		require.Equal(t, title, fix.repo.events[event.ID].Title)
	})
}

func TestCheckInUser(t *testing.T) {
	organizer := uuid.New()
	member := uuid.New()

	running := func() *models.Event {
		e := plannedEvent(organizer)
		e.Status = models.EventStatusInProgress
		e.ParticipantIDs = append(e.ParticipantIDs, member)
		return e
	}

	t.Run("organizer checks in a participant", func(t *testing.T) {
		event := running()
		fix := newServiceFixture(event)

		require.NoError(t, fix.svc.CheckInUser(context.Background(), event.ID, organizer, member))
		attended, _ := fix.repo.HasAttended(context.Background(), event.ID, member)
		require.True(t, attended)
	})

	t.Run("double check-in", func(t *testing.T) {
		event := running()
		fix := newServiceFixture(event)

		require.NoError(t, fix.svc.CheckInUser(context.Background(), event.ID, organizer, member))
		err := fix.svc.CheckInUser(context.Background(), event.ID, organizer, member)
		require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("non organizer", func(t *testing.T) {
		event := running()
		fix := newServiceFixture(event)

		err := fix.svc.CheckInUser(context.Background(), event.ID, member, member)
		require.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	})

	t.Run("only while running", func(t *testing.T) {
		event := plannedEvent(organizer)
		event.ParticipantIDs = append(event.ParticipantIDs, member)
		fix := newServiceFixture(event)

		err := fix.svc.CheckInUser(context.Background(), event.ID, organizer, member)
		require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("organizer does not check in", func(t *testing.T) {
		event := running()
		fix := newServiceFixture(event)

		err := fix.svc.CheckInUser(context.Background(), event.ID, organizer, organizer)
		require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("unregistered user", func(t *testing.T) {
		event := running()
		fix := newServiceFixture(event)

		err := fix.svc.CheckInUser(context.Background(), event.ID, organizer, uuid.New())
		require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}

func TestDeleteEvent(t *testing.T) {
	organizer := uuid.New()

	t.Run("unlinks the zone and purges chat", func(t *testing.T) {
		event := plannedEvent(organizer)
		zone := scheduledZone(event)
		fix := newServiceFixture(event)
		fix.addZone(zone)

		require.NoError(t, fix.svc.DeleteEvent(context.Background(), event.ID, organizer))
		require.Equal(t, []uuid.UUID{event.ID}, fix.repo.deleted)
		require.Equal(t, []uuid.UUID{event.ID}, fix.messages.purged)

		require.Len(t, fix.changer.calls, 1)
		call := fix.changer.calls[0]
		require.Equal(t, models.ZoneStatusReported, call.status)
		require.True(t, call.opts.ClearEventID)
	})

	t.Run("leaves a relinked zone alone", func(t *testing.T) {
		event := plannedEvent(organizer)
		zone := scheduledZone(event)
		newer := uuid.New()
		zone.EventID = &newer
		fix := newServiceFixture(event)
		fix.addZone(zone)

		require.NoError(t, fix.svc.DeleteEvent(context.Background(), event.ID, organizer))
		require.Empty(t, fix.changer.calls)
	})

	t.Run("running events cannot be deleted", func(t *testing.T) {
		event := plannedEvent(organizer)
		event.Status = models.EventStatusInProgress
		fix := newServiceFixture(event)

		err := fix.svc.DeleteEvent(context.Background(), event.ID, organizer)
		require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("organizer only", func(t *testing.T) {
		event := plannedEvent(organizer)
		fix := newServiceFixture(event)

		err := fix.svc.DeleteEvent(context.Background(), event.ID, uuid.New())
		require.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	})
}

func TestStartDueEvents(t *testing.T) {
	organizer := uuid.New()

	due := plannedEvent(organizer)
	due.StartsAt = time.Now().Add(-time.Minute)

	broken := plannedEvent(organizer)
	broken.StartsAt = time.Now().Add(-time.Minute)

	future := plannedEvent(organizer)

	fix := newServiceFixture(due, broken, future)
	fix.repo.failStatus[broken.ID] = errors.New("write refused")

	started, err := fix.svc.StartDueEvents(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, started)
	require.Equal(t, models.EventStatusInProgress, fix.repo.events[due.ID].Status)
	require.Equal(t, models.EventStatusPlanned, fix.repo.events[future.ID].Status)
}
