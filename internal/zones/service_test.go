package zones

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/keepmyplanet/backend/internal/models"
	"github.com/keepmyplanet/backend/pkg/apperr"
)

type fakeZoneRepo struct {
	*fakeZoneStore
	deleted  []uuid.UUID
	attached map[uuid.UUID][]uuid.UUID
}

func newFakeZoneRepo(zs ...*models.Zone) *fakeZoneRepo {
	return &fakeZoneRepo{
		fakeZoneStore: newFakeZoneStore(zs...),
		attached:      make(map[uuid.UUID][]uuid.UUID),
	}
}

func (f *fakeZoneRepo) Create(_ context.Context, z *models.Zone) error {
	z.ID = uuid.New()
	z.IsActive = true
	cp := *z
	f.zones[z.ID] = &cp
	return nil
}

func (f *fakeZoneRepo) DeleteByID(_ context.Context, id uuid.UUID) error {
	if _, ok := f.zones[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.zones, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeZoneRepo) AttachPhoto(_ context.Context, zoneID, photoID uuid.UUID) error {
	f.attached[zoneID] = append(f.attached[zoneID], photoID)
	return nil
}

func (f *fakeZoneRepo) DetachPhoto(_ context.Context, zoneID, photoID uuid.UUID) error {
	kept := make([]uuid.UUID, 0)
	for _, id := range f.attached[zoneID] {
		if id != photoID {
			kept = append(kept, id)
		}
	}
	f.attached[zoneID] = kept
	return nil
}

func (f *fakeZoneRepo) FindByEventID(_ context.Context, eventID uuid.UUID) (*models.Zone, error) {
	for _, z := range f.zones {
		if z.EventID != nil && *z.EventID == eventID {
			cp := *z
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeZoneRepo) List(_ context.Context) ([]models.Zone, error) {
	out := make([]models.Zone, 0, len(f.zones))
	for _, z := range f.zones {
		out = append(out, *z)
	}
	return out, nil
}

func (f *fakeZoneRepo) FindNearLocation(_ context.Context, _ models.Location, _ float64) ([]models.Zone, error) {
	return f.List(context.Background())
}

type fakeUsers struct {
	known map[uuid.UUID]bool
}

func (f *fakeUsers) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return f.known[id], nil
}

type fakePhotos struct {
	photos map[uuid.UUID]*models.Photo
}

func (f *fakePhotos) GetByID(_ context.Context, id uuid.UUID) (*models.Photo, error) {
	p, ok := f.photos[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

type fakeEvents struct {
	events map[uuid.UUID]*models.Event
}

func (f *fakeEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return e, nil
}

type fakeZoneHistory struct{}

func (fakeZoneHistory) FindByZoneID(_ context.Context, _ uuid.UUID) ([]models.ZoneStateChange, error) {
	return nil, nil
}

func newZoneService(repo *fakeZoneRepo, users *fakeUsers, photos *fakePhotos, events *fakeEvents) *Service {
	if users == nil {
		users = &fakeUsers{known: map[uuid.UUID]bool{}}
	}
	if photos == nil {
		photos = &fakePhotos{photos: map[uuid.UUID]*models.Photo{}}
	}
	if events == nil {
		events = &fakeEvents{events: map[uuid.UUID]*models.Event{}}
	}
	return NewService(repo, users, photos, events, fakeZoneHistory{}, zap.NewNop())
}

func TestReportZoneValidatesLocation(t *testing.T) {
	svc := newZoneService(newFakeZoneRepo(), nil, nil, nil)
	for _, loc := range []models.Location{
		{Latitude: 91, Longitude: 0},
		{Latitude: -91, Longitude: 0},
		{Latitude: 0, Longitude: 181},
		{Latitude: 0, Longitude: -181},
	} {
		_, err := svc.ReportZone(context.Background(), ReportParams{Location: loc, ReporterID: uuid.New()})
		require.Error(t, err)
		require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	}
}

func TestReportZoneUnknownReporter(t *testing.T) {
	svc := newZoneService(newFakeZoneRepo(), nil, nil, nil)
	_, err := svc.ReportZone(context.Background(), ReportParams{
		Location:   models.Location{Latitude: 10, Longitude: 10},
		ReporterID: uuid.New(),
	})
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestReportZoneRejectsForeignPhotos(t *testing.T) {
	reporter := uuid.New()
	stranger := uuid.New()
	photoID := uuid.New()
	svc := newZoneService(newFakeZoneRepo(),
		&fakeUsers{known: map[uuid.UUID]bool{reporter: true}},
		&fakePhotos{photos: map[uuid.UUID]*models.Photo{photoID: {ID: photoID, OwnerID: stranger}}},
		nil)

	_, err := svc.ReportZone(context.Background(), ReportParams{
		Location:   models.Location{Latitude: 10, Longitude: 10},
		ReporterID: reporter,
		PhotoIDs:   []uuid.UUID{photoID},
	})
	require.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestReportZoneStartsReported(t *testing.T) {
	reporter := uuid.New()
	repo := newFakeZoneRepo()
	svc := newZoneService(repo, &fakeUsers{known: map[uuid.UUID]bool{reporter: true}}, nil, nil)

	zone, err := svc.ReportZone(context.Background(), ReportParams{
		Location:    models.Location{Latitude: 10, Longitude: 10},
		Description: "river bank covered in plastic",
		Severity:    models.SeverityHigh,
		ReporterID:  reporter,
	})
	require.NoError(t, err)
	require.Equal(t, models.ZoneStatusReported, zone.Status)
	require.Nil(t, zone.EventID)
}

func TestDeleteZoneConflictsWhileScheduled(t *testing.T) {
	reporter := uuid.New()
	zone := reportedZone(reporter)
	eventID := uuid.New()
	zone.Status = models.ZoneStatusCleaningScheduled
	zone.EventID = &eventID
	repo := newFakeZoneRepo(zone)
	svc := newZoneService(repo, nil, nil, &fakeEvents{events: map[uuid.UUID]*models.Event{
		eventID: {ID: eventID, OrganizerID: reporter},
	}})

	err := svc.DeleteZone(context.Background(), zone.ID, reporter)
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	require.Empty(t, repo.deleted)
}

func TestDeleteZoneByReporter(t *testing.T) {
	reporter := uuid.New()
	zone := reportedZone(reporter)
	repo := newFakeZoneRepo(zone)
	svc := newZoneService(repo, nil, nil, nil)

	require.NoError(t, svc.DeleteZone(context.Background(), zone.ID, reporter))
	require.Equal(t, []uuid.UUID{zone.ID}, repo.deleted)
}

func TestUpdateZonePermissions(t *testing.T) {
	reporter := uuid.New()
	organizer := uuid.New()
	stranger := uuid.New()
	desc := "updated"

	t.Run("unlinked zone belongs to the reporter", func(t *testing.T) {
		zone := reportedZone(reporter)
		svc := newZoneService(newFakeZoneRepo(zone), nil, nil, nil)

		_, err := svc.UpdateZone(context.Background(), zone.ID, stranger, UpdateParams{Description: &desc})
		require.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

		got, err := svc.UpdateZone(context.Background(), zone.ID, reporter, UpdateParams{Description: &desc})
		require.NoError(t, err)
		require.Equal(t, desc, got.Description)
	})

	t.Run("linked zone belongs to the organizer", func(t *testing.T) {
		zone := reportedZone(reporter)
		eventID := uuid.New()
		zone.EventID = &eventID
		events := &fakeEvents{events: map[uuid.UUID]*models.Event{
			eventID: {ID: eventID, OrganizerID: organizer},
		}}
		svc := newZoneService(newFakeZoneRepo(zone), nil, nil, events)

		_, err := svc.UpdateZone(context.Background(), zone.ID, reporter, UpdateParams{Description: &desc})
		require.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

		_, err = svc.UpdateZone(context.Background(), zone.ID, organizer, UpdateParams{Description: &desc})
		require.NoError(t, err)
	})
}

func TestAttachPhotoOwnership(t *testing.T) {
	reporter := uuid.New()
	zone := reportedZone(reporter)
	photoID := uuid.New()
	repo := newFakeZoneRepo(zone)
	svc := newZoneService(repo, nil,
		&fakePhotos{photos: map[uuid.UUID]*models.Photo{photoID: {ID: photoID, OwnerID: uuid.New()}}},
		nil)

	err := svc.AttachPhoto(context.Background(), zone.ID, reporter, photoID)
	require.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	require.Empty(t, repo.attached[zone.ID])
}

func TestGetZoneLoadFailureIsInternal(t *testing.T) {
	repo := newFakeZoneRepo()
	repo.getErr = errors.New("connection refused")
	svc := newZoneService(repo, nil, nil, nil)

	_, err := svc.GetZone(context.Background(), uuid.New())
	require.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	_, err = svc.UpdateZone(context.Background(), uuid.New(), uuid.New(), UpdateParams{})
	require.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestGetZoneUnknownIsNotFound(t *testing.T) {
	svc := newZoneService(newFakeZoneRepo(), nil, nil, nil)

	_, err := svc.GetZone(context.Background(), uuid.New())
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestFindNearRejectsNonPositiveRadius(t *testing.T) {
	svc := newZoneService(newFakeZoneRepo(), nil, nil, nil)
	_, err := svc.FindNear(context.Background(), models.Location{}, 0)
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
