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

type fakeZoneStore struct {
	zones   map[uuid.UUID]*models.Zone
	updates int
	getErr  error
}

func newFakeZoneStore(zs ...*models.Zone) *fakeZoneStore {
	m := make(map[uuid.UUID]*models.Zone)
	for _, z := range zs {
		m[z.ID] = z
	}
	return &fakeZoneStore{zones: m}
}

func (f *fakeZoneStore) GetByID(_ context.Context, id uuid.UUID) (*models.Zone, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	z, ok := f.zones[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *z
	return &cp, nil
}

func (f *fakeZoneStore) Update(_ context.Context, z *models.Zone) error {
	if _, ok := f.zones[z.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *z
	f.zones[z.ID] = &cp
	f.updates++
	return nil
}

type fakeZoneAudit struct {
	records []models.ZoneStateChange
}

func (f *fakeZoneAudit) Create(_ context.Context, sc *models.ZoneStateChange) error {
	f.records = append(f.records, *sc)
	return nil
}

func reportedZone(reporter uuid.UUID) *models.Zone {
	return &models.Zone{
		ID:         uuid.New(),
		Location:   models.Location{Latitude: 48.85, Longitude: 2.35},
		Status:     models.ZoneStatusReported,
		Severity:   models.SeverityMedium,
		ReporterID: reporter,
		IsActive:   true,
	}
}

func TestChangeZoneStatusPersistsAndAudits(t *testing.T) {
	actor := uuid.New()
	zone := reportedZone(actor)
	store := newFakeZoneStore(zone)
	audit := &fakeZoneAudit{}
	svc := NewStateChangeService(store, audit, zap.NewNop())

	eventID := uuid.New()
	got, err := svc.ChangeZoneStatus(context.Background(), zone.ID, models.ZoneStatusCleaningScheduled, ChangeOptions{
		ChangedBy:          &actor,
		TriggeredByEventID: &eventID,
		LinkEventID:        &eventID,
	})
	require.NoError(t, err)
	require.Equal(t, models.ZoneStatusCleaningScheduled, got.Status)
	require.NotNil(t, got.EventID)
	require.Equal(t, eventID, *got.EventID)

	require.Len(t, audit.records, 1)
	rec := audit.records[0]
	require.Equal(t, zone.ID, rec.ZoneID)
	require.Equal(t, models.ZoneStatusCleaningScheduled, rec.Status)
	require.Equal(t, &actor, rec.ChangedBy)
	require.Equal(t, &eventID, rec.TriggeredByEventID)
}

func TestChangeZoneStatusSameStatusIsNoOp(t *testing.T) {
	zone := reportedZone(uuid.New())
	store := newFakeZoneStore(zone)
	audit := &fakeZoneAudit{}
	svc := NewStateChangeService(store, audit, zap.NewNop())

	got, err := svc.ChangeZoneStatus(context.Background(), zone.ID, models.ZoneStatusReported, ChangeOptions{})
	require.NoError(t, err)
	require.Equal(t, models.ZoneStatusReported, got.Status)
	require.Zero(t, store.updates, "no write for a same-status change")
	require.Empty(t, audit.records, "no audit entry for a same-status change")
}

func TestChangeZoneStatusClearsEventLink(t *testing.T) {
	zone := reportedZone(uuid.New())
	eventID := uuid.New()
	zone.Status = models.ZoneStatusCleaningScheduled
	zone.EventID = &eventID
	store := newFakeZoneStore(zone)
	audit := &fakeZoneAudit{}
	svc := NewStateChangeService(store, audit, zap.NewNop())

	got, err := svc.ChangeZoneStatus(context.Background(), zone.ID, models.ZoneStatusCleaned, ChangeOptions{
		TriggeredByEventID: &eventID,
		ClearEventID:       true,
	})
	require.NoError(t, err)
	require.Equal(t, models.ZoneStatusCleaned, got.Status)
	require.Nil(t, got.EventID)
	require.Len(t, audit.records, 1)
	require.Nil(t, audit.records[0].ChangedBy, "system cascade has no actor")
}

func TestChangeZoneStatusUnknownZone(t *testing.T) {
	svc := NewStateChangeService(newFakeZoneStore(), &fakeZoneAudit{}, zap.NewNop())
	_, err := svc.ChangeZoneStatus(context.Background(), uuid.New(), models.ZoneStatusCleaned, ChangeOptions{})
	require.Error(t, err)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestChangeZoneStatusLoadFailureIsInternal(t *testing.T) {
	store := newFakeZoneStore()
	store.getErr = errors.New("connection refused")
	svc := NewStateChangeService(store, &fakeZoneAudit{}, zap.NewNop())

	_, err := svc.ChangeZoneStatus(context.Background(), uuid.New(), models.ZoneStatusCleaned, ChangeOptions{})
	require.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}
