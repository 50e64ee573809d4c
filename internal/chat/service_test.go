package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/keepmyplanet/backend/internal/models"
	"github.com/keepmyplanet/backend/pkg/apperr"
)

type fakeMessageRepo struct {
	byID    map[uuid.UUID]*models.Message
	byEvent map[uuid.UUID][]*models.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		byID:    make(map[uuid.UUID]*models.Message),
		byEvent: make(map[uuid.UUID][]*models.Message),
	}
}

func (f *fakeMessageRepo) Create(_ context.Context, m *models.Message) error {
	m.ID = uuid.New()
	next := int64(0)
	for _, existing := range f.byEvent[m.EventID] {
		if existing.ChatPosition >= next {
			next = existing.ChatPosition + 1
		}
	}
	m.ChatPosition = next
	cp := *m
	f.byID[m.ID] = &cp
	f.byEvent[m.EventID] = append(f.byEvent[m.EventID], &cp)
	return nil
}

func (f *fakeMessageRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Message, error) {
	m, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMessageRepo) ListByEvent(_ context.Context, eventID uuid.UUID, sincePosition int64) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.byEvent[eventID] {
		if m.ChatPosition > sincePosition {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) DeleteByID(_ context.Context, id uuid.UUID) error {
	m, ok := f.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(f.byID, id)
	kept := f.byEvent[m.EventID][:0]
	for _, other := range f.byEvent[m.EventID] {
		if other.ID != id {
			kept = append(kept, other)
		}
	}
	f.byEvent[m.EventID] = kept
	return nil
}

func (f *fakeMessageRepo) DeleteByEvent(_ context.Context, eventID uuid.UUID) (int64, error) {
	n := int64(len(f.byEvent[eventID]))
	for _, m := range f.byEvent[eventID] {
		delete(f.byID, m.ID)
	}
	delete(f.byEvent, eventID)
	return n, nil
}

type fakeEventGetter struct {
	events map[uuid.UUID]*models.Event
}

func (f *fakeEventGetter) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

type fakeUserGetter struct {
	users map[uuid.UUID]*models.User
}

func (f *fakeUserGetter) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

type broadcastRecord struct {
	eventID uuid.UUID
	kind    string
	payload interface{}
}

type fakeBroadcaster struct {
	sent []broadcastRecord
}

func (f *fakeBroadcaster) Broadcast(eventID uuid.UUID, kind string, payload interface{}) {
	f.sent = append(f.sent, broadcastRecord{eventID: eventID, kind: kind, payload: payload})
}

type chatFixture struct {
	repo  *fakeMessageRepo
	hub   *fakeBroadcaster
	event *models.Event
	svc   *Service
}

func newChatFixture(organizer, member uuid.UUID) *chatFixture {
	event := &models.Event{
		ID:             uuid.New(),
		Title:          "park cleanup",
		OrganizerID:    organizer,
		Status:         models.EventStatusInProgress,
		ParticipantIDs: []uuid.UUID{organizer, member},
	}
	f := &chatFixture{
		repo:  newFakeMessageRepo(),
		hub:   &fakeBroadcaster{},
		event: event,
	}
	users := &fakeUserGetter{users: map[uuid.UUID]*models.User{
		organizer: {ID: organizer, FullName: "Olga Organizer"},
		member:    {ID: member, FullName: "Miro Member"},
	}}
	f.svc = NewService(f.repo, &fakeEventGetter{events: map[uuid.UUID]*models.Event{event.ID: event}}, users, f.hub, zap.NewNop())
	return f
}

func TestAddMessageAssignsGaplessPositions(t *testing.T) {
	organizer := uuid.New()
	member := uuid.New()
	fix := newChatFixture(organizer, member)

	for i, content := range []string{"hello", "gloves are here", "starting at the north end"} {
		msg, err := fix.svc.AddMessage(context.Background(), fix.event.ID, member, content)
		require.NoError(t, err)
		require.Equal(t, int64(i), msg.ChatPosition)
	}
	require.Len(t, fix.hub.sent, 3)
	require.Equal(t, "chat_message", fix.hub.sent[0].kind)
}

func TestAddMessageDenormalizesSenderName(t *testing.T) {
	organizer := uuid.New()
	member := uuid.New()
	fix := newChatFixture(organizer, member)

	msg, err := fix.svc.AddMessage(context.Background(), fix.event.ID, member, "  hi all  ")
	require.NoError(t, err)
	require.Equal(t, "Miro Member", msg.SenderName)
	require.Equal(t, "hi all", msg.Content)
}

func TestAddMessageValidation(t *testing.T) {
	organizer := uuid.New()
	member := uuid.New()
	fix := newChatFixture(organizer, member)

	_, err := fix.svc.AddMessage(context.Background(), fix.event.ID, member, "   ")
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = fix.svc.AddMessage(context.Background(), fix.event.ID, member, strings.Repeat("x", maxContentLength+1))
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAddMessageParticipantsOnly(t *testing.T) {
	fix := newChatFixture(uuid.New(), uuid.New())

	_, err := fix.svc.AddMessage(context.Background(), fix.event.ID, uuid.New(), "let me in")
	require.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	require.Empty(t, fix.hub.sent)
}

func TestAddMessageClosedAfterTerminalStatus(t *testing.T) {
	organizer := uuid.New()
	member := uuid.New()
	fix := newChatFixture(organizer, member)
	fix.event.Status = models.EventStatusCompleted

	_, err := fix.svc.AddMessage(context.Background(), fix.event.ID, member, "anyone still here?")
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestListMessagesSincePosition(t *testing.T) {
	organizer := uuid.New()
	member := uuid.New()
	fix := newChatFixture(organizer, member)

	for _, content := range []string{"one", "two", "three"} {
		_, err := fix.svc.AddMessage(context.Background(), fix.event.ID, member, content)
		require.NoError(t, err)
	}

	all, err := fix.svc.ListMessages(context.Background(), fix.event.ID, member, -1)
	require.NoError(t, err)
	require.Len(t, all, 3)

	tail, err := fix.svc.ListMessages(context.Background(), fix.event.ID, member, 0)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	require.Equal(t, "two", tail[0].Content)
}

func TestDeleteMessageAuthorization(t *testing.T) {
	organizer := uuid.New()
	member := uuid.New()
	fix := newChatFixture(organizer, member)

	msg, err := fix.svc.AddMessage(context.Background(), fix.event.ID, member, "oops")
	require.NoError(t, err)

	otherMember := uuid.New()
	fix.event.ParticipantIDs = append(fix.event.ParticipantIDs, otherMember)
	err = fix.svc.DeleteMessage(context.Background(), fix.event.ID, msg.ID, otherMember)
	require.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	// the organizer moderates
	require.NoError(t, fix.svc.DeleteMessage(context.Background(), fix.event.ID, msg.ID, organizer))
	_, err = fix.repo.GetByID(context.Background(), msg.ID)
	require.ErrorIs(t, err, pgx.ErrNoRows)

	last := fix.hub.sent[len(fix.hub.sent)-1]
	require.Equal(t, "chat_message_deleted", last.kind)
}

func TestDeleteMessageWrongEvent(t *testing.T) {
	organizer := uuid.New()
	member := uuid.New()
	fix := newChatFixture(organizer, member)

	msg, err := fix.svc.AddMessage(context.Background(), fix.event.ID, member, "hello")
	require.NoError(t, err)

	other := &models.Event{ID: uuid.New(), OrganizerID: organizer, Status: models.EventStatusInProgress}
	getter := fix.svc.events.(*fakeEventGetter)
	getter.events[other.ID] = other

	err = fix.svc.DeleteMessage(context.Background(), other.ID, msg.ID, member)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
