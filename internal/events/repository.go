package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keepmyplanet/backend/internal/models"
)

// ErrImmutable is returned for any mutation attempt on audit records.
var ErrImmutable = errors.New("state change records are append-only")

const eventColumns = `id, title, description, starts_at, ends_at, zone_id, organizer_id, status, max_participants, created_at, updated_at`

// Repository provides PostgreSQL access to events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	var status string
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.StartsAt, &e.EndsAt, &e.ZoneID,
		&e.OrganizerID, &status, &e.MaxParticipants, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Status = models.DecodeEventStatus(status)
	return &e, nil
}

// Create inserts the event and registers the organizer as its first
// participant in a single transaction.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO events (title, description, starts_at, ends_at, zone_id, organizer_id, status, max_participants)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	           RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, q, e.Title, e.Description, e.StartsAt, e.EndsAt, e.ZoneID,
		e.OrganizerID, string(e.Status), e.MaxParticipants).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO event_participants (event_id, user_id) VALUES ($1, $2)`,
		e.ID, e.OrganizerID); err != nil {
		return err
	}
	e.ParticipantIDs = []uuid.UUID{e.OrganizerID}
	return tx.Commit(ctx)
}

// GetByID fetches an event with its participant list.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	e, err := scanEvent(r.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	e.ParticipantIDs, err = r.participantIDs(ctx, id)
	return e, err
}

func (r *Repository) participantIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM event_participants WHERE event_id = $1 ORDER BY joined_at`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Update persists the mutable event detail fields.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET title = $1, description = $2, starts_at = $3, ends_at = $4,
	           max_participants = $5, updated_at = NOW() WHERE id = $6`
	tag, err := r.pool.Exec(ctx, q, e.Title, e.Description, e.StartsAt, e.EndsAt, e.MaxParticipants, e.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateStatus persists only the lifecycle status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE events SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteByID removes the event. Participant and attendance rows cascade at
// the database level.
func (r *Repository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// FindByZoneID returns all events ever scheduled for the zone, newest first.
func (r *Repository) FindByZoneID(ctx context.Context, zoneID uuid.UUID) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE zone_id = $1 ORDER BY created_at DESC`, zoneID)
	if err != nil {
		return nil, err
	}
	return r.collectEvents(ctx, rows)
}

// FindByOrganizerID returns events organized by the user.
func (r *Repository) FindByOrganizerID(ctx context.Context, userID uuid.UUID) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE organizer_id = $1 ORDER BY starts_at`, userID)
	if err != nil {
		return nil, err
	}
	return r.collectEvents(ctx, rows)
}

// FindByParticipantID returns events the user is registered for.
func (r *Repository) FindByParticipantID(ctx context.Context, userID uuid.UUID) ([]models.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events
	           WHERE id IN (SELECT event_id FROM event_participants WHERE user_id = $1)
	           ORDER BY starts_at`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return r.collectEvents(ctx, rows)
}

// FindByStatus returns events in the given status, soonest first.
func (r *Repository) FindByStatus(ctx context.Context, status models.EventStatus) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE status = $1 ORDER BY starts_at`, string(status))
	if err != nil {
		return nil, err
	}
	return r.collectEvents(ctx, rows)
}

// ListDueToStart returns planned events whose start time has passed.
func (r *Repository) ListDueToStart(ctx context.Context) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE status = 'planned' AND starts_at <= NOW()`)
	if err != nil {
		return nil, err
	}
	return r.collectEvents(ctx, rows)
}

func (r *Repository) collectEvents(ctx context.Context, rows pgx.Rows) ([]models.Event, error) {
	list := make([]models.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, *e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range list {
		ids, err := r.participantIDs(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
		list[i].ParticipantIDs = ids
	}
	return list, nil
}

// AddParticipant registers a user for an event. Adding twice is a no-op.
func (r *Repository) AddParticipant(ctx context.Context, eventID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO event_participants (event_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		eventID, userID)
	return err
}

// CountParticipants returns the number of registered participants.
func (r *Repository) CountParticipants(ctx context.Context, eventID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM event_participants WHERE event_id = $1`, eventID).Scan(&n)
	return n, err
}

// RemoveParticipant unregisters a user from an event.
func (r *Repository) RemoveParticipant(ctx context.Context, eventID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM event_participants WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	return err
}

// AddAttendance records a check-in. Repeat check-ins are no-ops.
func (r *Repository) AddAttendance(ctx context.Context, eventID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO event_attendance (event_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		eventID, userID)
	return err
}

// HasAttended reports whether a user checked in at the event.
func (r *Repository) HasAttended(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM event_attendance WHERE event_id = $1 AND user_id = $2)`,
		eventID, userID).Scan(&exists)
	return exists, err
}

// AttendeeIDs returns the users who checked in at the event.
func (r *Repository) AttendeeIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM event_attendance WHERE event_id = $1 ORDER BY checked_in_at`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StateChangeRepository stores the append-only event status audit log.
type StateChangeRepository struct {
	pool *pgxpool.Pool
}

// NewStateChangeRepository creates the audit log repository.
func NewStateChangeRepository(pool *pgxpool.Pool) *StateChangeRepository {
	return &StateChangeRepository{pool: pool}
}

// Create appends an audit record.
func (r *StateChangeRepository) Create(ctx context.Context, sc *models.EventStateChange) error {
	const q = `INSERT INTO event_state_changes (event_id, status, changed_by)
	           VALUES ($1, $2, $3) RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, sc.EventID, string(sc.Status), sc.ChangedBy).Scan(&sc.ID, &sc.CreatedAt)
}

// GetByID fetches one audit record.
func (r *StateChangeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.EventStateChange, error) {
	const q = `SELECT id, event_id, status, changed_by, created_at FROM event_state_changes WHERE id = $1`
	var sc models.EventStateChange
	var status string
	if err := r.pool.QueryRow(ctx, q, id).Scan(&sc.ID, &sc.EventID, &status, &sc.ChangedBy, &sc.CreatedAt); err != nil {
		return nil, err
	}
	sc.Status = models.DecodeEventStatus(status)
	return &sc, nil
}

// FindByEventID returns the event's audit trail in chronological order.
func (r *StateChangeRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) ([]models.EventStateChange, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, event_id, status, changed_by, created_at FROM event_state_changes
		 WHERE event_id = $1 ORDER BY created_at`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]models.EventStateChange, 0)
	for rows.Next() {
		var sc models.EventStateChange
		var status string
		if err := rows.Scan(&sc.ID, &sc.EventID, &status, &sc.ChangedBy, &sc.CreatedAt); err != nil {
			return nil, err
		}
		sc.Status = models.DecodeEventStatus(status)
		list = append(list, sc)
	}
	return list, rows.Err()
}

// Update always fails: audit records are immutable.
func (r *StateChangeRepository) Update(ctx context.Context, sc *models.EventStateChange) error {
	return ErrImmutable
}

// DeleteByID always fails: audit records are immutable.
func (r *StateChangeRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return ErrImmutable
}
