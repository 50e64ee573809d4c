package zones

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keepmyplanet/backend/internal/models"
)

// ErrImmutable is returned by state-change repositories for update and
// delete: the audit log is append-only by contract.
var ErrImmutable = errors.New("zone state change log is append-only")

// Repository handles zone persistence. Zones are soft-deleted: reads filter
// on is_active and DeleteByID only clears the flag.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a zone repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const zoneColumns = `id, latitude, longitude, description, severity, status, event_id, reporter_id, is_active, created_at, updated_at`

func scanZone(row pgx.Row) (*models.Zone, error) {
	var z models.Zone
	err := row.Scan(&z.ID, &z.Location.Latitude, &z.Location.Longitude, &z.Description,
		&z.Severity, &z.Status, &z.EventID, &z.ReporterID, &z.IsActive, &z.CreatedAt, &z.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &z, nil
}

// Create inserts a zone and its photo links in one transaction.
func (r *Repository) Create(ctx context.Context, z *models.Zone) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO zones (latitude, longitude, description, severity, status, reporter_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_active, created_at, updated_at`
	err = tx.QueryRow(ctx, q, z.Location.Latitude, z.Location.Longitude, z.Description,
		string(z.Severity), string(z.Status), z.ReporterID).
		Scan(&z.ID, &z.IsActive, &z.CreatedAt, &z.UpdatedAt)
	if err != nil {
		return err
	}
	for _, photoID := range z.PhotoIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO zone_photos (zone_id, photo_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			z.ID, photoID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// GetByID returns an active zone by ID with its photo ids.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Zone, error) {
	z, err := scanZone(r.pool.QueryRow(ctx,
		`SELECT `+zoneColumns+` FROM zones WHERE id = $1 AND is_active`, id))
	if err != nil {
		return nil, err
	}
	if z.PhotoIDs, err = r.photoIDs(ctx, z.ID); err != nil {
		return nil, err
	}
	return z, nil
}

func (r *Repository) photoIDs(ctx context.Context, zoneID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT photo_id FROM zone_photos WHERE zone_id = $1`, zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Update persists mutable zone fields (description, severity, status, event link).
func (r *Repository) Update(ctx context.Context, z *models.Zone) error {
	const q = `UPDATE zones SET description = $1, severity = $2, status = $3, event_id = $4, updated_at = NOW()
		WHERE id = $5 AND is_active`
	tag, err := r.pool.Exec(ctx, q, z.Description, string(z.Severity), string(z.Status), z.EventID, z.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteByID retires a zone (soft delete).
func (r *Repository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE zones SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// AttachPhoto links a photo to a zone.
func (r *Repository) AttachPhoto(ctx context.Context, zoneID, photoID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO zone_photos (zone_id, photo_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		zoneID, photoID)
	return err
}

// DetachPhoto unlinks a photo from a zone.
func (r *Repository) DetachPhoto(ctx context.Context, zoneID, photoID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM zone_photos WHERE zone_id = $1 AND photo_id = $2`, zoneID, photoID)
	return err
}

// FindByEventID returns the active zone linked to an event, if any.
func (r *Repository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.Zone, error) {
	z, err := scanZone(r.pool.QueryRow(ctx,
		`SELECT `+zoneColumns+` FROM zones WHERE event_id = $1 AND is_active`, eventID))
	if err != nil {
		return nil, err
	}
	if z.PhotoIDs, err = r.photoIDs(ctx, z.ID); err != nil {
		return nil, err
	}
	return z, nil
}

// List returns all active zones, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Zone, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+zoneColumns+` FROM zones WHERE is_active ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectZones(rows)
}

// FindNearLocation returns active zones within radiusKm of the center,
// nearest first (haversine).
func (r *Repository) FindNearLocation(ctx context.Context, center models.Location, radiusKm float64) ([]models.Zone, error) {
	const q = `SELECT ` + zoneColumns + ` FROM zones
		WHERE is_active AND 6371 * acos(
			least(1.0, cos(radians($1)) * cos(radians(latitude)) * cos(radians(longitude) - radians($2))
			+ sin(radians($1)) * sin(radians(latitude)))
		) <= $3
		ORDER BY 6371 * acos(
			least(1.0, cos(radians($1)) * cos(radians(latitude)) * cos(radians(longitude) - radians($2))
			+ sin(radians($1)) * sin(radians(latitude)))
		)`
	rows, err := r.pool.Query(ctx, q, center.Latitude, center.Longitude, radiusKm)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectZones(rows)
}

func collectZones(rows pgx.Rows) ([]models.Zone, error) {
	var list []models.Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *z)
	}
	return list, rows.Err()
}

// StateChangeRepository handles the append-only zone status audit log.
type StateChangeRepository struct {
	pool *pgxpool.Pool
}

// NewStateChangeRepository creates a zone state change repository.
func NewStateChangeRepository(pool *pgxpool.Pool) *StateChangeRepository {
	return &StateChangeRepository{pool: pool}
}

// Create appends an audit record.
func (r *StateChangeRepository) Create(ctx context.Context, sc *models.ZoneStateChange) error {
	const q = `INSERT INTO zone_state_changes (zone_id, status, changed_by, triggered_by_event_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, sc.ZoneID, string(sc.Status), sc.ChangedBy, sc.TriggeredByEventID).
		Scan(&sc.ID, &sc.CreatedAt)
}

// GetByID returns one audit record.
func (r *StateChangeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ZoneStateChange, error) {
	const q = `SELECT id, zone_id, status, changed_by, triggered_by_event_id, created_at
		FROM zone_state_changes WHERE id = $1`
	var sc models.ZoneStateChange
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&sc.ID, &sc.ZoneID, &sc.Status, &sc.ChangedBy, &sc.TriggeredByEventID, &sc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// FindByZoneID returns the zone's audit trail in chronological order.
func (r *StateChangeRepository) FindByZoneID(ctx context.Context, zoneID uuid.UUID) ([]models.ZoneStateChange, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, zone_id, status, changed_by, triggered_by_event_id, created_at
		 FROM zone_state_changes WHERE zone_id = $1 ORDER BY created_at`, zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ZoneStateChange
	for rows.Next() {
		var sc models.ZoneStateChange
		if err := rows.Scan(&sc.ID, &sc.ZoneID, &sc.Status, &sc.ChangedBy, &sc.TriggeredByEventID, &sc.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, sc)
	}
	return list, rows.Err()
}

// Update always fails: audit records are immutable.
func (r *StateChangeRepository) Update(ctx context.Context, sc *models.ZoneStateChange) error {
	return ErrImmutable
}

// DeleteByID always fails: audit records are immutable.
func (r *StateChangeRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return ErrImmutable
}
