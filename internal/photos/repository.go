package photos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keepmyplanet/backend/internal/models"
)

// Repository provides PostgreSQL access to photo metadata.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a photo repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts photo metadata.
func (r *Repository) Create(ctx context.Context, p *models.Photo) error {
	const q = `INSERT INTO photos (owner_id, url, s3_key) VALUES ($1, $2, $3)
	           RETURNING id, uploaded_at`
	return r.pool.QueryRow(ctx, q, p.OwnerID, p.URL, p.S3Key).Scan(&p.ID, &p.UploadedAt)
}

// GetByID fetches one photo.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	var p models.Photo
	err := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, url, s3_key, uploaded_at FROM photos WHERE id = $1`, id).
		Scan(&p.ID, &p.OwnerID, &p.URL, &p.S3Key, &p.UploadedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteByID removes photo metadata.
func (r *Repository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// IsReferenced reports whether any zone still links the photo.
func (r *Repository) IsReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM zone_photos WHERE photo_id = $1)`, id).Scan(&exists)
	return exists, err
}
