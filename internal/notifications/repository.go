package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keepmyplanet/backend/internal/models"
)

// TokenRepository provides PostgreSQL access to device tokens.
type TokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository creates a device token repository.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// Save registers a token for a user. Re-registering an existing token moves
// it to the user, which covers device hand-over and app reinstalls.
func (r *TokenRepository) Save(ctx context.Context, t *models.DeviceToken) error {
	const q = `INSERT INTO device_tokens (user_id, token, platform) VALUES ($1, $2, $3)
	           ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform
	           RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, t.UserID, t.Token, t.Platform).Scan(&t.ID, &t.CreatedAt)
}

// Delete removes a token owned by the user.
func (r *TokenRepository) Delete(ctx context.Context, userID uuid.UUID, token string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM device_tokens WHERE user_id = $1 AND token = $2`, userID, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteByToken removes a token regardless of owner. The worker uses this to
// drop tokens FCM reports as dead.
func (r *TokenRepository) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM device_tokens WHERE token = $1`, token)
	return err
}

// TokensForUsers returns the device tokens of the given users.
func (r *TokenRepository) TokensForUsers(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT token FROM device_tokens WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tokens := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
