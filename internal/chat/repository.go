package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keepmyplanet/backend/internal/models"
)

const messageColumns = `id, event_id, sender_id, sender_name, content, chat_position, created_at`

// Repository provides PostgreSQL access to event chat messages.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a message repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	if err := row.Scan(&m.ID, &m.EventID, &m.SenderID, &m.SenderName, &m.Content,
		&m.ChatPosition, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts the message, assigning the next chat position for the event
// inside a transaction. Positions start at 0 and are gapless per event; the
// UNIQUE (event_id, chat_position) constraint backs the assignment.
func (r *Repository) Create(ctx context.Context, m *models.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(chat_position) + 1, 0) FROM messages WHERE event_id = $1`,
		m.EventID).Scan(&m.ChatPosition); err != nil {
		return err
	}
	const q = `INSERT INTO messages (event_id, sender_id, sender_name, content, chat_position)
	           VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	if err := tx.QueryRow(ctx, q, m.EventID, m.SenderID, m.SenderName, m.Content,
		m.ChatPosition).Scan(&m.ID, &m.CreatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByID fetches one message.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	return scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
}

// ListByEvent returns an event's messages in ascending chat position.
// sincePosition skips everything at or below it; pass -1 for the full
// history.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID, sincePosition int64) ([]models.Message, error) {
	const q = `SELECT ` + messageColumns + ` FROM messages
	           WHERE event_id = $1 AND chat_position > $2
	           ORDER BY chat_position`
	rows, err := r.pool.Query(ctx, q, eventID, sincePosition)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]models.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

// DeleteByID removes a single message.
func (r *Repository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteByEvent removes an event's whole chat history and reports how many
// messages went with it.
func (r *Repository) DeleteByEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
