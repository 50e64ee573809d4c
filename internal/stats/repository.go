package stats

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserStats aggregates a user's volunteering record. Hours come from the
// durations of completed events the user attended; an open-ended event
// counts as two hours.
type UserStats struct {
	UserID           uuid.UUID `json:"user_id"`
	EventsAttended   int       `json:"events_attended"`
	VolunteeredHours float64   `json:"volunteered_hours"`
}

// LeaderboardEntry is one row of the volunteering leaderboard.
type LeaderboardEntry struct {
	UserID           uuid.UUID `json:"user_id"`
	FullName         string    `json:"full_name"`
	EventsAttended   int       `json:"events_attended"`
	VolunteeredHours float64   `json:"volunteered_hours"`
}

// an event with no end counts as 2 hours
const durationExpr = `EXTRACT(EPOCH FROM (COALESCE(e.ends_at, e.starts_at + INTERVAL '2 hours') - e.starts_at)) / 3600.0`

// Repository answers volunteering statistics queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a stats repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ForUser aggregates attendance at completed events for one user.
func (r *Repository) ForUser(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	const q = `SELECT COUNT(*), COALESCE(SUM(` + durationExpr + `), 0)
	           FROM event_attendance a
	           JOIN events e ON e.id = a.event_id
	           WHERE a.user_id = $1 AND e.status = 'completed'`
	s := UserStats{UserID: userID}
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&s.EventsAttended, &s.VolunteeredHours); err != nil {
		return nil, err
	}
	return &s, nil
}

// Leaderboard returns the top volunteers by hours, then attendance.
func (r *Repository) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	const q = `SELECT u.id, u.full_name, COUNT(*), COALESCE(SUM(` + durationExpr + `), 0) AS hours
	           FROM event_attendance a
	           JOIN events e ON e.id = a.event_id
	           JOIN users u  ON u.id = a.user_id
	           WHERE e.status = 'completed'
	           GROUP BY u.id, u.full_name
	           ORDER BY hours DESC, COUNT(*) DESC
	           LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.FullName, &e.EventsAttended, &e.VolunteeredHours); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
