package stats

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/keepmyplanet/backend/internal/middleware"
	"github.com/keepmyplanet/backend/pkg/response"
)

const defaultLeaderboardSize = 20

// StatsStore answers the aggregation queries behind the endpoints.
type StatsStore interface {
	ForUser(ctx context.Context, userID uuid.UUID) (*UserStats, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// Handler handles volunteering statistics endpoints.
type Handler struct {
	store StatsStore
}

// NewHandler creates a stats handler.
func NewHandler(store StatsStore) *Handler {
	return &Handler{store: store}
}

// MyStats handles GET /users/me/stats.
func (h *Handler) MyStats(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	s, err := h.store.ForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "could not load stats")
		return
	}
	response.OK(c, s)
}

// UserStats handles GET /users/:id/stats.
func (h *Handler) UserStats(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	s, err := h.store.ForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "could not load stats")
		return
	}
	response.OK(c, s)
}

// Leaderboard handles GET /stats/leaderboard.
func (h *Handler) Leaderboard(c *gin.Context) {
	limit := defaultLeaderboardSize
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 100 {
			response.BadRequest(c, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	list, err := h.store.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		response.Internal(c, "could not load leaderboard")
		return
	}
	response.OK(c, list)
}
