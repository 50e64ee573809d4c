package notifications

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/keepmyplanet/backend/internal/middleware"
	"github.com/keepmyplanet/backend/internal/models"
	"github.com/keepmyplanet/backend/pkg/response"
)

// RegisterTokenRequest is the body for POST /notifications/device-tokens.
type RegisterTokenRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform"`
}

// TokenStore is the device token persistence surface used by the handler.
type TokenStore interface {
	Save(ctx context.Context, t *models.DeviceToken) error
	Delete(ctx context.Context, userID uuid.UUID, token string) error
}

// Handler handles device token HTTP endpoints.
type Handler struct {
	tokens TokenStore
}

// NewHandler creates a notification handler.
func NewHandler(tokens TokenStore) *Handler {
	return &Handler{tokens: tokens}
}

// RegisterToken handles POST /notifications/device-tokens.
func (h *Handler) RegisterToken(c *gin.Context) {
	var req RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	platform := req.Platform
	switch platform {
	case "android", "ios", "web":
	case "":
		platform = "android"
	default:
		response.BadRequest(c, "platform must be android, ios or web")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	token := &models.DeviceToken{UserID: userID, Token: req.Token, Platform: platform}
	if err := h.tokens.Save(c.Request.Context(), token); err != nil {
		response.Internal(c, "could not register device token")
		return
	}
	response.Created(c, token)
}

// DeleteToken handles DELETE /notifications/device-tokens/:token.
func (h *Handler) DeleteToken(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		response.BadRequest(c, "token is required")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if err := h.tokens.Delete(c.Request.Context(), userID, token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "device token not found")
			return
		}
		response.Internal(c, "could not delete device token")
		return
	}
	response.NoContent(c)
}
