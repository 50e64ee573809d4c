package photos

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/keepmyplanet/backend/internal/middleware"
	"github.com/keepmyplanet/backend/pkg/response"
)

// Handler handles photo HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a photo handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Upload handles POST /photos (multipart form, field "photo").
func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		response.BadRequest(c, "photo file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, "cannot read photo file")
		return
	}
	defer file.Close()

	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	photo, err := h.svc.Upload(c.Request.Context(), userID,
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file, fileHeader.Size)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, photo)
}

// GetByID handles GET /photos/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid photo id")
		return
	}
	photo, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, photo)
}

// Delete handles DELETE /photos/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid photo id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.svc.Delete(c.Request.Context(), id, userID); err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}
