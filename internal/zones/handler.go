package zones

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/keepmyplanet/backend/internal/middleware"
	"github.com/keepmyplanet/backend/internal/models"
	"github.com/keepmyplanet/backend/pkg/response"
)

// ReportRequest is the body for POST /zones.
type ReportRequest struct {
	Latitude    float64  `json:"latitude" binding:"required"`
	Longitude   float64  `json:"longitude" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Severity    string   `json:"severity"`
	PhotoIDs    []string `json:"photo_ids"`
}

// UpdateRequest is the body for PATCH /zones/:id.
type UpdateRequest struct {
	Description *string `json:"description"`
	Severity    *string `json:"severity"`
	Status      *string `json:"status"`
}

// AttachPhotoRequest is the body for POST /zones/:id/photos.
type AttachPhotoRequest struct {
	PhotoID string `json:"photo_id" binding:"required,uuid"`
}

// Handler handles zone HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a zone handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Report handles POST /zones.
func (h *Handler) Report(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	photoIDs := make([]uuid.UUID, 0, len(req.PhotoIDs))
	for _, s := range req.PhotoIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid photo id")
			return
		}
		photoIDs = append(photoIDs, id)
	}

	zone, err := h.svc.ReportZone(c.Request.Context(), ReportParams{
		Location:    models.Location{Latitude: req.Latitude, Longitude: req.Longitude},
		Description: req.Description,
		Severity:    models.ParseZoneSeverity(req.Severity),
		PhotoIDs:    photoIDs,
		ReporterID:  userID,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, zone)
}

// List handles GET /zones. With lat, lng and radius_km query parameters it
// returns only zones near that point.
func (h *Handler) List(c *gin.Context) {
	latStr, lngStr, radiusStr := c.Query("lat"), c.Query("lng"), c.Query("radius_km")
	if latStr != "" || lngStr != "" || radiusStr != "" {
		lat, err1 := strconv.ParseFloat(latStr, 64)
		lng, err2 := strconv.ParseFloat(lngStr, 64)
		radius, err3 := strconv.ParseFloat(radiusStr, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			response.BadRequest(c, "lat, lng and radius_km must all be valid numbers")
			return
		}
		list, err := h.svc.FindNear(c.Request.Context(), models.Location{Latitude: lat, Longitude: lng}, radius)
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.OK(c, list)
		return
	}

	list, err := h.svc.ListZones(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /zones/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid zone id")
		return
	}
	zone, err := h.svc.GetZone(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, zone)
}

// Update handles PATCH /zones/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid zone id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	var p UpdateParams
	p.Description = req.Description
	if req.Severity != nil {
		sev := models.ParseZoneSeverity(*req.Severity)
		p.Severity = &sev
	}
	if req.Status != nil {
		status, ok := models.ParseZoneStatus(*req.Status)
		if !ok {
			response.BadRequest(c, "invalid zone status")
			return
		}
		p.Status = &status
	}

	zone, err := h.svc.UpdateZone(c.Request.Context(), id, userID, p)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, zone)
}

// Delete handles DELETE /zones/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid zone id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.svc.DeleteZone(c.Request.Context(), id, userID); err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}

// AttachPhoto handles POST /zones/:id/photos.
func (h *Handler) AttachPhoto(c *gin.Context) {
	zoneID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid zone id")
		return
	}
	var req AttachPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	photoID, _ := uuid.Parse(req.PhotoID)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if err := h.svc.AttachPhoto(c.Request.Context(), zoneID, userID, photoID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, gin.H{"zone_id": zoneID, "photo_id": photoID})
}

// DetachPhoto handles DELETE /zones/:id/photos/:photoId.
func (h *Handler) DetachPhoto(c *gin.Context) {
	zoneID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid zone id")
		return
	}
	photoID, err := uuid.Parse(c.Param("photoId"))
	if err != nil {
		response.BadRequest(c, "invalid photo id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if err := h.svc.DetachPhoto(c.Request.Context(), zoneID, userID, photoID); err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}

// StatusHistory handles GET /zones/:id/status/history.
func (h *Handler) StatusHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid zone id")
		return
	}
	list, err := h.svc.StatusHistory(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, list)
}
