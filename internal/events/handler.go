package events

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/keepmyplanet/backend/internal/middleware"
	"github.com/keepmyplanet/backend/internal/models"
	"github.com/keepmyplanet/backend/pkg/response"
)

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	Title           string     `json:"title" binding:"required"`
	Description     string     `json:"description"`
	StartsAt        time.Time  `json:"starts_at" binding:"required"`
	EndsAt          *time.Time `json:"ends_at"`
	ZoneID          string     `json:"zone_id" binding:"required,uuid"`
	MaxParticipants *int       `json:"max_participants"`
}

// UpdateRequest is the body for PATCH /events/:id.
type UpdateRequest struct {
	Title           *string    `json:"title"`
	Description     *string    `json:"description"`
	StartsAt        *time.Time `json:"starts_at"`
	EndsAt          *time.Time `json:"ends_at"`
	MaxParticipants *int       `json:"max_participants"`
}

// StatusRequest is the body for PUT /events/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an event handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	zoneID, _ := uuid.Parse(req.ZoneID)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	event, err := h.svc.CreateEvent(c.Request.Context(), CreateParams{
		Title:           req.Title,
		Description:     req.Description,
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		ZoneID:          zoneID,
		OrganizerID:     userID,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, event)
}

// List handles GET /events. Accepts optional status, zone_id and mine query
// filters.
func (h *Handler) List(c *gin.Context) {
	if zoneStr := c.Query("zone_id"); zoneStr != "" {
		zoneID, err := uuid.Parse(zoneStr)
		if err != nil {
			response.BadRequest(c, "invalid zone id")
			return
		}
		list, err := h.svc.EventsByZone(c.Request.Context(), zoneID)
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.OK(c, list)
		return
	}
	if c.Query("mine") == "true" {
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		list, err := h.svc.EventsByUser(c.Request.Context(), userID)
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.OK(c, list)
		return
	}

	var statusFilter *models.EventStatus
	if s := c.Query("status"); s != "" {
		status, ok := models.ParseEventStatus(s)
		if !ok {
			response.BadRequest(c, "invalid event status")
			return
		}
		statusFilter = &status
	}
	list, err := h.svc.ListEvents(c.Request.Context(), statusFilter)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	event, err := h.svc.GetEvent(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, event)
}

// Update handles PATCH /events/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	event, err := h.svc.UpdateEventDetails(c.Request.Context(), id, userID, UpdateParams{
		Title:           req.Title,
		Description:     req.Description,
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, event)
}

// Delete handles DELETE /events/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.svc.DeleteEvent(c.Request.Context(), id, userID); err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}

// Join handles POST /events/:id/join.
func (h *Handler) Join(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	event, err := h.svc.JoinEvent(c.Request.Context(), id, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, event)
}

// Leave handles POST /events/:id/leave.
func (h *Handler) Leave(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.svc.LeaveEvent(c.Request.Context(), id, userID); err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}

// ChangeStatus handles PUT /events/:id/status.
func (h *Handler) ChangeStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	status, ok := models.ParseEventStatus(req.Status)
	if !ok {
		response.BadRequest(c, "invalid event status")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	event, err := h.svc.ChangeEventStatus(c.Request.Context(), id, userID, status)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, event)
}

// Participants handles GET /events/:id/participants.
func (h *Handler) Participants(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	event, err := h.svc.GetEvent(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"event_id": event.ID, "participant_ids": event.ParticipantIDs})
}

// CheckIn handles POST /events/:id/attendance/:userId.
func (h *Handler) CheckIn(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	organizerID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if err := h.svc.CheckInUser(c.Request.Context(), eventID, organizerID, userID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, gin.H{"event_id": eventID, "user_id": userID})
}

// Attendees handles GET /events/:id/attendees.
func (h *Handler) Attendees(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	ids, err := h.svc.Attendees(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"event_id": id, "attendee_ids": ids})
}

// StatusHistory handles GET /events/:id/status/history.
func (h *Handler) StatusHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.svc.StatusHistory(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, list)
}
