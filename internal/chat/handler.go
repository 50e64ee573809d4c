package chat

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/keepmyplanet/backend/internal/middleware"
	"github.com/keepmyplanet/backend/internal/realtime"
	"github.com/keepmyplanet/backend/pkg/response"
)

// PostRequest is the body for POST /events/:id/chat.
type PostRequest struct {
	Content string `json:"content" binding:"required"`
}

// Streamer provides live message subscriptions for the SSE endpoint.
type Streamer interface {
	Subscribe(eventID uuid.UUID) (<-chan realtime.WSMessage, func())
}

// Handler handles chat HTTP endpoints.
type Handler struct {
	svc      *Service
	streamer Streamer
}

// NewHandler creates a chat handler.
func NewHandler(svc *Service, streamer Streamer) *Handler {
	return &Handler{svc: svc, streamer: streamer}
}

// Post handles POST /events/:id/chat.
func (h *Handler) Post(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	msg, err := h.svc.AddMessage(c.Request.Context(), eventID, userID, req.Content)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, msg)
}

// List handles GET /events/:id/chat. The optional since query parameter is a
// chat position; only messages after it are returned.
func (h *Handler) List(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	since := int64(-1)
	if s := c.Query("since"); s != "" {
		since, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			response.BadRequest(c, "since must be a chat position")
			return
		}
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	list, err := h.svc.ListMessages(c.Request.Context(), eventID, userID, since)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, list)
}

// Delete handles DELETE /events/:id/chat/:messageId.
func (h *Handler) Delete(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		response.BadRequest(c, "invalid message id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if err := h.svc.DeleteMessage(c.Request.Context(), eventID, messageID, userID); err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}

// Stream handles GET /events/:id/chat/stream as server-sent events. Access
// is participant-gated the same way as the history endpoint. The connection
// stays open until the client disconnects.
func (h *Handler) Stream(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if err := h.svc.AuthorizeRead(c.Request.Context(), eventID, userID); err != nil {
		response.FromError(c, err)
		return
	}

	recv, cancel := h.streamer.Subscribe(eventID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case msg, ok := <-recv:
			if !ok {
				return false
			}
			c.SSEvent(msg.Event, string(msg.Data))
			return true
		}
	})
}
