package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/foundernet/foundernet-backend/internal/http/response"
	"github.com/foundernet/foundernet-backend/internal/requestdata"
	"github.com/foundernet/foundernet-backend/internal/services"
)

type EventHandler struct {
	rsvps services.RSVPService
}

func NewEventHandler(rsvps services.RSVPService) *EventHandler {
	return &EventHandler{rsvps: rsvps}
}

func (h *EventHandler) Get(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_event_id", err)
		return
	}
	summary, err := h.rsvps.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, summary)
}

type rsvpRequest struct {
	Status string `json:"status"`
}

func (h *EventHandler) RSVP(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_event_id", err)
		return
	}
	var req rsvpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	rsvp, err := h.rsvps.RSVP(c.Request.Context(), rd.UserID, eventID, req.Status)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, rsvp)
}
