package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/foundernet/foundernet-backend/internal/http/response"
	"github.com/foundernet/foundernet-backend/internal/requestdata"
	"github.com/foundernet/foundernet-backend/internal/services"
)

type ProfileHandler struct {
	discover services.DiscoverService
	matches  services.MatchService
}

func NewProfileHandler(discover services.DiscoverService, matches services.MatchService) *ProfileHandler {
	return &ProfileHandler{discover: discover, matches: matches}
}

func (h *ProfileHandler) Discover(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	page := queryInt(c, "page", 0)
	pageSize := queryInt(c, "page_size", 0)
	var minScore *int
	if raw := c.Query("min_score"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_min_score", err)
			return
		}
		minScore = &v
	}
	candidates, err := h.discover.Discover(c.Request.Context(), rd.UserID, minScore, page, pageSize)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"candidates": candidates, "page": page})
}

func (h *ProfileHandler) Compatibility(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	otherID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_profile_id", err)
		return
	}
	result, err := h.discover.Compatibility(c.Request.Context(), rd.UserID, otherID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

type decideRequest struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

func (h *ProfileHandler) Decide(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_profile_id", err)
		return
	}
	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	conn, err := h.matches.Decide(c.Request.Context(), rd.UserID, targetID, req.Action, req.Message)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, conn)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
