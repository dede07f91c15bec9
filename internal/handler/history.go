package handler

import (
	"net/http"
	"strconv"

	"priceops/internal/apierror"
	"priceops/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HistoryHandler serves the audit trail: recent changes, sessions, and
// session rollback.
type HistoryHandler struct {
	svc service.DiscountService
}

func NewHistoryHandler(svc service.DiscountService) *HistoryHandler {
	return &HistoryHandler{svc: svc}
}

// RecentChanges godoc
// @Summary List the most recent price changes
// @Tags history
// @Produce json
// @Param limit query int false "Max records (default 10, max 200)"
// @Success 200 {object} dto.PriceChangeListResponse
// @Router /v1/changes [get]
func (h *HistoryHandler) RecentChanges(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	resp, err := h.svc.RecentChanges(c.Request.Context(), limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Sessions godoc
// @Summary List rollback sessions, newest first
// @Tags history
// @Produce json
// @Param limit query int false "Max sessions (default 50, max 200)"
// @Success 200 {object} dto.SessionListResponse
// @Router /v1/sessions [get]
func (h *HistoryHandler) Sessions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	resp, err := h.svc.Sessions(c.Request.Context(), limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Rollback godoc
// @Summary Reverse every change recorded under a session
// @Tags history
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} dto.StartJobResponse
// @Failure 400 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/sessions/{id}/rollback [post]
func (h *HistoryHandler) Rollback(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid session id"))
		return
	}

	resp, err := h.svc.StartRollback(c.Request.Context(), sessionID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
