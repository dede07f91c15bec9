package handler

import (
	"net/http"

	"priceops/internal/apierror"
	"priceops/internal/dto"
	"priceops/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DiscountHandler serves the preview and batch-job endpoints.
type DiscountHandler struct {
	svc service.DiscountService
}

func NewDiscountHandler(svc service.DiscountService) *DiscountHandler {
	return &DiscountHandler{svc: svc}
}

// Preview godoc
// @Summary Preview a strategy's effect on one sample unit
// @Tags discounts
// @Accept json
// @Produce json
// @Param request body dto.PreviewRequest true "Strategy, value and filter"
// @Success 200 {object} dto.PreviewResponse
// @Failure 400 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /v1/preview [post]
func (h *DiscountHandler) Preview(c *gin.Context) {
	var req dto.PreviewRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.Preview(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StartJob godoc
// @Summary Start a bulk discount update
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body dto.StartJobRequest true "Strategy, value, filter and optional unit limit"
// @Success 200 {object} dto.StartJobResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/jobs [post]
func (h *DiscountHandler) StartJob(c *gin.Context) {
	var req dto.StartJobRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.StartUpdate(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Progress godoc
// @Summary Poll a job's progress
// @Tags jobs
// @Produce json
// @Param id path string true "Job id"
// @Success 200 {object} batch.Progress
// @Failure 404 {object} apierror.APIError
// @Router /v1/jobs/{id}/progress [get]
func (h *DiscountHandler) Progress(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid job id"))
		return
	}

	progress, err := h.svc.Progress(jobID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// CancelJob godoc
// @Summary Request cancellation of a running job
// @Tags jobs
// @Produce json
// @Param id path string true "Job id"
// @Success 202 {object} gin.H
// @Failure 404 {object} apierror.APIError
// @Router /v1/jobs/{id}/cancel [post]
func (h *DiscountHandler) CancelJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid job id"))
		return
	}

	if err := h.svc.Cancel(jobID); err != nil {
		writeServiceError(c, err)
		return
	}
	// The runner honors the flag at the next unit boundary.
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}
