package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vidvest/internal/models"
	"vidvest/internal/services"
)

// PipelineHandler exposes the refresh jobs to schedulers holding the pipeline key.
type PipelineHandler struct {
	refreshService services.RefreshServicer
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(refreshService services.RefreshServicer) *PipelineHandler {
	return &PipelineHandler{refreshService: refreshService}
}

// RefreshVideoRequest optionally names the investment whose baseline is
// replaced by the new reading.
type RefreshVideoRequest struct {
	InvestmentID *string `json:"investment_id" binding:"omitempty,uuid"`
}

// RefreshVideoResponse is the reading stored by a single-video refresh.
type RefreshVideoResponse struct {
	Snapshot          *models.VideoSnapshot `json:"snapshot"`
	BaselineUpdatedID *string               `json:"baseline_updated_investment_id,omitempty"`
}

// RefreshStats sweeps tracked videos
// @Summary     Refresh engagement of tracked videos
// @Description Fetch fresh stats for every tracked video. Individual failures are reported and do not stop the sweep.
// @Tags        pipeline
// @Produce     json
// @Security    PipelineKey
// @Success     200 {object} services.RefreshResult "Sweep summary"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Failure     503 {object} ErrorResponse "Pipeline key not configured"
// @Router      /pipeline/refresh-stats [post]
func (h *PipelineHandler) RefreshStats(c *gin.Context) {
	result, err := h.refreshService.RefreshAll(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RefreshVideo refreshes one video
// @Summary     Refresh one video
// @Description Fetch fresh stats for a video regardless of age. With investment_id, that investment's engagement baseline is overwritten.
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Security    PipelineKey
// @Param       id      path string              true  "Video ID"
// @Param       request body RefreshVideoRequest false "Investment whose baseline to overwrite"
// @Success     200 {object} RefreshVideoResponse "New reading"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     404 {object} ErrorResponse "Video, investment or stats not found"
// @Failure     502 {object} ErrorResponse "Stats provider failed"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /pipeline/videos/{id}/refresh [post]
func (h *PipelineHandler) RefreshVideo(c *gin.Context) {
	videoID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RefreshVideoRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, bindError(err))
			return
		}
	}

	snap, err := h.refreshService.RefreshVideo(c.Request.Context(), videoID, req.InvestmentID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, RefreshVideoResponse{Snapshot: snap, BaselineUpdatedID: req.InvestmentID})
}
