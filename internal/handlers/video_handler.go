package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vidvest/internal/pagination"
	"vidvest/internal/services"
)

// VideoHandler serves video records and their engagement history.
type VideoHandler struct {
	videoService    services.VideoServicer
	snapshotService services.SnapshotServicer
}

// NewVideoHandler creates a new VideoHandler.
func NewVideoHandler(videoService services.VideoServicer, snapshotService services.SnapshotServicer) *VideoHandler {
	return &VideoHandler{videoService: videoService, snapshotService: snapshotService}
}

// GetVideo returns a video by ID
// @Summary     Get video
// @Description Canonical video record with last known engagement and inventory
// @Tags        videos
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Video ID"
// @Success     200 {object} models.Video "Video"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     404 {object} ErrorResponse "Video not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /videos/{id} [get]
func (h *VideoHandler) GetVideo(c *gin.Context) {
	videoID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	video, err := h.videoService.GetVideo(c.Request.Context(), videoID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

// ListSnapshots returns the engagement history of a video
// @Summary     List snapshots
// @Description Paginated engagement readings of a video, oldest first
// @Tags        videos
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Video ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.VideoSnapshot] "Snapshots"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Video not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /videos/{id}/snapshots [get]
func (h *VideoHandler) ListSnapshots(c *gin.Context) {
	videoID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	history, err := h.snapshotService.History(c.Request.Context(), videoID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
