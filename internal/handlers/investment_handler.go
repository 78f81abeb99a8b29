package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "vidvest/internal/errors"
	"vidvest/internal/models"
	"vidvest/internal/pricing"
	"vidvest/internal/services"
	"vidvest/internal/validator"
)

// InvestmentHandler handles quotes and share purchases.
type InvestmentHandler struct {
	videoService    services.VideoServicer
	snapshotService services.SnapshotServicer
	ledgerService   services.LedgerServicer
	auditService    services.AuditServicer
	maxAge          time.Duration
}

// NewInvestmentHandler creates a new InvestmentHandler. Engagement older than
// maxAge is refetched before quoting or buying.
func NewInvestmentHandler(
	videoService services.VideoServicer,
	snapshotService services.SnapshotServicer,
	ledgerService services.LedgerServicer,
	auditService services.AuditServicer,
	maxAge time.Duration,
) *InvestmentHandler {
	return &InvestmentHandler{
		videoService:    videoService,
		snapshotService: snapshotService,
		ledgerService:   ledgerService,
		auditService:    auditService,
		maxAge:          maxAge,
	}
}

// InvestRequest represents the request payload for buying shares.
type InvestRequest struct {
	VideoURL string      `json:"video_url" binding:"required,video_url" example:"https://www.tiktok.com/@creator/video/7300000000000000000"`
	Amount   json.Number `json:"amount" swaggertype:"integer" example:"2"`
}

// PreinvestRequest represents the request payload for a price quote.
type PreinvestRequest struct {
	VideoURL string `json:"video_url" binding:"required,video_url"`
}

// InvestResponse is returned after a successful purchase.
type InvestResponse struct {
	InvestmentID string `json:"investment_id"`
	VideoID      string `json:"video_id"`
	Amount       int64  `json:"amount"`
	Cost         string `json:"cost" example:"1.00"`
}

// PreinvestResponse is the current engagement and inventory of a video.
// PricePerShare is null while the video has no likes.
type PreinvestResponse struct {
	VideoID         string          `json:"video_id"`
	Platform        models.Platform `json:"platform"`
	LikesCount      int64           `json:"likes_count"`
	CommentsCount   int64           `json:"comments_count"`
	TotalShares     int64           `json:"total_shares"`
	AvailableShares int64           `json:"available_shares"`
	PricePerShare   *string         `json:"price_per_share" example:"0.500"`
}

// bindVideoRequest binds req and reports a malformed video_url as INVALID_URL.
func bindVideoRequest(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		if validator.HasTag(err, validator.VideoURLTag) {
			return apperrors.ErrInvalidURL
		}
		return bindError(err)
	}
	return nil
}

// parseAmount accepts only whole, positive share counts.
func parseAmount(n json.Number) (int64, error) {
	amount, err := n.Int64()
	if err != nil || amount <= 0 {
		return 0, apperrors.ErrInvalidAmount
	}
	return amount, nil
}

// Invest buys shares of a video
// @Summary     Invest in a video
// @Description Resolve the video, refresh stale engagement, and buy amount shares at likes/1000 each
// @Tags        investments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body InvestRequest true "Video link and number of shares"
// @Success     201 {object} InvestResponse "Investment recorded"
// @Failure     400 {object} ErrorResponse "Invalid URL, platform or amount"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     402 {object} ErrorResponse "Insufficient balance"
// @Failure     409 {object} ErrorResponse "Insufficient inventory"
// @Failure     422 {object} ErrorResponse "Video has no price"
// @Failure     429 {object} ErrorResponse "Stats provider rate limited"
// @Failure     502 {object} ErrorResponse "Stats provider failed"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /invest [post]
func (h *InvestmentHandler) Invest(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req InvestRequest
	if err := bindVideoRequest(c, &req); err != nil {
		respondWithError(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	video, err := h.videoService.Resolve(ctx, req.VideoURL)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if _, err := h.snapshotService.GetFreshSnapshot(ctx, video.ID, h.maxAge); err != nil {
		respondWithError(c, err)
		return
	}

	investment, err := h.ledgerService.Invest(ctx, userID, video.ID, amount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_INVESTMENT", "investment", investment.ID, c.ClientIP(),
		map[string]interface{}{
			"video_id": investment.VideoID,
			"amount":   investment.Amount,
			"cost":     investment.Cost,
		})

	c.JSON(http.StatusCreated, InvestResponse{
		InvestmentID: investment.ID,
		VideoID:      investment.VideoID,
		Amount:       investment.Amount,
		Cost:         pricing.FromCents(investment.Cost).StringFixed(2),
	})
}

// Preinvest quotes a video without buying
// @Summary     Quote a video
// @Description Resolve the video and return its current engagement, inventory and share price. Stale engagement is refetched.
// @Tags        investments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body PreinvestRequest true "Video link"
// @Success     200 {object} PreinvestResponse "Current quote"
// @Failure     400 {object} ErrorResponse "Invalid URL or platform"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "No stats available"
// @Failure     429 {object} ErrorResponse "Stats provider rate limited"
// @Failure     502 {object} ErrorResponse "Stats provider failed"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /preinvest [post]
func (h *InvestmentHandler) Preinvest(c *gin.Context) {
	if _, err := getUserID(c); err != nil {
		respondWithError(c, err)
		return
	}

	var req PreinvestRequest
	if err := bindVideoRequest(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	video, err := h.videoService.Resolve(ctx, req.VideoURL)
	if err != nil {
		respondWithError(c, err)
		return
	}
	snap, err := h.snapshotService.GetFreshSnapshot(ctx, video.ID, h.maxAge)
	if err != nil {
		respondWithError(c, err)
		return
	}
	// Inventory may have moved since Resolve read the row.
	if video, err = h.videoService.GetVideo(ctx, video.ID); err != nil {
		respondWithError(c, err)
		return
	}

	resp := PreinvestResponse{
		VideoID:         video.ID,
		Platform:        video.Platform,
		LikesCount:      snap.Likes,
		CommentsCount:   snap.Comments,
		TotalShares:     video.TotalShares,
		AvailableShares: video.AvailableShares,
	}
	if price, err := pricing.PerShare(snap.Likes); err == nil {
		s := price.StringFixed(3)
		resp.PricePerShare = &s
	}
	c.JSON(http.StatusOK, resp)
}

// ListInvestments lists the user's investments
// @Summary     List investments
// @Description Paginated list of the authenticated user's investments, newest first
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Param       platform  query string false "Only investments in videos of this platform" Enums(tiktok, instagram)
// @Success     200 {object} pagination.PageResponse[models.Investment] "Investments"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /investments [get]
func (h *InvestmentHandler) ListInvestments(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var filter services.InvestmentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	page, err := h.ledgerService.ListInvestments(c.Request.Context(), userID, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetPortfolio returns holdings with ROI
// @Summary     Get portfolio
// @Description Balance and every holding with its like-count ROI since investment
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.Portfolio "Portfolio"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Profile not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /portfolio [get]
func (h *InvestmentHandler) GetPortfolio(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolio, err := h.ledgerService.Portfolio(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, portfolio)
}
