package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"vidvest/internal/models"
	"vidvest/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	GetProfile(userID string) (*models.Profile, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}

// VideoServicer maps user-supplied URLs onto canonical video records.
type VideoServicer interface {
	Resolve(ctx context.Context, rawURL string) (*models.Video, error)
	GetVideo(ctx context.Context, videoID string) (*models.Video, error)
}

// SnapshotServicer serves engagement readings under the staleness policy.
type SnapshotServicer interface {
	// GetFreshSnapshot returns the newest snapshot younger than maxAge, or
	// fetches a new one from the stats provider.
	GetFreshSnapshot(ctx context.Context, videoID string, maxAge time.Duration) (*models.VideoSnapshot, error)
	// Refresh fetches a new snapshot regardless of age.
	Refresh(ctx context.Context, videoID string) (*models.VideoSnapshot, error)
	History(ctx context.Context, videoID string, page pagination.PageRequest) (*pagination.PageResponse[models.VideoSnapshot], error)
}

// Holding is one investment in a portfolio together with its ROI.
type Holding struct {
	InvestmentID             string          `json:"investment_id"`
	VideoID                  string          `json:"video_id"`
	VideoURL                 string          `json:"video_url"`
	Platform                 models.Platform `json:"platform"`
	Amount                   int64           `json:"amount"`
	Cost                     int64           `json:"cost"`
	LikeCountAtInvestment    int64           `json:"like_count_at_investment"`
	CommentCountAtInvestment int64           `json:"comment_count_at_investment"`
	CurrentLikes             int64           `json:"current_likes"`
	CurrentComments          int64           `json:"current_comments"`
	ROI                      decimal.Decimal `json:"roi"`
	InvestedAt               time.Time       `json:"invested_at"`
}

// Portfolio summarizes a user's holdings.
type Portfolio struct {
	Balance       int64     `json:"balance"`
	TotalInvested int64     `json:"total_invested"`
	HoldingsCount int       `json:"holdings_count"`
	Holdings      []Holding `json:"holdings"`
}

// InvestmentFilter selects a page of a user's investments, optionally limited
// to one platform.
type InvestmentFilter struct {
	pagination.PageRequest
	Platform models.Platform `form:"platform" binding:"omitempty,platform"`
}

// LedgerServicer defines the contract for share purchases.
type LedgerServicer interface {
	Invest(ctx context.Context, userID, videoID string, amount int64) (*models.Investment, error)
	ListInvestments(ctx context.Context, userID string, filter InvestmentFilter) (*pagination.PageResponse[models.Investment], error)
	Portfolio(ctx context.Context, userID string) (*Portfolio, error)
}

// RefreshFailure describes one video a sweep could not refresh.
type RefreshFailure struct {
	VideoID string `json:"video_id"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// RefreshResult summarizes a sweep.
type RefreshResult struct {
	VideosScanned   int              `json:"videos_scanned"`
	VideosRefreshed int              `json:"videos_refreshed"`
	Failures        []RefreshFailure `json:"failures"`
	Duration        time.Duration    `json:"duration"`
}

// RefreshServicer refreshes engagement outside of user requests.
type RefreshServicer interface {
	RefreshAll(ctx context.Context) (*RefreshResult, error)
	RefreshVideo(ctx context.Context, videoID string, investmentID *string) (*models.VideoSnapshot, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}

// Notifier is told when new refresh tasks have been committed.
type Notifier interface {
	Notify()
}

// RateLimiter bounds provider calls shared across instances.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
