package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "vidvest/internal/errors"
	"vidvest/internal/logger"
	"vidvest/internal/metrics"
	"vidvest/internal/models"
	"vidvest/internal/pagination"
	"vidvest/internal/pricing"
)

// ledgerService records share purchases.
type ledgerService struct {
	db       *gorm.DB
	notifier Notifier
	metrics  *metrics.Metrics
	log      *zap.SugaredLogger
}

// NewLedgerService creates a new LedgerServicer. notifier may be nil; queued
// refresh tasks are then picked up on the worker's next poll.
func NewLedgerService(db *gorm.DB, notifier Notifier, m *metrics.Metrics) LedgerServicer {
	return &ledgerService{
		db:       db,
		notifier: notifier,
		metrics:  m,
		log:      logger.Named("ledger"),
	}
}

// Invest buys amount shares of a video for a user at the video's current
// like count. Inventory, balance, the ledger row and the refresh task are
// written in one transaction; any failure leaves no trace.
func (s *ledgerService) Invest(ctx context.Context, userID, videoID string, amount int64) (*models.Investment, error) {
	investment, err := s.invest(ctx, userID, videoID, amount)
	if err != nil {
		s.metrics.Investment(apperrors.CodeOf(err))
		return nil, err
	}
	s.metrics.Investment("success")

	s.log.Infow("investment recorded",
		"investment_id", investment.ID,
		"user_id", userID,
		"video_id", videoID,
		"amount", amount,
		"cost", investment.Cost,
	)

	if s.notifier != nil {
		s.notifier.Notify()
	}
	return investment, nil
}

func (s *ledgerService) invest(ctx context.Context, userID, videoID string, amount int64) (*models.Investment, error) {
	if amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	var investment *models.Investment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var video models.Video
		if err := tx.Where("id = ?", videoID).First(&video).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrVideoNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if video.AvailableShares < amount {
			return apperrors.ErrInsufficientInventory
		}

		quote, err := pricing.Price(video.CurrentLikes, amount)
		if err != nil {
			return err
		}

		var profile models.Profile
		if err := tx.Where("user_id = ?", userID).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrProfileNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if profile.Balance < quote.CostCents {
			return apperrors.ErrInsufficientBalance
		}

		now := time.Now()
		investment = &models.Investment{
			UserID:                   userID,
			VideoID:                  video.ID,
			Amount:                   amount,
			Cost:                     quote.CostCents,
			LikeCountAtInvestment:    video.CurrentLikes,
			CommentCountAtInvestment: video.CurrentComments,
			InvestedAt:               now,
		}
		if err := tx.Create(investment).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		// Conditional decrements: a concurrent purchase that got there first
		// leaves zero rows matched.
		result := tx.Model(&models.Video{}).
			Where("id = ? AND available_shares >= ?", video.ID, amount).
			Updates(map[string]interface{}{
				"available_shares": gorm.Expr("available_shares - ?", amount),
				"tracking":         true,
			})
		if result.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrInsufficientInventory
		}

		result = tx.Model(&models.Profile{}).
			Where("user_id = ? AND balance >= ?", userID, quote.CostCents).
			Update("balance", gorm.Expr("balance - ?", quote.CostCents))
		if result.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrInsufficientBalance
		}

		task := &models.RefreshTask{
			VideoID:      video.ID,
			InvestmentID: &investment.ID,
			Status:       models.RefreshTaskPending,
			AvailableAt:  now,
		}
		if err := tx.Create(task).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return investment, nil
}

// ListInvestments returns a user's investments, newest first.
func (s *ledgerService) ListInvestments(ctx context.Context, userID string, filter InvestmentFilter) (*pagination.PageResponse[models.Investment], error) {
	page := filter.PageRequest
	page.Defaults()
	db := s.db.WithContext(ctx)
	query := db.Model(&models.Investment{}).Where("user_id = ?", userID)
	if filter.Platform != "" {
		query = query.Where("video_id IN (?)",
			db.Model(&models.Video{}).Select("id").Where("platform = ?", filter.Platform))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var investments []models.Investment
	if err := query.Preload("Video").
		Order("invested_at DESC").
		Scopes(pagination.Paginate(page)).
		Find(&investments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewPageResponse(investments, page.Page, page.PageSize, total)
	return &resp, nil
}

// Portfolio returns every holding of a user with its ROI since investment.
func (s *ledgerService) Portfolio(ctx context.Context, userID string) (*Portfolio, error) {
	db := s.db.WithContext(ctx)

	var profile models.Profile
	if err := db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProfileNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var investments []models.Investment
	if err := db.Preload("Video").
		Where("user_id = ?", userID).
		Order("invested_at DESC").
		Find(&investments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	portfolio := &Portfolio{
		Balance:  profile.Balance,
		Holdings: make([]Holding, 0, len(investments)),
	}
	for _, inv := range investments {
		h := Holding{
			InvestmentID:             inv.ID,
			VideoID:                  inv.VideoID,
			Amount:                   inv.Amount,
			Cost:                     inv.Cost,
			LikeCountAtInvestment:    inv.LikeCountAtInvestment,
			CommentCountAtInvestment: inv.CommentCountAtInvestment,
			InvestedAt:               inv.InvestedAt,
		}
		if inv.Video != nil {
			h.VideoURL = inv.Video.URL
			h.Platform = inv.Video.Platform
			h.CurrentLikes = inv.Video.CurrentLikes
			h.CurrentComments = inv.Video.CurrentComments
		}
		h.ROI = pricing.ROI(inv.LikeCountAtInvestment, h.CurrentLikes)

		portfolio.TotalInvested += inv.Cost
		portfolio.Holdings = append(portfolio.Holdings, h)
	}
	portfolio.HoldingsCount = len(portfolio.Holdings)

	return portfolio, nil
}
