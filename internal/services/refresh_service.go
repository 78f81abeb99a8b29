package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	apperrors "vidvest/internal/errors"
	"vidvest/internal/logger"
	"vidvest/internal/metrics"
	"vidvest/internal/models"
)

// RefreshConfig controls which videos a sweep visits and how many are
// refreshed at once.
type RefreshConfig struct {
	AllVideos   bool
	Concurrency int
}

// refreshService runs engagement sweeps and forced single-video refreshes.
type refreshService struct {
	db        *gorm.DB
	snapshots SnapshotServicer
	cfg       RefreshConfig
	metrics   *metrics.Metrics
	log       *zap.SugaredLogger
}

// NewRefreshService creates a new RefreshServicer.
func NewRefreshService(db *gorm.DB, snapshots SnapshotServicer, cfg RefreshConfig, m *metrics.Metrics) RefreshServicer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &refreshService{
		db:        db,
		snapshots: snapshots,
		cfg:       cfg,
		metrics:   m,
		log:       logger.Named("refresh"),
	}
}

// RefreshAll refreshes every tracked video (or every video when configured).
// A failing video is recorded in the result and does not stop the sweep.
// Investment baselines are never modified.
func (s *refreshService) RefreshAll(ctx context.Context) (*RefreshResult, error) {
	start := time.Now()

	query := s.db.WithContext(ctx).Model(&models.Video{})
	if !s.cfg.AllVideos {
		query = query.Where("tracking = ?", true)
	}
	var videoIDs []string
	if err := query.Order("updated_at ASC").Pluck("id", &videoIDs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := &RefreshResult{
		VideosScanned: len(videoIDs),
		Failures:      []RefreshFailure{},
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)

	for _, id := range videoIDs {
		if ctx.Err() != nil {
			break
		}
		videoID := id
		g.Go(func() error {
			_, err := s.snapshots.Refresh(ctx, videoID)
			s.metrics.SweptVideo(err == nil)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warnw("video refresh failed", "video_id", videoID, "error", err)
				result.Failures = append(result.Failures, RefreshFailure{
					VideoID: videoID,
					Code:    apperrors.CodeOf(err),
					Error:   err.Error(),
				})
				return nil
			}
			result.VideosRefreshed++
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		for _, id := range videoIDs[result.VideosRefreshed+len(result.Failures):] {
			result.Failures = append(result.Failures, RefreshFailure{
				VideoID: id,
				Code:    apperrors.ErrStatsFetchFailed.Code,
				Error:   err.Error(),
			})
		}
	}

	result.Duration = time.Since(start)
	s.log.Infow("refresh sweep finished",
		"scanned", result.VideosScanned,
		"refreshed", result.VideosRefreshed,
		"failed", len(result.Failures),
		"duration", result.Duration,
	)
	return result, nil
}

// RefreshVideo forces a new reading for one video. When investmentID is set,
// that investment's baseline engagement is replaced by the new reading.
func (s *refreshService) RefreshVideo(ctx context.Context, videoID string, investmentID *string) (*models.VideoSnapshot, error) {
	if investmentID != nil {
		var investment models.Investment
		err := s.db.WithContext(ctx).
			Where("id = ? AND video_id = ?", *investmentID, videoID).
			First(&investment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrInvestmentNotFound
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	snap, err := s.snapshots.Refresh(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if investmentID != nil {
		if err := OverwriteBaseline(ctx, s.db, *investmentID, snap); err != nil {
			return nil, err
		}
		s.log.Infow("investment baseline overwritten", "investment_id", *investmentID, "likes", snap.Likes)
	}
	return snap, nil
}

// OverwriteBaseline sets an investment's engagement-at-investment fields to
// the values of snap.
func OverwriteBaseline(ctx context.Context, db *gorm.DB, investmentID string, snap *models.VideoSnapshot) error {
	err := db.WithContext(ctx).Model(&models.Investment{}).
		Where("id = ?", investmentID).
		Updates(map[string]interface{}{
			"like_count_at_investment":    snap.Likes,
			"comment_count_at_investment": snap.Comments,
		}).Error
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
