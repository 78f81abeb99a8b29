package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	apperrors "vidvest/internal/errors"
	"vidvest/internal/logger"
	"vidvest/internal/metrics"
	"vidvest/internal/models"
	"vidvest/internal/pagination"
	"vidvest/internal/stats"
)

const (
	rateLimitWindow     = time.Minute
	defaultFetchTimeout = 2 * time.Minute
)

// snapshotService caches engagement readings in the video_snapshots table.
type snapshotService struct {
	db        *gorm.DB
	provider  stats.Provider
	limiter   RateLimiter
	rateLimit int
	timeout   time.Duration
	metrics   *metrics.Metrics
	now       func() time.Time
	group     singleflight.Group
	log       *zap.SugaredLogger
}

// SnapshotOption configures a snapshot service.
type SnapshotOption func(*snapshotService)

// WithClock replaces time.Now for staleness checks and snapshot timestamps.
func WithClock(now func() time.Time) SnapshotOption {
	return func(s *snapshotService) { s.now = now }
}

// WithRateLimiter bounds provider calls to perMinute across all instances
// sharing limiter. A non-positive perMinute disables the limit.
func WithRateLimiter(limiter RateLimiter, perMinute int) SnapshotOption {
	return func(s *snapshotService) {
		s.limiter = limiter
		s.rateLimit = perMinute
	}
}

// WithFetchTimeout bounds one shared provider fetch. The fetch outlives the
// caller that started it, so this is its only deadline.
func WithFetchTimeout(d time.Duration) SnapshotOption {
	return func(s *snapshotService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMetrics records fetches and lookups on m.
func WithMetrics(m *metrics.Metrics) SnapshotOption {
	return func(s *snapshotService) { s.metrics = m }
}

// NewSnapshotService creates a new SnapshotServicer backed by provider.
func NewSnapshotService(db *gorm.DB, provider stats.Provider, opts ...SnapshotOption) SnapshotServicer {
	s := &snapshotService{
		db:       db,
		provider: provider,
		timeout:  defaultFetchTimeout,
		now:      time.Now,
		log:      logger.Named("snapshots"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetFreshSnapshot returns the latest snapshot if it is younger than maxAge.
// Otherwise it fetches, stores and returns a new one.
func (s *snapshotService) GetFreshSnapshot(ctx context.Context, videoID string, maxAge time.Duration) (*models.VideoSnapshot, error) {
	latest, err := s.latest(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if latest != nil && s.now().Sub(latest.CreatedAt) < maxAge {
		s.metrics.SnapshotLookup(true)
		return latest, nil
	}
	s.metrics.SnapshotLookup(false)
	return s.Refresh(ctx, videoID)
}

// Refresh fetches a new reading regardless of the latest snapshot's age.
// Concurrent refreshes of one video share a single provider call, which is
// detached from the caller that started it: a caller giving up only stops its
// own wait.
func (s *snapshotService) Refresh(ctx context.Context, videoID string) (*models.VideoSnapshot, error) {
	ch := s.group.DoChan(videoID, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.fetch(fetchCtx, videoID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		snap := *res.Val.(*models.VideoSnapshot)
		return &snap, nil
	case <-ctx.Done():
		return nil, apperrors.Wrap(apperrors.ErrStatsFetchFailed, ctx.Err())
	}
}

// History lists a video's snapshots oldest first.
func (s *snapshotService) History(ctx context.Context, videoID string, page pagination.PageRequest) (*pagination.PageResponse[models.VideoSnapshot], error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Video{}).Where("id = ?", videoID).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return nil, apperrors.ErrVideoNotFound
	}

	page.Defaults()
	query := db.Model(&models.VideoSnapshot{}).Where("video_id = ?", videoID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var snapshots []models.VideoSnapshot
	if err := query.Order("created_at ASC").Scopes(pagination.Paginate(page)).Find(&snapshots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewPageResponse(snapshots, page.Page, page.PageSize, total)
	return &resp, nil
}

func (s *snapshotService) latest(ctx context.Context, videoID string) (*models.VideoSnapshot, error) {
	var snap models.VideoSnapshot
	err := s.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("created_at DESC").
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &snap, nil
}

// fetch calls the provider and persists the reading. A metric the provider
// omits keeps the video's previous value.
func (s *snapshotService) fetch(ctx context.Context, videoID string) (*models.VideoSnapshot, error) {
	db := s.db.WithContext(ctx)

	var video models.Video
	if err := db.Where("id = ?", videoID).First(&video).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrVideoNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.allow(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	reading, err := s.provider.FetchStats(ctx, video.Platform, video.URL)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, stats.ErrNoData) {
			s.metrics.ObserveStatsFetch(string(video.Platform), "no_data", elapsed)
			return nil, apperrors.Wrap(apperrors.ErrStatsUnavailable, err)
		}
		s.metrics.ObserveStatsFetch(string(video.Platform), "error", elapsed)
		s.log.Warnw("stats fetch failed",
			"video_id", video.ID,
			"provider", s.provider.Name(),
			"error", err,
		)
		return nil, apperrors.Wrap(apperrors.ErrStatsFetchFailed, err)
	}
	if reading.Empty() {
		s.metrics.ObserveStatsFetch(string(video.Platform), "no_data", elapsed)
		return nil, apperrors.ErrStatsUnavailable
	}
	s.metrics.ObserveStatsFetch(string(video.Platform), "success", elapsed)

	likes, comments := video.CurrentLikes, video.CurrentComments
	if reading.Likes != nil {
		likes = *reading.Likes
	}
	if reading.Comments != nil {
		comments = *reading.Comments
	}

	snap := &models.VideoSnapshot{
		VideoID:   video.ID,
		Likes:     likes,
		Comments:  comments,
		CreatedAt: s.now(),
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(snap).Error; err != nil {
			return err
		}
		return tx.Model(&models.Video{}).Where("id = ?", video.ID).Updates(map[string]interface{}{
			"current_likes":    likes,
			"current_comments": comments,
		}).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.log.Debugw("snapshot stored", "video_id", video.ID, "likes", likes, "comments", comments, "elapsed", elapsed)
	return snap, nil
}

// allow consumes one slot of the shared provider budget. Redis errors fail
// open so an unavailable limiter never blocks pricing.
func (s *snapshotService) allow(ctx context.Context) error {
	if s.limiter == nil || s.rateLimit <= 0 {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, "stats:"+s.provider.Name(), s.rateLimit, rateLimitWindow)
	if err != nil {
		s.log.Warnw("rate limiter unavailable, allowing fetch", "error", err)
		return nil
	}
	if !ok {
		return apperrors.ErrStatsRateLimited
	}
	return nil
}
