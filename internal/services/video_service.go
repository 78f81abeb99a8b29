package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "vidvest/internal/errors"
	"vidvest/internal/logger"
	"vidvest/internal/models"
	"vidvest/internal/videourl"
)

// videoService resolves video URLs to canonical records.
type videoService struct {
	db          *gorm.DB
	totalShares int64
}

// NewVideoService creates a new VideoServicer. Videos seen for the first time
// are created with totalShares shares, all available.
func NewVideoService(db *gorm.DB, totalShares int64) VideoServicer {
	return &videoService{db: db, totalShares: totalShares}
}

// Resolve normalizes rawURL and returns the existing video with that URL or
// inserts a new one. Concurrent first-time resolutions of the same URL all
// return the same row.
func (s *videoService) Resolve(ctx context.Context, rawURL string) (*models.Video, error) {
	cleanURL, platform, err := videourl.Normalize(rawURL)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	video, err := s.findByURL(db, cleanURL)
	if err == nil {
		return video, nil
	}
	if !errors.Is(err, apperrors.ErrVideoNotFound) {
		return nil, err
	}

	video = &models.Video{
		URL:             cleanURL,
		Platform:        platform,
		TotalShares:     s.totalShares,
		AvailableShares: s.totalShares,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoNothing: true,
	}).Create(video)
	if result.Error != nil && !isUniqueConstraintError(result.Error) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.Error == nil && result.RowsAffected == 1 {
		logger.Named("videos").Infow("video registered", "video_id", video.ID, "url", cleanURL, "platform", platform)
		return video, nil
	}

	// Another request inserted the same URL first.
	existing, err := s.findByURL(db, cleanURL)
	if err != nil {
		if errors.Is(err, apperrors.ErrVideoNotFound) {
			return nil, apperrors.Wrap(apperrors.ErrStoreConflict, fmt.Errorf("video %s vanished after insert conflict", cleanURL))
		}
		return nil, err
	}
	return existing, nil
}

// GetVideo retrieves a video by ID.
func (s *videoService) GetVideo(ctx context.Context, videoID string) (*models.Video, error) {
	var video models.Video
	if err := s.db.WithContext(ctx).Where("id = ?", videoID).First(&video).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrVideoNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &video, nil
}

func (s *videoService) findByURL(db *gorm.DB, cleanURL string) (*models.Video, error) {
	var video models.Video
	if err := db.Where("url = ?", cleanURL).First(&video).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrVideoNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &video, nil
}
