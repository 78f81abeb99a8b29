package models

import (
	"time"

	"vidvest/internal/uuid"

	"gorm.io/gorm"
)

// VideoSnapshot is a point-in-time engagement reading for a video.
// Snapshots are append-only, so there is no Base embed and no soft delete.
type VideoSnapshot struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	VideoID   string    `gorm:"type:uuid;not null;index:idx_video_snapshots_video_created,priority:1" json:"video_id"`
	Likes     int64     `gorm:"not null" json:"likes"`
	Comments  int64     `gorm:"not null" json:"comments"`
	CreatedAt time.Time `gorm:"not null;index:idx_video_snapshots_video_created,priority:2" json:"created_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (s *VideoSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New()
	}
	return nil
}
