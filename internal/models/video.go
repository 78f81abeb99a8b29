package models

// Platform identifies the social network a video belongs to.
type Platform string

const (
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

// Video is the canonical record for one social-media video. URL is the
// cleaned form produced by the videourl package and is unique.
type Video struct {
	Base
	URL             string   `gorm:"uniqueIndex;not null" json:"video_url"`
	Platform        Platform `gorm:"not null" json:"platform"`
	CurrentLikes    int64    `gorm:"not null;default:0" json:"current_likes"`
	CurrentComments int64    `gorm:"not null;default:0" json:"current_comments"`
	TotalShares     int64    `gorm:"not null;check:total_shares >= 0" json:"total_shares"`
	AvailableShares int64    `gorm:"not null;check:available_shares >= 0" json:"available_shares"`
	Tracking        bool     `gorm:"not null;default:false;index" json:"tracking"`
}
