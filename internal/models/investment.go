package models

import "time"

// Investment is a purchase of shares in a video. Apart from the two
// engagement baseline fields, rows are never modified after insert.
type Investment struct {
	Base
	UserID                   string    `gorm:"type:uuid;not null;index" json:"user_id"`
	VideoID                  string    `gorm:"type:uuid;not null;index" json:"video_id"`
	Amount                   int64     `gorm:"not null;check:amount > 0" json:"amount"`
	Cost                     int64     `gorm:"type:bigint;not null" json:"cost"`
	LikeCountAtInvestment    int64     `gorm:"not null" json:"like_count_at_investment"`
	CommentCountAtInvestment int64     `gorm:"not null" json:"comment_count_at_investment"`
	InvestedAt               time.Time `gorm:"not null" json:"invested_at"`

	Video *Video `gorm:"foreignKey:VideoID" json:"video,omitempty"`
}
