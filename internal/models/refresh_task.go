package models

import "time"

// RefreshTaskStatus is the lifecycle state of a queued stats refresh.
type RefreshTaskStatus string

const (
	RefreshTaskPending RefreshTaskStatus = "pending"
	RefreshTaskRunning RefreshTaskStatus = "running"
	RefreshTaskDone    RefreshTaskStatus = "done"
	RefreshTaskFailed  RefreshTaskStatus = "failed"
)

// RefreshTask is an outbox row asking the worker to refresh a video's
// engagement after an investment commits.
type RefreshTask struct {
	Base
	VideoID      string            `gorm:"type:uuid;not null" json:"video_id"`
	InvestmentID *string           `gorm:"type:uuid" json:"investment_id,omitempty"`
	Status       RefreshTaskStatus `gorm:"not null;index:idx_refresh_tasks_status_available,priority:1" json:"status"`
	Attempts     int               `gorm:"not null;default:0" json:"attempts"`
	LastError    string            `json:"last_error,omitempty"`
	AvailableAt  time.Time         `gorm:"not null;index:idx_refresh_tasks_status_available,priority:2" json:"available_at"`
	ClaimedAt    *time.Time        `json:"claimed_at,omitempty"`
}
