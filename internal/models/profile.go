package models

// Profile holds a user's spendable balance in cents. It is created alongside
// the user and only debited by the investment ledger.
type Profile struct {
	Base
	UserID  string `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Balance int64  `gorm:"type:bigint;not null;check:balance >= 0" json:"balance"`
}
