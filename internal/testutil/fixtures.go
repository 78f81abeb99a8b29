package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"vidvest/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password, a unique email and a
// profile holding 1000.00.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithBalance(t, db, 100000)
}

// CreateTestUserWithBalance creates a user whose profile holds balance cents.
func CreateTestUserWithBalance(t *testing.T, db *gorm.DB, balance int64) *models.User {
	t.Helper()
	user := CreateTestUserWithEmail(t, db, fmt.Sprintf("user%d@test.com", nextID()))
	CreateTestProfile(t, db, user.ID, balance)
	return user
}

// CreateTestUserWithEmail creates a user with the given email and no profile.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestProfile creates a profile for userID with the given balance in cents.
func CreateTestProfile(t *testing.T, db *gorm.DB, userID string, balance int64) *models.Profile {
	t.Helper()

	profile := &models.Profile{UserID: userID, Balance: balance}
	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("failed to create test profile: %v", err)
	}
	return profile
}

// CreateTestVideo creates a TikTok video with the given likes and 1000 shares.
func CreateTestVideo(t *testing.T, db *gorm.DB, likes int64) *models.Video {
	t.Helper()
	return CreateTestVideoWithShares(t, db, likes, 1000, 1000)
}

// CreateTestVideoWithShares creates a TikTok video with explicit inventory.
func CreateTestVideoWithShares(t *testing.T, db *gorm.DB, likes, total, available int64) *models.Video {
	t.Helper()

	video := &models.Video{
		URL:             fmt.Sprintf("https://www.tiktok.com/@creator/video/%d", nextID()),
		Platform:        models.PlatformTikTok,
		CurrentLikes:    likes,
		CurrentComments: likes / 10,
		TotalShares:     total,
		AvailableShares: available,
	}
	if err := db.Create(video).Error; err != nil {
		t.Fatalf("failed to create test video: %v", err)
	}
	return video
}

// CreateTestSnapshot appends an engagement snapshot taken at createdAt.
func CreateTestSnapshot(t *testing.T, db *gorm.DB, videoID string, likes, comments int64, createdAt time.Time) *models.VideoSnapshot {
	t.Helper()

	snap := &models.VideoSnapshot{
		VideoID:   videoID,
		Likes:     likes,
		Comments:  comments,
		CreatedAt: createdAt,
	}
	if err := db.Create(snap).Error; err != nil {
		t.Fatalf("failed to create test snapshot: %v", err)
	}
	return snap
}

// CreateTestInvestment records an investment without touching balances or inventory.
func CreateTestInvestment(t *testing.T, db *gorm.DB, userID, videoID string, amount, likesAtInvestment int64) *models.Investment {
	t.Helper()

	inv := &models.Investment{
		UserID:                   userID,
		VideoID:                  videoID,
		Amount:                   amount,
		Cost:                     amount * likesAtInvestment / 10,
		LikeCountAtInvestment:    likesAtInvestment,
		CommentCountAtInvestment: likesAtInvestment / 10,
		InvestedAt:               time.Now().Add(-time.Duration(nextID()) * time.Minute),
	}
	if err := db.Create(inv).Error; err != nil {
		t.Fatalf("failed to create test investment: %v", err)
	}
	return inv
}

// MustFind reloads a record by primary key, failing the test on error.
func MustFind[T any](t *testing.T, db *gorm.DB, id string) *T {
	t.Helper()

	var out T
	if err := db.First(&out, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to load %T %s: %v", out, id, err)
	}
	return &out
}
