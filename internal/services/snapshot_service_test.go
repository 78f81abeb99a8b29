package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"vidvest/internal/models"
	"vidvest/internal/pagination"
	"vidvest/internal/stats"
	"vidvest/internal/testutil"
)

type fakeLimiter struct {
	allow bool
	err   error
	calls int
}

func (f *fakeLimiter) Allow(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	f.calls++
	return f.allow, f.err
}

func TestGetFreshSnapshot_Staleness(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	provider := testutil.NewFakeStats(900, 90)
	svc := NewSnapshotService(db, provider, WithClock(func() time.Time { return now }))

	video := testutil.CreateTestVideo(t, db, 500)
	cached := testutil.CreateTestSnapshot(t, db, video.ID, 500, 50, base)

	t.Run("fresh_within_max_age", func(t *testing.T) {
		now = base.Add(2*time.Hour + 59*time.Minute)
		snap, err := svc.GetFreshSnapshot(context.Background(), video.ID, 3*time.Hour)
		require.NoError(t, err)

		assert.Equal(t, cached.ID, snap.ID)
		assert.Equal(t, 0, provider.Calls())
		assert.Equal(t, int64(1), snapshotCount(t, db, video.ID))
	})

	t.Run("stale_after_max_age", func(t *testing.T) {
		now = base.Add(3*time.Hour + time.Minute)
		snap, err := svc.GetFreshSnapshot(context.Background(), video.ID, 3*time.Hour)
		require.NoError(t, err)

		assert.NotEqual(t, cached.ID, snap.ID)
		assert.Equal(t, int64(900), snap.Likes)
		assert.Equal(t, 1, provider.Calls())
		assert.Equal(t, int64(2), snapshotCount(t, db, video.ID))

		reloaded := testutil.MustFind[models.Video](t, db, video.ID)
		assert.Equal(t, int64(900), reloaded.CurrentLikes)
		assert.Equal(t, int64(90), reloaded.CurrentComments)
	})

	t.Run("new_snapshot_is_served_from_cache", func(t *testing.T) {
		now = now.Add(time.Minute)
		_, err := svc.GetFreshSnapshot(context.Background(), video.ID, 3*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 1, provider.Calls())
		assert.Equal(t, int64(2), snapshotCount(t, db, video.ID))
	})
}

func snapshotCount(t *testing.T, db *gorm.DB, videoID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.VideoSnapshot{}).Where("video_id = ?", videoID).Count(&count).Error)
	return count
}

func TestGetFreshSnapshot_NoSnapshotFetches(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	provider := testutil.NewFakeStats(500, 12)
	svc := NewSnapshotService(db, provider)
	video := testutil.CreateTestVideo(t, db, 0)

	snap, err := svc.GetFreshSnapshot(context.Background(), video.ID, 3*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(500), snap.Likes)
	assert.Equal(t, int64(12), snap.Comments)
	assert.Equal(t, 1, provider.Calls())
}

func TestRefresh_ProviderOutcomes(t *testing.T) {
	t.Run("missing_metric_keeps_previous_value", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		provider := testutil.NewFakeStats(0, 0)
		provider.Set(nil, testutil.Int64(77))
		svc := NewSnapshotService(db, provider)
		video := testutil.CreateTestVideo(t, db, 640)

		snap, err := svc.Refresh(context.Background(), video.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(640), snap.Likes)
		assert.Equal(t, int64(77), snap.Comments)
	})

	t.Run("both_metrics_missing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		provider := testutil.NewFakeStats(0, 0)
		provider.Set(nil, nil)
		svc := NewSnapshotService(db, provider)
		video := testutil.CreateTestVideo(t, db, 640)

		_, err := svc.Refresh(context.Background(), video.ID)
		testutil.AssertAppError(t, err, "STATS_UNAVAILABLE")

		var count int64
		db.Model(&models.VideoSnapshot{}).Count(&count)
		assert.Zero(t, count)
	})

	t.Run("provider_no_data", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		svc := NewSnapshotService(db, testutil.NewFailingStats(stats.ErrNoData))
		video := testutil.CreateTestVideo(t, db, 640)

		_, err := svc.Refresh(context.Background(), video.ID)
		testutil.AssertAppError(t, err, "STATS_UNAVAILABLE")
	})

	t.Run("provider_failure", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		svc := NewSnapshotService(db, testutil.NewFailingStats(errors.New("actor run failed")))
		video := testutil.CreateTestVideo(t, db, 640)

		_, err := svc.Refresh(context.Background(), video.ID)
		testutil.AssertAppError(t, err, "STATS_FETCH_FAILED")

		reloaded := testutil.MustFind[models.Video](t, db, video.ID)
		assert.Equal(t, int64(640), reloaded.CurrentLikes)
	})

	t.Run("provider_timeout", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		provider := testutil.NewFakeStats(1, 1)
		provider.FetchFn = func(ctx context.Context, _ models.Platform, _ string) (stats.Stats, error) {
			<-ctx.Done()
			return stats.Stats{}, ctx.Err()
		}
		svc := NewSnapshotService(db, provider, WithFetchTimeout(100*time.Millisecond))
		video := testutil.CreateTestVideo(t, db, 640)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := svc.Refresh(ctx, video.ID)
		testutil.AssertAppError(t, err, "STATS_FETCH_FAILED")
	})

	t.Run("fetch_timeout_with_live_caller", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		provider := testutil.NewFakeStats(1, 1)
		provider.FetchFn = func(ctx context.Context, _ models.Platform, _ string) (stats.Stats, error) {
			<-ctx.Done()
			return stats.Stats{}, ctx.Err()
		}
		svc := NewSnapshotService(db, provider, WithFetchTimeout(50*time.Millisecond))
		video := testutil.CreateTestVideo(t, db, 640)

		_, err := svc.Refresh(context.Background(), video.ID)
		testutil.AssertAppError(t, err, "STATS_FETCH_FAILED")
	})

	t.Run("unknown_video", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		provider := testutil.NewFakeStats(1, 1)
		svc := NewSnapshotService(db, provider)

		_, err := svc.Refresh(context.Background(), "0190a6c4-0000-7000-8000-000000000000")
		testutil.AssertAppError(t, err, "VIDEO_NOT_FOUND")
		assert.Equal(t, 0, provider.Calls())
	})
}

func TestRefresh_RateLimit(t *testing.T) {
	t.Run("over_limit", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		provider := testutil.NewFakeStats(1, 1)
		limiter := &fakeLimiter{allow: false}
		svc := NewSnapshotService(db, provider, WithRateLimiter(limiter, 10))
		video := testutil.CreateTestVideo(t, db, 100)

		_, err := svc.Refresh(context.Background(), video.ID)
		testutil.AssertAppError(t, err, "STATS_RATE_LIMITED")
		assert.Equal(t, 0, provider.Calls())
		assert.Equal(t, 1, limiter.calls)
	})

	t.Run("limiter_error_fails_open", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		provider := testutil.NewFakeStats(1, 1)
		limiter := &fakeLimiter{err: errors.New("redis down")}
		svc := NewSnapshotService(db, provider, WithRateLimiter(limiter, 10))
		video := testutil.CreateTestVideo(t, db, 100)

		_, err := svc.Refresh(context.Background(), video.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, provider.Calls())
	})

	t.Run("zero_limit_disables", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		limiter := &fakeLimiter{allow: false}
		svc := NewSnapshotService(db, testutil.NewFakeStats(1, 1), WithRateLimiter(limiter, 0))
		video := testutil.CreateTestVideo(t, db, 100)

		_, err := svc.Refresh(context.Background(), video.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, limiter.calls)
	})
}

func TestRefresh_CoalescesConcurrentCalls(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	provider := testutil.NewFakeStats(1, 1)
	provider.FetchFn = func(_ context.Context, _ models.Platform, _ string) (stats.Stats, error) {
		time.Sleep(200 * time.Millisecond)
		return stats.Stats{Likes: testutil.Int64(321), Comments: testutil.Int64(4)}, nil
	}
	svc := NewSnapshotService(db, provider)
	video := testutil.CreateTestVideo(t, db, 100)

	const callers = 5
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := svc.Refresh(context.Background(), video.ID)
			errs[i] = err
			if snap != nil {
				ids[i] = snap.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, provider.Calls())
}

func TestRefresh_CancelledCallerDoesNotFailOthers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	started := make(chan struct{})
	release := make(chan struct{})
	provider := testutil.NewFakeStats(1, 1)
	provider.FetchFn = func(ctx context.Context, _ models.Platform, _ string) (stats.Stats, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
			return stats.Stats{}, ctx.Err()
		}
		return stats.Stats{Likes: testutil.Int64(808), Comments: testutil.Int64(8)}, nil
	}
	svc := NewSnapshotService(db, provider)
	video := testutil.CreateTestVideo(t, db, 100)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Refresh(firstCtx, video.ID)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		snap *models.VideoSnapshot
		err  error
	}
	second := make(chan outcome, 1)
	go func() {
		snap, err := svc.Refresh(context.Background(), video.ID)
		second <- outcome{snap, err}
	}()
	// Let the second caller join the in-flight fetch before the first leaves.
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	testutil.AssertAppError(t, <-firstErr, "STATS_FETCH_FAILED")

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, int64(808), got.snap.Likes)
	assert.Equal(t, 1, provider.Calls())

	reloaded := testutil.MustFind[models.Video](t, db, video.ID)
	assert.Equal(t, int64(808), reloaded.CurrentLikes)
}

func TestHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewSnapshotService(db, testutil.NewFakeStats(1, 1))

	video := testutil.CreateTestVideo(t, db, 100)
	base := time.Now().Add(-time.Hour)
	testutil.CreateTestSnapshot(t, db, video.ID, 300, 3, base.Add(20*time.Minute))
	testutil.CreateTestSnapshot(t, db, video.ID, 100, 1, base)
	testutil.CreateTestSnapshot(t, db, video.ID, 200, 2, base.Add(10*time.Minute))

	page, err := svc.History(context.Background(), video.ID, pagination.PageRequest{Page: 1, PageSize: 2})
	require.NoError(t, err)

	assert.Equal(t, int64(3), page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Data, 2)
	assert.Equal(t, int64(100), page.Data[0].Likes)
	assert.Equal(t, int64(200), page.Data[1].Likes)

	_, err = svc.History(context.Background(), "0190a6c4-0000-7000-8000-000000000000", pagination.PageRequest{})
	testutil.AssertAppError(t, err, "VIDEO_NOT_FOUND")
}
