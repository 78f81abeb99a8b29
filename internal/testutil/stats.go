package testutil

import (
	"context"
	"sync"

	"vidvest/internal/models"
	"vidvest/internal/stats"
)

// FakeStatsProvider is a stats.Provider that returns canned readings and
// counts its calls.
type FakeStatsProvider struct {
	mu       sync.Mutex
	calls    int
	likes    *int64
	comments *int64
	err      error

	// FetchFn, when set, replaces the canned reading.
	FetchFn func(ctx context.Context, platform models.Platform, videoURL string) (stats.Stats, error)
}

// NewFakeStats returns a provider that always reports likes and comments.
func NewFakeStats(likes, comments int64) *FakeStatsProvider {
	return &FakeStatsProvider{likes: &likes, comments: &comments}
}

// NewFailingStats returns a provider that always fails with err.
func NewFailingStats(err error) *FakeStatsProvider {
	return &FakeStatsProvider{err: err}
}

// Set changes the canned reading; nil pointers model missing metrics.
func (f *FakeStatsProvider) Set(likes, comments *int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.likes, f.comments, f.err = likes, comments, nil
}

// Calls returns the number of FetchStats calls so far.
func (f *FakeStatsProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Name returns the provider's display name.
func (f *FakeStatsProvider) Name() string { return "fake" }

// FetchStats returns the canned reading.
func (f *FakeStatsProvider) FetchStats(ctx context.Context, platform models.Platform, videoURL string) (stats.Stats, error) {
	f.mu.Lock()
	f.calls++
	fn, likes, comments, err := f.FetchFn, f.likes, f.comments, f.err
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, platform, videoURL)
	}
	if err != nil {
		return stats.Stats{}, err
	}
	return stats.Stats{Likes: likes, Comments: comments}, nil
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }
