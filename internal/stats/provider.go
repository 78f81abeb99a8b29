// Package stats fetches engagement counts for videos from external scrapers.
package stats

import (
	"context"
	"errors"

	"vidvest/internal/models"
)

// ErrNoData is returned when the provider finished but reported neither likes
// nor comments for the video.
var ErrNoData = errors.New("no engagement data returned")

// ErrUnsupportedPlatform is returned for platforms the provider cannot scrape.
var ErrUnsupportedPlatform = errors.New("platform not supported by provider")

// Stats is one engagement reading. A nil field means the provider did not
// report that metric.
type Stats struct {
	Likes    *int64
	Comments *int64
}

// Empty reports whether neither metric is present.
func (s Stats) Empty() bool {
	return s.Likes == nil && s.Comments == nil
}

// Provider fetches current engagement for a single video.
type Provider interface {
	// Name returns the provider's display name.
	Name() string

	// FetchStats blocks until the provider returns a reading or fails.
	// Implementations do not retry; cancellation of ctx aborts the fetch.
	FetchStats(ctx context.Context, platform models.Platform, videoURL string) (Stats, error)
}
