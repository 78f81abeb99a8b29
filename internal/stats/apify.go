package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vidvest/internal/models"
)

const (
	apifyBaseURL = "https://api.apify.com"

	tiktokActorID    = "S5h7zRLfKFEr8pdj7"
	instagramActorID = "xMc5Ga1oCONPmWJIa"

	runStatusReady     = "READY"
	runStatusRunning   = "RUNNING"
	runStatusSucceeded = "SUCCEEDED"
)

// ApifyConfig configures the Apify actor client.
type ApifyConfig struct {
	Token        string
	BaseURL      string
	PollAttempts int
	PollInterval time.Duration
}

// apifyRun is the subset of an actor run object we read.
type apifyRun struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

type apifyRunResponse struct {
	Data apifyRun `json:"data"`
}

// tiktokItem holds the metric fields of a TikTok scraper dataset item.
type tiktokItem struct {
	DiggCount    *int64 `json:"diggCount"`
	CommentCount *int64 `json:"commentCount"`
}

// instagramItem holds the metric fields of an Instagram scraper dataset item.
type instagramItem struct {
	LikesCount    *int64 `json:"likesCount"`
	CommentsCount *int64 `json:"commentsCount"`
}

// actor describes how to run and read one platform's scraper.
type actor struct {
	id      string
	input   func(videoURL string) any
	extract func(item json.RawMessage) (Stats, error)
}

var actors = map[models.Platform]actor{
	models.PlatformTikTok: {
		id: tiktokActorID,
		input: func(videoURL string) any {
			return map[string]any{
				"postURLs":                      []string{videoURL},
				"scrapeRelatedVideos":           false,
				"resultsPerPage":                100,
				"shouldDownloadVideos":          false,
				"shouldDownloadCovers":          false,
				"shouldDownloadSubtitles":       false,
				"shouldDownloadSlideshowImages": false,
			}
		},
		extract: func(raw json.RawMessage) (Stats, error) {
			var item tiktokItem
			if err := json.Unmarshal(raw, &item); err != nil {
				return Stats{}, fmt.Errorf("decoding tiktok item: %w", err)
			}
			return Stats{Likes: item.DiggCount, Comments: item.CommentCount}, nil
		},
	},
	models.PlatformInstagram: {
		id: instagramActorID,
		input: func(videoURL string) any {
			return map[string]any{"username": []string{videoURL}}
		},
		extract: func(raw json.RawMessage) (Stats, error) {
			var item instagramItem
			if err := json.Unmarshal(raw, &item); err != nil {
				return Stats{}, fmt.Errorf("decoding instagram item: %w", err)
			}
			return Stats{Likes: item.LikesCount, Comments: item.CommentsCount}, nil
		},
	},
}

// ApifyProvider scrapes engagement through Apify actors: start a run, poll
// until it leaves READY/RUNNING, then read the first dataset item.
type ApifyProvider struct {
	httpClient   *http.Client
	baseURL      string // overridable for tests
	token        string
	pollAttempts int
	pollInterval time.Duration
}

// NewApifyProvider creates a new Apify stats provider.
func NewApifyProvider(httpClient *http.Client, cfg ApifyConfig) *ApifyProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = apifyBaseURL
	}
	attempts := cfg.PollAttempts
	if attempts <= 0 {
		attempts = 15
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &ApifyProvider{
		httpClient:   httpClient,
		baseURL:      baseURL,
		token:        cfg.Token,
		pollAttempts: attempts,
		pollInterval: interval,
	}
}

// Name returns the provider's display name.
func (p *ApifyProvider) Name() string { return "Apify" }

// FetchStats runs the platform's actor for videoURL and returns its reading.
func (p *ApifyProvider) FetchStats(ctx context.Context, platform models.Platform, videoURL string) (Stats, error) {
	act, ok := actors[platform]
	if !ok {
		return Stats{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}

	run, err := p.startRun(ctx, act.id, act.input(videoURL))
	if err != nil {
		return Stats{}, err
	}

	run, err = p.waitForRun(ctx, run)
	if err != nil {
		return Stats{}, err
	}

	item, err := p.firstItem(ctx, run.DefaultDatasetID)
	if err != nil {
		return Stats{}, err
	}

	stats, err := act.extract(item)
	if err != nil {
		return Stats{}, err
	}
	if stats.Empty() {
		return Stats{}, ErrNoData
	}
	return stats, nil
}

func (p *ApifyProvider) startRun(ctx context.Context, actorID string, input any) (apifyRun, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return apifyRun{}, fmt.Errorf("marshaling actor input: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/acts/%s/runs", p.baseURL, url.PathEscape(actorID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return apifyRun{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp apifyRunResponse
	if err := p.do(req, &resp); err != nil {
		return apifyRun{}, fmt.Errorf("starting actor %s: %w", actorID, err)
	}
	if resp.Data.ID == "" {
		return apifyRun{}, fmt.Errorf("starting actor %s: response has no run id", actorID)
	}
	return resp.Data, nil
}

// waitForRun polls the run every pollInterval, at most pollAttempts times,
// while it is READY or RUNNING. Any terminal status other than SUCCEEDED,
// or a run still pending after the last poll, is an error.
func (p *ApifyProvider) waitForRun(ctx context.Context, run apifyRun) (apifyRun, error) {
	for attempt := 0; attempt < p.pollAttempts && isPending(run.Status); attempt++ {
		if err := sleep(ctx, p.pollInterval); err != nil {
			return apifyRun{}, fmt.Errorf("waiting for run %s: %w", run.ID, err)
		}

		endpoint := fmt.Sprintf("%s/v2/actor-runs/%s", p.baseURL, url.PathEscape(run.ID))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return apifyRun{}, fmt.Errorf("building request: %w", err)
		}

		var resp apifyRunResponse
		if err := p.do(req, &resp); err != nil {
			return apifyRun{}, fmt.Errorf("polling run %s: %w", run.ID, err)
		}
		run.Status = resp.Data.Status
		if resp.Data.DefaultDatasetID != "" {
			run.DefaultDatasetID = resp.Data.DefaultDatasetID
		}
	}

	if run.Status != runStatusSucceeded {
		return apifyRun{}, fmt.Errorf("run %s did not succeed: status %s", run.ID, run.Status)
	}
	return run, nil
}

func (p *ApifyProvider) firstItem(ctx context.Context, datasetID string) (json.RawMessage, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("run has no dataset")
	}

	endpoint := fmt.Sprintf("%s/v2/datasets/%s/items?format=json", p.baseURL, url.PathEscape(datasetID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	var items []json.RawMessage
	if err := p.do(req, &items); err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", datasetID, err)
	}
	if len(items) == 0 {
		return nil, ErrNoData
	}
	return items[0], nil
}

// do sends req with the bearer token and decodes a 2xx JSON body into out.
func (p *ApifyProvider) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func isPending(status string) bool {
	return status == runStatusReady || status == runStatusRunning
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
