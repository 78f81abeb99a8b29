// Package client provides an HTTP client for the vidvest pipeline API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RefreshFailure is a video the sweep could not refresh.
type RefreshFailure struct {
	VideoID string `json:"video_id"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// RefreshResult is the summary returned by a stats sweep.
type RefreshResult struct {
	VideosScanned   int              `json:"videos_scanned"`
	VideosRefreshed int              `json:"videos_refreshed"`
	Failures        []RefreshFailure `json:"failures"`
	Duration        time.Duration    `json:"duration"`
}

// Snapshot is an engagement reading stored by a single-video refresh.
type Snapshot struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"video_id"`
	Likes     int64     `json:"likes"`
	Comments  int64     `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusError is returned for any non-200 response.
type StatusError struct {
	Op         string
	StatusCode int
	Code       string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: unexpected status %d (%s)", e.Op, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
}

// PipelineClient communicates with the vidvest pipeline API.
type PipelineClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewPipelineClient creates a new pipeline API client.
func NewPipelineClient(baseURL, apiKey string, httpClient *http.Client) *PipelineClient {
	return &PipelineClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// RefreshStats triggers a sweep of tracked videos and returns its summary.
func (c *PipelineClient) RefreshStats(ctx context.Context) (*RefreshResult, error) {
	var result RefreshResult
	if err := c.post(ctx, "refreshing stats", "/api/v1/pipeline/refresh-stats", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RefreshVideo forces a new reading for one video. When investmentID is not
// empty, that investment's baseline is overwritten with the reading.
func (c *PipelineClient) RefreshVideo(ctx context.Context, videoID, investmentID string) (*Snapshot, error) {
	var body any
	if investmentID != "" {
		body = map[string]string{"investment_id": investmentID}
	}
	var result struct {
		Snapshot *Snapshot `json:"snapshot"`
	}
	if err := c.post(ctx, "refreshing video", "/api/v1/pipeline/videos/"+videoID+"/refresh", body, &result); err != nil {
		return nil, err
	}
	if result.Snapshot == nil {
		return nil, fmt.Errorf("refreshing video: response has no snapshot")
	}
	return result.Snapshot, nil
}

func (c *PipelineClient) post(ctx context.Context, op, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Code: errBody.Error.Code}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}
