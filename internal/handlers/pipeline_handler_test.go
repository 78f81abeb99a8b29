package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "vidvest/internal/errors"
	"vidvest/internal/models"
	"vidvest/internal/services"
)

type mockRefreshService struct {
	refreshAllFn   func(ctx context.Context) (*services.RefreshResult, error)
	refreshVideoFn func(ctx context.Context, videoID string, investmentID *string) (*models.VideoSnapshot, error)
}

func (m *mockRefreshService) RefreshAll(ctx context.Context) (*services.RefreshResult, error) {
	if m.refreshAllFn != nil {
		return m.refreshAllFn(ctx)
	}
	return &services.RefreshResult{Failures: []services.RefreshFailure{}}, nil
}

func (m *mockRefreshService) RefreshVideo(ctx context.Context, videoID string, investmentID *string) (*models.VideoSnapshot, error) {
	if m.refreshVideoFn != nil {
		return m.refreshVideoFn(ctx, videoID, investmentID)
	}
	return &models.VideoSnapshot{VideoID: videoID}, nil
}

func setupPipelineRouter(svc *mockRefreshService) *gin.Engine {
	handler := NewPipelineHandler(svc)
	r := gin.New()
	r.POST("/pipeline/refresh-stats", handler.RefreshStats)
	r.POST("/pipeline/videos/:id/refresh", handler.RefreshVideo)
	return r
}

func TestPipelineHandler_RefreshStats(t *testing.T) {
	t.Run("returns sweep summary", func(t *testing.T) {
		svc := &mockRefreshService{
			refreshAllFn: func(context.Context) (*services.RefreshResult, error) {
				return &services.RefreshResult{
					VideosScanned:   3,
					VideosRefreshed: 2,
					Failures: []services.RefreshFailure{
						{VideoID: testVideoID, Code: "STATS_FETCH_FAILED", Error: "timeout"},
					},
					Duration: time.Second,
				}, nil
			},
		}
		r := setupPipelineRouter(svc)

		rec := doRequest(r, "POST", "/pipeline/refresh-stats", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		if result["videos_scanned"] != float64(3) || result["videos_refreshed"] != float64(2) {
			t.Errorf("unexpected summary %v", result)
		}
		failures := result["failures"].([]interface{})
		if len(failures) != 1 || failures[0].(map[string]interface{})["code"] != "STATS_FETCH_FAILED" {
			t.Errorf("unexpected failures %v", failures)
		}
	})

	t.Run("returns 500 when videos cannot be listed", func(t *testing.T) {
		svc := &mockRefreshService{
			refreshAllFn: func(context.Context) (*services.RefreshResult, error) {
				return nil, apperrors.ErrInternalServer
			},
		}
		r := setupPipelineRouter(svc)

		rec := doRequest(r, "POST", "/pipeline/refresh-stats", "")

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})
}

func TestPipelineHandler_RefreshVideo(t *testing.T) {
	t.Run("refreshes without investment", func(t *testing.T) {
		var gotInvestment *string
		svc := &mockRefreshService{
			refreshVideoFn: func(_ context.Context, videoID string, investmentID *string) (*models.VideoSnapshot, error) {
				gotInvestment = investmentID
				return &models.VideoSnapshot{VideoID: videoID, Likes: 10}, nil
			},
		}
		r := setupPipelineRouter(svc)

		rec := doRequest(r, "POST", "/pipeline/videos/"+testVideoID+"/refresh", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotInvestment != nil {
			t.Errorf("expected no investment, got %v", *gotInvestment)
		}
		result := parseJSON(t, rec)
		if _, ok := result["baseline_updated_investment_id"]; ok {
			t.Error("baseline field must be omitted")
		}
		snap := result["snapshot"].(map[string]interface{})
		if snap["likes"] != float64(10) {
			t.Errorf("expected likes 10, got %v", snap["likes"])
		}
	})

	t.Run("passes investment id", func(t *testing.T) {
		var gotInvestment string
		svc := &mockRefreshService{
			refreshVideoFn: func(_ context.Context, videoID string, investmentID *string) (*models.VideoSnapshot, error) {
				gotInvestment = *investmentID
				return &models.VideoSnapshot{VideoID: videoID}, nil
			},
		}
		r := setupPipelineRouter(svc)

		rec := doRequest(r, "POST", "/pipeline/videos/"+testVideoID+"/refresh",
			`{"investment_id":"`+testInvestmentID+`"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotInvestment != testInvestmentID {
			t.Errorf("expected investment %s, got %s", testInvestmentID, gotInvestment)
		}
		if parseJSON(t, rec)["baseline_updated_investment_id"] != testInvestmentID {
			t.Error("expected baseline_updated_investment_id in response")
		}
	})

	t.Run("rejects malformed investment id", func(t *testing.T) {
		r := setupPipelineRouter(&mockRefreshService{})

		rec := doRequest(r, "POST", "/pipeline/videos/"+testVideoID+"/refresh", `{"investment_id":"nope"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("maps service errors", func(t *testing.T) {
		svc := &mockRefreshService{
			refreshVideoFn: func(context.Context, string, *string) (*models.VideoSnapshot, error) {
				return nil, apperrors.ErrInvestmentNotFound
			},
		}
		r := setupPipelineRouter(svc)

		rec := doRequest(r, "POST", "/pipeline/videos/"+testVideoID+"/refresh",
			`{"investment_id":"`+testInvestmentID+`"}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVESTMENT_NOT_FOUND")
	})
}
