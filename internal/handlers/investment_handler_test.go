package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "vidvest/internal/errors"
	"vidvest/internal/models"
	"vidvest/internal/pagination"
	"vidvest/internal/services"
)

const (
	testVideoID      = "0190a6c2-7b3e-7c1d-9a55-2f3f1e6b8c02"
	testInvestmentID = "0190a6c2-7b3e-7c1d-9a55-2f3f1e6b8c03"
	testVideoURL     = "https://www.tiktok.com/@u/video/1"
)

// --- mock services ---

type mockVideoService struct {
	resolveFn  func(ctx context.Context, rawURL string) (*models.Video, error)
	getVideoFn func(ctx context.Context, videoID string) (*models.Video, error)
}

func (m *mockVideoService) Resolve(ctx context.Context, rawURL string) (*models.Video, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, rawURL)
	}
	return &models.Video{Base: models.Base{ID: testVideoID}, URL: testVideoURL, Platform: models.PlatformTikTok}, nil
}

func (m *mockVideoService) GetVideo(ctx context.Context, videoID string) (*models.Video, error) {
	if m.getVideoFn != nil {
		return m.getVideoFn(ctx, videoID)
	}
	return &models.Video{Base: models.Base{ID: videoID}, Platform: models.PlatformTikTok}, nil
}

type mockSnapshotService struct {
	getFreshSnapshotFn func(ctx context.Context, videoID string, maxAge time.Duration) (*models.VideoSnapshot, error)
	refreshFn          func(ctx context.Context, videoID string) (*models.VideoSnapshot, error)
	historyFn          func(ctx context.Context, videoID string, page pagination.PageRequest) (*pagination.PageResponse[models.VideoSnapshot], error)
}

func (m *mockSnapshotService) GetFreshSnapshot(ctx context.Context, videoID string, maxAge time.Duration) (*models.VideoSnapshot, error) {
	if m.getFreshSnapshotFn != nil {
		return m.getFreshSnapshotFn(ctx, videoID, maxAge)
	}
	return &models.VideoSnapshot{VideoID: videoID, Likes: 500, Comments: 50}, nil
}

func (m *mockSnapshotService) Refresh(ctx context.Context, videoID string) (*models.VideoSnapshot, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, videoID)
	}
	return &models.VideoSnapshot{VideoID: videoID}, nil
}

func (m *mockSnapshotService) History(ctx context.Context, videoID string, page pagination.PageRequest) (*pagination.PageResponse[models.VideoSnapshot], error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, videoID, page)
	}
	resp := pagination.NewPageResponse([]models.VideoSnapshot{}, 1, 20, 0)
	return &resp, nil
}

type mockLedgerService struct {
	investFn          func(ctx context.Context, userID, videoID string, amount int64) (*models.Investment, error)
	listInvestmentsFn func(ctx context.Context, userID string, filter services.InvestmentFilter) (*pagination.PageResponse[models.Investment], error)
	portfolioFn       func(ctx context.Context, userID string) (*services.Portfolio, error)
}

func (m *mockLedgerService) Invest(ctx context.Context, userID, videoID string, amount int64) (*models.Investment, error) {
	if m.investFn != nil {
		return m.investFn(ctx, userID, videoID, amount)
	}
	return &models.Investment{Base: models.Base{ID: testInvestmentID}, UserID: userID, VideoID: videoID, Amount: amount}, nil
}

func (m *mockLedgerService) ListInvestments(ctx context.Context, userID string, filter services.InvestmentFilter) (*pagination.PageResponse[models.Investment], error) {
	if m.listInvestmentsFn != nil {
		return m.listInvestmentsFn(ctx, userID, filter)
	}
	resp := pagination.NewPageResponse([]models.Investment{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockLedgerService) Portfolio(ctx context.Context, userID string) (*services.Portfolio, error) {
	if m.portfolioFn != nil {
		return m.portfolioFn(ctx, userID)
	}
	return &services.Portfolio{Holdings: []services.Holding{}}, nil
}

// --- helpers ---

type investmentDeps struct {
	videos    *mockVideoService
	snapshots *mockSnapshotService
	ledger    *mockLedgerService
	audit     *mockAuditService
}

func newInvestmentDeps() *investmentDeps {
	return &investmentDeps{
		videos:    &mockVideoService{},
		snapshots: &mockSnapshotService{},
		ledger:    &mockLedgerService{},
		audit:     &mockAuditService{},
	}
}

func setupInvestmentRouter(d *investmentDeps) *gin.Engine {
	handler := NewInvestmentHandler(d.videos, d.snapshots, d.ledger, d.audit, 3*time.Hour)
	r := gin.New()
	authed := r.Group("/", injectUserID(testUserID))
	authed.POST("/invest", handler.Invest)
	authed.POST("/preinvest", handler.Preinvest)
	authed.GET("/investments", handler.ListInvestments)
	authed.GET("/portfolio", handler.GetPortfolio)
	return r
}

// --- tests ---

func TestInvestmentHandler_Invest(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		d := newInvestmentDeps()
		var gotMaxAge time.Duration
		d.snapshots.getFreshSnapshotFn = func(_ context.Context, videoID string, maxAge time.Duration) (*models.VideoSnapshot, error) {
			gotMaxAge = maxAge
			return &models.VideoSnapshot{VideoID: videoID, Likes: 500}, nil
		}
		var gotUser, gotVideo string
		var gotAmount int64
		d.ledger.investFn = func(_ context.Context, userID, videoID string, amount int64) (*models.Investment, error) {
			gotUser, gotVideo, gotAmount = userID, videoID, amount
			return &models.Investment{
				Base:    models.Base{ID: testInvestmentID},
				UserID:  userID,
				VideoID: videoID,
				Amount:  amount,
				Cost:    100,
			}, nil
		}
		r := setupInvestmentRouter(d)

		rec := doRequest(r, "POST", "/invest", `{"video_url":"https://www.tiktok.com/@u/video/1?foo=bar","amount":2}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["investment_id"] != testInvestmentID {
			t.Errorf("expected investment_id %s, got %v", testInvestmentID, result["investment_id"])
		}
		if result["video_id"] != testVideoID {
			t.Errorf("expected video_id %s, got %v", testVideoID, result["video_id"])
		}
		if result["amount"] != float64(2) {
			t.Errorf("expected amount 2, got %v", result["amount"])
		}
		if result["cost"] != "1.00" {
			t.Errorf("expected cost 1.00, got %v", result["cost"])
		}
		if gotUser != testUserID || gotVideo != testVideoID || gotAmount != 2 {
			t.Errorf("ledger called with (%s, %s, %d)", gotUser, gotVideo, gotAmount)
		}
		if gotMaxAge != 3*time.Hour {
			t.Errorf("expected max age 3h, got %v", gotMaxAge)
		}
		if len(d.audit.entries) != 1 || d.audit.entries[0].action != "CREATE_INVESTMENT" {
			t.Errorf("expected one CREATE_INVESTMENT audit entry, got %+v", d.audit.entries)
		}
	})

	t.Run("rejects bad amounts before resolving", func(t *testing.T) {
		for _, body := range []string{
			`{"video_url":"https://www.tiktok.com/@u/video/1","amount":0}`,
			`{"video_url":"https://www.tiktok.com/@u/video/1","amount":-3}`,
			`{"video_url":"https://www.tiktok.com/@u/video/1","amount":1.5}`,
			`{"video_url":"https://www.tiktok.com/@u/video/1"}`,
		} {
			d := newInvestmentDeps()
			resolved := false
			d.videos.resolveFn = func(context.Context, string) (*models.Video, error) {
				resolved = true
				return nil, apperrors.ErrInternalServer
			}
			r := setupInvestmentRouter(d)

			rec := doRequest(r, "POST", "/invest", body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("%s: expected 400, got %d", body, rec.Code)
			}
			assertErrorCode(t, parseJSON(t, rec), "INVALID_AMOUNT")
			if resolved {
				t.Errorf("%s: video resolved despite invalid amount", body)
			}
		}
	})

	t.Run("returns INVALID_URL for unparsable links", func(t *testing.T) {
		r := setupInvestmentRouter(newInvestmentDeps())

		rec := doRequest(r, "POST", "/invest", `{"video_url":"not a url","amount":1}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_URL")
	})

	t.Run("returns INVALID_INPUT without video_url", func(t *testing.T) {
		r := setupInvestmentRouter(newInvestmentDeps())

		rec := doRequest(r, "POST", "/invest", `{"amount":1}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	errorCases := []struct {
		name   string
		setup  func(d *investmentDeps)
		status int
		code   string
	}{
		{
			name: "unsupported platform",
			setup: func(d *investmentDeps) {
				d.videos.resolveFn = func(context.Context, string) (*models.Video, error) {
					return nil, apperrors.ErrUnsupportedPlatform
				}
			},
			status: http.StatusBadRequest,
			code:   "UNSUPPORTED_PLATFORM",
		},
		{
			name: "stats fetch failed",
			setup: func(d *investmentDeps) {
				d.snapshots.getFreshSnapshotFn = func(context.Context, string, time.Duration) (*models.VideoSnapshot, error) {
					return nil, apperrors.ErrStatsFetchFailed
				}
			},
			status: http.StatusBadGateway,
			code:   "STATS_FETCH_FAILED",
		},
		{
			name: "insufficient balance",
			setup: func(d *investmentDeps) {
				d.ledger.investFn = func(context.Context, string, string, int64) (*models.Investment, error) {
					return nil, apperrors.ErrInsufficientBalance
				}
			},
			status: http.StatusPaymentRequired,
			code:   "INSUFFICIENT_BALANCE",
		},
		{
			name: "insufficient inventory",
			setup: func(d *investmentDeps) {
				d.ledger.investFn = func(context.Context, string, string, int64) (*models.Investment, error) {
					return nil, apperrors.ErrInsufficientInventory
				}
			},
			status: http.StatusConflict,
			code:   "INSUFFICIENT_INVENTORY",
		},
		{
			name: "zero price",
			setup: func(d *investmentDeps) {
				d.ledger.investFn = func(context.Context, string, string, int64) (*models.Investment, error) {
					return nil, apperrors.ErrInvalidPrice
				}
			},
			status: http.StatusUnprocessableEntity,
			code:   "INVALID_PRICE",
		},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			d := newInvestmentDeps()
			tc.setup(d)
			r := setupInvestmentRouter(d)

			rec := doRequest(r, "POST", "/invest", `{"video_url":"https://www.tiktok.com/@u/video/1","amount":2}`)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			assertErrorCode(t, parseJSON(t, rec), tc.code)
			if len(d.audit.entries) != 0 {
				t.Error("failed investment must not be audited")
			}
		})
	}

	t.Run("returns 401 without user", func(t *testing.T) {
		d := newInvestmentDeps()
		handler := NewInvestmentHandler(d.videos, d.snapshots, d.ledger, d.audit, time.Hour)
		r := gin.New()
		r.POST("/invest", handler.Invest)

		rec := doRequest(r, "POST", "/invest", `{"video_url":"https://www.tiktok.com/@u/video/1","amount":2}`)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestInvestmentHandler_Preinvest(t *testing.T) {
	t.Run("returns quote with fresh inventory", func(t *testing.T) {
		d := newInvestmentDeps()
		d.videos.getVideoFn = func(_ context.Context, videoID string) (*models.Video, error) {
			return &models.Video{
				Base:            models.Base{ID: videoID},
				Platform:        models.PlatformTikTok,
				TotalShares:     1000,
				AvailableShares: 998,
			}, nil
		}
		r := setupInvestmentRouter(d)

		rec := doRequest(r, "POST", "/preinvest", `{"video_url":"https://www.tiktok.com/@u/video/1"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		want := map[string]interface{}{
			"video_id":         testVideoID,
			"platform":         "tiktok",
			"likes_count":      float64(500),
			"comments_count":   float64(50),
			"total_shares":     float64(1000),
			"available_shares": float64(998),
			"price_per_share":  "0.500",
		}
		for k, v := range want {
			if result[k] != v {
				t.Errorf("%s: expected %v, got %v", k, v, result[k])
			}
		}
	})

	t.Run("price is null without likes", func(t *testing.T) {
		d := newInvestmentDeps()
		d.snapshots.getFreshSnapshotFn = func(_ context.Context, videoID string, _ time.Duration) (*models.VideoSnapshot, error) {
			return &models.VideoSnapshot{VideoID: videoID, Likes: 0, Comments: 3}, nil
		}
		r := setupInvestmentRouter(d)

		rec := doRequest(r, "POST", "/preinvest", `{"video_url":"https://www.tiktok.com/@u/video/1"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		if v, ok := result["price_per_share"]; !ok || v != nil {
			t.Errorf("expected null price_per_share, got %v", v)
		}
	})

	t.Run("returns 404 when stats are unavailable", func(t *testing.T) {
		d := newInvestmentDeps()
		d.snapshots.getFreshSnapshotFn = func(context.Context, string, time.Duration) (*models.VideoSnapshot, error) {
			return nil, apperrors.ErrStatsUnavailable
		}
		r := setupInvestmentRouter(d)

		rec := doRequest(r, "POST", "/preinvest", `{"video_url":"https://www.tiktok.com/@u/video/1"}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "STATS_UNAVAILABLE")
	})

	t.Run("returns 429 when rate limited", func(t *testing.T) {
		d := newInvestmentDeps()
		d.snapshots.getFreshSnapshotFn = func(context.Context, string, time.Duration) (*models.VideoSnapshot, error) {
			return nil, apperrors.ErrStatsRateLimited
		}
		r := setupInvestmentRouter(d)

		rec := doRequest(r, "POST", "/preinvest", `{"video_url":"https://www.tiktok.com/@u/video/1"}`)

		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
	})
}

func TestInvestmentHandler_ListInvestments(t *testing.T) {
	t.Run("passes pagination and platform filter", func(t *testing.T) {
		d := newInvestmentDeps()
		var got services.InvestmentFilter
		d.ledger.listInvestmentsFn = func(_ context.Context, _ string, filter services.InvestmentFilter) (*pagination.PageResponse[models.Investment], error) {
			got = filter
			resp := pagination.NewPageResponse([]models.Investment{{Base: models.Base{ID: testInvestmentID}}}, 2, 5, 6)
			return &resp, nil
		}
		r := setupInvestmentRouter(d)

		rec := doRequest(r, "GET", "/investments?page=2&page_size=5&platform=instagram", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Page != 2 || got.PageSize != 5 || got.Platform != models.PlatformInstagram {
			t.Errorf("unexpected filter %+v", got)
		}
		result := parseJSON(t, rec)
		if result["total_items"] != float64(6) {
			t.Errorf("expected total_items 6, got %v", result["total_items"])
		}
	})

	t.Run("rejects unknown platform", func(t *testing.T) {
		r := setupInvestmentRouter(newInvestmentDeps())

		rec := doRequest(r, "GET", "/investments?platform=youtube", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("rejects oversized pages", func(t *testing.T) {
		r := setupInvestmentRouter(newInvestmentDeps())

		rec := doRequest(r, "GET", "/investments?page_size=1000", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestInvestmentHandler_GetPortfolio(t *testing.T) {
	t.Run("returns holdings", func(t *testing.T) {
		d := newInvestmentDeps()
		d.ledger.portfolioFn = func(_ context.Context, userID string) (*services.Portfolio, error) {
			if userID != testUserID {
				t.Errorf("unexpected user %s", userID)
			}
			return &services.Portfolio{
				Balance:       99900,
				TotalInvested: 100,
				HoldingsCount: 1,
				Holdings: []services.Holding{{
					InvestmentID: testInvestmentID,
					VideoID:      testVideoID,
					ROI:          decimal.NewFromInt(50),
				}},
			}, nil
		}
		r := setupInvestmentRouter(d)

		rec := doRequest(r, "GET", "/portfolio", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		if result["holdings_count"] != float64(1) {
			t.Errorf("expected holdings_count 1, got %v", result["holdings_count"])
		}
		holding := result["holdings"].([]interface{})[0].(map[string]interface{})
		if holding["roi"] != "50" {
			t.Errorf("expected roi \"50\", got %v", holding["roi"])
		}
	})

	t.Run("returns 404 without profile", func(t *testing.T) {
		d := newInvestmentDeps()
		d.ledger.portfolioFn = func(context.Context, string) (*services.Portfolio, error) {
			return nil, apperrors.ErrProfileNotFound
		}
		r := setupInvestmentRouter(d)

		rec := doRequest(r, "GET", "/portfolio", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "PROFILE_NOT_FOUND")
	})
}
