package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliyanOranje/sweepalgo-backend/internal/adapters/config"
	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/flow"
	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/options"
	"github.com/AliyanOranje/sweepalgo-backend/internal/services/gex"
	"github.com/AliyanOranje/sweepalgo-backend/internal/services/query"
	"github.com/AliyanOranje/sweepalgo-backend/internal/services/scanner"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
)

type stubFlows struct {
	gotFilter query.Filter
	gotSort   string
	gotPage   int
	gotLimit  int
	result    *query.Result
}

func (s *stubFlows) Query(ctx context.Context, f query.Filter, sortKey string, page, limit int) *query.Result {
	s.gotFilter = f
	s.gotSort = sortKey
	s.gotPage = page
	s.gotLimit = limit
	if s.result != nil {
		return s.result
	}
	return &query.Result{Flows: []flow.Flow{}, Trades: []flow.Flow{}}
}

type stubRefresher struct{ calls int }

func (s *stubRefresher) Refresh() { s.calls++ }

type stubGex struct {
	report *gex.Report
	err    error
}

func (s *stubGex) Compute(ctx context.Context, ticker string) (*gex.Report, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

type stubScanner struct {
	gotWatchlist []string
	gotCfg       scanner.Config
	alerts       []scanner.Alert
}

func (s *stubScanner) Scan(ctx context.Context, watchlist []string, cfg scanner.Config) []scanner.Alert {
	s.gotWatchlist = watchlist
	s.gotCfg = cfg
	return s.alerts
}

type stubVendor struct {
	gotPath   string
	gotParams url.Values
	raw       json.RawMessage
	err       error
}

func (s *stubVendor) GetRaw(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	s.gotPath = path
	s.gotParams = params
	if s.err != nil {
		return nil, s.err
	}
	if s.raw != nil {
		return s.raw, nil
	}
	return json.RawMessage(`{}`), nil
}

func newTestRouter(t *testing.T, deps HandlerDeps) *mux.Router {
	t.Helper()
	require.NoError(t, logger.Init("error", "development"))

	r := mux.NewRouter()
	NewHandler(deps, logger.Get()).Register(r)
	return r
}

func doRequest(r http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestOptionsFlow_ParamsAndEnvelope(t *testing.T) {
	flows := &stubFlows{result: &query.Result{
		Count:        1,
		TotalCount:   1,
		Page:         2,
		TotalPages:   1,
		Limit:        50,
		Flows:        []flow.Flow{{Ticker: "SPY"}},
		Trades:       []flow.Flow{{Ticker: "SPY"}},
		MarketStatus: "open",
	}}
	r := newTestRouter(t, HandlerDeps{Flows: flows})

	rec := doRequest(r, http.MethodGet, "/api/options-flow?ticker=spy&sortBy=premium&page=2&limit=50&calls=true")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "SPY", flows.gotFilter.Ticker)
	assert.True(t, flows.gotFilter.Calls)
	assert.Equal(t, "premium", flows.gotSort)
	assert.Equal(t, 2, flows.gotPage)
	assert.Equal(t, 50, flows.gotLimit)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "open", body["marketStatus"])
	assert.Equal(t, float64(1), body["count"])
	assert.NotNil(t, body["flows"])
	assert.NotNil(t, body["trades"])
}

func TestRefresh(t *testing.T) {
	refresher := &stubRefresher{}
	store := flow.NewStore(100)
	store.Insert(flow.Flow{ID: "a"})
	r := newTestRouter(t, HandlerDeps{Store: store, Refresher: refresher})

	rec := doRequest(r, http.MethodPost, "/api/options-flow/refresh")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, refresher.calls)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["storeSize"])

	// refresh is POST-only
	rec = doRequest(r, http.MethodGet, "/api/options-flow/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStats(t *testing.T) {
	store := flow.NewStore(100)
	store.Insert(flow.Flow{
		ID: "a", Kind: options.KindCall, TradeType: flow.TradeTypeSweep,
		Volume: 100, OpenInterest: 40, Premium: 10000,
	})
	store.Insert(flow.Flow{
		ID: "b", Kind: options.KindPut, TradeType: flow.TradeTypeSweep,
		Volume: 50, OpenInterest: 100, Premium: 5000,
	})
	r := newTestRouter(t, HandlerDeps{Store: store})

	rec := doRequest(r, http.MethodGet, "/api/options-flow/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["totalTrades"])
	assert.Equal(t, float64(15000), stats["totalPremium"])
	assert.Equal(t, float64(1), stats["callSweeps"])
	assert.Equal(t, float64(1), stats["putSweeps"])
	assert.Equal(t, float64(50), stats["putVolume"])
	assert.Equal(t, float64(2), stats["callPutRatio"])
	assert.Equal(t, float64(1), stats["unusualActivity"])
}

func TestGEX(t *testing.T) {
	g := &stubGex{report: &gex.Report{Ticker: "SPY", SpotPrice: 650}}
	r := newTestRouter(t, HandlerDeps{Gex: g})

	rec := doRequest(r, http.MethodGet, "/api/gex/spy")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "SPY", body["ticker"])
	assert.Equal(t, float64(650), body["spotPrice"])
}

func TestGEX_NotFound(t *testing.T) {
	g := &stubGex{err: errors.Wrapf(errors.ErrNotFound, "no chain for SPY")}
	r := newTestRouter(t, HandlerDeps{Gex: g})

	rec := doRequest(r, http.MethodGet, "/api/gex/SPY")
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "not_found", body["error"])
	assert.Equal(t, "SPY", body["ticker"])
}

func TestGEXHeatmap(t *testing.T) {
	g := &stubGex{report: &gex.Report{
		Ticker:    "SPY",
		SpotPrice: 650,
		KeyLevels: gex.KeyLevels{GammaWall: 650},
	}}
	r := newTestRouter(t, HandlerDeps{Gex: g})

	rec := doRequest(r, http.MethodGet, "/api/gex/SPY/heatmap")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "SPY", body["ticker"])
	assert.NotNil(t, body["keyLevels"])
	// the chain had no usable expirations; the heatmap is null, not absent
	_, present := body["heatmap"]
	assert.True(t, present)
}

func TestLiveScanner_DefaultsAndCap(t *testing.T) {
	sc := &stubScanner{alerts: []scanner.Alert{
		{Ticker: "SPY", Score: 9},
		{Ticker: "QQQ", Score: 8},
	}}
	r := newTestRouter(t, HandlerDeps{
		Scanner:   sc,
		Watchlist: []string{"SPY", "QQQ"},
		ScanCfg:   config.ScannerConfig{MaxResults: 1, MinScore: 7},
	})

	rec := doRequest(r, http.MethodGet, "/api/live-scanner")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"SPY", "QQQ"}, sc.gotWatchlist)
	assert.Equal(t, 7.0, sc.gotCfg.MinScore)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
}

func TestLiveScanner_ParamsOverride(t *testing.T) {
	sc := &stubScanner{}
	r := newTestRouter(t, HandlerDeps{
		Scanner: sc,
		ScanCfg: config.ScannerConfig{MinScore: 7},
	})

	rec := doRequest(r, http.MethodGet,
		"/api/live-scanner?watchlist=aapl,tsla&minScore=2&minVolume=100&maxDte=14&gexPosition=ABOVE")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"aapl", "tsla"}, sc.gotWatchlist)
	assert.Equal(t, 2.0, sc.gotCfg.MinScore)
	assert.Equal(t, int64(100), sc.gotCfg.MinVolume)
	assert.Equal(t, 14, sc.gotCfg.MaxDte)
	assert.Equal(t, "above", sc.gotCfg.GexPosition)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(0), body["count"])
	assert.NotNil(t, body["alerts"])
}

func TestBars(t *testing.T) {
	vendor := &stubVendor{}
	r := newTestRouter(t, HandlerDeps{Vendor: vendor})

	// from/to are required
	rec := doRequest(r, http.MethodGet, "/api/bars/SPY")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "validation_error", body["error"])

	rec = doRequest(r, http.MethodGet,
		"/api/bars/spy?from=2026-01-01&to=2026-02-01&limit=50")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/v2/aggs/ticker/SPY/range/1/day/2026-01-01/2026-02-01", vendor.gotPath)
	assert.Equal(t, "50", vendor.gotParams.Get("limit"))

	rec = doRequest(r, http.MethodGet,
		"/api/bars/SPY?from=2026-01-01&to=2026-01-02&multiplier=5&timespan=minute")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/v2/aggs/ticker/SPY/range/5/minute/2026-01-01/2026-01-02", vendor.gotPath)
}

func TestIndicators(t *testing.T) {
	vendor := &stubVendor{}
	r := newTestRouter(t, HandlerDeps{Vendor: vendor})

	rec := doRequest(r, http.MethodGet, "/api/indicators/vwap/SPY")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(r, http.MethodGet, "/api/indicators/sma/spy?window=20")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/v1/indicators/sma/SPY", vendor.gotPath)
	assert.Equal(t, "20", vendor.gotParams.Get("window"))
}

func TestOptionsChain_PassThrough(t *testing.T) {
	vendor := &stubVendor{raw: json.RawMessage(`{"results":[],"status":"OK"}`)}
	r := newTestRouter(t, HandlerDeps{Vendor: vendor})

	rec := doRequest(r, http.MethodGet, "/api/options-chain/spy?limit=100")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/v3/snapshot/options/SPY", vendor.gotPath)
	assert.JSONEq(t, `{"results":[],"status":"OK"}`, rec.Body.String())
}

func TestProxy_VendorErrorMapping(t *testing.T) {
	vendor := &stubVendor{
		err: errors.NewVendorError(429, "proxy_v3_quotes", errors.ErrVendorRateLimited),
	}
	r := newTestRouter(t, HandlerDeps{Vendor: vendor})

	rec := doRequest(r, http.MethodGet, "/api/quotes/SPY")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "vendor_rate_limited", body["error"])
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		short  string
	}{
		{"validation", errors.NewValidationError("from", "required", nil), http.StatusBadRequest, "validation_error"},
		{"not found", errors.Wrap(errors.ErrNotFound, "chain"), http.StatusNotFound, "not_found"},
		{"rate limited", errors.NewVendorError(429, "x", errors.ErrVendorRateLimited), http.StatusTooManyRequests, "vendor_rate_limited"},
		{"unauthorized maps to 500", errors.NewVendorError(401, "x", errors.ErrVendorUnauthorized), http.StatusInternalServerError, "vendor_unauthorized"},
		{"vendor 503 passes through", errors.NewVendorError(503, "x", errors.ErrVendorUnavailable), http.StatusServiceUnavailable, "vendor_error"},
		{"timeout", errors.NewVendorError(0, "x", errors.ErrVendorTimeout), http.StatusInternalServerError, "vendor_timeout"},
		{"invalid input", errors.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, short := httpStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.short, short)
		})
	}
}

func TestCORS(t *testing.T) {
	require.NoError(t, logger.Init("error", "development"))

	newRouter := func(frontend, env string) *mux.Router {
		r := mux.NewRouter()
		r.Use(corsMiddleware(frontend, env))
		r.HandleFunc("/x", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		return r
	}

	t.Run("configured origin allowed", func(t *testing.T) {
		r := newRouter("https://app.example.com", "production")
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		r := newRouter("https://app.example.com", "production")
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("localhost allowed in development", func(t *testing.T) {
		r := newRouter("", "development")
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("localhost rejected in production", func(t *testing.T) {
		r := newRouter("https://app.example.com", "production")
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight answered directly", func(t *testing.T) {
		r := newRouter("https://app.example.com", "production")
		req := httptest.NewRequest(http.MethodOptions, "/x", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	})
}
