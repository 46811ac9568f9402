package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/AliyanOranje/sweepalgo-backend/internal/adapters/config"
	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/flow"
	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/options"
	"github.com/AliyanOranje/sweepalgo-backend/internal/services/gex"
	"github.com/AliyanOranje/sweepalgo-backend/internal/services/query"
	"github.com/AliyanOranje/sweepalgo-backend/internal/services/scanner"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
)

// FlowQuerier serves the filtered, paginated flow query
type FlowQuerier interface {
	Query(ctx context.Context, f query.Filter, sortKey string, page, limit int) *query.Result
}

// Refresher triggers an out-of-band backfill run
type Refresher interface {
	Refresh()
}

// GexComputer builds the exposure surface for a ticker
type GexComputer interface {
	Compute(ctx context.Context, ticker string) (*gex.Report, error)
}

// AlertScanner sweeps a watchlist for alert-grade contracts
type AlertScanner interface {
	Scan(ctx context.Context, watchlist []string, cfg scanner.Config) []scanner.Alert
}

// VendorProxy forwards an authenticated vendor call and returns the raw body
type VendorProxy interface {
	GetRaw(ctx context.Context, path string, params url.Values) (json.RawMessage, error)
}

// HandlerDeps are the services the HTTP surface exposes
type HandlerDeps struct {
	Store     *flow.Store
	Flows     FlowQuerier
	Refresher Refresher
	Gex       GexComputer
	Scanner   AlertScanner
	Vendor    VendorProxy

	// Watchlist is the default scanner universe when the request
	// supplies none
	Watchlist []string
	ScanCfg   config.ScannerConfig
}

// Handler holds the route implementations
type Handler struct {
	deps HandlerDeps
	log  *logger.Logger
}

// NewHandler creates the HTTP handler set
func NewHandler(deps HandlerDeps, log *logger.Logger) *Handler {
	return &Handler{
		deps: deps,
		log:  log.With("component", "api"),
	}
}

// Register attaches all application routes to the router
func (h *Handler) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/options-flow", h.OptionsFlow).Methods(http.MethodGet)
	api.HandleFunc("/options-flow/refresh", h.Refresh).Methods(http.MethodPost)
	api.HandleFunc("/options-flow/stats", h.Stats).Methods(http.MethodGet)

	api.HandleFunc("/gex/{ticker}", h.GEX).Methods(http.MethodGet)
	api.HandleFunc("/gex/{ticker}/heatmap", h.GEXHeatmap).Methods(http.MethodGet)

	api.HandleFunc("/live-scanner", h.LiveScanner).Methods(http.MethodGet)
	api.HandleFunc("/options-chain/{ticker}", h.OptionsChain).Methods(http.MethodGet)

	// authenticated vendor pass-throughs
	api.HandleFunc("/bars/{ticker}", h.Bars).Methods(http.MethodGet)
	api.HandleFunc("/quotes/{ticker}", h.Quotes).Methods(http.MethodGet)
	api.HandleFunc("/trades/{ticker}", h.Trades).Methods(http.MethodGet)
	api.HandleFunc("/last-trade/{ticker}", h.LastTrade).Methods(http.MethodGet)
	api.HandleFunc("/prev-close/{ticker}", h.PrevClose).Methods(http.MethodGet)
	api.HandleFunc("/indicators/{indicator}/{ticker}", h.Indicators).Methods(http.MethodGet)
	api.HandleFunc("/market-status", h.MarketStatus).Methods(http.MethodGet)
	api.HandleFunc("/exchanges", h.Exchanges).Methods(http.MethodGet)
	api.HandleFunc("/conditions", h.Conditions).Methods(http.MethodGet)
}

// flowResponse wraps the query result with the success flag
type flowResponse struct {
	Success bool `json:"success"`
	*query.Result
}

// OptionsFlow serves GET /api/options-flow
func (h *Handler) OptionsFlow(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	f := query.FilterFromQuery(values)
	sortKey := values.Get("sortBy")
	if sortKey == "" {
		sortKey = values.Get("sort")
	}
	page := qint(values, "page")
	limit := qint(values, "limit")

	result := h.deps.Flows.Query(r.Context(), f, sortKey, page, limit)
	writeJSON(w, http.StatusOK, flowResponse{Success: true, Result: result})
}

// Refresh serves POST /api/options-flow/refresh. The backfill runs in the
// background; the response carries the store size as of the trigger.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.deps.Refresher.Refresh()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "refresh triggered",
		"storeSize": h.deps.Store.Len(),
	})
}

// flowStats aggregates the current store contents
type flowStats struct {
	TotalTrades     int     `json:"totalTrades"`
	TotalPremium    float64 `json:"totalPremium"`
	CallSweeps      int     `json:"callSweeps"`
	PutSweeps       int     `json:"putSweeps"`
	CallPutRatio    float64 `json:"callPutRatio"`
	PutVolume       int64   `json:"putVolume"`
	UnusualActivity int     `json:"unusualActivity"`
}

// Stats serves GET /api/options-flow/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	snapshot := h.deps.Store.Snapshot()

	var st flowStats
	var callVolume int64
	st.TotalTrades = len(snapshot)
	for idx := range snapshot {
		f := &snapshot[idx]
		st.TotalPremium += f.Premium

		if f.Kind == options.KindCall {
			callVolume += f.Volume
			if f.TradeType == flow.TradeTypeSweep {
				st.CallSweeps++
			}
		} else {
			st.PutVolume += f.Volume
			if f.TradeType == flow.TradeTypeSweep {
				st.PutSweeps++
			}
		}
		if f.OpenInterest > 0 && f.Volume > f.OpenInterest {
			st.UnusualActivity++
		}
	}
	if st.PutVolume > 0 {
		st.CallPutRatio = float64(callVolume) / float64(st.PutVolume)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   st,
	})
}

// gexResponse wraps the exposure report with the success flag
type gexResponse struct {
	Success bool `json:"success"`
	*gex.Report
}

// GEX serves GET /api/gex/{ticker}
func (h *Handler) GEX(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])

	report, err := h.deps.Gex.Compute(r.Context(), ticker)
	if err != nil {
		respondError(w, h.log, err, ticker)
		return
	}
	writeJSON(w, http.StatusOK, gexResponse{Success: true, Report: report})
}

// GEXHeatmap serves GET /api/gex/{ticker}/heatmap
func (h *Handler) GEXHeatmap(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])

	report, err := h.deps.Gex.Compute(r.Context(), ticker)
	if err != nil {
		respondError(w, h.log, err, ticker)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"ticker":    report.Ticker,
		"spotPrice": report.SpotPrice,
		"keyLevels": report.KeyLevels,
		"heatmap":   report.Heatmap,
	})
}

// LiveScanner serves GET /api/live-scanner
func (h *Handler) LiveScanner(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	watchlist := qlist(values, "watchlist")
	if len(watchlist) == 0 {
		watchlist = h.deps.Watchlist
	}

	cfg := scanner.Config{
		MinVolume:   int64(qfloat(values, "minVolume")),
		MinPremium:  qfloat(values, "minPremium"),
		MaxDte:      qint(values, "maxDte"),
		GexPosition: strings.ToLower(values.Get("gexPosition")),
		MinScore:    h.deps.ScanCfg.MinScore,
	}
	if raw := values.Get("minScore"); raw != "" {
		cfg.MinScore = qfloat(values, "minScore")
	}

	alerts := h.deps.Scanner.Scan(r.Context(), watchlist, cfg)
	if max := h.deps.ScanCfg.MaxResults; max > 0 && len(alerts) > max {
		alerts = alerts[:max]
	}
	if alerts == nil {
		alerts = []scanner.Alert{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"count":     len(alerts),
		"alerts":    alerts,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func qint(values url.Values, key string) int {
	n, err := strconv.Atoi(values.Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func qfloat(values url.Values, key string) float64 {
	v, err := strconv.ParseFloat(values.Get(key), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// qlist splits comma-separated and repeated params into one list
func qlist(values url.Values, key string) []string {
	var out []string
	for _, raw := range values[key] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
