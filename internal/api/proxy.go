package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
)

// proxyTimeout bounds every vendor pass-through call
const proxyTimeout = 15 * time.Second

// indicators the vendor supports on /v1/indicators
var allowedIndicators = map[string]bool{
	"sma":  true,
	"ema":  true,
	"macd": true,
	"rsi":  true,
}

// proxy forwards a vendor call and streams the raw JSON body back
func (h *Handler) proxy(w http.ResponseWriter, r *http.Request, path string, params url.Values) {
	ctx, cancel := context.WithTimeout(r.Context(), proxyTimeout)
	defer cancel()

	raw, err := h.deps.Vendor.GetRaw(ctx, path, params)
	if err != nil {
		respondError(w, h.log, err, strings.ToUpper(mux.Vars(r)["ticker"]))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

// OptionsChain serves GET /api/options-chain/{ticker}
func (h *Handler) OptionsChain(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])
	h.proxy(w, r, "/v3/snapshot/options/"+ticker, r.URL.Query())
}

// Bars serves GET /api/bars/{ticker}. from and to are required; the
// aggregate window defaults to 1/day.
func (h *Handler) Bars(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])
	values := r.URL.Query()

	from := values.Get("from")
	to := values.Get("to")
	if from == "" || to == "" {
		respondError(w, h.log, errors.NewValidationError("from/to", "required query params", nil), ticker)
		return
	}

	multiplier := values.Get("multiplier")
	if multiplier == "" {
		multiplier = "1"
	}
	timespan := values.Get("timespan")
	if timespan == "" {
		timespan = "day"
	}

	params := url.Values{}
	for _, key := range []string{"adjusted", "sort", "limit"} {
		if v := values.Get(key); v != "" {
			params.Set(key, v)
		}
	}

	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/%s/%s/%s/%s", ticker, multiplier, timespan, from, to)
	h.proxy(w, r, path, params)
}

// Quotes serves GET /api/quotes/{ticker}
func (h *Handler) Quotes(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])
	h.proxy(w, r, "/v3/quotes/"+ticker, r.URL.Query())
}

// Trades serves GET /api/trades/{ticker}
func (h *Handler) Trades(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])
	h.proxy(w, r, "/v3/trades/"+ticker, r.URL.Query())
}

// LastTrade serves GET /api/last-trade/{ticker}
func (h *Handler) LastTrade(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])
	h.proxy(w, r, "/v2/last/trade/"+ticker, nil)
}

// PrevClose serves GET /api/prev-close/{ticker}
func (h *Handler) PrevClose(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])
	h.proxy(w, r, "/v2/aggs/ticker/"+ticker+"/prev", nil)
}

// Indicators serves GET /api/indicators/{indicator}/{ticker}
func (h *Handler) Indicators(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	indicator := strings.ToLower(vars["indicator"])
	ticker := strings.ToUpper(vars["ticker"])

	if !allowedIndicators[indicator] {
		respondError(w, h.log, errors.NewValidationError("indicator", "must be one of sma, ema, macd, rsi", indicator), ticker)
		return
	}
	h.proxy(w, r, "/v1/indicators/"+indicator+"/"+ticker, r.URL.Query())
}

// MarketStatus serves GET /api/market-status
func (h *Handler) MarketStatus(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, "/v1/marketstatus/now", nil)
}

// Exchanges serves GET /api/exchanges
func (h *Handler) Exchanges(w http.ResponseWriter, r *http.Request) {
	params := url.Values{}
	params.Set("asset_class", "options")
	h.proxy(w, r, "/v3/reference/exchanges", params)
}

// Conditions serves GET /api/conditions
func (h *Handler) Conditions(w http.ResponseWriter, r *http.Request) {
	params := url.Values{}
	params.Set("asset_class", "options")
	h.proxy(w, r, "/v3/reference/conditions", params)
}
