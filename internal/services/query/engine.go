package query

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/flow"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
)

const (
	// DefaultLimit caps a page when the client gives no limit
	DefaultLimit = 100

	// MaxLimit bounds a single page regardless of what the client asks for
	MaxLimit = 1000

	// tickerFetchMax bounds the direct ticker-scoped fetch
	tickerFetchMax = 2000
)

// LiveFetcher pulls a ticker-scoped batch of flows straight from the
// vendor, bypassing the store. Used when a ticker filter finds nothing
// locally.
type LiveFetcher interface {
	FetchTickerFlows(ctx context.Context, ticker string, max int) ([]flow.Flow, error)
}

// MarketStatusFunc reports the vendor's current market state
type MarketStatusFunc func(ctx context.Context) string

// Engine evaluates filter queries over the trade store
type Engine struct {
	store        *flow.Store
	fetcher      LiveFetcher
	marketStatus MarketStatusFunc
	log          *logger.Logger
}

// NewEngine creates a query engine. fetcher may be nil; the engine then
// serves ticker queries from the store alone.
func NewEngine(store *flow.Store, fetcher LiveFetcher, marketStatus MarketStatusFunc, log *logger.Logger) *Engine {
	return &Engine{
		store:        store,
		fetcher:      fetcher,
		marketStatus: marketStatus,
		log:          log.With("component", "query_engine"),
	}
}

// Result is the paged query response
type Result struct {
	Count      int         `json:"count"`
	TotalCount int         `json:"totalCount"`
	Page       int         `json:"page"`
	TotalPages int         `json:"totalPages"`
	Limit      int         `json:"limit"`
	Flows      []flow.Flow `json:"flows"`
	Trades     []flow.Flow `json:"trades"`
	StoreSize  int         `json:"storeSize"`

	MarketStatus     string           `json:"marketStatus"`
	OverallSentiment SentimentSummary `json:"overallSentiment"`
}

// SentimentSummary aggregates the sentiment of the returned page
type SentimentSummary struct {
	Sentiment           string  `json:"sentiment"`
	BullishPremiumShare float64 `json:"bullishPremiumShare"`
	NetPremium          float64 `json:"netPremium"`
}

// Query snapshots the store, filters, sorts the full filtered set, then
// slices out the requested page
func (e *Engine) Query(ctx context.Context, f Filter, sortKey string, page, limit int) *Result {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	candidates := e.candidates(ctx, f)

	filtered := candidates[:0:0]
	for idx := range candidates {
		if f.Match(&candidates[idx]) {
			filtered = append(filtered, candidates[idx])
		}
	}

	sortFlows(filtered, sortKey)

	total := len(filtered)
	totalPages := (total + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}

	offset := (page - 1) * limit
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	pageFlows := filtered[offset:end]

	status := "unknown"
	if e.marketStatus != nil {
		status = e.marketStatus(ctx)
	}

	return &Result{
		Count:            len(pageFlows),
		TotalCount:       total,
		Page:             page,
		TotalPages:       totalPages,
		Limit:            limit,
		Flows:            pageFlows,
		Trades:           pageFlows,
		StoreSize:        e.store.Len(),
		MarketStatus:     status,
		OverallSentiment: summarizeSentiment(pageFlows),
	}
}

// candidates returns the evaluation set: the store snapshot, or a direct
// vendor fetch when a ticker filter finds nothing buffered locally
func (e *Engine) candidates(ctx context.Context, f Filter) []flow.Flow {
	snapshot := e.store.Snapshot()

	if f.Ticker == "" || e.fetcher == nil {
		return snapshot
	}
	for _, fl := range snapshot {
		if strings.EqualFold(fl.Ticker, f.Ticker) {
			return snapshot
		}
	}

	fetched, err := e.fetcher.FetchTickerFlows(ctx, f.Ticker, tickerFetchMax)
	if err != nil {
		e.log.Warnw("Ticker-scoped fetch failed, serving store snapshot",
			"ticker", f.Ticker, "error", err)
		return snapshot
	}
	return fetched
}

// sortFlows orders the full filtered set. Sequence breaks ties so equal
// keys keep a stable, repeatable order.
func sortFlows(flows []flow.Flow, key string) {
	var less func(a, b flow.Flow) bool

	switch key {
	case "premium":
		less = func(a, b flow.Flow) bool { return a.Premium > b.Premium }
	case "volume":
		less = func(a, b flow.Flow) bool { return a.Volume > b.Volume }
	case "confidence":
		less = func(a, b flow.Flow) bool { return a.Score > b.Score }
	case "iv":
		less = func(a, b flow.Flow) bool { return parseIV(a.IV) > parseIV(b.IV) }
	default: // "time"
		less = func(a, b flow.Flow) bool { return a.Timestamp.After(b.Timestamp) }
	}

	sort.SliceStable(flows, func(i, j int) bool {
		a, b := flows[i], flows[j]
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return a.Sequence > b.Sequence
	})
}

// parseIV reads the display form, e.g. "42.00%". Records without an IV
// sort last.
func parseIV(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		return -1
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return -1
	}
	return v
}

// sentiment thresholds on bullish premium share
const (
	bullishShare = 0.6
	bearishShare = 0.4
)

func summarizeSentiment(flows []flow.Flow) SentimentSummary {
	var bull, bear float64
	for i := range flows {
		switch flows[i].Sentiment {
		case flow.SentimentBull:
			bull += flows[i].Premium
		case flow.SentimentBear:
			bear += flows[i].Premium
		}
	}

	out := SentimentSummary{
		Sentiment:  "Neutral",
		NetPremium: bull - bear,
	}
	directional := bull + bear
	if directional <= 0 {
		return out
	}

	out.BullishPremiumShare = bull / directional
	switch {
	case out.BullishPremiumShare >= bullishShare:
		out.Sentiment = "Bullish"
	case out.BullishPremiumShare <= bearishShare:
		out.Sentiment = "Bearish"
	}
	return out
}
