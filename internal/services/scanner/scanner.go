package scanner

import (
	"context"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/AliyanOranje/sweepalgo-backend/internal/adapters/massive"
	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/flow"
	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/options"
	"github.com/AliyanOranje/sweepalgo-backend/internal/services/enrich"
	"github.com/AliyanOranje/sweepalgo-backend/internal/services/gex"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
)

const (
	// maxWatchlist bounds the tickers scanned per request
	maxWatchlist = 10

	// pagesPerTicker bounds snapshot pagination during a scan
	pagesPerTicker = 2

	// maxAlerts caps the response
	maxAlerts = 500

	// gexRefineLimit stops real GEX lookups once this many alerts exist
	gexRefineLimit = 50

	// gexTimeout bounds the real GEX lookup inside a scan
	gexTimeout = 500 * time.Millisecond

	// atBandPct is the strike distance treated as "at" the level
	atBandPct = 0.02

	// scoreLeniency admits alerts scoring within this of the threshold
	scoreLeniency = 1.0
)

// Config is the scan filter set
type Config struct {
	MinVolume   int64   `json:"minVolume"`
	MinPremium  float64 `json:"minPremium"`
	MaxDte      int     `json:"maxDte"`
	GexPosition string  `json:"gexPosition"` // all, above, at, below
	MinScore    float64 `json:"minScore"`
}

// Alert is one qualifying contract with its trade plan
type Alert struct {
	Ticker       string       `json:"ticker"`
	ContractID   string       `json:"contractId"`
	Type         options.Kind `json:"type"`
	Strike       float64      `json:"strike"`
	Expiry       string       `json:"expiry"`
	DTE          int          `json:"dte"`
	Price        float64      `json:"price"`
	Volume       int64        `json:"volume"`
	OpenInterest int64        `json:"openInterest"`
	Premium      float64      `json:"premium"`
	Score        float64      `json:"score"`
	GexPosition  string       `json:"gexPosition"`
	TradePlan    TradePlan    `json:"tradePlan"`
	Why          []string     `json:"why"`
}

// VendorAPI is the slice of the vendor client the scanner needs
type VendorAPI interface {
	OptionsSnapshot(ctx context.Context, underlying string, limit int, extra url.Values) (*massive.SnapshotResponse, error)
	FollowSnapshotNext(ctx context.Context, nextURL string) (*massive.SnapshotResponse, error)
	PrevClose(ctx context.Context, ticker string) (float64, error)
}

// GexAPI computes the real exposure profile for refinement
type GexAPI interface {
	Compute(ctx context.Context, ticker string) (*gex.Report, error)
}

// Scanner surfaces unusual contracts across a watchlist
type Scanner struct {
	vendor   VendorAPI
	enricher *enrich.Enricher
	gex      GexAPI
	log      *logger.Logger
}

// NewScanner creates a scanner. gexAPI may be nil; positions then come
// from the strike-distance heuristic alone.
func NewScanner(vendor VendorAPI, enricher *enrich.Enricher, gexAPI GexAPI, log *logger.Logger) *Scanner {
	return &Scanner{
		vendor:   vendor,
		enricher: enricher,
		gex:      gexAPI,
		log:      log.With("component", "scanner"),
	}
}

// Scan evaluates the watchlist against the filter config and returns
// alerts sorted by score descending
func (s *Scanner) Scan(ctx context.Context, watchlist []string, cfg Config) []Alert {
	if len(watchlist) > maxWatchlist {
		watchlist = watchlist[:maxWatchlist]
	}
	filterOnPosition := cfg.GexPosition != "" && cfg.GexPosition != "all"

	var alerts []Alert
	for _, ticker := range watchlist {
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if ticker == "" || ctx.Err() != nil {
			continue
		}

		snaps := s.fetchContracts(ctx, ticker)
		if len(snaps) == 0 {
			continue
		}

		spot := s.resolveSpot(ctx, ticker, snaps)

		var flip float64
		if filterOnPosition && len(alerts) < gexRefineLimit {
			flip = s.gammaFlip(ctx, ticker)
		}

		for idx := range snaps {
			alert, ok := s.evaluate(ctx, &snaps[idx], ticker, spot, flip, cfg)
			if !ok {
				continue
			}
			if filterOnPosition && alert.GexPosition != cfg.GexPosition {
				continue
			}
			alerts = append(alerts, alert)
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Score > alerts[j].Score
	})
	if len(alerts) > maxAlerts {
		alerts = alerts[:maxAlerts]
	}
	return alerts
}

// fetchContracts pulls up to two snapshot pages for a ticker
func (s *Scanner) fetchContracts(ctx context.Context, ticker string) []massive.OptionSnapshot {
	resp, err := s.vendor.OptionsSnapshot(ctx, ticker, massive.MaxPageSize, nil)
	if err != nil {
		s.log.Warnw("Scan fetch failed", "ticker", ticker, "error", err)
		return nil
	}
	snaps := resp.Results

	if resp.NextURL != "" && pagesPerTicker > 1 {
		next, err := s.vendor.FollowSnapshotNext(ctx, resp.NextURL)
		if err == nil {
			snaps = append(snaps, next.Results...)
		}
	}
	return snaps
}

// resolveSpot asks the aggs endpoint, falling back to contract metadata
func (s *Scanner) resolveSpot(ctx context.Context, ticker string, snaps []massive.OptionSnapshot) float64 {
	if sp, err := s.vendor.PrevClose(ctx, ticker); err == nil && sp > 0 {
		return sp
	}
	for idx := range snaps {
		if sp, ok := snaps[idx].ResolveSpot(); ok {
			return sp
		}
	}
	return 0
}

// gammaFlip races the real GEX engine against a short timer
func (s *Scanner) gammaFlip(ctx context.Context, ticker string) float64 {
	if s.gex == nil {
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, gexTimeout)
	defer cancel()

	type result struct {
		flip float64
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		report, err := s.gex.Compute(ctx, ticker)
		if err != nil {
			ch <- result{err: err}
			return
		}
		ch <- result{flip: report.KeyLevels.GammaFlip}
	}()

	select {
	case <-ctx.Done():
		s.log.Debugw("GEX refinement timed out", "ticker", ticker)
		return 0
	case r := <-ch:
		if r.err != nil {
			s.log.Debugw("GEX refinement failed", "ticker", ticker, "error", r.err)
			return 0
		}
		return r.flip
	}
}

// evaluate enriches one contract and applies the filter with its
// leniency rules
func (s *Scanner) evaluate(ctx context.Context, snap *massive.OptionSnapshot, ticker string, spot, flip float64, cfg Config) (Alert, bool) {
	f, err := s.enricher.EnrichSnapshot(ctx, snap, ticker, 0)
	if err != nil {
		return Alert{}, false
	}

	if cfg.MaxDte > 0 && f.DTE > cfg.MaxDte {
		return Alert{}, false
	}
	if cfg.MinPremium > 0 && f.Premium < cfg.MinPremium {
		return Alert{}, false
	}

	// dormant contracts with heavy OI still qualify
	if cfg.MinVolume > 0 && f.Volume < cfg.MinVolume {
		if !(f.Volume == 0 && f.OpenInterest >= 10*cfg.MinVolume) {
			return Alert{}, false
		}
	}

	// near misses on score stay in
	if cfg.MinScore > 0 && f.Score < cfg.MinScore-scoreLeniency {
		return Alert{}, false
	}

	position := classifyPosition(f.Strike, spot, flip)
	alert := Alert{
		Ticker:       f.Ticker,
		ContractID:   f.ContractID,
		Type:         f.Kind,
		Strike:       f.Strike,
		Expiry:       f.Expiry,
		DTE:          f.DTE,
		Price:        f.Price,
		Volume:       f.Volume,
		OpenInterest: f.OpenInterest,
		Premium:      f.Premium,
		Score:        f.Score,
		GexPosition:  position,
	}
	alert.TradePlan = buildTradePlan(f.Kind, f.Price, position, f.Score)
	alert.Why = whyPhrases(f, position)
	return alert, true
}

// classifyPosition places a strike relative to the reference level: the
// gamma flip when the real engine answered, spot otherwise
func classifyPosition(strike, spot, flip float64) string {
	ref := flip
	if ref <= 0 {
		ref = spot
	}
	if ref <= 0 {
		return "unknown"
	}
	if math.Abs(strike-ref)/ref < atBandPct {
		return "at"
	}
	if strike > ref {
		return "above"
	}
	return "below"
}

// whyPhrases names the rules a contract triggered
func whyPhrases(f *flow.Flow, position string) []string {
	var why []string
	if f.Score >= 8 {
		why = append(why, "exceptional setup score")
	} else if f.Score >= 7 {
		why = append(why, "high setup score")
	}
	if f.TradeType == flow.TradeTypeSweep {
		why = append(why, "sweep order flow")
	}
	if f.TradeType == flow.TradeTypeBlock {
		why = append(why, "block-sized print")
	}
	if f.OpenInterest > 0 && f.Volume > f.OpenInterest {
		why = append(why, "volume exceeds open interest")
	}
	if f.Premium >= 100000 {
		why = append(why, "heavy premium")
	}
	if position == "at" {
		why = append(why, "pinned at gamma level")
	}
	if f.DTE <= 7 {
		why = append(why, "short-dated expiry")
	}
	if len(why) == 0 {
		why = append(why, "unusual activity profile")
	}
	return why
}
