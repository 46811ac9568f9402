package enrich

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/AliyanOranje/sweepalgo-backend/internal/adapters/massive"
	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/flow"
	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/options"
	"github.com/AliyanOranje/sweepalgo-backend/internal/metrics"
	"github.com/AliyanOranje/sweepalgo-backend/internal/services/spot"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
)

// ErrBelowMinPremium marks records under the per-feed premium floor
var ErrBelowMinPremium = errors.New("premium below feed minimum")

// Enricher turns raw vendor observations into flow records. Per-record
// failures come back as sentinel errors; the caller counts and drops them.
type Enricher struct {
	spot   *spot.Oracle
	sweeps *SweepDetector
	seq    atomic.Uint64
	log    *logger.Logger
}

// NewEnricher creates an enricher
func NewEnricher(oracle *spot.Oracle, log *logger.Logger) *Enricher {
	return &Enricher{
		spot:   oracle,
		sweeps: NewSweepDetector(),
		log:    log.With("component", "enricher"),
	}
}

// EnrichSnapshot builds a flow record from a REST contract snapshot.
// underlyingOverride names the ticker the snapshot was fetched for.
func (e *Enricher) EnrichSnapshot(ctx context.Context, snap *massive.OptionSnapshot, underlyingOverride string, minPremium float64) (*flow.Flow, error) {
	sym := snap.ContractSymbol()
	if sym == "" {
		metrics.RecordIngestDiscard("malformed_symbol")
		return nil, errors.Wrap(errors.ErrMalformedSymbol, "snapshot without contract id")
	}

	parsed, err := options.ParseOCC(sym)
	if err != nil {
		metrics.RecordIngestDiscard("malformed_symbol")
		return nil, err
	}

	now := time.Now()
	kind := snap.ResolveKind(parsed)
	strike := snap.ResolveStrike(parsed)
	expiry := snap.ResolveExpiry(parsed)
	underlying := snap.ResolveUnderlying(underlyingOverride, parsed)

	dte := options.DTE(expiry, now)
	if dte < 0 {
		metrics.RecordIngestDiscard("expired")
		return nil, errors.Wrapf(errors.ErrExpiredContract, "%s", sym)
	}

	price, ok := snap.ResolvePrice()
	if !ok {
		metrics.RecordIngestDiscard("bad_price")
		return nil, errors.Wrapf(errors.ErrBadPrice, "%s", sym)
	}

	volume := snap.ResolveVolume()
	oi := snap.ResolveOpenInterest()
	bid, ask := snap.ResolveBidAsk()

	// snapshot payloads may carry the underlying's price; seed the oracle
	if sp, ok := snap.ResolveSpot(); ok {
		e.spot.Put(underlying, sp)
	}

	size := int64(0)
	if snap.LastTrade != nil && snap.LastTrade.Size != nil && *snap.LastTrade.Size > 0 {
		size = *snap.LastTrade.Size
	}
	size = effectiveSize(size, volume, oi)

	eventTime := snap.TradeTime()
	if eventTime.IsZero() {
		eventTime = now.UTC()
	}

	exchange := 0
	if snap.LastTrade != nil {
		exchange = snap.LastTrade.Exchange
	}

	f := e.build(ctx, buildInput{
		contractID: options.FormatOCC(underlying, expiry, kind, strike),
		underlying: underlying,
		kind:       kind,
		strike:     strike,
		expiry:     expiry,
		dte:        dte,
		price:      price,
		size:       size,
		volume:     volume,
		oi:         oi,
		bid:        bid,
		ask:        ask,
		exchange:   exchange,
		eventTime:  eventTime,
		vendorIV:   snap,
	})

	if f.Premium < minPremium {
		metrics.RecordIngestDiscard("min_premium")
		return nil, errors.Wrapf(ErrBelowMinPremium, "%s premium %.0f", sym, f.Premium)
	}
	return f, nil
}

// EnrichTick builds a flow record from a live stream trade
func (e *Enricher) EnrichTick(ctx context.Context, tick massive.TradeTick, minPremium float64) (*flow.Flow, error) {
	parsed, err := options.ParseOCC(tick.Symbol)
	if err != nil {
		metrics.RecordIngestDiscard("malformed_symbol")
		return nil, err
	}

	now := time.Now()
	dte := options.DTE(parsed.Expiration, now)
	if dte < 0 {
		metrics.RecordIngestDiscard("expired")
		return nil, errors.Wrapf(errors.ErrExpiredContract, "%s", tick.Symbol)
	}

	if tick.Price <= 0 {
		metrics.RecordIngestDiscard("bad_price")
		return nil, errors.Wrapf(errors.ErrBadPrice, "%s", tick.Symbol)
	}

	size := tick.Size
	if size <= 0 {
		size = 1
	}

	eventTime := tick.EventTime()
	if tick.Timestamp == 0 {
		eventTime = now.UTC()
	}

	f := e.build(ctx, buildInput{
		contractID: parsed.OCCSymbol(),
		underlying: parsed.Underlying,
		kind:       parsed.Kind,
		strike:     parsed.Strike,
		expiry:     parsed.Expiration,
		dte:        dte,
		price:      tick.Price,
		size:       size,
		volume:     0, // stream ticks carry no session aggregates
		oi:         0,
		bid:        tick.Bid,
		ask:        tick.Ask,
		exchange:   tick.Exchange,
		eventTime:  eventTime,
	})

	if f.Premium < minPremium {
		metrics.RecordIngestDiscard("min_premium")
		return nil, errors.Wrapf(ErrBelowMinPremium, "%s premium %.0f", tick.Symbol, f.Premium)
	}
	return f, nil
}

type buildInput struct {
	contractID string
	underlying string
	kind       options.Kind
	strike     float64
	expiry     time.Time
	dte        int
	price      float64
	size       int64
	volume     int64
	oi         int64
	bid        float64
	ask        float64
	exchange   int
	eventTime  time.Time
	vendorIV   *massive.OptionSnapshot // nil on the tick path
}

// build assembles the derived fields shared by both paths
func (e *Enricher) build(ctx context.Context, in buildInput) *flow.Flow {
	seq := e.seq.Add(1)

	premium := in.price * float64(in.size) * 100

	side, aggressor := ClassifySide(in.price, in.bid, in.ask)
	sentiment := ClassifySentiment(in.kind, aggressor)
	arrow, color := Direction(in.kind, aggressor)

	tradeType := e.sweeps.Classify(in.contractID, in.exchange, in.eventTime, in.size, premium)

	score := SetupScore(in.volume, in.oi, premium, tradeType, side, in.dte)

	f := &flow.Flow{
		ID:                fmt.Sprintf("%s-%d", in.contractID, seq),
		Sequence:          seq,
		ContractID:        in.contractID,
		Ticker:            in.underlying,
		Kind:              in.kind,
		Strike:            in.strike,
		Expiry:            in.expiry.Format("2006-01-02"),
		DTE:               in.dte,
		Timestamp:         in.eventTime,
		Price:             in.price,
		Size:              in.size,
		Premium:           premium,
		Volume:            in.volume,
		OpenInterest:      in.oi,
		Bid:               in.bid,
		Ask:               in.ask,
		Side:              side,
		Aggressor:         aggressor,
		Sentiment:         sentiment,
		TradeType:         tradeType,
		Direction:         arrow,
		DirectionColor:    color,
		OpenClose:         ClassifyOpenClose(in.volume, in.oi, 0),
		Score:             score,
		IsHighProbability: IsHighProbability(score, in.volume, in.oi, premium),
		Exchange:          in.exchange,
	}

	// spot: oracle answer or nothing; no strike-derived guesses
	if sp, err := e.spot.Get(ctx, in.underlying); err == nil {
		f.Spot = sp
		f.SpotAvailable = true
		f.OTMPercent = OTMPercent(in.kind, in.strike, sp)
		f.Moneyness = ClassifyMoneyness(f.OTMPercent)
		if IsNearSpot(in.strike, sp) {
			f.Moneyness = flow.MoneynessATM
		}
	}

	f.IV = e.resolveIV(in, f.SpotAvailable, f.Spot)

	return f
}

// resolveIV prefers vendor-supplied IV, computing one only when price,
// spot, strike, and DTE are all usable
func (e *Enricher) resolveIV(in buildInput, spotOK bool, spotPrice float64) string {
	if in.vendorIV != nil {
		if iv, ok := in.vendorIV.ResolveIV(); ok {
			return options.FormatIV(iv)
		}
	}

	if !spotOK || in.dte <= 0 || in.price <= 0 || in.strike <= 0 {
		return ""
	}

	t := options.YearFraction(in.dte)
	sigma, err := options.ImpliedVolatility(in.kind, in.price, spotPrice, in.strike, t)
	if err != nil {
		return ""
	}
	return options.FormatIV(sigma)
}

// effectiveSize applies the trade-size proxy: with no prints and no
// volume, 5% of open interest (min 10) stands in; with nothing at all,
// a sentinel single contract.
func effectiveSize(tradeSize, volume, oi int64) int64 {
	if tradeSize > 0 {
		return tradeSize
	}
	if volume == 0 && oi > 0 {
		proxy := oi / 20
		if proxy < 10 {
			proxy = 10
		}
		return proxy
	}
	return 1
}
