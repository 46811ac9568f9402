package massive

import (
	"math"
	"strings"
	"time"

	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/options"
)

// Vendor payloads carry the same logical field in several places across
// historical schema versions. Every Resolve* method documents its ordered
// fallback list; pointer fields distinguish absent from zero.

// SnapshotResponse is the /v3/snapshot/options/<T> envelope
type SnapshotResponse struct {
	Results   []OptionSnapshot `json:"results"`
	Status    string           `json:"status"`
	NextURL   string           `json:"next_url"`
	RequestID string           `json:"request_id"`
}

// OptionSnapshot is one contract observation from the snapshot endpoint
type OptionSnapshot struct {
	Ticker string `json:"ticker,omitempty"` // contract id, some variants top-level
	Symbol string `json:"symbol,omitempty"` // oldest variant

	Details         *ContractDetails `json:"details,omitempty"`
	Day             *DayStats        `json:"day,omitempty"`
	Greeks          *Greeks          `json:"greeks,omitempty"`
	LastTrade       *LastTrade       `json:"last_trade,omitempty"`
	LastQuote       *LastQuote       `json:"last_quote,omitempty"`
	UnderlyingAsset *UnderlyingAsset `json:"underlying_asset,omitempty"`

	OpenInterest      *int64   `json:"open_interest,omitempty"`
	ImpliedVolatility *float64 `json:"implied_volatility,omitempty"`
	IV                *float64 `json:"iv,omitempty"`
	Mark              *float64 `json:"mark,omitempty"`
	Last              *float64 `json:"last,omitempty"`
	Bid               *float64 `json:"bid,omitempty"`
	Ask               *float64 `json:"ask,omitempty"`
	Volume            *int64   `json:"volume,omitempty"`
}

// ContractDetails is the reference block of a snapshot
type ContractDetails struct {
	Ticker            string    `json:"ticker,omitempty"`
	ContractType      string    `json:"contract_type,omitempty"`
	StrikePrice       *float64  `json:"strike_price,omitempty"`
	ExpirationDate    string    `json:"expiration_date,omitempty"`
	SharesPerContract int       `json:"shares_per_contract,omitempty"`
	Day               *DayStats `json:"day,omitempty"`
	Volume            *int64    `json:"volume,omitempty"`
	OpenInterest      *int64    `json:"open_interest,omitempty"`
}

// DayStats is the per-session aggregate block
type DayStats struct {
	Volume       *int64   `json:"volume,omitempty"`
	OpenInterest *int64   `json:"open_interest,omitempty"`
	Open         *float64 `json:"open,omitempty"`
	High         *float64 `json:"high,omitempty"`
	Low          *float64 `json:"low,omitempty"`
	Close        *float64 `json:"close,omitempty"`
	PrevClose    *float64 `json:"previous_close,omitempty"`
}

// Greeks block; gamma presence matters for the GEX engine
type Greeks struct {
	Delta *float64 `json:"delta,omitempty"`
	Gamma *float64 `json:"gamma,omitempty"`
	Theta *float64 `json:"theta,omitempty"`
	Vega  *float64 `json:"vega,omitempty"`
	MidIV *float64 `json:"mid_iv,omitempty"`
	IV    *float64 `json:"iv,omitempty"`
}

// LastTrade is the most recent print
type LastTrade struct {
	Price        *float64 `json:"price,omitempty"`
	Size         *int64   `json:"size,omitempty"`
	Exchange     int      `json:"exchange,omitempty"`
	SipTimestamp int64    `json:"sip_timestamp,omitempty"` // ns
}

// LastQuote is the most recent NBBO
type LastQuote struct {
	Bid      *float64 `json:"bid,omitempty"`
	Ask      *float64 `json:"ask,omitempty"`
	Midpoint *float64 `json:"midpoint,omitempty"`
}

// UnderlyingAsset carries the underlying ticker and, sometimes, its price
type UnderlyingAsset struct {
	Ticker string   `json:"ticker,omitempty"`
	Price  *float64 `json:"price,omitempty"`
	Value  *float64 `json:"value,omitempty"`
}

// ContractSymbol returns the contract id, preferring details.ticker
func (s *OptionSnapshot) ContractSymbol() string {
	if s.Details != nil && s.Details.Ticker != "" {
		return s.Details.Ticker
	}
	if s.Ticker != "" {
		return s.Ticker
	}
	return s.Symbol
}

// ResolveKind prefers details.contract_type, falling back to the parsed symbol
func (s *OptionSnapshot) ResolveKind(parsed options.Contract) options.Kind {
	if s.Details != nil {
		switch strings.ToLower(s.Details.ContractType) {
		case "call":
			return options.KindCall
		case "put":
			return options.KindPut
		}
	}
	return parsed.Kind
}

// ResolveStrike prefers details.strike_price, falling back to the parsed symbol
func (s *OptionSnapshot) ResolveStrike(parsed options.Contract) float64 {
	if s.Details != nil && s.Details.StrikePrice != nil && *s.Details.StrikePrice > 0 {
		return *s.Details.StrikePrice
	}
	return parsed.Strike
}

// ResolveExpiry prefers details.expiration_date, falling back to the parsed symbol
func (s *OptionSnapshot) ResolveExpiry(parsed options.Contract) time.Time {
	if s.Details != nil && s.Details.ExpirationDate != "" {
		if t, err := time.ParseInLocation("2006-01-02", s.Details.ExpirationDate, time.Local); err == nil {
			return t
		}
	}
	return parsed.Expiration
}

// ResolveUnderlying prefers underlying_asset.ticker, then the override
// argument, then the parsed symbol
func (s *OptionSnapshot) ResolveUnderlying(override string, parsed options.Contract) string {
	if s.UnderlyingAsset != nil && s.UnderlyingAsset.Ticker != "" {
		return strings.ToUpper(s.UnderlyingAsset.Ticker)
	}
	if override != "" {
		return strings.ToUpper(override)
	}
	return parsed.Underlying
}

// ResolveVolume: day.volume, volume, details.day.volume, details.volume; else 0
func (s *OptionSnapshot) ResolveVolume() int64 {
	if s.Day != nil && s.Day.Volume != nil {
		return *s.Day.Volume
	}
	if s.Volume != nil {
		return *s.Volume
	}
	if s.Details != nil {
		if s.Details.Day != nil && s.Details.Day.Volume != nil {
			return *s.Details.Day.Volume
		}
		if s.Details.Volume != nil {
			return *s.Details.Volume
		}
	}
	return 0
}

// ResolveOpenInterest: open_interest, day.open_interest,
// details.day.open_interest, details.open_interest; else 0
func (s *OptionSnapshot) ResolveOpenInterest() int64 {
	if s.OpenInterest != nil {
		return *s.OpenInterest
	}
	if s.Day != nil && s.Day.OpenInterest != nil {
		return *s.Day.OpenInterest
	}
	if s.Details != nil {
		if s.Details.Day != nil && s.Details.Day.OpenInterest != nil {
			return *s.Details.Day.OpenInterest
		}
		if s.Details.OpenInterest != nil {
			return *s.Details.OpenInterest
		}
	}
	return 0
}

// ResolvePrice: last_trade.price, last_quote.midpoint, mark, last,
// (bid+ask)/2. Zero or negative resolves to false (record discarded).
func (s *OptionSnapshot) ResolvePrice() (float64, bool) {
	if s.LastTrade != nil && s.LastTrade.Price != nil && *s.LastTrade.Price > 0 {
		return *s.LastTrade.Price, true
	}
	if s.LastQuote != nil && s.LastQuote.Midpoint != nil && *s.LastQuote.Midpoint > 0 {
		return *s.LastQuote.Midpoint, true
	}
	if s.Mark != nil && *s.Mark > 0 {
		return *s.Mark, true
	}
	if s.Last != nil && *s.Last > 0 {
		return *s.Last, true
	}
	bid, ask := s.ResolveBidAsk()
	if bid > 0 && ask > 0 {
		return (bid + ask) / 2, true
	}
	return 0, false
}

// ResolveBidAsk: last_quote.{bid,ask} with top-level fallback; 0 when absent
func (s *OptionSnapshot) ResolveBidAsk() (bid, ask float64) {
	if s.LastQuote != nil {
		if s.LastQuote.Bid != nil {
			bid = *s.LastQuote.Bid
		}
		if s.LastQuote.Ask != nil {
			ask = *s.LastQuote.Ask
		}
	}
	if bid == 0 && s.Bid != nil {
		bid = *s.Bid
	}
	if ask == 0 && s.Ask != nil {
		ask = *s.Ask
	}
	return bid, ask
}

// ResolveIV: greeks.mid_iv, greeks.iv, implied_volatility, iv
func (s *OptionSnapshot) ResolveIV() (float64, bool) {
	candidates := []*float64{}
	if s.Greeks != nil {
		candidates = append(candidates, s.Greeks.MidIV, s.Greeks.IV)
	}
	candidates = append(candidates, s.ImpliedVolatility, s.IV)

	for _, c := range candidates {
		if c != nil && *c > 0 && !math.IsNaN(*c) && !math.IsInf(*c, 0) {
			return *c, true
		}
	}
	return 0, false
}

// ResolveGamma returns the vendor-supplied gamma. No IV-derived fallback:
// GEX totals only use vendor gamma.
func (s *OptionSnapshot) ResolveGamma() (float64, bool) {
	if s.Greeks == nil || s.Greeks.Gamma == nil {
		return 0, false
	}
	g := *s.Greeks.Gamma
	if math.IsNaN(g) || math.IsInf(g, 0) {
		return 0, false
	}
	return g, true
}

// ResolveDelta returns the vendor-supplied delta
func (s *OptionSnapshot) ResolveDelta() (float64, bool) {
	if s.Greeks == nil || s.Greeks.Delta == nil {
		return 0, false
	}
	d := *s.Greeks.Delta
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, false
	}
	return d, true
}

// ResolveSpot returns the underlying price when the snapshot carries one
func (s *OptionSnapshot) ResolveSpot() (float64, bool) {
	if s.UnderlyingAsset == nil {
		return 0, false
	}
	if s.UnderlyingAsset.Price != nil && *s.UnderlyingAsset.Price > 0 {
		return *s.UnderlyingAsset.Price, true
	}
	if s.UnderlyingAsset.Value != nil && *s.UnderlyingAsset.Value > 0 {
		return *s.UnderlyingAsset.Value, true
	}
	return 0, false
}

// TradeTime returns the print's event-time, zero when absent
func (s *OptionSnapshot) TradeTime() time.Time {
	if s.LastTrade != nil && s.LastTrade.SipTimestamp > 0 {
		return time.Unix(0, s.LastTrade.SipTimestamp).UTC()
	}
	return time.Time{}
}

// TradeTick is one options trade from the vendor WebSocket (event code "O")
type TradeTick struct {
	Event      string  `json:"ev"`
	Symbol     string  `json:"sym"` // OCC contract id
	Exchange   int     `json:"x"`
	Price      float64 `json:"p"`
	Size       int64   `json:"s"`
	Conditions []int   `json:"c"`
	Timestamp  int64   `json:"t"` // ms since epoch
	Bid        float64 `json:"bp"`
	Ask        float64 `json:"ap"`
}

// EventTime returns the tick's event-time in UTC
func (t TradeTick) EventTime() time.Time {
	return time.UnixMilli(t.Timestamp).UTC()
}

// statusMessage is a vendor WS control frame
type statusMessage struct {
	Event   string `json:"ev"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ContractsResponse is the /v3/reference/options/contracts envelope
type ContractsResponse struct {
	Results []ContractRef `json:"results"`
	NextURL string        `json:"next_url"`
	Status  string        `json:"status"`
}

// ContractRef is one reference-contract row
type ContractRef struct {
	Ticker         string   `json:"ticker"`
	UnderlyingT    string   `json:"underlying_ticker"`
	ContractType   string   `json:"contract_type"`
	StrikePrice    *float64 `json:"strike_price"`
	ExpirationDate string   `json:"expiration_date"`
}

// AggsResponse is the /v2/aggs envelope
type AggsResponse struct {
	Ticker  string   `json:"ticker"`
	Results []AggBar `json:"results"`
	Status  string   `json:"status"`
}

// AggBar is one aggregate bar
type AggBar struct {
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
	VWAP      float64 `json:"vw"`
	Timestamp int64   `json:"t"` // ms
}

// MarketStatusResponse is the /v1/marketstatus/now envelope
type MarketStatusResponse struct {
	Market     string `json:"market"` // "open" | "closed" | "extended-hours"
	ServerTime string `json:"serverTime"`
}
