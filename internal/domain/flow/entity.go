package flow

import (
	"time"

	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/options"
)

// Side is where the trade printed relative to the quote
type Side string

const (
	SideAboveAsk Side = "Above Ask"
	SideAtAsk    Side = "At Ask"
	SideToAsk    Side = "To Ask"
	SideMid      Side = "Mid"
	SideToBid    Side = "To Bid"
	SideAtBid    Side = "At Bid"
	SideBelowBid Side = "Below Bid"
)

// Aggressor identifies the initiating party
type Aggressor string

const (
	AggressorBuyer   Aggressor = "buyer"
	AggressorSeller  Aggressor = "seller"
	AggressorNeutral Aggressor = "neutral"
)

// Sentiment is the directional read of (kind, aggressor)
type Sentiment string

const (
	SentimentBull    Sentiment = "BULL"
	SentimentBear    Sentiment = "BEAR"
	SentimentNeutral Sentiment = "NEUTRAL"
)

// TradeType classifies the execution pattern
type TradeType string

const (
	TradeTypeSweep TradeType = "Sweep"
	TradeTypeBlock TradeType = "Block"
	TradeTypeSplit TradeType = "Split"
)

// Moneyness relative to spot
type Moneyness string

const (
	MoneynessITM Moneyness = "ITM"
	MoneynessATM Moneyness = "ATM"
	MoneynessOTM Moneyness = "OTM"
)

// OpenClose is the opening/closing position hint; empty when undetermined
type OpenClose string

const (
	PositionOpening OpenClose = "Opening"
	PositionClosing OpenClose = "Closing"
)

// Flow is one enriched trade/contract observation. Immutable after the
// Enricher emits it; the store owns inserted records.
type Flow struct {
	ID       string `json:"id"`       // contract id + sequence
	Sequence uint64 `json:"sequence"` // per-process monotonic

	ContractID string       `json:"contractId"` // OCC symbol
	Ticker     string       `json:"ticker"`     // underlying
	Kind       options.Kind `json:"type"`
	Strike     float64      `json:"strike"`
	Expiry     string       `json:"expiry"` // YYYY-MM-DD
	DTE        int          `json:"dte"`

	Timestamp time.Time `json:"timestamp"` // event-time, UTC

	Price         float64 `json:"price"`
	Size          int64   `json:"size"` // effective size, contracts
	Premium       float64 `json:"premium"`
	Volume        int64   `json:"volume"`
	OpenInterest  int64   `json:"openInterest"`
	Bid           float64 `json:"bid"`
	Ask           float64 `json:"ask"`
	IV            string  `json:"iv,omitempty"` // percent string, "" when unavailable
	Spot          float64 `json:"spotPrice,omitempty"`
	SpotAvailable bool    `json:"-"`

	OTMPercent float64   `json:"otmPercent"`
	Moneyness  Moneyness `json:"moneyness"`

	Side      Side      `json:"side"`
	Aggressor Aggressor `json:"aggressor"`
	Sentiment Sentiment `json:"sentiment"`
	TradeType TradeType `json:"tradeType"`

	Direction      string    `json:"direction"` // "up" | "down"
	DirectionColor string    `json:"directionColor"`
	OpenClose      OpenClose `json:"openClose,omitempty"`

	Score             float64 `json:"score"`
	IsHighProbability bool    `json:"isHighProbability"`

	Exchange int `json:"exchange,omitempty"` // vendor exchange id, 0 when unknown
}
