package scanner

import (
	"math"

	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/options"
)

// TradePlan is the suggested entry, stop, and targets for an alert
type TradePlan struct {
	Entry       float64 `json:"entry"`
	StopLoss    float64 `json:"stopLoss"`
	StopLossPct float64 `json:"stopLossPct"`
	Target1     float64 `json:"target1"`
	Target2     float64 `json:"target2"`
}

// stop-loss percent tiers by setup score
const (
	stopTight   = 20.0
	stopMedium  = 25.0
	stopWide    = 30.0
	stopPinned  = -5.0 // adjustment when pinned at a gamma level
	stopAgainst = 5.0  // adjustment when positioned against the level
)

// buildTradePlan derives a plan from the contract's price, its position
// relative to the gamma reference, and the setup score
func buildTradePlan(kind options.Kind, price float64, position string, score float64) TradePlan {
	stopPct := stopWide
	switch {
	case score >= 8:
		stopPct = stopTight
	case score >= 6:
		stopPct = stopMedium
	}

	// pinned strikes mean-revert, so the stop tightens; a call below the
	// level or a put above it fights the dealers, so it widens
	if position == "at" {
		stopPct += stopPinned
	}
	if (kind == options.KindCall && position == "below") ||
		(kind == options.KindPut && position == "above") {
		stopPct += stopAgainst
	}

	var t1Pct, t2Pct float64
	switch {
	case score >= 8:
		t1Pct, t2Pct = 25, 50
	case score >= 6:
		t1Pct, t2Pct = 15, 30
	default:
		t1Pct, t2Pct = 10, 20
	}

	return TradePlan{
		Entry:       price,
		StopLoss:    round2(price * (1 - stopPct/100)),
		StopLossPct: stopPct,
		Target1:     round2(price * (1 + t1Pct/100)),
		Target2:     round2(price * (1 + t2Pct/100)),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
