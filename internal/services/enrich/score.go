package enrich

import (
	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/flow"
)

// High-probability gate thresholds
const (
	highProbMinScore   = 7.0
	highProbMinVolume  = 100
	highProbMinOI      = 100
	highProbMinPremium = 25000
)

// SetupScore starts at 5 and applies additive tier adjustments, clamped
// to [0, 10].
func SetupScore(volume, oi int64, premium float64, tradeType flow.TradeType, side flow.Side, dte int) float64 {
	score := 5.0

	switch {
	case volume >= 5000:
		score += 2
	case volume >= 1000:
		score += 1
	case volume < 10:
		score -= 3
	}

	switch {
	case oi < 10:
		score -= 3
	case oi < 100:
		score -= 1
	case oi >= 1000:
		score += 1
	}

	switch {
	case premium >= 1000000:
		score += 2
	case premium >= 100000:
		score += 1
	case premium < 10000:
		score -= 1
	}

	if tradeType == flow.TradeTypeSweep || tradeType == flow.TradeTypeBlock {
		score += 1
	}

	if side == flow.SideAboveAsk || side == flow.SideAtAsk {
		score += 1
	}

	if dte == 0 {
		score -= 1
	} else if dte >= 30 && dte <= 60 {
		score += 1
	}

	if score < 0 {
		score = 0
	} else if score > 10 {
		score = 10
	}
	return score
}

// IsHighProbability applies the canonical gate: score at least 7 plus
// minimum volume, open interest, and premium
func IsHighProbability(score float64, volume, oi int64, premium float64) bool {
	return score >= highProbMinScore &&
		volume >= highProbMinVolume &&
		oi >= highProbMinOI &&
		premium >= highProbMinPremium
}
