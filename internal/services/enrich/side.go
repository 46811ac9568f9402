package enrich

import (
	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/flow"
	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/options"
)

// ClassifySide places a print relative to the quote. The at-ask/at-bid
// bands are one tenth of the spread.
func ClassifySide(price, bid, ask float64) (flow.Side, flow.Aggressor) {
	if bid <= 0 || ask <= 0 {
		return flow.SideMid, flow.AggressorNeutral
	}

	mid := (bid + ask) / 2
	tau := 0.1 * (ask - bid)

	switch {
	case price > ask:
		return flow.SideAboveAsk, flow.AggressorBuyer
	case price >= ask-tau && price <= ask:
		return flow.SideAtAsk, flow.AggressorBuyer
	case price < bid:
		return flow.SideBelowBid, flow.AggressorSeller
	case price >= bid && price <= bid+tau:
		return flow.SideAtBid, flow.AggressorSeller
	case price > mid:
		return flow.SideToAsk, flow.AggressorBuyer
	case price < mid:
		return flow.SideToBid, flow.AggressorSeller
	default:
		return flow.SideMid, flow.AggressorNeutral
	}
}

// ClassifySentiment maps (kind, aggressor) to a directional read
func ClassifySentiment(kind options.Kind, aggressor flow.Aggressor) flow.Sentiment {
	switch aggressor {
	case flow.AggressorBuyer:
		if kind == options.KindCall {
			return flow.SentimentBull
		}
		return flow.SentimentBear
	case flow.AggressorSeller:
		if kind == options.KindCall {
			return flow.SentimentBear
		}
		return flow.SentimentBull
	default:
		return flow.SentimentNeutral
	}
}

// OTMPercent is ((strike-spot)/spot)*100 for calls, negated for puts
func OTMPercent(kind options.Kind, strike, spot float64) float64 {
	pct := (strike - spot) / spot * 100
	if kind == options.KindPut {
		pct = -pct
	}
	return pct
}

// ClassifyMoneyness labels an OTM percentage
func ClassifyMoneyness(otmPct float64) flow.Moneyness {
	switch {
	case otmPct > -0.5 && otmPct < 0.5:
		return flow.MoneynessATM
	case otmPct > 0:
		return flow.MoneynessOTM
	default:
		return flow.MoneynessITM
	}
}

// IsNearSpot reports whether the strike sits within 1% of spot; used for
// the ATM colour window, separate from the moneyness label
func IsNearSpot(strike, spot float64) bool {
	if spot <= 0 {
		return false
	}
	diff := strike - spot
	if diff < 0 {
		diff = -diff
	}
	return diff/spot < 0.01
}

// Direction returns the arrow and colour for (kind, aggressor)
func Direction(kind options.Kind, aggressor flow.Aggressor) (arrow, color string) {
	switch aggressor {
	case flow.AggressorBuyer:
		if kind == options.KindCall {
			return "up", "green"
		}
		return "down", "red"
	case flow.AggressorSeller:
		if kind == options.KindCall {
			return "down", "red"
		}
		return "up", "green"
	default:
		return "up", "gray"
	}
}
