package enrich

import (
	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/flow"
)

// ClassifyOpenClose hints whether activity opens or closes positions.
// prevOI of 0 means the previous day's open interest is unknown (the
// common case) and the volume/OI ratio heuristics apply.
func ClassifyOpenClose(volume, oi, prevOI int64) flow.OpenClose {
	if prevOI > 0 {
		if volume > prevOI {
			return flow.PositionOpening
		}
		if oi < prevOI && float64(volume) > 0.1*float64(oi) {
			return flow.PositionClosing
		}
		return ""
	}

	if oi <= 0 {
		if volume > 0 {
			return flow.PositionOpening
		}
		return ""
	}

	ratio := float64(volume) / float64(oi)
	if ratio >= 0.5 {
		return flow.PositionOpening
	}
	if volume >= 1000 && oi < 2*volume {
		return flow.PositionOpening
	}
	if ratio < 0.05 && oi >= 1000 && volume < 50 {
		return flow.PositionClosing
	}
	return ""
}
