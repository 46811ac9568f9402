package gex

import (
	"math"
	"sort"
)

const (
	// snapDistance is how far a grid row may sit from a real strike and
	// still take its value
	snapDistance = 0.50

	// grid steps: fine for lower-priced underlyings, coarse above
	gridStepFine   = 2.50
	gridStepCoarse = 5.00
	fineSpotMax    = 250.0

	// grid coverage relative to spot
	gridLowFactor  = 0.2
	gridHighFactor = 2.0
)

// buildHeatmap lays per-expiration net exposure onto a regular strike
// grid around spot. Expirations run ascending, strikes descending.
func buildHeatmap(expirations []ExpirationGEX, spot float64) *Heatmap {
	if len(expirations) == 0 || spot <= 0 {
		return nil
	}

	step := gridStepCoarse
	if spot <= fineSpotMax {
		step = gridStepFine
	}

	lo := math.Ceil(gridLowFactor * spot / step) * step
	hi := gridHighFactor * spot
	if lo <= 0 {
		lo = step
	}

	var strikes []float64
	for k := hi; k >= lo; k -= step {
		strikes = append(strikes, math.Round(k/step)*step)
	}

	hm := &Heatmap{
		Expirations: make([]string, 0, len(expirations)),
		Strikes:     strikes,
		Cells:       make([][]*float64, len(strikes)),
		FlowDelta:   make([]float64, len(strikes)),
	}
	for _, exp := range expirations {
		hm.Expirations = append(hm.Expirations, exp.Expiration)
	}

	// per expiration: sorted real strikes for nearest lookup
	type column struct {
		strikes []float64
		net     map[float64]float64
	}
	cols := make([]column, len(expirations))
	for i, exp := range expirations {
		col := column{net: make(map[float64]float64, len(exp.Strikes))}
		for _, s := range exp.Strikes {
			col.strikes = append(col.strikes, s.Strike)
			col.net[s.Strike] += s.NetGEX
		}
		sort.Float64s(col.strikes)
		cols[i] = col
	}

	for row, k := range strikes {
		cells := make([]*float64, len(cols))
		for colIdx, col := range cols {
			if nearest, ok := nearestWithin(col.strikes, k, snapDistance); ok {
				v := col.net[nearest]
				cells[colIdx] = &v
			}
		}
		hm.Cells[row] = cells
		hm.FlowDelta[row] = flowDelta(cells)
	}
	return hm
}

// flowDelta is last non-null minus first non-null across the expiration
// axis; rows with at most one populated cell read zero
func flowDelta(cells []*float64) float64 {
	var first, last *float64
	for _, c := range cells {
		if c == nil {
			continue
		}
		if first == nil {
			first = c
		}
		last = c
	}
	if first == nil || first == last {
		return 0
	}
	return *last - *first
}

// nearestWithin finds the closest value in a sorted slice no farther
// than maxDist from target
func nearestWithin(sorted []float64, target, maxDist float64) (float64, bool) {
	if len(sorted) == 0 {
		return 0, false
	}

	i := sort.SearchFloat64s(sorted, target)
	best, found := 0.0, false
	bestDist := maxDist

	if i < len(sorted) {
		if d := math.Abs(sorted[i] - target); d <= bestDist {
			best, bestDist, found = sorted[i], d, true
		}
	}
	if i > 0 {
		if d := math.Abs(sorted[i-1] - target); d < bestDist || (!found && d <= bestDist) {
			best, found = sorted[i-1], true
		}
	}
	return best, found
}
