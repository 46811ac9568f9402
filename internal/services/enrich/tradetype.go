package enrich

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/flow"
)

const (
	sweepWindow   = 500 * time.Millisecond
	sweepRingSize = 10
	sweepShards   = 16

	blockMinSize    = 100
	blockMinPremium = 50000
)

type ringEntry struct {
	exchange int
	ts       time.Time
}

type ringShard struct {
	mu    sync.Mutex
	rings map[string][]ringEntry
}

// SweepDetector keeps a short per-contract ring of recent (exchange, time)
// pairs. Sharded by contract id hash: the enricher runs from both the
// stream and the backfill path.
type SweepDetector struct {
	shards [sweepShards]*ringShard
}

// NewSweepDetector creates an empty detector
func NewSweepDetector() *SweepDetector {
	d := &SweepDetector{}
	for i := range d.shards {
		d.shards[i] = &ringShard{rings: make(map[string][]ringEntry)}
	}
	return d
}

func (d *SweepDetector) shard(contractID string) *ringShard {
	h := fnv.New32a()
	h.Write([]byte(contractID))
	return d.shards[h.Sum32()%sweepShards]
}

// observe records a tick and reports whether any prior tick within the
// window printed on a different exchange
func (d *SweepDetector) observe(contractID string, exchange int, ts time.Time) bool {
	s := d.shard(contractID)

	s.mu.Lock()
	defer s.mu.Unlock()

	ring := s.rings[contractID]
	sweep := false
	for _, e := range ring {
		if e.exchange != exchange && ts.Sub(e.ts) >= 0 && ts.Sub(e.ts) <= sweepWindow {
			sweep = true
			break
		}
	}

	ring = append(ring, ringEntry{exchange: exchange, ts: ts})
	if len(ring) > sweepRingSize {
		ring = ring[len(ring)-sweepRingSize:]
	}
	s.rings[contractID] = ring

	return sweep
}

// Classify determines the trade type. Test order: block threshold, the
// cross-exchange ring (when exchange/time is known), then the size/premium
// heuristic for exchange-less records, else split.
func (d *SweepDetector) Classify(contractID string, exchange int, ts time.Time, size int64, premium float64) flow.TradeType {
	if size >= blockMinSize && premium >= blockMinPremium {
		return flow.TradeTypeBlock
	}

	if exchange > 0 && !ts.IsZero() {
		if d.observe(contractID, exchange, ts) {
			return flow.TradeTypeSweep
		}
		return flow.TradeTypeSplit
	}

	return heuristicType(size, premium)
}

// heuristicType approximates the classification when no exchange/time is
// available (REST snapshots without a last trade)
func heuristicType(size int64, premium float64) flow.TradeType {
	if size >= 50 && premium >= 25000 && (size >= 100 || premium >= 50000) {
		return flow.TradeTypeSweep
	}
	if size >= 200 || premium >= 100000 {
		return flow.TradeTypeBlock
	}
	if size >= 25 && premium >= 10000 {
		return flow.TradeTypeSweep
	}
	return flow.TradeTypeSplit
}
