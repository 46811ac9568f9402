package enrich

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/flow"
)

const testContract = "O:SPY251219C00650000"

func TestClassify_BlockFirst(t *testing.T) {
	d := NewSweepDetector()
	got := d.Classify(testContract, 1, time.Now(), 150, 60000)
	assert.Equal(t, flow.TradeTypeBlock, got)
}

func TestClassify_CrossExchangeSweep(t *testing.T) {
	d := NewSweepDetector()
	t0 := time.Now()

	// exchange A at t=0: nothing in the ring yet
	first := d.Classify(testContract, 1, t0, 30, 12000)
	assert.Equal(t, flow.TradeTypeSplit, first)

	// exchange B 300ms later: prior tick on a different exchange in window
	second := d.Classify(testContract, 2, t0.Add(300*time.Millisecond), 30, 12000)
	assert.Equal(t, flow.TradeTypeSweep, second)
}

func TestClassify_SameExchangeNotSweep(t *testing.T) {
	d := NewSweepDetector()
	t0 := time.Now()

	d.Classify(testContract, 1, t0, 30, 12000)
	got := d.Classify(testContract, 1, t0.Add(300*time.Millisecond), 30, 12000)
	assert.Equal(t, flow.TradeTypeSplit, got)
}

func TestClassify_OutsideWindowNotSweep(t *testing.T) {
	d := NewSweepDetector()
	t0 := time.Now()

	d.Classify(testContract, 1, t0, 30, 12000)
	got := d.Classify(testContract, 2, t0.Add(700*time.Millisecond), 30, 12000)
	assert.Equal(t, flow.TradeTypeSplit, got)
}

func TestClassify_DifferentContractsIsolated(t *testing.T) {
	d := NewSweepDetector()
	t0 := time.Now()

	d.Classify("O:SPY251219C00650000", 1, t0, 30, 12000)
	got := d.Classify("O:QQQ251219C00480000", 2, t0.Add(100*time.Millisecond), 30, 12000)
	assert.Equal(t, flow.TradeTypeSplit, got)
}

func TestRing_TrimsToTen(t *testing.T) {
	d := NewSweepDetector()
	t0 := time.Now()

	for i := 0; i < 15; i++ {
		d.Classify(testContract, 1, t0.Add(time.Duration(i)*time.Second), 1, 100)
	}

	s := d.shard(testContract)
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Len(t, s.rings[testContract], 10)
}

func TestHeuristic_NoExchangeInfo(t *testing.T) {
	tests := []struct {
		name    string
		size    int64
		premium float64
		want    flow.TradeType
	}{
		{"mid sweep", 60, 30000, flow.TradeTypeSweep}, // falls through to the 25/10K clause
		{"large block by size", 250, 5000, flow.TradeTypeBlock},
		{"large block by premium", 10, 150000, flow.TradeTypeBlock},
		{"small sweep", 30, 12000, flow.TradeTypeSweep},
		{"split", 5, 500, flow.TradeTypeSplit},
	}

	d := NewSweepDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Classify(testContract, 0, time.Time{}, tt.size, tt.premium)
			assert.Equal(t, tt.want, got)
		})
	}
}
