package massive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/options"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func parsedSPY(t *testing.T) options.Contract {
	t.Helper()
	c, err := options.ParseOCC("O:SPY251219C00650000")
	require.NoError(t, err)
	return c
}

func TestResolveKind_PrefersContractType(t *testing.T) {
	parsed := parsedSPY(t)

	s := &OptionSnapshot{Details: &ContractDetails{ContractType: "put"}}
	assert.Equal(t, options.KindPut, s.ResolveKind(parsed))

	// absent contract type falls back to the symbol
	s = &OptionSnapshot{}
	assert.Equal(t, options.KindCall, s.ResolveKind(parsed))
}

func TestResolveStrikeExpiry_PreferDetails(t *testing.T) {
	parsed := parsedSPY(t)

	s := &OptionSnapshot{Details: &ContractDetails{
		StrikePrice:    f64(655),
		ExpirationDate: "2026-01-16",
	}}

	assert.Equal(t, 655.0, s.ResolveStrike(parsed))
	assert.Equal(t, 2026, s.ResolveExpiry(parsed).Year())

	s = &OptionSnapshot{}
	assert.Equal(t, 650.0, s.ResolveStrike(parsed))
	assert.True(t, parsed.Expiration.Equal(s.ResolveExpiry(parsed)))
}

func TestResolveUnderlying_Order(t *testing.T) {
	parsed := parsedSPY(t)

	s := &OptionSnapshot{UnderlyingAsset: &UnderlyingAsset{Ticker: "spy"}}
	assert.Equal(t, "SPY", s.ResolveUnderlying("QQQ", parsed))

	s = &OptionSnapshot{}
	assert.Equal(t, "QQQ", s.ResolveUnderlying("qqq", parsed))
	assert.Equal(t, "SPY", s.ResolveUnderlying("", parsed))
}

func TestResolveVolume_Order(t *testing.T) {
	tests := []struct {
		name string
		snap OptionSnapshot
		want int64
	}{
		{"day.volume wins", OptionSnapshot{
			Day:     &DayStats{Volume: i64(500)},
			Volume:  i64(400),
			Details: &ContractDetails{Volume: i64(300)},
		}, 500},
		{"top-level volume", OptionSnapshot{
			Volume:  i64(400),
			Details: &ContractDetails{Volume: i64(300)},
		}, 400},
		{"details.day.volume", OptionSnapshot{
			Details: &ContractDetails{Day: &DayStats{Volume: i64(200)}, Volume: i64(300)},
		}, 200},
		{"details.volume", OptionSnapshot{
			Details: &ContractDetails{Volume: i64(300)},
		}, 300},
		{"all absent", OptionSnapshot{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.snap.ResolveVolume())
		})
	}
}

func TestResolveOpenInterest_Order(t *testing.T) {
	s := OptionSnapshot{
		OpenInterest: i64(1000),
		Day:          &DayStats{OpenInterest: i64(900)},
	}
	assert.Equal(t, int64(1000), s.ResolveOpenInterest())

	s = OptionSnapshot{Day: &DayStats{OpenInterest: i64(900)}}
	assert.Equal(t, int64(900), s.ResolveOpenInterest())

	s = OptionSnapshot{Details: &ContractDetails{Day: &DayStats{OpenInterest: i64(800)}}}
	assert.Equal(t, int64(800), s.ResolveOpenInterest())

	assert.Equal(t, int64(0), (&OptionSnapshot{}).ResolveOpenInterest())
}

func TestResolvePrice_Order(t *testing.T) {
	s := OptionSnapshot{
		LastTrade: &LastTrade{Price: f64(1.25)},
		LastQuote: &LastQuote{Midpoint: f64(1.30)},
		Mark:      f64(1.35),
	}
	p, ok := s.ResolvePrice()
	require.True(t, ok)
	assert.Equal(t, 1.25, p)

	s = OptionSnapshot{LastQuote: &LastQuote{Midpoint: f64(1.30)}}
	p, ok = s.ResolvePrice()
	require.True(t, ok)
	assert.Equal(t, 1.30, p)

	s = OptionSnapshot{Mark: f64(1.35)}
	p, ok = s.ResolvePrice()
	require.True(t, ok)
	assert.Equal(t, 1.35, p)

	s = OptionSnapshot{LastQuote: &LastQuote{Bid: f64(1.00), Ask: f64(1.20)}}
	p, ok = s.ResolvePrice()
	require.True(t, ok)
	assert.InDelta(t, 1.10, p, 1e-9)

	// zero or negative price resolves false
	s = OptionSnapshot{LastTrade: &LastTrade{Price: f64(0)}}
	_, ok = s.ResolvePrice()
	assert.False(t, ok)
}

func TestResolveIV_Aliases(t *testing.T) {
	s := OptionSnapshot{Greeks: &Greeks{MidIV: f64(0.42), IV: f64(0.50)}}
	iv, ok := s.ResolveIV()
	require.True(t, ok)
	assert.Equal(t, 0.42, iv)

	s = OptionSnapshot{ImpliedVolatility: f64(0.33)}
	iv, ok = s.ResolveIV()
	require.True(t, ok)
	assert.Equal(t, 0.33, iv)

	_, ok = (&OptionSnapshot{}).ResolveIV()
	assert.False(t, ok)
}

func TestResolveGamma_NoIVFallback(t *testing.T) {
	_, ok := (&OptionSnapshot{ImpliedVolatility: f64(0.4)}).ResolveGamma()
	assert.False(t, ok)

	g, ok := (&OptionSnapshot{Greeks: &Greeks{Gamma: f64(0.02)}}).ResolveGamma()
	require.True(t, ok)
	assert.Equal(t, 0.02, g)
}

func TestTradeTick_EventTime(t *testing.T) {
	tick := TradeTick{Timestamp: 1766188800000}
	assert.Equal(t, time.UnixMilli(1766188800000).UTC(), tick.EventTime())
}
