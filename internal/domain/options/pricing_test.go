package options

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
)

func TestNormCDF(t *testing.T) {
	assert.InDelta(t, 0.5, NormCDF(0), 1e-6)
	assert.InDelta(t, 0.8413, NormCDF(1), 1e-4)
	assert.InDelta(t, 0.9750, NormCDF(1.96), 1e-4)
	assert.InDelta(t, 0.0250, NormCDF(-1.96), 1e-4)
	assert.InDelta(t, 1.0, NormCDF(8), 1e-6)
}

func TestPrice_PutCallParity(t *testing.T) {
	spot, strike, tt, sigma := 100.0, 105.0, 0.5, 0.25

	call := Price(KindCall, spot, strike, tt, sigma)
	put := Price(KindPut, spot, strike, tt, sigma)

	// C - P = S - K·e^{-rT}
	parity := spot - strike*math.Exp(-RiskFreeRate*tt)
	assert.InDelta(t, parity, call-put, 1e-6)
}

func TestPrice_Intrinsic(t *testing.T) {
	// expired or zero-vol collapses to intrinsic
	assert.Equal(t, 10.0, Price(KindCall, 110, 100, 0, 0.2))
	assert.Equal(t, 0.0, Price(KindCall, 90, 100, 0, 0.2))
	assert.Equal(t, 10.0, Price(KindPut, 90, 100, 0.1, 0))
}

func TestGreeks_Sanity(t *testing.T) {
	spot, strike, tt, sigma := 500.0, 500.0, 30/DaysPerYear, 0.3

	callDelta := Delta(KindCall, spot, strike, tt, sigma)
	putDelta := Delta(KindPut, spot, strike, tt, sigma)

	assert.Greater(t, callDelta, 0.0)
	assert.Less(t, callDelta, 1.0)
	assert.InDelta(t, callDelta-1, putDelta, 1e-9)

	assert.Greater(t, Gamma(spot, strike, tt, sigma), 0.0)
	assert.Greater(t, Vega(spot, strike, tt, sigma), 0.0)
}

func TestImpliedVolatility_RecoversSigma(t *testing.T) {
	spot, strike := 100.0, 100.0
	tt := YearFraction(45)

	// ATM keeps vega healthy over the whole grid
	for _, sigma := range []float64{0.05, 0.10, 0.30, 0.50, 1.0, 2.0, 3.0} {
		for _, kind := range []Kind{KindCall, KindPut} {
			price := Price(kind, spot, strike, tt, sigma)

			got, err := ImpliedVolatility(kind, price, spot, strike, tt)
			require.NoError(t, err, "kind=%s sigma=%v", kind, sigma)
			assert.InDelta(t, sigma, got, 1e-3, "kind=%s sigma=%v", kind, sigma)
		}
	}
}

func TestImpliedVolatility_OTM(t *testing.T) {
	tt := YearFraction(45)

	price := Price(KindCall, 100, 110, tt, 0.35)
	got, err := ImpliedVolatility(KindCall, price, 100, 110, tt)
	require.NoError(t, err)
	assert.InDelta(t, 0.35, got, 1e-3)
}

func TestImpliedVolatility_InvalidInputs(t *testing.T) {
	tests := []struct {
		name                    string
		price, spot, strike, tt float64
	}{
		{"zero price", 0, 100, 100, 0.5},
		{"negative price", -1, 100, 100, 0.5},
		{"zero spot", 5, 0, 100, 0.5},
		{"zero strike", 5, 100, 0, 0.5},
		{"expired", 5, 100, 100, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ImpliedVolatility(KindCall, tc.price, tc.spot, tc.strike, tc.tt)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrNotAvailable))
		})
	}
}

func TestImpliedVolatility_VegaUnderflow(t *testing.T) {
	// deep OTM with near-zero time: vega vanishes before convergence
	_, err := ImpliedVolatility(KindCall, 0.01, 10, 1000, 1/DaysPerYear)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotAvailable))
}

func TestFormatIV(t *testing.T) {
	assert.Equal(t, "35.00%", FormatIV(0.35))
	assert.Equal(t, "100.00%", FormatIV(1.0))
	// >1 treated as already-percent
	assert.Equal(t, "35.00%", FormatIV(35))
	assert.Equal(t, "7.50%", FormatIV(0.075))
}
