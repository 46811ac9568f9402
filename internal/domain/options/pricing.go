package options

import (
	"fmt"
	"math"

	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
)

// Black-Scholes pricing for European options on a non-dividend underlying.

const (
	// RiskFreeRate is the process-wide risk-free rate assumption
	RiskFreeRate = 0.045

	// DaysPerYear converts DTE to a year fraction
	DaysPerYear = 365.25

	ivInitialGuess  = 0.30
	ivMaxIterations = 100
	ivPriceEpsilon  = 1e-4
	ivVegaEpsilon   = 1e-4
	ivSigmaMin      = 0.01
	ivSigmaMax      = 5.0
)

// NormCDF is the standard normal CDF via the Abramowitz & Stegun
// 5-term polynomial approximation.
func NormCDF(x float64) float64 {
	if x < 0 {
		return 1 - NormCDF(-x)
	}

	const (
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
		p  = 0.3275911
	)

	t := 1.0 / (1.0 + p*x/math.Sqrt2)
	poly := t * (a1 + t*(a2+t*(a3+t*(a4+t*a5))))
	return 1 - 0.5*poly*math.Exp(-x*x/2)
}

// NormPDF is the standard normal density
func NormPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

func d1d2(spot, strike, t, sigma float64) (float64, float64) {
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(spot/strike) + (RiskFreeRate+sigma*sigma/2)*t) / (sigma * sqrtT)
	return d1, d1 - sigma*sqrtT
}

// Price returns the Black-Scholes price. t is the year fraction to expiry.
// Degenerate inputs (t<=0 or sigma<=0) collapse to intrinsic value.
func Price(kind Kind, spot, strike, t, sigma float64) float64 {
	if spot <= 0 || strike <= 0 {
		return 0
	}
	if t <= 0 || sigma <= 0 {
		if kind == KindCall {
			return math.Max(0, spot-strike)
		}
		return math.Max(0, strike-spot)
	}

	d1, d2 := d1d2(spot, strike, t, sigma)
	discount := math.Exp(-RiskFreeRate * t)

	if kind == KindCall {
		return spot*NormCDF(d1) - strike*discount*NormCDF(d2)
	}
	return strike*discount*NormCDF(-d2) - spot*NormCDF(-d1)
}

// Delta returns dPrice/dSpot
func Delta(kind Kind, spot, strike, t, sigma float64) float64 {
	if spot <= 0 || strike <= 0 || t <= 0 || sigma <= 0 {
		return 0
	}
	d1, _ := d1d2(spot, strike, t, sigma)
	if kind == KindCall {
		return NormCDF(d1)
	}
	return NormCDF(d1) - 1
}

// Gamma returns d²Price/dSpot², identical for calls and puts
func Gamma(spot, strike, t, sigma float64) float64 {
	if spot <= 0 || strike <= 0 || t <= 0 || sigma <= 0 {
		return 0
	}
	d1, _ := d1d2(spot, strike, t, sigma)
	return NormPDF(d1) / (spot * sigma * math.Sqrt(t))
}

// Vega returns dPrice/dSigma (per 1.0 of vol, not per percentage point)
func Vega(spot, strike, t, sigma float64) float64 {
	if spot <= 0 || strike <= 0 || t <= 0 || sigma <= 0 {
		return 0
	}
	d1, _ := d1d2(spot, strike, t, sigma)
	return spot * NormPDF(d1) * math.Sqrt(t)
}

// YearFraction converts days-to-expiration into the t used by the model
func YearFraction(dte int) float64 {
	return float64(dte) / DaysPerYear
}

// ImpliedVolatility inverts Black-Scholes via Newton-Raphson.
// Returns ErrNotAvailable when the search fails to converge, vega
// underflows, or inputs make the inversion meaningless.
func ImpliedVolatility(kind Kind, marketPrice, spot, strike, t float64) (float64, error) {
	if marketPrice <= 0 || spot <= 0 || strike <= 0 || t <= 0 {
		return 0, errors.Wrap(errors.ErrNotAvailable, "implied volatility inputs invalid")
	}

	sigma := ivInitialGuess
	for i := 0; i < ivMaxIterations; i++ {
		price := Price(kind, spot, strike, t, sigma)
		diff := marketPrice - price
		if math.Abs(diff) < ivPriceEpsilon {
			if sigma <= 0 || sigma >= ivSigmaMax || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
				return 0, errors.Wrap(errors.ErrNotAvailable, "implied volatility out of range")
			}
			return sigma, nil
		}

		vega := Vega(spot, strike, t, sigma)
		if vega < ivVegaEpsilon {
			return 0, errors.Wrap(errors.ErrNotAvailable, "vega underflow")
		}

		sigma += diff / vega
		if sigma < ivSigmaMin {
			sigma = ivSigmaMin
		} else if sigma > ivSigmaMax {
			sigma = ivSigmaMax
		}
	}

	return 0, errors.Wrap(errors.ErrNotAvailable, "implied volatility did not converge")
}

// FormatIV renders a volatility as a percent string with two decimals.
// Values above 1 are treated as already-percent and normalised down.
func FormatIV(sigma float64) string {
	if sigma > 1 {
		sigma /= 100
	}
	return fmt.Sprintf("%.2f%%", sigma*100)
}
