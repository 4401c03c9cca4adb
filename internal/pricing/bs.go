// Package pricing holds closed-form Black-Scholes results used as the
// reference for Monte Carlo output and for backing volatility out of
// market quotes.
package pricing

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrNoConvergence is returned when the implied volatility search fails.
var ErrNoConvergence = errors.New("implied vol did not converge")

// TradingDays annualises daily statistics.
const TradingDays = 252.0

func d1d2(S, K, T, r, sigma float64) (float64, float64) {
	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	return d1, d1 - sigma*sqrtT
}

// BlackScholesPrice calculates the price of a European option using the Black-Scholes model.
//
// Parameters:
//   - isCall: true for call option, false for put option
//   - S: spot price of the underlying asset
//   - K: strike price of the option
//   - T: time to expiry in years
//   - r: risk-free interest rate (annual, continuously compounded)
//   - sigma: volatility of the underlying asset (annual, as a decimal)
//
// Returns:
//
//	The theoretical price. With T <= 0 it is the intrinsic value; with
//	sigma <= 0 it is the discounted forward intrinsic value.
func BlackScholesPrice(isCall bool, S, K, T, r, sigma float64) float64 {
	if T <= 0 {
		return intrinsic(isCall, S, K)
	}
	disc := math.Exp(-r * T)
	if sigma <= 0 {
		return intrinsic(isCall, S, K*disc)
	}

	d1, d2 := d1d2(S, K, T, r, sigma)
	if isCall {
		return S*normCDF(d1) - K*disc*normCDF(d2)
	}
	return K*disc*normCDF(-d2) - S*normCDF(-d1)
}

// BlackScholesDelta is dPrice/dS: N(d1) for calls, N(d1)-1 for puts.
func BlackScholesDelta(isCall bool, S, K, T, r, sigma float64) float64 {
	if T <= 0 || sigma <= 0 {
		fwdK := K * math.Exp(-r*math.Max(T, 0))
		switch {
		case isCall && S > fwdK:
			return 1
		case !isCall && S < fwdK:
			return -1
		}
		return 0
	}
	d1, _ := d1d2(S, K, T, r, sigma)
	if isCall {
		return normCDF(d1)
	}
	return normCDF(d1) - 1
}

// BlackScholesGamma is d2Price/dS2, identical for calls and puts.
func BlackScholesGamma(S, K, T, r, sigma float64) float64 {
	if T <= 0 || sigma <= 0 {
		return 0
	}
	d1, _ := d1d2(S, K, T, r, sigma)
	return normPDF(d1) / (S * sigma * math.Sqrt(T))
}

// BlackScholesVega is dPrice/dsigma (per unit of volatility).
// Returns 0 if T or sigma is non-positive.
func BlackScholesVega(S, K, T, r, sigma float64) float64 {
	if T <= 0 || sigma <= 0 {
		return 0
	}
	d1, _ := d1d2(S, K, T, r, sigma)
	return S * normPDF(d1) * math.Sqrt(T)
}

// ImpliedVol solves BlackScholesPrice(sigma) = price with Newton-Raphson,
// starting at 20% and clamping the iterate to [1e-4, 5].
func ImpliedVol(isCall bool, S, K, T, r, price float64) (float64, error) {
	if T <= 0 {
		return 0, fmt.Errorf("invalid expiry")
	}
	if price <= 0 || math.IsNaN(price) {
		return 0, fmt.Errorf("invalid option price %v", price)
	}

	sigma := 0.20

	const (
		maxIter = 100
		tol     = 1e-6
	)

	for i := 0; i < maxIter; i++ {
		diff := BlackScholesPrice(isCall, S, K, T, r, sigma) - price
		if math.Abs(diff) < tol {
			return sigma, nil
		}

		vega := BlackScholesVega(S, K, T, r, sigma)
		if vega < 1e-8 {
			break
		}

		sigma -= diff / vega

		// Guardrails
		if sigma <= 0 {
			sigma = 1e-4
		}
		if sigma > 5 {
			sigma = 5
		}
	}

	return 0, ErrNoConvergence
}

// ImpliedVolATM averages the call and put implied volatilities at the
// strike closest to spot. If only one side converges it is used alone.
func ImpliedVolATM(S, K, T, r, callPrice, putPrice float64) (float64, error) {
	callIV, callErr := ImpliedVol(true, S, K, T, r, callPrice)
	putIV, putErr := ImpliedVol(false, S, K, T, r, putPrice)

	switch {
	case callErr == nil && putErr == nil:
		return (callIV + putIV) / 2, nil
	case callErr == nil:
		return callIV, nil
	case putErr == nil:
		return putIV, nil
	}
	return 0, fmt.Errorf("atm implied vol: call: %v, put: %w", callErr, putErr)
}

// StrikeFromDelta inverts the Black-Scholes delta: it returns the strike
// whose call (or put) delta equals target. target may be given as a
// fraction (0.3) or in delta points (30); its sign is ignored.
func StrikeFromDelta(isCall bool, S, T, r, sigma, target float64) (float64, error) {
	target = math.Abs(target)
	if target > 1 {
		target /= 100
	}
	if target <= 0 || target >= 1 || sigma <= 0 || T <= 0 {
		return 0, fmt.Errorf("strike from delta: target=%v sigma=%v T=%v out of range", target, sigma, T)
	}
	nd1 := target
	if !isCall {
		nd1 = 1 - target
	}
	d1 := distuv.UnitNormal.Quantile(nd1)
	sqrtT := math.Sqrt(T)
	return S * math.Exp(-d1*sigma*sqrtT+(r+0.5*sigma*sigma)*T), nil
}

// HistoricalVolatility annualises the sample standard deviation of daily
// log returns. Fewer than two usable closes give the 30% fallback.
func HistoricalVolatility(closes []float64) float64 {
	rets := make([]float64, 0, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i] <= 0 || closes[i-1] <= 0 {
			continue
		}
		rets = append(rets, math.Log(closes[i]/closes[i-1]))
	}
	if len(rets) < 2 {
		return 0.30
	}
	return stat.StdDev(rets, nil) * math.Sqrt(TradingDays)
}

func intrinsic(isCall bool, S, K float64) float64 {
	if isCall {
		return math.Max(0, S-K)
	}
	return math.Max(0, K-S)
}

func normPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}
