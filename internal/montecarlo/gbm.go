package montecarlo

import (
	"math"

	"golang.org/x/exp/rand"
)

// GBM is geometric Brownian motion dS = r S dt + sigma S dW, stepped with
// the exact lognormal update
//
//	S_t = S_{t-1} * exp((r - sigma^2/2) dt + sigma sqrt(dt) Z)
//
// which has no discretisation bias.
type GBM struct{}

func (GBM) Name() string { return "gbm" }

// Validate has nothing beyond the common parameter checks.
func (GBM) Validate(Params) error { return nil }

func (GBM) SimulatePath(p Params, rng *rand.Rand, dst []float64) {
	dt := p.Dt()
	drift := (p.Rate - 0.5*p.Volatility*p.Volatility) * dt
	diffusion := p.Volatility * math.Sqrt(dt)

	dst[0] = p.Spot
	for t := 1; t < len(dst); t++ {
		dst[t] = dst[t-1] * math.Exp(drift+diffusion*rng.NormFloat64())
	}
}
