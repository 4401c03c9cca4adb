package montecarlo

import (
	"math"

	"golang.org/x/exp/rand"
)

// Heston is the stochastic volatility model
//
//	dS = r S dt + sqrt(v) S dW1
//	dv = Kappa (Theta - v) dt + Xi sqrt(v) dW2,  d<W1,W2> = Rho dt
//
// The price uses a log-Euler step and the variance a full-truncation Euler
// step, so v may dip below zero between steps but only max(v,0) is used.
// V0 == 0 starts the variance at Params.Volatility^2.
type Heston struct {
	V0    float64 `json:"v0" mapstructure:"v0"`
	Kappa float64 `json:"kappa" mapstructure:"kappa"`
	Theta float64 `json:"theta" mapstructure:"theta"`
	Xi    float64 `json:"xi" mapstructure:"xi"`
	Rho   float64 `json:"rho" mapstructure:"rho"`
}

func (Heston) Name() string { return "heston" }

func (h Heston) Validate(Params) error {
	fields := []struct {
		name string
		v    float64
	}{
		{"heston.v0", h.V0},
		{"heston.kappa", h.Kappa},
		{"heston.theta", h.Theta},
		{"heston.xi", h.Xi},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return invalidParam(f.name, f.v, "must be a finite number >= 0")
		}
	}
	if math.IsNaN(h.Rho) || h.Rho < -1 || h.Rho > 1 {
		return invalidParam("heston.rho", h.Rho, "must be in [-1, 1]")
	}
	return nil
}

func (h Heston) SimulatePath(p Params, rng *rand.Rand, dst []float64) {
	dt := p.Dt()
	sqrtDt := math.Sqrt(dt)
	rhoBar := math.Sqrt(1 - h.Rho*h.Rho)

	v := h.V0
	if v == 0 {
		v = p.Volatility * p.Volatility
	}

	dst[0] = p.Spot
	for t := 1; t < len(dst); t++ {
		z1 := rng.NormFloat64()
		z2 := h.Rho*z1 + rhoBar*rng.NormFloat64()

		vp := math.Max(v, 0)
		sv := math.Sqrt(vp)
		dst[t] = dst[t-1] * math.Exp((p.Rate-0.5*vp)*dt+sv*sqrtDt*z1)
		v += h.Kappa*(h.Theta-vp)*dt + h.Xi*sv*sqrtDt*z2
	}
}
