package montecarlo

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/contactkeval/option-montecarlo/internal/logger"
)

// DefaultBump is the spot shift used when none is given.
const DefaultBump = 1e-4

// Greeks bundles the outputs of one three-point bump-and-reprice.
type Greeks struct {
	Price float64 `json:"price"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Bump  float64 `json:"bump"`
}

// GreekEstimator computes central-difference Delta and Gamma by running a
// full simulation at each shifted spot.
//
// By default every shifted spot gets its own random draws, so the result
// carries simulation noise of order StdErr/bump on top of the O(bump^2)
// truncation error; with the default bump that noise dominates. This is
// expected behaviour. With CommonRandomNumbers all repricings reuse the
// same draws and the noise largely cancels.
type GreekEstimator struct {
	sim  *Simulator
	bump float64
	crn  bool
}

// NewGreekEstimator checks the bump against the bound spot. bump == 0
// selects DefaultBump.
func NewGreekEstimator(sim *Simulator, bump float64, commonRandomNumbers bool) (*GreekEstimator, error) {
	if sim == nil {
		return nil, invalidArg("simulator is nil")
	}
	if bump == 0 {
		bump = DefaultBump
	}
	if math.IsNaN(bump) || math.IsInf(bump, 0) || bump < 0 {
		return nil, invalidParam("bump", bump, "must be a positive finite number")
	}
	if sim.params.Spot-bump <= 0 {
		return nil, invalidParam("bump", bump, "must be smaller than spot")
	}
	return &GreekEstimator{sim: sim, bump: bump, crn: commonRandomNumbers}, nil
}

// Bump is the spot shift in use.
func (g *GreekEstimator) Bump() float64 { return g.bump }

// Delta is (P(S0+h) - P(S0-h)) / 2h.
func (g *GreekEstimator) Delta(ctx context.Context, opt Option) (float64, error) {
	prices, err := g.reprice(ctx, opt, []int{+1, -1})
	if err != nil {
		return 0, err
	}
	delta := (prices[0] - prices[1]) / (2 * g.bump)
	if err := ValidateOutputs("delta", []float64{delta}, false); err != nil {
		return 0, err
	}
	return delta, nil
}

// Gamma is (P(S0+h) - 2 P(S0) + P(S0-h)) / h^2.
func (g *GreekEstimator) Gamma(ctx context.Context, opt Option) (float64, error) {
	prices, err := g.reprice(ctx, opt, []int{+1, 0, -1})
	if err != nil {
		return 0, err
	}
	gamma := (prices[0] - 2*prices[1] + prices[2]) / (g.bump * g.bump)
	if err := ValidateOutputs("gamma", []float64{gamma}, false); err != nil {
		return 0, err
	}
	return gamma, nil
}

// Greeks returns price, Delta and Gamma from a single set of three
// repricings.
func (g *GreekEstimator) Greeks(ctx context.Context, opt Option) (Greeks, error) {
	prices, err := g.reprice(ctx, opt, []int{+1, 0, -1})
	if err != nil {
		return Greeks{}, err
	}
	out := Greeks{
		Price: prices[1],
		Delta: (prices[0] - prices[2]) / (2 * g.bump),
		Gamma: (prices[0] - 2*prices[1] + prices[2]) / (g.bump * g.bump),
		Bump:  g.bump,
	}
	if err := ValidateOutputs("greeks", []float64{out.Delta, out.Gamma}, false); err != nil {
		return Greeks{}, err
	}
	return out, nil
}

// reprice prices opt at S0 + shift*bump for every shift concurrently.
// Shift 0 always uses the base seed so it matches a plain price call.
func (g *GreekEstimator) reprice(ctx context.Context, opt Option, shifts []int) ([]float64, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}

	p := g.sim.params
	out := make([]float64, len(shifts))

	eg, ctx := errgroup.WithContext(ctx)
	for i, shift := range shifts {
		eg.Go(func() error {
			spot := p.Spot + float64(shift)*g.bump
			seed := g.sim.seed
			if !g.crn {
				seed = deriveSeed(seed, streamID(shift))
			}
			terminal, err := g.sim.terminals(ctx, spot, seed)
			if err != nil {
				return err
			}
			est, err := priceTerminal(terminal, opt, p.Rate, p.Maturity)
			if err != nil {
				return err
			}
			out[i] = est.Price
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	logger.Tracef("event=reprice kind=%s strike=%.4f bump=%g crn=%t prices=%v", opt.Kind, opt.Strike, g.bump, g.crn, out)
	return out, nil
}

// streamID gives each shift a stable, distinct stream number.
func streamID(shift int) int {
	switch {
	case shift > 0:
		return 2*shift - 1
	case shift < 0:
		return -2 * shift
	}
	return 0
}
