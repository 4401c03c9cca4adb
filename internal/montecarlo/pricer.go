// Package montecarlo prices European options and their spot sensitivities
// by simulating the underlying under a pluggable stochastic model.
//
// Flow: parameters are validated, a Simulator asks the Model for a batch
// of paths, Payoff settles the terminal column, Price discounts the mean
// and GreekEstimator bumps the spot and reprices. Every public entry point
// validates its inputs before any simulation starts and checks numeric
// outputs before returning them.
package montecarlo

import (
	"context"
)

// Pricer is the caller facing entry point. The zero seed gives a fresh
// random seed per call; a fixed seed makes every call reproducible.
type Pricer struct {
	model Model
	opts  Options
	crn   bool
}

// PricerOption configures a Pricer.
type PricerOption func(*Pricer)

// WithSeed fixes the seed of every simulation run by the pricer.
func WithSeed(seed uint64) PricerOption {
	return func(p *Pricer) { p.opts.Seed = seed }
}

// WithWorkers bounds simulation parallelism.
func WithWorkers(n int) PricerOption {
	return func(p *Pricer) { p.opts.Workers = n }
}

// WithCommonRandomNumbers makes Greek repricings share their draws.
func WithCommonRandomNumbers(on bool) PricerOption {
	return func(p *Pricer) { p.crn = on }
}

// NewPricer returns a pricer for model; a nil model means GBM.
func NewPricer(model Model, opts ...PricerOption) *Pricer {
	if model == nil {
		model = GBM{}
	}
	p := &Pricer{model: model}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Model returns the configured model.
func (p *Pricer) Model() Model { return p.model }

// CommonRandomNumbers reports whether Greek repricings share draws.
func (p *Pricer) CommonRandomNumbers() bool { return p.crn }

// Simulator builds the simulator a call with params would use.
func (p *Pricer) Simulator(params Params) (*Simulator, error) {
	return NewSimulator(p.model, params, p.opts)
}

// SimulatePaths returns a fresh batch of shape (Paths, Steps+1).
func (p *Pricer) SimulatePaths(ctx context.Context, params Params) (*PathBatch, error) {
	sim, err := p.Simulator(params)
	if err != nil {
		return nil, err
	}
	return sim.Simulate(ctx)
}

// Estimate prices opt and reports the standard error alongside.
func (p *Pricer) Estimate(ctx context.Context, params Params, opt Option) (Estimate, error) {
	sim, err := p.Simulator(params)
	if err != nil {
		return Estimate{}, err
	}
	return sim.Estimate(ctx, opt)
}

// PriceOption returns the discounted expected payoff.
func (p *Pricer) PriceOption(ctx context.Context, params Params, strike float64, kind OptionKind) (float64, error) {
	est, err := p.Estimate(ctx, params, Option{Strike: strike, Kind: kind})
	if err != nil {
		return 0, err
	}
	return est.Price, nil
}

// Delta estimates dPrice/dS0. bump == 0 selects DefaultBump.
func (p *Pricer) Delta(ctx context.Context, params Params, strike float64, kind OptionKind, bump float64) (float64, error) {
	g, err := p.estimator(params, bump)
	if err != nil {
		return 0, err
	}
	return g.Delta(ctx, Option{Strike: strike, Kind: kind})
}

// Gamma estimates d2Price/dS0^2. bump == 0 selects DefaultBump.
func (p *Pricer) Gamma(ctx context.Context, params Params, strike float64, kind OptionKind, bump float64) (float64, error) {
	g, err := p.estimator(params, bump)
	if err != nil {
		return 0, err
	}
	return g.Gamma(ctx, Option{Strike: strike, Kind: kind})
}

// Greeks returns price, Delta and Gamma from one set of repricings.
func (p *Pricer) Greeks(ctx context.Context, params Params, opt Option, bump float64) (Greeks, error) {
	g, err := p.estimator(params, bump)
	if err != nil {
		return Greeks{}, err
	}
	return g.Greeks(ctx, opt)
}

func (p *Pricer) estimator(params Params, bump float64) (*GreekEstimator, error) {
	sim, err := p.Simulator(params)
	if err != nil {
		return nil, err
	}
	return NewGreekEstimator(sim, bump, p.crn)
}

var defaultPricer = NewPricer(GBM{})

// SimulatePaths runs GBM with a fresh seed.
func SimulatePaths(ctx context.Context, params Params) (*PathBatch, error) {
	return defaultPricer.SimulatePaths(ctx, params)
}

// PriceOption prices under GBM with a fresh seed.
func PriceOption(ctx context.Context, params Params, strike float64, kind OptionKind) (float64, error) {
	return defaultPricer.PriceOption(ctx, params, strike, kind)
}

// Delta estimates Delta under GBM with independent draws per bump.
func Delta(ctx context.Context, params Params, strike float64, kind OptionKind, bump float64) (float64, error) {
	return defaultPricer.Delta(ctx, params, strike, kind, bump)
}

// Gamma estimates Gamma under GBM with independent draws per bump.
func Gamma(ctx context.Context, params Params, strike float64, kind OptionKind, bump float64) (float64, error) {
	return defaultPricer.Gamma(ctx, params, strike, kind, bump)
}
