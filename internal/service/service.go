// Package service is the application layer shared by the CLI and the REST
// server: it runs the Monte Carlo core, attaches closed-form references,
// stamps run ids and records metrics.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/contactkeval/option-montecarlo/internal/data"
	"github.com/contactkeval/option-montecarlo/internal/logger"
	"github.com/contactkeval/option-montecarlo/internal/market"
	"github.com/contactkeval/option-montecarlo/internal/metrics"
	"github.com/contactkeval/option-montecarlo/internal/montecarlo"
	"github.com/contactkeval/option-montecarlo/internal/pricing"
	"github.com/contactkeval/option-montecarlo/internal/report"
)

const DefaultConfidence = 0.95

// MaxStrikes bounds the number of strikes in one sweep.
const MaxStrikes = 1000

// Error kinds reported to metrics and HTTP clients.
const (
	KindInvalidParameter = "invalid_parameter"
	KindInvalidArgument  = "invalid_argument"
	KindNumerical        = "numerical"
	KindMarketData       = "market_data"
	KindCanceled         = "canceled"
	KindInternal         = "internal"
)

// ErrorKind classifies err for metrics and status mapping.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, montecarlo.ErrInvalidParameter):
		return KindInvalidParameter
	case errors.Is(err, montecarlo.ErrInvalidArgument),
		errors.Is(err, market.ErrInvalidStrikeExpression):
		return KindInvalidArgument
	case errors.Is(err, montecarlo.ErrNumerical):
		return KindNumerical
	case errors.Is(err, data.ErrNotAvailable), errors.Is(err, market.ErrNoExpiry):
		return KindMarketData
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindInternal
}

// Service prices options for the outer surfaces.
type Service struct {
	pricer     *montecarlo.Pricer
	metrics    *metrics.Metrics
	resolver   *market.Resolver
	provider   string
	confidence float64
	workers    int
	now        func() time.Time
	newID      func() string
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMarket enables PriceMarket against prov.
func WithMarket(prov data.Provider) Option {
	return func(s *Service) {
		s.resolver = market.NewResolver(prov)
		s.provider = prov.Name()
	}
}

func WithConfidence(level float64) Option {
	return func(s *Service) { s.confidence = level }
}

// WithSweepWorkers bounds how many strikes a sweep prices at once.
func WithSweepWorkers(n int) Option {
	return func(s *Service) { s.workers = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func New(pricer *montecarlo.Pricer, opts ...Option) *Service {
	s := &Service{
		pricer:     pricer,
		confidence: DefaultConfidence,
		workers:    2,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(s)
	}
	if s.pricer == nil {
		s.pricer = montecarlo.NewPricer(nil)
	}
	return s
}

func (s *Service) Pricer() *montecarlo.Pricer { return s.pricer }

// PriceRequest asks for one option price, optionally with Greeks.
type PriceRequest struct {
	Params montecarlo.Params `json:"params"`
	Option montecarlo.Option `json:"option"`
	Greeks bool              `json:"greeks"`
	Bump   float64           `json:"bump"`
}

// Price runs the estimate (and Greeks when asked) and assembles a Result.
func (s *Service) Price(ctx context.Context, req PriceRequest) (res *report.Result, err error) {
	op := "price"
	if req.Greeks {
		op = "greeks"
	}
	start := time.Now()
	defer func() { s.observe(op, req.Params.Paths, start, err) }()

	sim, err := s.pricer.Simulator(req.Params)
	if err != nil {
		return nil, err
	}
	est, err := sim.Estimate(ctx, req.Option)
	if err != nil {
		return nil, err
	}
	lo, hi := est.ConfidenceInterval(s.confidence)

	res = &report.Result{
		RunID:               s.newID(),
		CreatedAt:           s.now().UTC(),
		Model:               s.pricer.Model().Name(),
		Seed:                sim.Seed(),
		Params:              req.Params,
		Option:              req.Option,
		Price:               report.Round(est.Price, report.PricePlaces),
		StdErr:              report.Round(est.StdErr, report.PricePlaces),
		Confidence:          s.confidence,
		CILow:               report.Round(lo, report.PricePlaces),
		CIHigh:              report.Round(hi, report.PricePlaces),
		CommonRandomNumbers: s.pricer.CommonRandomNumbers(),
	}

	if req.Greeks {
		g, err := montecarlo.NewGreekEstimator(sim, req.Bump, s.pricer.CommonRandomNumbers())
		if err != nil {
			return nil, err
		}
		greeks, err := g.Greeks(ctx, req.Option)
		if err != nil {
			return nil, err
		}
		res.Greeks = &report.Greeks{
			Delta: report.Round(greeks.Delta, report.GreekPlaces),
			Gamma: report.Round(greeks.Gamma, report.GreekPlaces),
			Bump:  greeks.Bump,
		}
	}

	if ref, ok := s.reference(req.Params, req.Option); ok {
		res.Reference = &report.Reference{
			Price: report.Round(ref.BSPrice, report.PricePlaces),
			Delta: report.Round(ref.BSDelta, report.GreekPlaces),
			Gamma: report.Round(ref.BSGamma, report.GreekPlaces),
		}
	}

	res.ElapsedMS = time.Since(start).Milliseconds()
	s.metrics.SetLastPrice(string(req.Option.Kind), est.Price)
	logger.Infof("event=priced run_id=%s model=%s kind=%s strike=%.4f price=%.4f stderr=%.4f seed=%d",
		res.RunID, res.Model, req.Option.Kind, req.Option.Strike, est.Price, est.StdErr, res.Seed)
	return res, nil
}

// reference is the Black-Scholes value, which only applies under GBM.
func (s *Service) reference(p montecarlo.Params, opt montecarlo.Option) (report.SweepPoint, bool) {
	if _, ok := s.pricer.Model().(montecarlo.GBM); !ok {
		return report.SweepPoint{}, false
	}
	isCall := opt.Kind == montecarlo.Call
	return report.SweepPoint{
		Strike:  opt.Strike,
		BSPrice: pricing.BlackScholesPrice(isCall, p.Spot, opt.Strike, p.Maturity, p.Rate, p.Volatility),
		BSDelta: pricing.BlackScholesDelta(isCall, p.Spot, opt.Strike, p.Maturity, p.Rate, p.Volatility),
		BSGamma: pricing.BlackScholesGamma(p.Spot, opt.Strike, p.Maturity, p.Rate, p.Volatility),
	}, true
}

// Paths simulates a batch and also returns the seed used.
func (s *Service) Paths(ctx context.Context, params montecarlo.Params) (batch *montecarlo.PathBatch, seed uint64, err error) {
	start := time.Now()
	defer func() { s.observe("paths", params.Paths, start, err) }()

	sim, err := s.pricer.Simulator(params)
	if err != nil {
		return nil, 0, err
	}
	batch, err = sim.Simulate(ctx)
	if err != nil {
		return nil, 0, err
	}
	return batch, sim.Seed(), nil
}

// Payoffs simulates a batch and settles opt on it.
func (s *Service) Payoffs(ctx context.Context, params montecarlo.Params, opt montecarlo.Option) (*montecarlo.PathBatch, montecarlo.PayoffVector, error) {
	if err := opt.Validate(); err != nil {
		return nil, nil, err
	}
	batch, _, err := s.Paths(ctx, params)
	if err != nil {
		return nil, nil, err
	}
	payoffs, err := montecarlo.Payoff(batch, opt)
	if err != nil {
		return nil, nil, err
	}
	return batch, payoffs, nil
}

// SweepRequest prices one option kind across a strike ladder.
type SweepRequest struct {
	Params  montecarlo.Params     `json:"params"`
	Kind    montecarlo.OptionKind `json:"kind"`
	Strikes []float64             `json:"strikes"`
	Bump    float64               `json:"bump"`
}

// StrikeLadder returns from, from+step, ... up to and including to. The
// ladder length is checked against MaxStrikes before anything is allocated.
func StrikeLadder(from, to, step float64) ([]float64, error) {
	for _, v := range []float64{from, to, step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: strike ladder from=%v to=%v step=%v", montecarlo.ErrInvalidArgument, from, to, step)
		}
	}
	if step <= 0 || from <= 0 || to < from {
		return nil, fmt.Errorf("%w: strike ladder from=%v to=%v step=%v", montecarlo.ErrInvalidArgument, from, to, step)
	}
	span := math.Floor((to-from)/step+1e-9) + 1
	if span > MaxStrikes {
		return nil, fmt.Errorf("%w: strike ladder from=%v to=%v step=%v has %.0f strikes, at most %d", montecarlo.ErrInvalidArgument, from, to, step, span, MaxStrikes)
	}
	out := make([]float64, int(span))
	for i := range out {
		out[i] = from + float64(i)*step
	}
	return out, nil
}

// Sweep prices and differentiates every strike. Strikes run concurrently
// but each one uses the same seed, so neighbouring points share draws.
func (s *Service) Sweep(ctx context.Context, req SweepRequest) (points []*report.SweepPoint, err error) {
	start := time.Now()
	defer func() { s.observe("sweep", req.Params.Paths*len(req.Strikes), start, err) }()

	if len(req.Strikes) == 0 {
		return nil, fmt.Errorf("%w: no strikes to sweep", montecarlo.ErrInvalidArgument)
	}
	if len(req.Strikes) > MaxStrikes {
		return nil, fmt.Errorf("%w: %d strikes, at most %d per sweep", montecarlo.ErrInvalidArgument, len(req.Strikes), MaxStrikes)
	}
	sim, err := s.pricer.Simulator(req.Params)
	if err != nil {
		return nil, err
	}

	points = make([]*report.SweepPoint, len(req.Strikes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.workers, 1))
	for i, k := range req.Strikes {
		g.Go(func() error {
			opt := montecarlo.Option{Strike: k, Kind: req.Kind}
			est, err := sim.Estimate(gctx, opt)
			if err != nil {
				return err
			}
			ge, err := montecarlo.NewGreekEstimator(sim, req.Bump, s.pricer.CommonRandomNumbers())
			if err != nil {
				return err
			}
			greeks, err := ge.Greeks(gctx, opt)
			if err != nil {
				return err
			}
			pt := &report.SweepPoint{Strike: k, Price: est.Price, StdErr: est.StdErr, Delta: greeks.Delta, Gamma: greeks.Gamma}
			if ref, ok := s.reference(req.Params, opt); ok {
				pt.BSPrice, pt.BSDelta, pt.BSGamma = ref.BSPrice, ref.BSDelta, ref.BSGamma
			}
			points[i] = pt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Infof("event=sweep kind=%s strikes=%d seed=%d", req.Kind, len(req.Strikes), sim.Seed())
	return points, nil
}

// MarketRequest prices an option resolved from market data.
type MarketRequest struct {
	market.Request
	Greeks bool
	Bump   float64
}

// PriceMarket resolves req against the configured provider and prices it.
func (s *Service) PriceMarket(ctx context.Context, req MarketRequest) (*report.Result, *market.Resolved, error) {
	if s.resolver == nil {
		return nil, nil, fmt.Errorf("%w: no market data provider configured", data.ErrNotAvailable)
	}
	resolved, err := s.resolver.Resolve(ctx, req.Request)
	if err != nil {
		s.metrics.ObserveError("market", ErrorKind(err))
		return nil, nil, err
	}

	res, err := s.Price(ctx, PriceRequest{
		Params: resolved.Params,
		Option: resolved.Option,
		Greeks: req.Greeks,
		Bump:   req.Bump,
	})
	if err != nil {
		return nil, resolved, err
	}
	res.Market = &report.Market{
		Ticker:      resolved.Ticker,
		Provider:    s.provider,
		Expiry:      resolved.Expiry.Format(data.DateLayout),
		Days:        resolved.Days,
		VolSource:   string(resolved.VolSource),
		MarketPrice: report.Round(resolved.MarketPrice, 2),
	}
	return res, resolved, nil
}

func (s *Service) observe(op string, paths int, start time.Time, err error) {
	if err != nil {
		kind := ErrorKind(err)
		logger.Errorf("event=%s_failed kind=%s err=%v", op, kind, err)
		s.metrics.ObserveError(op, kind)
		return
	}
	s.metrics.ObserveRun(op, s.pricer.Model().Name(), paths, time.Since(start))
}
