package montecarlo

import (
	"context"
	"math"
	"runtime"
	"time"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/contactkeval/option-montecarlo/internal/logger"
)

// Options tunes a Simulator.
type Options struct {
	// Seed fixes the random streams. Zero draws a fresh seed from the
	// clock; Simulator.Seed reports it so the run can be replayed.
	Seed uint64
	// Workers bounds concurrent path blocks. Zero means GOMAXPROCS.
	Workers int
}

// Simulator binds a Model to one validated parameter set. It is safe for
// concurrent use: every call allocates its own output and streams.
type Simulator struct {
	model   Model
	params  Params
	seed    uint64
	workers int
}

// NewSimulator validates params against the common rules and the model's
// own rules before anything is simulated.
func NewSimulator(model Model, params Params, opts Options) (*Simulator, error) {
	if model == nil {
		return nil, invalidArg("model is nil")
	}
	if err := ValidateParameters(params); err != nil {
		return nil, err
	}
	if err := model.Validate(params); err != nil {
		return nil, err
	}
	if opts.Workers < 0 {
		return nil, invalidParam("workers", opts.Workers, "must be >= 0")
	}

	s := &Simulator{model: model, params: params, seed: opts.Seed, workers: opts.Workers}
	if s.seed == 0 {
		s.seed = clockSeed()
	}
	if s.workers == 0 {
		s.workers = runtime.GOMAXPROCS(0)
	}
	return s, nil
}

func (s *Simulator) Model() Model   { return s.model }
func (s *Simulator) Params() Params { return s.params }
func (s *Simulator) Seed() uint64   { return s.seed }

// Simulate generates a fresh batch from the bound parameters.
func (s *Simulator) Simulate(ctx context.Context) (*PathBatch, error) {
	return s.SimulateWithSeed(ctx, s.params.Spot, s.seed)
}

// SimulateFrom generates a batch starting at spot instead of the bound
// spot, using the bound seed. The bound parameters are not touched.
func (s *Simulator) SimulateFrom(ctx context.Context, spot float64) (*PathBatch, error) {
	return s.SimulateWithSeed(ctx, spot, s.seed)
}

// SimulateWithSeed is SimulateFrom with an explicit seed.
func (s *Simulator) SimulateWithSeed(ctx context.Context, spot float64, seed uint64) (*PathBatch, error) {
	p := s.params.WithSpot(spot)
	if err := ValidateParameters(p); err != nil {
		return nil, err
	}

	start := time.Now()
	batch := newPathBatch(p.Paths, p.Steps)
	err := s.forEachBlock(ctx, p, seed, func(lo, hi int, rng *rand.Rand) error {
		for i := lo; i < hi; i++ {
			row := batch.row(i)
			s.model.SimulatePath(p, rng, row)
			if err := checkRow(i, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debugf("event=simulate model=%s spot=%.4f paths=%d steps=%d took=%s",
		s.model.Name(), p.Spot, p.Paths, p.Steps, time.Since(start))
	return batch, nil
}

// Estimate prices opt from the bound spot and seed without keeping the
// full path matrix.
func (s *Simulator) Estimate(ctx context.Context, opt Option) (Estimate, error) {
	if err := opt.Validate(); err != nil {
		return Estimate{}, err
	}
	terminal, err := s.terminals(ctx, s.params.Spot, s.seed)
	if err != nil {
		return Estimate{}, err
	}
	return priceTerminal(terminal, opt, s.params.Rate, s.params.Maturity)
}

// terminals runs the same streams as SimulateWithSeed but keeps only the
// last column, so repricing needs O(paths) memory. Values are identical
// to Terminal() of the corresponding full batch.
func (s *Simulator) terminals(ctx context.Context, spot float64, seed uint64) ([]float64, error) {
	p := s.params.WithSpot(spot)
	if err := ValidateParameters(p); err != nil {
		return nil, err
	}

	out := make([]float64, p.Paths)
	err := s.forEachBlock(ctx, p, seed, func(lo, hi int, rng *rand.Rand) error {
		scratch := make([]float64, p.Steps+1)
		for i := lo; i < hi; i++ {
			s.model.SimulatePath(p, rng, scratch)
			if err := checkRow(i, scratch); err != nil {
				return err
			}
			out[i] = scratch[p.Steps]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Tracef("event=simulate_terminal model=%s spot=%.6f paths=%d", s.model.Name(), p.Spot, p.Paths)
	return out, nil
}

// forEachBlock fans the path range out in BlockSize chunks. Chunks write
// disjoint rows, so no locking is needed.
func (s *Simulator) forEachBlock(ctx context.Context, p Params, seed uint64, fn func(lo, hi int, rng *rand.Rand) error) error {
	blocks := (p.Paths + BlockSize - 1) / BlockSize

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for b := 0; b < blocks; b++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lo := b * BlockSize
			hi := min(lo+BlockSize, p.Paths)
			return fn(lo, hi, blockStream(seed, b))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func checkRow(i int, row []float64) error {
	for j, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &NumericalError{Stage: "simulate", Index: i*len(row) + j, Value: v, Reason: "non-finite price"}
		}
		if v <= 0 {
			return &NumericalError{Stage: "simulate", Index: i*len(row) + j, Value: v, Reason: "non-positive price"}
		}
	}
	return nil
}
