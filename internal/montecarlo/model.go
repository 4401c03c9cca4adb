package montecarlo

import (
	"strings"

	"golang.org/x/exp/rand"
)

// Model generates asset price paths under a risk-neutral measure.
//
// SimulatePath fills dst (length Steps+1) with one trajectory starting at
// p.Spot, drawing normals from rng only. Implementations hold no mutable
// state so one value can serve concurrent workers.
type Model interface {
	Name() string
	Validate(p Params) error
	SimulatePath(p Params, rng *rand.Rand, dst []float64)
}

// ModelByName resolves a configured model name. heston is only consulted
// for the "heston" model.
func ModelByName(name string, heston Heston) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gbm":
		return GBM{}, nil
	case "heston":
		return heston, nil
	}
	return nil, invalidArg("unknown model %q", name)
}
