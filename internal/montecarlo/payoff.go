package montecarlo

import "math"

// PayoffVector holds one settlement value per path.
type PayoffVector []float64

// Payoff settles every path of batch against opt using the terminal
// column: max(S_T-K, 0) for calls, max(K-S_T, 0) for puts.
func Payoff(batch *PathBatch, opt Option) (PayoffVector, error) {
	if batch == nil {
		return nil, invalidArg("path batch is nil")
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	return payoffInPlace(batch.Terminal(), opt)
}

// payoffInPlace overwrites terminal with the payoffs.
func payoffInPlace(terminal []float64, opt Option) (PayoffVector, error) {
	switch opt.Kind {
	case Call:
		for i, s := range terminal {
			terminal[i] = math.Max(s-opt.Strike, 0)
		}
	case Put:
		for i, s := range terminal {
			terminal[i] = math.Max(opt.Strike-s, 0)
		}
	default:
		return nil, invalidArg("option kind %q must be call or put", opt.Kind)
	}
	if err := ValidateOutputs("payoff", terminal, true); err != nil {
		return nil, err
	}
	return PayoffVector(terminal), nil
}
