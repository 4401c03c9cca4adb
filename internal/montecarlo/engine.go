package montecarlo

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Estimate is a discounted Monte Carlo mean together with its standard
// error sqrt(Var)/sqrt(n), both already discounted.
type Estimate struct {
	Price  float64 `json:"price"`
	StdErr float64 `json:"std_err"`
	Paths  int     `json:"paths"`
}

// ConfidenceInterval returns the two-sided normal interval at level
// (e.g. 0.95). Levels outside (0,1) collapse to the point estimate.
func (e Estimate) ConfidenceInterval(level float64) (lo, hi float64) {
	if !(level > 0 && level < 1) {
		return e.Price, e.Price
	}
	z := distuv.UnitNormal.Quantile(0.5 + level/2)
	return e.Price - z*e.StdErr, e.Price + z*e.StdErr
}

// Price discounts the mean payoff of batch: exp(-rT) * mean(payoff).
// It is deterministic for a given batch.
func Price(batch *PathBatch, opt Option, rate, maturity float64) (Estimate, error) {
	if batch == nil {
		return Estimate{}, invalidArg("path batch is nil")
	}
	if err := opt.Validate(); err != nil {
		return Estimate{}, err
	}
	return priceTerminal(batch.Terminal(), opt, rate, maturity)
}

func priceTerminal(terminal []float64, opt Option, rate, maturity float64) (Estimate, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return Estimate{}, invalidParam("rate", rate, "must be a finite real number")
	}
	if math.IsNaN(maturity) || math.IsInf(maturity, 0) || maturity <= 0 {
		return Estimate{}, invalidParam("maturity", maturity, "must be > 0")
	}

	payoffs, err := payoffInPlace(terminal, opt)
	if err != nil {
		return Estimate{}, err
	}

	n := len(payoffs)
	disc := math.Exp(-rate * maturity)
	mean, std := stat.MeanStdDev(payoffs, nil)

	est := Estimate{Price: disc * mean, Paths: n}
	if n > 1 {
		est.StdErr = disc * std / math.Sqrt(float64(n))
	}
	if err := ValidateOutputs("price", []float64{est.Price, est.StdErr}, true); err != nil {
		return Estimate{}, err
	}
	return est, nil
}
