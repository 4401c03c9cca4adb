package report

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/contactkeval/option-montecarlo/internal/montecarlo"
)

const (
	DefaultSamplePaths = 20
	DefaultBins        = 50
)

// PathPoint is one (path, step) sample in long format.
type PathPoint struct {
	Path  int     `csv:"path" json:"path"`
	Step  int     `csv:"step" json:"step"`
	Time  float64 `csv:"t" json:"t"`
	Price float64 `csv:"price" json:"price"`
}

type PayoffRow struct {
	Path   int     `csv:"path"`
	Payoff float64 `csv:"payoff"`
}

// Bin is one histogram bucket covering [Lower, Upper).
type Bin struct {
	Lower float64 `csv:"lower" json:"lower"`
	Upper float64 `csv:"upper" json:"upper"`
	Count int     `csv:"count" json:"count"`
}

// SweepPoint is the Monte Carlo and closed-form output at one strike.
type SweepPoint struct {
	Strike  float64 `csv:"strike" json:"strike"`
	Price   float64 `csv:"price" json:"price"`
	StdErr  float64 `csv:"std_err" json:"std_err"`
	Delta   float64 `csv:"delta" json:"delta"`
	Gamma   float64 `csv:"gamma" json:"gamma"`
	BSPrice float64 `csv:"bs_price" json:"bs_price"`
	BSDelta float64 `csv:"bs_delta" json:"bs_delta"`
	BSGamma float64 `csv:"bs_gamma" json:"bs_gamma"`
}

// SamplePaths flattens the first n paths of batch (all when n <= 0).
func SamplePaths(batch *montecarlo.PathBatch, n int, dt float64) []*PathPoint {
	if n <= 0 || n > batch.Paths() {
		n = batch.Paths()
	}
	out := make([]*PathPoint, 0, n*(batch.Steps()+1))
	for i := 0; i < n; i++ {
		for j := 0; j <= batch.Steps(); j++ {
			out = append(out, &PathPoint{Path: i, Step: j, Time: float64(j) * dt, Price: batch.At(i, j)})
		}
	}
	return out
}

func WritePathsCSV(w io.Writer, batch *montecarlo.PathBatch, n int, dt float64) error {
	return gocsv.Marshal(SamplePaths(batch, n, dt), w)
}

func WritePayoffsCSV(w io.Writer, payoffs montecarlo.PayoffVector) error {
	rows := make([]*PayoffRow, len(payoffs))
	for i, v := range payoffs {
		rows[i] = &PayoffRow{Path: i, Payoff: v}
	}
	return gocsv.Marshal(rows, w)
}

// Histogram buckets values into bins equal-width bins spanning
// [min, max]; the maximum falls in the last bin.
func Histogram(values []float64, bins int) []*Bin {
	if len(values) == 0 {
		return nil
	}
	if bins <= 0 {
		bins = DefaultBins
	}
	x := append([]float64(nil), values...)
	sort.Float64s(x)

	lo, hi := x[0], x[len(x)-1]
	if hi == lo {
		hi = lo + 1
	}
	edges := floats.Span(make([]float64, bins+1), lo, hi)
	dividers := append([]float64(nil), edges...)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, x, nil)
	out := make([]*Bin, bins)
	for i := range out {
		out[i] = &Bin{Lower: edges[i], Upper: edges[i+1], Count: int(counts[i])}
	}
	return out
}

func WriteHistogramCSV(w io.Writer, bins []*Bin) error {
	return gocsv.Marshal(bins, w)
}

func WriteSweepCSV(w io.Writer, points []*SweepPoint) error {
	return gocsv.Marshal(points, w)
}

// WriteFile creates outdir/name and hands it to write.
func WriteFile(outdir, name string, write func(io.Writer) error) (err error) {
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(outdir, name))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
