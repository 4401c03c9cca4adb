package montecarlo

import (
	"gonum.org/v1/gonum/mat"
)

// PathBatch is a dense n_paths x (n_steps+1) table of simulated prices.
// Column 0 holds the spot. A batch is written once by the simulator and
// read-only afterwards.
type PathBatch struct {
	m *mat.Dense
}

func newPathBatch(paths, steps int) *PathBatch {
	return &PathBatch{m: mat.NewDense(paths, steps+1, nil)}
}

// NewPathBatchFromRows builds a batch from caller supplied rows, mainly
// for feeding externally generated scenarios into Payoff and Price.
// All rows must have the same length (at least 1).
func NewPathBatchFromRows(rows [][]float64) (*PathBatch, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, invalidArg("path batch needs at least one row and one column")
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, invalidArg("row %d has %d columns, want %d", i, len(r), cols)
		}
		data = append(data, r...)
	}
	return &PathBatch{m: mat.NewDense(len(rows), cols, data)}, nil
}

// Paths is the number of rows.
func (b *PathBatch) Paths() int {
	r, _ := b.m.Dims()
	return r
}

// Steps is the number of time steps (columns minus one).
func (b *PathBatch) Steps() int {
	_, c := b.m.Dims()
	return c - 1
}

// At returns the price of path i at step j.
func (b *PathBatch) At(i, j int) float64 {
	return b.m.At(i, j)
}

// Path returns a copy of row i.
func (b *PathBatch) Path(i int) []float64 {
	return mat.Row(nil, i, b.m)
}

// Terminal returns a copy of the last column.
func (b *PathBatch) Terminal() []float64 {
	return mat.Col(nil, b.Steps(), b.m)
}

// Table returns the batch as plain rows for presentation code.
func (b *PathBatch) Table() [][]float64 {
	n := b.Paths()
	out := make([][]float64, n)
	for i := range out {
		out[i] = b.Path(i)
	}
	return out
}

// Matrix exposes the batch to gonum consumers. It must not be modified.
func (b *PathBatch) Matrix() mat.Matrix {
	return b.m
}

// row is the writable backing slice of row i; only the simulator uses it.
func (b *PathBatch) row(i int) []float64 {
	return b.m.RawRowView(i)
}
