package montecarlo

import (
	"math"
	"strings"
)

// Grid limits checked by ValidateParameters. MaxGridCells bounds
// paths*(steps+1), the size of a full path table.
const (
	MaxSteps     = 1 << 20
	MaxPaths     = 1 << 30
	MaxGridCells = 1 << 31
)

// Params is the immutable input of one simulation run. Methods that
// change a field return a copy.
type Params struct {
	Spot       float64 `json:"spot" validate:"gt=0"`        // S0
	Rate       float64 `json:"rate"`                        // continuously compounded risk-free rate
	Volatility float64 `json:"volatility" validate:"gte=0"` // annualised sigma
	Maturity   float64 `json:"maturity" validate:"gt=0"`    // years
	Steps      int     `json:"steps" validate:"min=1,max=1048576"`
	Paths      int     `json:"paths" validate:"min=1,max=1073741824"`
}

// WithSpot returns a copy of p with the spot replaced.
func (p Params) WithSpot(spot float64) Params {
	p.Spot = spot
	return p
}

// Dt is the length of one discretisation step in years.
func (p Params) Dt() float64 {
	return p.Maturity / float64(p.Steps)
}

// Discount is exp(-rT).
func (p Params) Discount() float64 {
	return math.Exp(-p.Rate * p.Maturity)
}

// Validate is a shorthand for ValidateParameters(p).
func (p Params) Validate() error {
	return ValidateParameters(p)
}

// OptionKind is the contract side of a European option.
type OptionKind string

const (
	Call OptionKind = "call"
	Put  OptionKind = "put"
)

// ParseOptionKind accepts "call"/"put" in any case, plus the single letter
// forms "c"/"p".
func ParseOptionKind(s string) (OptionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	}
	return "", invalidArg("option kind %q must be call or put", s)
}

// Valid reports whether k is one of the supported kinds.
func (k OptionKind) Valid() bool {
	return k == Call || k == Put
}

// Option describes the contract being priced.
type Option struct {
	Strike float64    `json:"strike"`
	Kind   OptionKind `json:"kind"`
}

// Validate checks strike and kind.
func (o Option) Validate() error {
	if !o.Kind.Valid() {
		return invalidArg("option kind %q must be call or put", o.Kind)
	}
	if math.IsNaN(o.Strike) || math.IsInf(o.Strike, 0) || o.Strike <= 0 {
		return invalidArg("strike %v must be a positive finite number", o.Strike)
	}
	return nil
}
