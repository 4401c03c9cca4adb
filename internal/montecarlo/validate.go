package montecarlo

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateParameters rejects inputs the simulator cannot work with:
// non-positive spot or maturity, negative volatility, step or path counts
// outside [1, MaxSteps] and [1, MaxPaths], grids larger than MaxGridCells
// and any non-finite value. It never simulates.
func ValidateParameters(p Params) error {
	finite := []struct {
		field string
		v     float64
	}{
		{"spot", p.Spot},
		{"rate", p.Rate},
		{"volatility", p.Volatility},
		{"maturity", p.Maturity},
	}
	for _, f := range finite {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return invalidParam(f.field, f.v, "must be a finite real number")
		}
	}

	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return invalidParam(jsonName(fe.StructField()), fe.Value(), ruleText(fe.Tag(), fe.Param()))
		}
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	if cells := int64(p.Paths) * int64(p.Steps+1); cells > MaxGridCells {
		return invalidParam("paths", p.Paths, fmt.Sprintf("times steps+1 must be <= %d, got %d cells", MaxGridCells, cells))
	}
	return nil
}

// ValidateOutputs rejects NaN/Inf values and, when nonNegative is set,
// negative ones. stage names the producer for the error report.
func ValidateOutputs(stage string, values []float64, nonNegative bool) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &NumericalError{Stage: stage, Index: i, Value: v, Reason: "non-finite value"}
		}
		if nonNegative && v < 0 {
			return &NumericalError{Stage: stage, Index: i, Value: v, Reason: "negative value"}
		}
	}
	return nil
}

func ruleText(tag, param string) string {
	switch tag {
	case "gt":
		return "must be > " + param
	case "gte":
		return "must be >= " + param
	case "min":
		return "must be a positive integer"
	case "max":
		return "must be <= " + param
	}
	return "failed " + tag
}

func jsonName(field string) string {
	f, ok := reflect.TypeOf(Params{}).FieldByName(field)
	if !ok {
		return field
	}
	if tag := f.Tag.Get("json"); tag != "" {
		return tag
	}
	return field
}
