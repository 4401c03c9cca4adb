package montecarlo

import (
	"errors"
	"fmt"
)

// Error taxonomy. Callers match on these with errors.Is; the typed errors
// below carry the context.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNumerical        = errors.New("numerical error")
)

// ParameterError reports a rejected simulation input.
type ParameterError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%v: %s=%v %s", ErrInvalidParameter, e.Field, e.Value, e.Reason)
}

func (e *ParameterError) Unwrap() error { return ErrInvalidParameter }

// NumericalError reports structurally invalid output found after a stage
// ran. Index is the flat position of the first offending value.
type NumericalError struct {
	Stage  string
	Index  int
	Value  float64
	Reason string
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("%v: stage=%s index=%d value=%v %s", ErrNumerical, e.Stage, e.Index, e.Value, e.Reason)
}

func (e *NumericalError) Unwrap() error { return ErrNumerical }

func invalidParam(field string, value any, reason string) error {
	return &ParameterError{Field: field, Value: value, Reason: reason}
}

func invalidArg(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
