package market

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/contactkeval/option-montecarlo/internal/data"
	"github.com/contactkeval/option-montecarlo/internal/logger"
)

var ErrInvalidStrikeExpression = errors.New("invalid strike expression")

// StrikeContext carries what a strike expression may refer to.
type StrikeContext struct {
	Spot    float64
	Strikes []float64 // sorted listed strikes, may be empty
	// DeltaStrike maps a target delta to a strike; nil disables DELTA:.
	DeltaStrike func(target float64) (float64, error)
}

// ResolveStrike converts a strike expression into a concrete strike price.
//
// Supported formats:
//   - "" (first listed strike, or spot without a chain)
//   - 105, 97.5
//   - ATM
//   - ATM:+10, ATM:-5%
//   - DELTA:0.3, DELTA:30
//   - arithmetic on SPOT and ATM, e.g. SPOT*1.05 or ATM+5
//
// When listed strikes are known the result is snapped to the closest one.
func ResolveStrike(strikeExpr string, sc StrikeContext) (float64, error) {
	strikeExpr = strings.TrimSpace(strings.ToUpper(strikeExpr))
	logger.Debugf("event=resolve_strike expr=%q spot=%.4f listed=%d", strikeExpr, sc.Spot, len(sc.Strikes))

	target, err := evalStrike(strikeExpr, sc)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(target) || math.IsInf(target, 0) || target <= 0 {
		return 0, fmt.Errorf("%w: %q resolved to %v", ErrInvalidStrikeExpression, strikeExpr, target)
	}
	return data.Closest(sc.Strikes, target), nil
}

func evalStrike(strikeExpr string, sc StrikeContext) (float64, error) {
	if strikeExpr == "" {
		if len(sc.Strikes) > 0 {
			return sc.Strikes[0], nil
		}
		return sc.Spot, nil
	}

	if v, err := strconv.ParseFloat(strikeExpr, 64); err == nil {
		return v, nil
	}

	if strikeExpr == "ATM" {
		return sc.Spot, nil
	}

	if strings.HasPrefix(strikeExpr, "ATM:") {
		return resolveATMOffset(strikeExpr[len("ATM:"):], sc.Spot)
	}

	if strings.HasPrefix(strikeExpr, "DELTA:") {
		if sc.DeltaStrike == nil {
			return 0, fmt.Errorf("%w: DELTA needs a volatility", ErrInvalidStrikeExpression)
		}
		deltaStr := strings.TrimPrefix(strikeExpr, "DELTA:")
		targetDelta, err := strconv.ParseFloat(deltaStr, 64)
		if err != nil {
			logger.Errorf("parse float failed for DELTA expression:%s, %v", deltaStr, err)
			return 0, fmt.Errorf("%w: invalid DELTA value %q", ErrInvalidStrikeExpression, deltaStr)
		}
		return sc.DeltaStrike(targetDelta)
	}

	return evaluateExpression(strikeExpr, sc)
}

// resolveATMOffset applies an absolute or percentage offset to a price.
func resolveATMOffset(offset string, asOfPrice float64) (float64, error) {
	if strings.HasSuffix(offset, "%") {
		pct, err := strconv.ParseFloat(strings.TrimSuffix(offset, "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: ATM offset %q", ErrInvalidStrikeExpression, offset)
		}
		return math.Round((asOfPrice+asOfPrice*pct/100)*100) / 100, nil
	}

	abs, err := strconv.ParseFloat(offset, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: ATM offset %q", ErrInvalidStrikeExpression, offset)
	}
	return math.Round((asOfPrice+abs)*100) / 100, nil
}

// evaluateExpression evaluates arithmetic over SPOT and ATM, where ATM is
// the listed strike closest to spot.
func evaluateExpression(expr string, sc StrikeContext) (float64, error) {
	evalExpr, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidStrikeExpression, err)
	}

	params := map[string]interface{}{
		"SPOT": sc.Spot,
		"ATM":  data.Closest(sc.Strikes, sc.Spot),
	}
	for _, v := range evalExpr.Vars() {
		if _, ok := params[v]; !ok {
			return 0, fmt.Errorf("%w: unknown variable %s", ErrInvalidStrikeExpression, v)
		}
	}

	result, err := evalExpr.Evaluate(params)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidStrikeExpression, err)
	}
	value, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %q is not numeric", ErrInvalidStrikeExpression, expr)
	}
	return value, nil
}
