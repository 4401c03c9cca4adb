// Package report renders pricing runs for people and for plotting tools:
// a JSON result document, a plain-text summary and CSV tables for sample
// paths, payoffs, the payoff histogram and strike sweeps.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-montecarlo/internal/montecarlo"
)

const (
	PricePlaces = 4
	GreekPlaces = 6
)

// Result is the record of one pricing run.
type Result struct {
	RunID               string            `json:"run_id"`
	CreatedAt           time.Time         `json:"created_at"`
	Model               string            `json:"model"`
	Seed                uint64            `json:"seed"`
	Params              montecarlo.Params `json:"params"`
	Option              montecarlo.Option `json:"option"`
	Price               decimal.Decimal   `json:"price"`
	StdErr              decimal.Decimal   `json:"std_err"`
	Confidence          float64           `json:"confidence"`
	CILow               decimal.Decimal   `json:"ci_low"`
	CIHigh              decimal.Decimal   `json:"ci_high"`
	Greeks              *Greeks           `json:"greeks,omitempty"`
	Reference           *Reference        `json:"black_scholes,omitempty"`
	Market              *Market           `json:"market,omitempty"`
	CommonRandomNumbers bool              `json:"common_random_numbers"`
	ElapsedMS           int64             `json:"elapsed_ms"`
}

type Greeks struct {
	Delta decimal.Decimal `json:"delta"`
	Gamma decimal.Decimal `json:"gamma"`
	Bump  float64         `json:"bump"`
}

// Reference holds closed-form values for the same contract.
type Reference struct {
	Price decimal.Decimal `json:"price"`
	Delta decimal.Decimal `json:"delta"`
	Gamma decimal.Decimal `json:"gamma"`
}

// Market describes where the inputs came from for market-driven runs.
type Market struct {
	Ticker      string          `json:"ticker"`
	Provider    string          `json:"provider"`
	Expiry      string          `json:"expiry"`
	Days        int             `json:"days"`
	VolSource   string          `json:"vol_source"`
	MarketPrice decimal.Decimal `json:"market_price"`
}

// Round converts v to a decimal rounded half away from zero.
func Round(v float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(places)
}

// WriteJSON writes res to outdir/result.json.
func WriteJSON(res *Result, outdir string) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outdir, "result.json"), b, 0644)
}

// WriteText prints the summary lines shown by the CLI.
func WriteText(w io.Writer, res *Result) error {
	kind := res.Option.Kind
	lines := []string{
		fmt.Sprintf("Model: %s  seed=%d  paths=%d  steps=%d", res.Model, res.Seed, res.Params.Paths, res.Params.Steps),
		fmt.Sprintf("%s option price (K=%s): %s", title(kind), decimal.NewFromFloat(res.Option.Strike).String(), res.Price.StringFixed(PricePlaces)),
		fmt.Sprintf("Standard error: %s  %.0f%% CI [%s, %s]", res.StdErr.StringFixed(PricePlaces), res.Confidence*100,
			res.CILow.StringFixed(PricePlaces), res.CIHigh.StringFixed(PricePlaces)),
	}
	if res.Greeks != nil {
		lines = append(lines,
			fmt.Sprintf("%s delta: %s", title(kind), res.Greeks.Delta.StringFixed(PricePlaces)),
			fmt.Sprintf("%s gamma: %s", title(kind), res.Greeks.Gamma.StringFixed(PricePlaces)),
		)
	}
	if res.Reference != nil {
		lines = append(lines, fmt.Sprintf("Black-Scholes price: %s  delta: %s  gamma: %s",
			res.Reference.Price.StringFixed(PricePlaces),
			res.Reference.Delta.StringFixed(PricePlaces),
			res.Reference.Gamma.StringFixed(PricePlaces)))
	}
	if res.Market != nil {
		lines = append(lines, fmt.Sprintf("Market: %s %s (%d days, vol from %s) quote mid %s",
			res.Market.Ticker, res.Market.Expiry, res.Market.Days, res.Market.VolSource, res.Market.MarketPrice.StringFixed(2)))
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func title(k montecarlo.OptionKind) string {
	if k == montecarlo.Put {
		return "Put"
	}
	return "Call"
}
