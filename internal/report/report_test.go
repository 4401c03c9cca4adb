package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-montecarlo/internal/montecarlo"
	"github.com/contactkeval/option-montecarlo/internal/testutil"
)

func sampleResult() *Result {
	return &Result{
		RunID:      "00000000-0000-0000-0000-000000000001",
		CreatedAt:  testutil.FixedNow,
		Model:      "gbm",
		Seed:       42,
		Params:     testutil.ScenarioParams(10000),
		Option:     montecarlo.Option{Strike: 100, Kind: montecarlo.Call},
		Price:      Round(10.45058357, PricePlaces),
		StdErr:     Round(0.1471, PricePlaces),
		Confidence: 0.95,
		CILow:      Round(10.1623, PricePlaces),
		CIHigh:     Round(10.7389, PricePlaces),
		Greeks: &Greeks{
			Delta: Round(0.6368306511756191, GreekPlaces),
			Gamma: Round(0.018762017345846895, GreekPlaces),
			Bump:  montecarlo.DefaultBump,
		},
		Reference: &Reference{
			Price: Round(10.450583572185565, PricePlaces),
			Delta: Round(0.6368306511756191, GreekPlaces),
			Gamma: Round(0.018762017345846895, GreekPlaces),
		},
		ElapsedMS: 12,
	}
}

func TestResultJSON(t *testing.T) {
	testutil.CompareWithGolden(t, "result", sampleResult())
}

func TestWriteJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	if err := WriteJSON(sampleResult(), dir); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "result.json"))
	if err != nil {
		t.Fatal(err)
	}
	testutil.CompareBytesWithGolden(t, "result", b)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleResult()); err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"Model: gbm  seed=42  paths=10000  steps=252",
		"Call option price (K=100): 10.4506",
		"Standard error: 0.1471  95% CI [10.1623, 10.7389]",
		"Call delta: 0.6368",
		"Call gamma: 0.0188",
		"Black-Scholes price: 10.4506  delta: 0.6368  gamma: 0.0188",
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("summary mismatch\nwant:\n%s\ngot:\n%s", want, buf.String())
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		v      float64
		places int32
		want   string
	}{
		{10.45058357, 4, "10.4506"},
		{-0.00005, 4, "-0.0001"},
		{2.5, 0, "3"},
	}
	for _, tc := range tests {
		if got := Round(tc.v, tc.places); !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("Round(%v, %d) = %s, want %s", tc.v, tc.places, got, tc.want)
		}
	}
}
