// Package testutil holds golden-file helpers and fixtures shared by the
// package tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/contactkeval/option-montecarlo/internal/data"
	"github.com/contactkeval/option-montecarlo/internal/montecarlo"
)

var Update = flag.Bool(
	"update",
	false,
	"update golden files",
)

// FixedNow is the valuation date used by fixtures.
var FixedNow = time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)

// ScenarioParams is the reference contract: S0=100, r=5%, sigma=20%, T=1
// on a 252-step grid.
func ScenarioParams(paths int) montecarlo.Params {
	return montecarlo.Params{Spot: 100, Rate: 0.05, Volatility: 0.2, Maturity: 1, Steps: 252, Paths: paths}
}

// SyntheticProvider returns a deterministic provider pinned to FixedNow.
func SyntheticProvider() data.Provider {
	return data.NewSyntheticProvider(data.SyntheticConfig{
		Seed: 1,
		Now:  func() time.Time { return FixedNow },
	})
}

//
// --- Golden file helpers ---
//

func goldenPath(name string) string {
	return filepath.Join("testdata", name+".golden")
}

func writeGolden(t *testing.T, name string, b []byte) {
	t.Helper()
	if err := os.MkdirAll("testdata", 0o755); err != nil {
		t.Fatalf("failed to create testdata: %v", err)
	}
	if err := os.WriteFile(goldenPath(name), b, 0644); err != nil {
		t.Fatalf("failed to write golden file: %v", err)
	}
}

func loadGolden(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(goldenPath(name))
	if err != nil {
		t.Fatalf("failed to read golden file: %v", err)
	}
	return b
}

// CompareWithGolden marshals v as indented JSON and compares it with
// testdata/<name>.golden.
func CompareWithGolden(t *testing.T, name string, v any) {
	t.Helper()

	actual, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal actual JSON: %v", err)
	}
	CompareBytesWithGolden(t, name, actual)
}

// CompareBytesWithGolden compares raw output with testdata/<name>.golden.
// Run the tests with -update to rewrite the file.
func CompareBytesWithGolden(t *testing.T, name string, actual []byte) {
	t.Helper()

	if *Update {
		writeGolden(t, name, actual)
		return
	}

	expected := loadGolden(t, name)

	if !bytes.Equal(expected, actual) {
		t.Fatalf("golden mismatch for %s\nexpected:\n%s\nactual:\n%s",
			name, string(expected), string(actual))
	}
}
