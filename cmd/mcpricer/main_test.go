package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/contactkeval/option-montecarlo/internal/report"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--verbosity=0"))
	err := cmd.Execute()
	return out.String(), err
}

func TestPriceCommand(t *testing.T) {
	out, err := run(t, "price", "--paths=20000", "--steps=1", "--seed=5", "--crn", "--bump=1")
	if err != nil {
		t.Fatalf("price: %v\n%s", err, out)
	}

	labels := []string{
		"European Call Option Price",
		"European Put Option Price",
		"Call Delta",
		"Call Gamma",
		"Put Delta",
		"Put Gamma",
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != len(labels) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(labels), out)
	}
	values := map[string]float64{}
	for i, label := range labels {
		prefix := label + ": "
		if !strings.HasPrefix(lines[i], prefix) {
			t.Fatalf("line %d = %q, want prefix %q", i, lines[i], prefix)
		}
		raw := strings.TrimPrefix(lines[i], prefix)
		if dot := strings.IndexByte(raw, '.'); dot < 0 || len(raw)-dot-1 != 4 {
			t.Fatalf("line %d value %q is not printed with 4 decimals", i, raw)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			t.Fatal(err)
		}
		values[label] = v
	}

	if c := values["European Call Option Price"]; c < 9.8 || c > 11.1 {
		t.Errorf("call price %v far from 10.45", c)
	}
	if p := values["European Put Option Price"]; p < 5.0 || p > 6.2 {
		t.Errorf("put price %v far from 5.57", p)
	}
	if d := values["Call Delta"]; d < 0 || d > 1 {
		t.Errorf("call delta %v outside [0, 1]", d)
	}
	if d := values["Put Delta"]; d < -1 || d > 0 {
		t.Errorf("put delta %v outside [-1, 0]", d)
	}
}

func TestGreeksCommandWritesResult(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "greeks", "--paths=5000", "--steps=4", "--seed=9", "--kind=put", "--strike=95", "--out="+dir)
	if err != nil {
		t.Fatalf("greeks: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Put option price (K=95): ") || !strings.Contains(out, "Put delta: ") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	b, err := os.ReadFile(filepath.Join(dir, "result.json"))
	if err != nil {
		t.Fatal(err)
	}
	var res report.Result
	if err := json.Unmarshal(b, &res); err != nil {
		t.Fatal(err)
	}
	if res.Seed != 9 || res.Option.Strike != 95 || res.Greeks == nil || res.Reference == nil {
		t.Fatalf("result = %+v", res)
	}
}

func TestPathsCommandWritesCSV(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "paths", "--paths=300", "--steps=5", "--seed=2", "--sample=4", "--bins=7", "--out="+dir)
	if err != nil {
		t.Fatalf("paths: %v\n%s", err, out)
	}

	tests := []struct {
		file   string
		header string
		rows   int
	}{
		{"paths.csv", "path,step,t,price", 4 * 6},
		{"payoffs.csv", "path,payoff", 300},
		{"histogram.csv", "lower,upper,count", 7},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			b, err := os.ReadFile(filepath.Join(dir, tt.file))
			if err != nil {
				t.Fatal(err)
			}
			lines := strings.Split(strings.TrimSpace(string(b)), "\n")
			if lines[0] != tt.header {
				t.Errorf("header = %q, want %q", lines[0], tt.header)
			}
			if len(lines)-1 != tt.rows {
				t.Errorf("rows = %d, want %d", len(lines)-1, tt.rows)
			}
		})
	}
}

func TestSweepCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "sweep", "--paths=2000", "--steps=1", "--seed=4", "--from=90", "--to=110", "--step=10", "--bump=1", "--out="+dir)
	if err != nil {
		t.Fatalf("sweep: %v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("want header plus 3 rows:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "sweep.csv")); err != nil {
		t.Fatal(err)
	}
}

func TestMarketCommandSynthetic(t *testing.T) {
	out, err := run(t, "market", "--provider=synthetic", "--ticker=SPY", "--strike-expr=ATM", "--vol-source=implied", "--paths=2000", "--steps=5", "--seed=1")
	if err != nil {
		t.Fatalf("market: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Market: SPY ") || !strings.Contains(out, "vol from ") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad kind", []string{"greeks", "--kind=straddle", "--paths=10"}},
		{"zero paths", []string{"price", "--paths=0"}},
		{"negative maturity", []string{"greeks", "--maturity=-1"}},
		{"unknown model", []string{"price", "--model=sabr"}},
		{"bad ladder", []string{"sweep", "--from=120", "--to=80"}},
		{"stray argument", []string{"price", "extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
