package montecarlo

import (
	"context"
	"errors"
	"math"
	"testing"
)

func newTestSimulator(t *testing.T, paths int, seed uint64) *Simulator {
	t.Helper()
	p := scenario(paths)
	p.Steps = 1
	sim, err := NewSimulator(GBM{}, p, Options{Seed: seed})
	if err != nil {
		t.Fatal(err)
	}
	return sim
}

func TestScenarioDeltaFullGrid(t *testing.T) {
	if testing.Short() {
		t.Skip("252-step scenario is slow")
	}
	sim, err := NewSimulator(GBM{}, scenario(100000), Options{Seed: 2024})
	if err != nil {
		t.Fatal(err)
	}
	ge, err := NewGreekEstimator(sim, DefaultBump, true)
	if err != nil {
		t.Fatal(err)
	}
	delta, err := ge.Delta(context.Background(), Option{Strike: 100, Kind: Call})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(delta-0.64) > 0.02 {
		t.Fatalf("call delta %v, want 0.64 +- 0.02", delta)
	}
}

func TestGreeksCommonRandomNumbers(t *testing.T) {
	sim := newTestSimulator(t, 50000, 17)
	ge, err := NewGreekEstimator(sim, 1, true)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	call, err := ge.Greeks(ctx, Option{Strike: 100, Kind: Call})
	if err != nil {
		t.Fatal(err)
	}
	put, err := ge.Greeks(ctx, Option{Strike: 100, Kind: Put})
	if err != nil {
		t.Fatal(err)
	}

	if call.Delta < 0 || call.Delta > 1 || put.Delta < -1 || put.Delta > 0 {
		t.Fatalf("delta out of bounds: call %v put %v", call.Delta, put.Delta)
	}
	if math.Abs(call.Delta-bsCallDelta) > 0.02 {
		t.Errorf("call delta %v, want about %v", call.Delta, bsCallDelta)
	}
	// per path C-P is S_T-K, which is linear in S0 under shared draws
	if math.Abs(call.Gamma-put.Gamma) > 1e-8 {
		t.Errorf("call gamma %v != put gamma %v", call.Gamma, put.Gamma)
	}
	if math.Abs(call.Delta-put.Delta-1) > 0.02 {
		t.Errorf("call delta - put delta = %v, want about 1", call.Delta-put.Delta)
	}
	if math.Abs(call.Gamma-bsGamma) > 0.003 {
		t.Errorf("gamma %v, want about %v", call.Gamma, bsGamma)
	}
	if call.Bump != 1 {
		t.Errorf("bump = %v", call.Bump)
	}

	delta, err := ge.Delta(ctx, Option{Strike: 100, Kind: Call})
	if err != nil {
		t.Fatal(err)
	}
	gamma, err := ge.Gamma(ctx, Option{Strike: 100, Kind: Call})
	if err != nil {
		t.Fatal(err)
	}
	if delta != call.Delta || gamma != call.Gamma {
		t.Errorf("Delta/Gamma (%v, %v) disagree with Greeks (%v, %v)", delta, gamma, call.Delta, call.Gamma)
	}
}

func TestGreeksPriceMatchesEstimate(t *testing.T) {
	sim := newTestSimulator(t, 3000, 5)
	opt := Option{Strike: 95, Kind: Call}
	est, err := sim.Estimate(context.Background(), opt)
	if err != nil {
		t.Fatal(err)
	}
	for _, crn := range []bool{false, true} {
		ge, err := NewGreekEstimator(sim, 0.5, crn)
		if err != nil {
			t.Fatal(err)
		}
		g, err := ge.Greeks(context.Background(), opt)
		if err != nil {
			t.Fatal(err)
		}
		if g.Price != est.Price {
			t.Errorf("crn=%v: greeks price %v != estimate %v", crn, g.Price, est.Price)
		}
	}
}

func TestGreeksIndependentDefaultBump(t *testing.T) {
	sim := newTestSimulator(t, 2000, 11)
	ge, err := NewGreekEstimator(sim, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if ge.Bump() != DefaultBump {
		t.Fatalf("bump = %v, want DefaultBump", ge.Bump())
	}
	// independent draws at a tiny bump are dominated by noise but the
	// result must still be a finite number
	d, err := ge.Delta(context.Background(), Option{Strike: 100, Kind: Call})
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(d) || math.IsInf(d, 0) {
		t.Fatalf("delta = %v", d)
	}

	crn, _ := NewGreekEstimator(sim, 0, true)
	dc, err := crn.Delta(context.Background(), Option{Strike: 100, Kind: Call})
	if err != nil {
		t.Fatal(err)
	}
	if dc == d {
		t.Fatal("independent and common draws should not give the same delta")
	}
	if dc < 0 || dc > 1 {
		t.Fatalf("CRN delta %v outside [0, 1]", dc)
	}
}

func TestGreekEstimatorErrors(t *testing.T) {
	sim := newTestSimulator(t, 10, 1)
	tests := []struct {
		name string
		bump float64
	}{
		{"negative", -1},
		{"NaN", math.NaN()},
		{"infinite", math.Inf(1)},
		{"not below spot", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGreekEstimator(sim, tt.bump, false); !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("err = %v, want ErrInvalidParameter", err)
			}
		})
	}
	if _, err := NewGreekEstimator(nil, 1, false); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil simulator: err = %v", err)
	}

	ge, _ := NewGreekEstimator(sim, 1, false)
	if _, err := ge.Delta(context.Background(), Option{Strike: 100, Kind: "straddle"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("bad kind: err = %v", err)
	}
}
