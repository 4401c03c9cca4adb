package montecarlo

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestHestonValidate(t *testing.T) {
	p := scenario(10)
	tests := []struct {
		name string
		h    Heston
		ok   bool
	}{
		{"typical", Heston{V0: 0.04, Kappa: 2, Theta: 0.04, Xi: 0.3, Rho: -0.7}, true},
		{"zero v0 falls back to sigma", Heston{Kappa: 2, Theta: 0.04, Xi: 0.3}, true},
		{"negative kappa", Heston{Kappa: -1, Theta: 0.04}, false},
		{"negative theta", Heston{Kappa: 1, Theta: -0.04}, false},
		{"rho above one", Heston{Kappa: 1, Theta: 0.04, Rho: 1.1}, false},
		{"NaN xi", Heston{Kappa: 1, Theta: 0.04, Xi: math.NaN()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.h.Validate(p)
			if tt.ok != (err == nil) {
				t.Fatalf("Validate() = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("err = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestHestonConstantVarianceMatchesBlackScholes(t *testing.T) {
	// with Xi = 0 and V0 = Theta = sigma^2 the variance never moves and the
	// log-Euler step is exact
	h := Heston{V0: 0.04, Kappa: 1.5, Theta: 0.04, Xi: 0, Rho: -0.5}
	p := scenario(100000)
	p.Steps = 4
	sim, err := NewSimulator(h, p, Options{Seed: 31})
	if err != nil {
		t.Fatal(err)
	}
	est, err := sim.Estimate(context.Background(), Option{Strike: 100, Kind: Call})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(est.Price-bsCall) > 4*est.StdErr {
		t.Fatalf("heston %v vs bs %v (stderr %v)", est.Price, bsCall, est.StdErr)
	}
}

func TestHestonMartingale(t *testing.T) {
	h := Heston{V0: 0.04, Kappa: 2, Theta: 0.06, Xi: 0.5, Rho: -0.7}
	p := scenario(50000)
	p.Steps = 50
	sim, err := NewSimulator(h, p, Options{Seed: 77})
	if err != nil {
		t.Fatal(err)
	}
	batch, err := sim.Simulate(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// a call struck near zero prices the discounted terminal mean, which
	// must recover the spot
	est, err := Price(batch, Option{Strike: 1e-9, Kind: Call}, p.Rate, p.Maturity)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(est.Price-p.Spot) > 4*est.StdErr+1e-6 {
		t.Fatalf("discounted mean %v vs spot %v (stderr %v)", est.Price, p.Spot, est.StdErr)
	}
}
