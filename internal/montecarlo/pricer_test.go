package montecarlo

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestPricerFacade(t *testing.T) {
	ctx := context.Background()
	p := scenario(40000)
	p.Steps = 1
	pricer := NewPricer(nil, WithSeed(12), WithWorkers(2), WithCommonRandomNumbers(true))
	if pricer.Model().Name() != "gbm" || !pricer.CommonRandomNumbers() {
		t.Fatal("nil model should default to GBM with the given options")
	}

	price, err := pricer.PriceOption(ctx, p, 100, Call)
	if err != nil {
		t.Fatal(err)
	}
	est, err := pricer.Estimate(ctx, p, Option{Strike: 100, Kind: Call})
	if err != nil {
		t.Fatal(err)
	}
	if price != est.Price {
		t.Fatalf("PriceOption %v != Estimate %v with a fixed seed", price, est.Price)
	}
	if math.Abs(price-bsCall) > 4*est.StdErr {
		t.Fatalf("price %v vs bs %v", price, bsCall)
	}

	delta, err := pricer.Delta(ctx, p, 100, Call, 1)
	if err != nil {
		t.Fatal(err)
	}
	if delta < 0 || delta > 1 {
		t.Fatalf("delta = %v", delta)
	}
	gamma, err := pricer.Gamma(ctx, p, 100, Put, 1)
	if err != nil {
		t.Fatal(err)
	}
	if gamma < 0 {
		t.Fatalf("gamma = %v", gamma)
	}
	g, err := pricer.Greeks(ctx, p, Option{Strike: 100, Kind: Call}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if g.Delta != delta {
		t.Fatalf("Greeks delta %v != Delta %v", g.Delta, delta)
	}

	batch, err := pricer.SimulatePaths(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if batch.Paths() != p.Paths || batch.Steps() != 1 {
		t.Fatalf("batch shape %dx%d", batch.Paths(), batch.Steps())
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	ctx := context.Background()
	p := scenario(2000)
	p.Steps = 3

	batch, err := SimulatePaths(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if batch.Paths() != 2000 || batch.Steps() != 3 {
		t.Fatalf("shape %dx%d", batch.Paths(), batch.Steps())
	}
	price, err := PriceOption(ctx, p, 100, Put)
	if err != nil || !(price > 0) {
		t.Fatalf("PriceOption = %v, %v", price, err)
	}
	if _, err := Delta(ctx, p, 100, Call, 0); err != nil {
		t.Fatalf("Delta: %v", err)
	}
	if _, err := Gamma(ctx, p, 100, Call, 0); err != nil {
		t.Fatalf("Gamma: %v", err)
	}
}

func TestPricerErrors(t *testing.T) {
	ctx := context.Background()
	good := scenario(100)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"straddle", func() error { _, err := PriceOption(ctx, good, 100, "straddle"); return err }, ErrInvalidArgument},
		{"zero paths", func() error {
			p := good
			p.Paths = 0
			_, err := PriceOption(ctx, p, 100, Call)
			return err
		}, ErrInvalidParameter},
		{"negative maturity", func() error {
			p := good
			p.Maturity = -1
			_, err := Delta(ctx, p, 100, Call, 0)
			return err
		}, ErrInvalidParameter},
		{"negative strike", func() error { _, err := Gamma(ctx, good, -100, Put, 0); return err }, ErrInvalidArgument},
		{"negative bump", func() error { _, err := Delta(ctx, good, 100, Call, -1); return err }, ErrInvalidParameter},
		{"overflowing steps", func() error {
			p := good
			p.Steps, p.Paths = math.MaxInt, 1
			_, err := NewPricer(GBM{}, WithSeed(1)).PriceOption(ctx, p, 100, Call)
			return err
		}, ErrInvalidParameter},
		{"overflowing steps full batch", func() error {
			p := good
			p.Steps, p.Paths = math.MaxInt, 1
			_, err := SimulatePaths(ctx, p)
			return err
		}, ErrInvalidParameter},
		{"negative workers", func() error {
			_, err := NewPricer(GBM{}, WithWorkers(-2)).PriceOption(ctx, good, 100, Call)
			return err
		}, ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
