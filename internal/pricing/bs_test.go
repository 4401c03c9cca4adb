package pricing

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestBlackScholesPrice(t *testing.T) {
	tests := []struct {
		name   string
		isCall bool
		S, K   float64
		T, r   float64
		sigma  float64
		want   float64
	}{
		{"atm call", true, 100, 100, 1, 0.05, 0.2, 10.450583572185565},
		{"atm put", false, 100, 100, 1, 0.05, 0.2, 5.573526022256971},
		{"expired call is intrinsic", true, 110, 100, 0, 0.05, 0.2, 10},
		{"expired put otm", false, 110, 100, 0, 0.05, 0.2, 0},
		{"zero vol call is forward intrinsic", true, 100, 100, 1, 0.05, 0, 100 - 100*math.Exp(-0.05)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := BlackScholesPrice(tc.isCall, tc.S, tc.K, tc.T, tc.r, tc.sigma)
			if !almostEqual(got, tc.want, 1e-9) {
				t.Fatalf("got %.12f, want %.12f", got, tc.want)
			}
		})
	}
}

func TestPutCallParity(t *testing.T) {
	for _, K := range []float64{80, 95, 100, 120} {
		c := BlackScholesPrice(true, 100, K, 0.5, 0.03, 0.25)
		p := BlackScholesPrice(false, 100, K, 0.5, 0.03, 0.25)
		if want := 100 - K*math.Exp(-0.03*0.5); !almostEqual(c-p, want, 1e-9) {
			t.Errorf("K=%v: C-P = %v, want %v", K, c-p, want)
		}
	}
}

func TestGreeksClosedForm(t *testing.T) {
	if got := BlackScholesDelta(true, 100, 100, 1, 0.05, 0.2); !almostEqual(got, 0.636830651, 1e-6) {
		t.Errorf("call delta = %v", got)
	}
	if got := BlackScholesDelta(false, 100, 100, 1, 0.05, 0.2); !almostEqual(got, 0.636830651-1, 1e-6) {
		t.Errorf("put delta = %v", got)
	}
	if got := BlackScholesGamma(100, 100, 1, 0.05, 0.2); !almostEqual(got, 0.018762017, 1e-6) {
		t.Errorf("gamma = %v", got)
	}
	if got := BlackScholesVega(100, 100, 1, 0.05, 0.2); !almostEqual(got, 37.52403469, 1e-5) {
		t.Errorf("vega = %v", got)
	}
	if BlackScholesGamma(100, 100, 0, 0.05, 0.2) != 0 {
		t.Error("gamma at expiry should be 0")
	}
	if BlackScholesDelta(true, 120, 100, 0, 0.05, 0.2) != 1 {
		t.Error("expired ITM call delta should be 1")
	}
}

func TestImpliedVolRoundTrip(t *testing.T) {
	for _, sigma := range []float64{0.1, 0.2, 0.45, 0.9} {
		for _, isCall := range []bool{true, false} {
			price := BlackScholesPrice(isCall, 100, 105, 0.75, 0.02, sigma)
			iv, err := ImpliedVol(isCall, 100, 105, 0.75, 0.02, price)
			if err != nil {
				t.Fatalf("sigma=%v call=%v: %v", sigma, isCall, err)
			}
			if !almostEqual(iv, sigma, 1e-4) {
				t.Errorf("sigma=%v call=%v: iv = %v", sigma, isCall, iv)
			}
		}
	}
}

func TestImpliedVolErrors(t *testing.T) {
	if _, err := ImpliedVol(true, 100, 100, 0, 0.01, 5); err == nil {
		t.Error("expected error for T=0")
	}
	if _, err := ImpliedVol(true, 100, 100, 1, 0.01, 0); err == nil {
		t.Error("expected error for zero price")
	}
	// Below intrinsic: no volatility reproduces it.
	if _, err := ImpliedVol(true, 150, 100, 1, 0.01, 10); !errors.Is(err, ErrNoConvergence) {
		t.Errorf("expected ErrNoConvergence, got %v", err)
	}
}

func TestImpliedVolATM(t *testing.T) {
	c := BlackScholesPrice(true, 100, 100, 0.5, 0.01, 0.3)
	p := BlackScholesPrice(false, 100, 100, 0.5, 0.01, 0.3)
	iv, err := ImpliedVolATM(100, 100, 0.5, 0.01, c, p)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(iv, 0.3, 1e-4) {
		t.Fatalf("iv = %v", iv)
	}

	// One bad side falls back to the other.
	iv, err = ImpliedVolATM(100, 100, 0.5, 0.01, c, 0)
	if err != nil || !almostEqual(iv, 0.3, 1e-4) {
		t.Fatalf("iv = %v, err = %v", iv, err)
	}

	if _, err := ImpliedVolATM(100, 100, 0.5, 0.01, 0, 0); err == nil {
		t.Fatal("expected error when neither side converges")
	}
}

func TestHistoricalVolatility(t *testing.T) {
	if got := HistoricalVolatility([]float64{100}); got != 0.30 {
		t.Errorf("fallback = %v, want 0.30", got)
	}

	// Alternating +1%/-1% log returns.
	closes := []float64{100}
	for i := 0; i < 50; i++ {
		step := 0.01
		if i%2 == 1 {
			step = -0.01
		}
		closes = append(closes, closes[len(closes)-1]*math.Exp(step))
	}
	got := HistoricalVolatility(closes)
	// sample stdev of 50 alternating ±0.01 values is 0.01*sqrt(50/49)
	want := 0.01 * math.Sqrt(50.0/49.0) * math.Sqrt(TradingDays)
	if !almostEqual(got, want, 1e-9) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestStrikeFromDelta(t *testing.T) {
	const S, T, r, sigma = 100.0, 0.5, 0.02, 0.25
	tests := []struct {
		isCall bool
		target float64
	}{
		{true, 0.3},
		{true, 50},
		{false, 0.25},
		{false, -0.4},
	}
	for _, tc := range tests {
		K, err := StrikeFromDelta(tc.isCall, S, T, r, sigma, tc.target)
		if err != nil {
			t.Fatalf("target %v: %v", tc.target, err)
		}
		want := math.Abs(tc.target)
		if want > 1 {
			want /= 100
		}
		got := math.Abs(BlackScholesDelta(tc.isCall, S, K, T, r, sigma))
		if !almostEqual(got, want, 1e-9) {
			t.Errorf("call=%v target=%v: strike %v has delta %v", tc.isCall, tc.target, K, got)
		}
	}

	if _, err := StrikeFromDelta(true, S, T, r, sigma, 0); err == nil {
		t.Error("expected error for zero delta")
	}
}
