package data

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/contactkeval/option-montecarlo/internal/montecarlo"
	"github.com/contactkeval/option-montecarlo/internal/pricing"
)

// synthDataProvider implements Data Provider generating synthetic data.
// Output is a pure function of (ticker, seed, clock) so offline runs are
// reproducible.
type synthDataProvider struct {
	seed       uint64
	volatility float64
	rate       float64
	expiries   int
	now        func() time.Time
	secondary  Provider
}

// SyntheticConfig parameterises the synthetic market.
type SyntheticConfig struct {
	Seed       uint64
	Volatility float64 // default 0.2
	Rate       float64 // default 0.01
	Expiries   int     // monthly expiries listed, default 6
	Now        func() time.Time
}

func NewSyntheticProvider(cfg SyntheticConfig) Provider {
	p := &synthDataProvider{
		seed:       cfg.Seed,
		volatility: cfg.Volatility,
		rate:       cfg.Rate,
		expiries:   cfg.Expiries,
		now:        cfg.Now,
	}
	if p.volatility <= 0 {
		p.volatility = 0.2
	}
	if p.rate == 0 {
		p.rate = 0.01
	}
	if p.expiries <= 0 {
		p.expiries = 6
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

func (synthDataProv *synthDataProvider) Name() string { return "synthetic" }

func (synthDataProv *synthDataProvider) Secondary() Provider {
	return synthDataProv.secondary
}

func (synthDataProv *synthDataProvider) tickerHash(ticker string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(ticker)))
	return h.Sum64() ^ synthDataProv.seed
}

// GetUnderlyingPrice returns a stable price in [100, 300) for ticker.
func (synthDataProv *synthDataProvider) GetUnderlyingPrice(_ context.Context, ticker string) (float64, error) {
	if ticker == "" {
		return 0, fmt.Errorf("%w: empty ticker", ErrNotAvailable)
	}
	cents := synthDataProv.tickerHash(ticker) % 20000
	return 100.0 + float64(cents)/100, nil
}

// GetOptionExpiries lists the next monthly expiries (third Friday).
func (synthDataProv *synthDataProvider) GetOptionExpiries(_ context.Context, ticker string) ([]time.Time, error) {
	now := NewDate(synthDataProv.now()).Time
	out := make([]time.Time, 0, synthDataProv.expiries)
	for m := 0; len(out) < synthDataProv.expiries; m++ {
		first := time.Date(now.Year(), now.Month()+time.Month(m), 1, 0, 0, 0, 0, time.UTC)
		exp := thirdFriday(first)
		if exp.After(now) {
			out = append(out, exp)
		}
	}
	return out, nil
}

func thirdFriday(monthStart time.Time) time.Time {
	offset := (int(time.Friday) - int(monthStart.Weekday()) + 7) % 7
	return monthStart.AddDate(0, 0, offset+14)
}

// GetOptionChain prices a strike ladder around spot with Black-Scholes at
// the configured volatility. Bid and ask straddle the model price by 1%.
func (synthDataProv *synthDataProvider) GetOptionChain(ctx context.Context, ticker string, expiry time.Time) (*OptionChain, error) {
	spot, err := synthDataProv.GetUnderlyingPrice(ctx, ticker)
	if err != nil {
		return nil, err
	}
	now := NewDate(synthDataProv.now()).Time
	T := math.Max(expiry.Sub(now).Hours()/24/365, 1.0/365)

	interval := strikeInterval(spot)
	lo := math.Ceil(spot*0.8/interval) * interval
	hi := math.Floor(spot*1.2/interval) * interval

	chain := &OptionChain{Underlying: strings.ToUpper(ticker), Expiry: expiry}
	for k := lo; k <= hi+1e-9; k += interval {
		for _, isCall := range []bool{true, false} {
			px := pricing.BlackScholesPrice(isCall, spot, k, T, synthDataProv.rate, synthDataProv.volatility)
			spread := math.Max(px*0.01, 0.01)
			q := Quote{
				Type:      "put",
				Strike:    k,
				Bid:       round2(math.Max(px-spread, 0)),
				Ask:       round2(px + spread),
				LastPrice: round2(px),
			}
			if isCall {
				q.Type = "call"
			}
			chain.add(q)
		}
	}
	return chain, nil
}

// strikeInterval picks a listing grid by price level.
func strikeInterval(spot float64) float64 {
	switch {
	case spot >= 1000:
		return 50
	case spot >= 100:
		return 5
	default:
		return 1
	}
}

// GetBars walks a GBM path from spot over the weekdays in [from, to].
func (synthDataProv *synthDataProvider) GetBars(ctx context.Context, ticker string, from, to time.Time) ([]Bar, error) {
	var days []time.Time
	for cur := NewDate(from).Time; !cur.After(to); cur = cur.AddDate(0, 0, 1) {
		if cur.Weekday() != time.Saturday && cur.Weekday() != time.Sunday {
			days = append(days, cur)
		}
	}
	if len(days) == 0 {
		return nil, nil
	}

	spot, err := synthDataProv.GetUnderlyingPrice(ctx, ticker)
	if err != nil {
		return nil, err
	}
	params := montecarlo.Params{
		Spot:       spot,
		Rate:       0,
		Volatility: synthDataProv.volatility,
		Maturity:   float64(len(days)) / pricing.TradingDays,
		Steps:      len(days),
		Paths:      1,
	}
	sim, err := montecarlo.NewSimulator(montecarlo.GBM{}, params, montecarlo.Options{Seed: synthDataProv.tickerHash(ticker) | 1, Workers: 1})
	if err != nil {
		return nil, err
	}
	batch, err := sim.Simulate(ctx)
	if err != nil {
		return nil, err
	}
	path := batch.Path(0)

	out := make([]Bar, 0, len(days))
	for i, d := range days {
		open, closePx := path[i], path[i+1]
		out = append(out, Bar{
			Date:   NewDate(d),
			Open:   open,
			High:   math.Max(open, closePx),
			Low:    math.Min(open, closePx),
			Close:  closePx,
			Volume: float64(1000 + (synthDataProv.tickerHash(ticker)+uint64(i))%5000),
		})
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
