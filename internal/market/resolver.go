// Package market turns a ticker-level request (which expiry, which strike,
// where the volatility comes from) into the plain numeric inputs the
// Monte Carlo core consumes.
package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/contactkeval/option-montecarlo/internal/data"
	"github.com/contactkeval/option-montecarlo/internal/logger"
	"github.com/contactkeval/option-montecarlo/internal/montecarlo"
	"github.com/contactkeval/option-montecarlo/internal/pricing"
)

const (
	DefaultRate        = 0.01
	DefaultVolatility  = 0.2
	DefaultHistoryDays = 365
)

var ErrNoExpiry = errors.New("no matching expiry")

// VolSource selects where sigma comes from.
type VolSource string

const (
	VolFixed      VolSource = "fixed"
	VolImplied    VolSource = "implied"
	VolHistorical VolSource = "historical"
)

func ParseVolSource(s string) (VolSource, error) {
	switch v := VolSource(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return VolFixed, nil
	case VolFixed, VolImplied, VolHistorical:
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown vol source %q (want fixed, implied or historical)", montecarlo.ErrInvalidArgument, s)
}

// Request describes one option to price off market data.
type Request struct {
	Ticker string
	// Expiry is YYYY-MM-DD. When empty, DTE > 0 picks the expiry nearest
	// to AsOf+DTE, otherwise ExpiryIndex indexes the listed expiries.
	Expiry      string
	ExpiryIndex int
	DTE         int

	Strike      string // see ResolveStrike
	Kind        montecarlo.OptionKind
	Rate        float64
	VolSource   VolSource
	Volatility  *float64 // fixed sigma, also the fallback for the other sources; nil means DefaultVolatility
	HistoryDays int

	Steps int
	Paths int
	AsOf  time.Time
}

// Resolved is the outcome of Resolve.
type Resolved struct {
	Ticker      string
	Spot        float64
	Expiry      time.Time
	Days        int
	Volatility  float64
	VolSource   VolSource
	Params      montecarlo.Params
	Option      montecarlo.Option
	MarketPrice float64 // quote mid at the strike, 0 when not listed
	Chain       *data.OptionChain
}

// Resolver resolves requests against a data provider.
type Resolver struct {
	prov data.Provider
	now  func() time.Time
}

func NewResolver(prov data.Provider) *Resolver {
	return &Resolver{prov: prov, now: time.Now}
}

// Resolve fetches spot, expiry and chain, picks the strike and volatility
// and returns validated pricing inputs.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolved, error) {
	if req.Ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", montecarlo.ErrInvalidArgument)
	}
	if !req.Kind.Valid() {
		kind, err := montecarlo.ParseOptionKind(string(req.Kind))
		if err != nil {
			return nil, err
		}
		req.Kind = kind
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = r.now()
	}
	asOf = data.NewDate(asOf).Time

	spot, err := r.prov.GetUnderlyingPrice(ctx, req.Ticker)
	if err != nil {
		return nil, fmt.Errorf("spot %s: %w", req.Ticker, err)
	}

	expiry, err := r.resolveExpiry(ctx, req, asOf)
	if err != nil {
		return nil, err
	}

	// T = max(days/365, 1/365)
	days := int(math.Round(expiry.Sub(asOf).Hours() / 24))
	T := math.Max(float64(days)/365, 1.0/365)

	chain, err := r.prov.GetOptionChain(ctx, req.Ticker, expiry)
	if err != nil {
		logger.Infof("event=chain_unavailable ticker=%s expiry=%s err=%v", req.Ticker, expiry.Format(data.DateLayout), err)
		chain = nil
	}
	var strikes []float64
	if chain != nil {
		strikes = chain.Strikes()
	}

	sigma, source := r.resolveVolatility(ctx, req, spot, T, chain, asOf)

	strike, err := ResolveStrike(req.Strike, StrikeContext{
		Spot:    spot,
		Strikes: strikes,
		DeltaStrike: func(target float64) (float64, error) {
			return pricing.StrikeFromDelta(req.Kind == montecarlo.Call, spot, T, req.Rate, sigma, target)
		},
	})
	if err != nil {
		return nil, err
	}

	res := &Resolved{
		Ticker:     strings.ToUpper(req.Ticker),
		Spot:       spot,
		Expiry:     expiry,
		Days:       days,
		Volatility: sigma,
		VolSource:  source,
		Params: montecarlo.Params{
			Spot:       spot,
			Rate:       req.Rate,
			Volatility: sigma,
			Maturity:   T,
			Steps:      req.Steps,
			Paths:      req.Paths,
		},
		Option: montecarlo.Option{Strike: strike, Kind: req.Kind},
		Chain:  chain,
	}
	if chain != nil {
		if q, ok := chain.Find(string(req.Kind), strike); ok {
			res.MarketPrice = q.Mid()
		}
	}

	if err := res.Params.Validate(); err != nil {
		return nil, err
	}
	if err := res.Option.Validate(); err != nil {
		return nil, err
	}

	logger.Infof("event=market_resolved ticker=%s spot=%.4f expiry=%s days=%d strike=%.2f kind=%s sigma=%.4f source=%s",
		res.Ticker, spot, expiry.Format(data.DateLayout), days, strike, req.Kind, sigma, source)
	return res, nil
}

func (r *Resolver) resolveExpiry(ctx context.Context, req Request, asOf time.Time) (time.Time, error) {
	if req.Expiry != "" {
		t, err := time.Parse(data.DateLayout, req.Expiry)
		if err != nil {
			return time.Time{}, fmt.Errorf("expiry %q: %w", req.Expiry, err)
		}
		return t, nil
	}

	expiries, err := r.prov.GetOptionExpiries(ctx, req.Ticker)
	if err != nil {
		return time.Time{}, fmt.Errorf("expiries %s: %w", req.Ticker, err)
	}
	// Listed expiries on or before the valuation date are not priceable.
	var live []time.Time
	for _, e := range expiries {
		if e.After(asOf) {
			live = append(live, e)
		}
	}
	if len(live) == 0 {
		return time.Time{}, fmt.Errorf("%w: %s has no expiry after %s", ErrNoExpiry, req.Ticker, asOf.Format(data.DateLayout))
	}

	if req.DTE > 0 {
		e := data.MatchDate(asOf.AddDate(0, 0, req.DTE), live, data.MatchNearest)
		if e.IsZero() {
			return time.Time{}, fmt.Errorf("%w: dte=%d", ErrNoExpiry, req.DTE)
		}
		return e, nil
	}

	if req.ExpiryIndex < 0 || req.ExpiryIndex >= len(live) {
		return time.Time{}, fmt.Errorf("%w: index %d out of range [0,%d)", ErrNoExpiry, req.ExpiryIndex, len(live))
	}
	return live[req.ExpiryIndex], nil
}

// resolveVolatility falls back to the fixed sigma (or DefaultVolatility
// when none is set) whenever the requested source cannot produce a number.
// A fixed sigma of zero is kept.
func (r *Resolver) resolveVolatility(ctx context.Context, req Request, spot, T float64, chain *data.OptionChain, asOf time.Time) (float64, VolSource) {
	fixed := DefaultVolatility
	if req.Volatility != nil {
		fixed = *req.Volatility
	}

	switch req.VolSource {
	case VolImplied:
		if chain == nil {
			break
		}
		atm := data.Closest(chain.Strikes(), spot)
		call, okC := chain.Find("call", atm)
		put, okP := chain.Find("put", atm)
		if !okC && !okP {
			break
		}
		iv, err := pricing.ImpliedVolATM(spot, atm, T, req.Rate, call.Mid(), put.Mid())
		if err != nil {
			logger.Infof("event=implied_vol_failed strike=%.2f err=%v", atm, err)
			break
		}
		logger.Tracef("event=iv_estimated iv=%.4f strike=%.2f T=%.4f", iv, atm, T)
		return iv, VolImplied

	case VolHistorical:
		days := req.HistoryDays
		if days <= 0 {
			days = DefaultHistoryDays
		}
		bars, err := r.prov.GetBars(ctx, req.Ticker, asOf.AddDate(0, 0, -days), asOf)
		if err != nil || len(bars) < 3 {
			logger.Infof("event=historical_vol_unavailable bars=%d err=%v", len(bars), err)
			break
		}
		closes := make([]float64, len(bars))
		for i, b := range bars {
			closes[i] = b.Close
		}
		return pricing.HistoricalVolatility(closes), VolHistorical
	}

	return fixed, VolFixed
}
