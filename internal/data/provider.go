// Package data supplies the market inputs a pricing run starts from:
// underlying spot, listed expiries, option chains and daily bars.
//
// Providers can be chained: when a provider cannot answer it delegates to
// its secondary, so a local CSV snapshot can sit in front of a live API.
package data

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ErrNotAvailable is returned when a provider has no data for a request
// and no secondary to delegate to.
var ErrNotAvailable = errors.New("market data not available")

// DateMatchType selects how a target date is matched to a listed date.
type DateMatchType string

const (
	MatchExact   DateMatchType = "exact"   // must match exactly
	MatchHigher  DateMatchType = "higher"  // next available date after target
	MatchLower   DateMatchType = "lower"   // last available date before target
	MatchNearest DateMatchType = "nearest" // closest available date (default)
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Provider supplies market data.
type Provider interface {
	Name() string
	Secondary() Provider
	GetUnderlyingPrice(ctx context.Context, ticker string) (float64, error)
	GetOptionExpiries(ctx context.Context, ticker string) ([]time.Time, error)
	GetOptionChain(ctx context.Context, ticker string, expiry time.Time) (*OptionChain, error)
	GetBars(ctx context.Context, ticker string, from, to time.Time) ([]Bar, error)
}

// Bar simplified OHLC
type Bar struct {
	Date   Date    `csv:"date" json:"date"`
	Open   float64 `csv:"open" json:"open"`
	High   float64 `csv:"high" json:"high"`
	Low    float64 `csv:"low" json:"low"`
	Close  float64 `csv:"close" json:"close"`
	Volume float64 `csv:"volume" json:"volume"`
}

// Quote is one listed option.
type Quote struct {
	Type      string  `csv:"type" json:"type"` // "call" or "put"
	Strike    float64 `csv:"strike" json:"strike"`
	Bid       float64 `csv:"bid" json:"bid"`
	Ask       float64 `csv:"ask" json:"ask"`
	LastPrice float64 `csv:"last_price" json:"last_price"`
}

// Mid is the bid/ask midpoint, or the last trade when either side is
// missing.
func (q Quote) Mid() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return q.LastPrice
}

// OptionChain is the set of calls and puts for one expiry.
type OptionChain struct {
	Underlying string    `json:"underlying"`
	Expiry     time.Time `json:"expiry"`
	Calls      []Quote   `json:"calls"`
	Puts       []Quote   `json:"puts"`
}

// Strikes returns the sorted, de-duplicated strikes across both sides.
func (c *OptionChain) Strikes() []float64 {
	seen := map[float64]struct{}{}
	var out []float64
	for _, side := range [][]Quote{c.Calls, c.Puts} {
		for _, q := range side {
			if _, ok := seen[q.Strike]; ok || q.Strike <= 0 {
				continue
			}
			seen[q.Strike] = struct{}{}
			out = append(out, q.Strike)
		}
	}
	sort.Float64s(out)
	return out
}

// Find returns the quote of the given type at strike.
func (c *OptionChain) Find(optType string, strike float64) (Quote, bool) {
	side := c.Calls
	if strings.EqualFold(optType, "put") {
		side = c.Puts
	}
	for _, q := range side {
		if q.Strike == strike {
			return q, true
		}
	}
	return Quote{}, false
}

// add files q on the right side of the chain.
func (c *OptionChain) add(q Quote) {
	q.Type = strings.ToLower(q.Type)
	if q.Type == "put" {
		c.Puts = append(c.Puts, q)
		return
	}
	q.Type = "call"
	c.Calls = append(c.Calls, q)
}

func (c *OptionChain) sort() {
	sort.Slice(c.Calls, func(i, j int) bool { return c.Calls[i].Strike < c.Calls[j].Strike })
	sort.Slice(c.Puts, func(i, j int) bool { return c.Puts[i].Strike < c.Puts[j].Strike })
}

// Date is a calendar date that round-trips through CSV as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalCSV() (string, error) {
	return d.Format(DateLayout), nil
}

func (d *Date) UnmarshalCSV(s string) error {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// --------------------------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------------------------

// OptionSymbolFromParts: OCC-like formatter (best-effort)
func OptionSymbolFromParts(underlying string, expiryDate time.Time, optionType string, strike float64) string {
	// OCC: <root><YYMMDD><C|P><strike*1000 padded to 8 digits>
	expDt := expiryDate.UTC().Format("060102")
	optType := "C"
	if strings.ToLower(optionType) == "put" || strings.ToLower(optionType) == "p" {
		optType = "P"
	}
	strikeInt := int(math.Round(strike * 1000))
	return fmt.Sprintf("O:%s%s%s%08d", strings.ToUpper(underlying), expDt, optType, strikeInt)
}

// MatchDate picks the listed date that best fits d under mode. It returns
// the zero time when nothing qualifies.
func MatchDate(d time.Time, dates []time.Time, mode DateMatchType) time.Time {

	// Search useful info
	var (
		exact  time.Time
		lower  time.Time
		higher time.Time
	)

	// default to MatchNearest
	switch mode {
	case MatchExact, MatchHigher, MatchLower, MatchNearest:
		// ok
	default:
		mode = MatchNearest
	}

	sorted := append([]time.Time(nil), dates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	for _, dt := range sorted {
		if dt.Equal(d) {
			exact = dt
		}
		if dt.Before(d) {
			lower = dt // will keep last < d
		}
		if dt.After(d) && higher.IsZero() {
			higher = dt
		}
	}

	switch mode {

	case MatchExact:
		return exact // may be zero → caller skips it

	case MatchLower:
		return lower

	case MatchHigher:
		return higher

	case MatchNearest:
		if !exact.IsZero() {
			return exact
		}
		// choose whichever is closer
		switch {
		case !lower.IsZero() && !higher.IsZero():
			if d.Sub(lower) <= higher.Sub(d) {
				return lower
			}
			return higher
		case !lower.IsZero():
			return lower
		case !higher.IsZero():
			return higher
		}
	}

	return time.Time{} // nothing found
}

// Closest finds the closest float64 in a sorted slice to the target value using binary search (sort.Search).
// Ties go to the lower value. An empty list returns target unchanged.
func Closest(numList []float64, target float64) float64 {
	n := len(numList)
	if n == 0 {
		return target
	}

	i := sort.Search(n, func(i int) bool {
		return numList[i] >= target
	})

	if i == 0 {
		return numList[0]
	}
	if i == n {
		return numList[n-1]
	}

	before := numList[i-1]
	after := numList[i]

	if math.Abs(before-target) <= math.Abs(after-target) {
		return before
	}
	return after
}

func uniqueSortedDates(in []time.Time) []time.Time {
	seen := map[string]time.Time{}
	for _, t := range in {
		seen[t.Format(DateLayout)] = t
	}
	out := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
