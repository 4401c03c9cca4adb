package data

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/contactkeval/option-montecarlo/internal/logger"
)

// localFileDataProvider serves market data from CSV snapshots in a directory:
//
//	spot.csv                       ticker,price
//	<TICKER>_bars.csv              date,open,high,low,close,volume
//	<TICKER>_<YYYY-MM-DD>.csv      type,strike,bid,ask,last_price
//
// Anything missing is delegated to the secondary provider.
type localFileDataProvider struct {
	dir       string
	secondary Provider
}

type spotRow struct {
	Ticker string  `csv:"ticker"`
	Price  float64 `csv:"price"`
}

// NewLocalFileDataProvider convenience constructor.
func NewLocalFileDataProvider(dir string, secondary Provider) Provider {
	return &localFileDataProvider{dir: dir, secondary: secondary}
}

func (localFileDataProv *localFileDataProvider) Name() string { return "csv" }

func (localFileDataProv *localFileDataProvider) Secondary() Provider {
	return localFileDataProv.secondary
}

func (localFileDataProv *localFileDataProvider) GetUnderlyingPrice(ctx context.Context, ticker string) (float64, error) {
	var rows []*spotRow
	err := readCSV(filepath.Join(localFileDataProv.dir, "spot.csv"), &rows)
	if err == nil {
		for _, r := range rows {
			if strings.EqualFold(strings.TrimSpace(r.Ticker), ticker) && r.Price > 0 {
				return r.Price, nil
			}
		}
		err = fmt.Errorf("%w: no spot for %s in spot.csv", ErrNotAvailable, ticker)
	}
	if localFileDataProv.secondary != nil {
		logger.Debugf("delegating underlying price to %s: %v", localFileDataProv.secondary.Name(), err)
		return localFileDataProv.secondary.GetUnderlyingPrice(ctx, ticker)
	}
	return 0, err
}

func (localFileDataProv *localFileDataProvider) GetOptionExpiries(ctx context.Context, ticker string) ([]time.Time, error) {
	prefix := strings.ToUpper(ticker) + "_"
	matches, _ := filepath.Glob(filepath.Join(localFileDataProv.dir, prefix+"*.csv"))

	var expiries []time.Time
	for _, m := range matches {
		stem := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), prefix), ".csv")
		t, err := time.Parse(DateLayout, stem)
		if err != nil {
			continue // bars file or unrelated csv
		}
		expiries = append(expiries, t)
	}
	if len(expiries) == 0 {
		if localFileDataProv.secondary != nil {
			return localFileDataProv.secondary.GetOptionExpiries(ctx, ticker)
		}
		return nil, fmt.Errorf("%w: no chain files for %s in %s", ErrNotAvailable, ticker, localFileDataProv.dir)
	}
	return uniqueSortedDates(expiries), nil
}

func (localFileDataProv *localFileDataProvider) GetOptionChain(ctx context.Context, ticker string, expiry time.Time) (*OptionChain, error) {
	name := fmt.Sprintf("%s_%s.csv", strings.ToUpper(ticker), expiry.Format(DateLayout))

	var rows []*Quote
	if err := readCSV(filepath.Join(localFileDataProv.dir, name), &rows); err != nil {
		if localFileDataProv.secondary != nil {
			logger.Debugf("delegating option chain to %s: %v", localFileDataProv.secondary.Name(), err)
			return localFileDataProv.secondary.GetOptionChain(ctx, ticker, expiry)
		}
		return nil, err
	}

	chain := &OptionChain{Underlying: strings.ToUpper(ticker), Expiry: expiry}
	for _, r := range rows {
		chain.add(*r)
	}
	chain.sort()
	return chain, nil
}

func (localFileDataProv *localFileDataProvider) GetBars(ctx context.Context, ticker string, from, to time.Time) ([]Bar, error) {
	var rows []*Bar
	path := filepath.Join(localFileDataProv.dir, strings.ToUpper(ticker)+"_bars.csv")
	if err := readCSV(path, &rows); err != nil {
		if localFileDataProv.secondary != nil {
			return localFileDataProv.secondary.GetBars(ctx, ticker, from, to)
		}
		return nil, err
	}

	out := make([]Bar, 0, len(rows))
	for _, b := range rows {
		if b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

// readCSV decodes a header-led CSV file into out, a pointer to a slice.
func readCSV(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotAvailable, path)
		}
		return err
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
