package data

// Massive-backed Provider: previous close, contract reference, option chain
// snapshots and daily aggregates over the Massive REST API.
//
// Requests go through a resty client. A 429 response is retried after
// sleeping until the next minute boundary, which is when the per-minute
// quota resets.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/contactkeval/option-montecarlo/internal/logger"
)

// DefaultMassiveBaseURL is the production API root.
const DefaultMassiveBaseURL = "https://api.massive.com"

// massiveDataProvider implements the Provider interface using Massive APIs.
type massiveDataProvider struct {
	apiKey    string
	client    *resty.Client
	secondary Provider
}

// MassiveOption customises a Massive provider.
type MassiveOption func(*massiveDataProvider)

// WithBaseURL points the provider at another API root.
func WithBaseURL(baseURL string) MassiveOption {
	return func(p *massiveDataProvider) {
		if baseURL != "" {
			p.client.SetBaseURL(strings.TrimRight(baseURL, "/"))
		}
	}
}

// WithSecondary sets the fallback provider.
func WithSecondary(secondary Provider) MassiveOption {
	return func(p *massiveDataProvider) { p.secondary = secondary }
}

// WithRateLimitWait overrides how long to wait after a 429.
func WithRateLimitWait(wait func() time.Duration) MassiveOption {
	return func(p *massiveDataProvider) {
		p.client.SetRetryWaitTime(0)
		p.client.SetRetryAfter(func(*resty.Client, *resty.Response) (time.Duration, error) {
			return wait(), nil
		})
	}
}

// NewMassiveDataProvider constructs a Massive-backed data provider.
func NewMassiveDataProvider(apiKey string, opts ...MassiveOption) Provider {
	logger.Infof("initializing Massive data provider")

	client := resty.New().
		SetBaseURL(DefaultMassiveBaseURL).
		SetTimeout(60*time.Second).
		SetAuthToken(apiKey).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "massive-client/1.0").
		SetRetryCount(5).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(time.Minute).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() == http.StatusTooManyRequests
		}).
		SetRetryAfter(func(*resty.Client, *resty.Response) (time.Duration, error) {
			return untilNextMinute(time.Now()), nil
		}).
		AddRetryHook(func(r *resty.Response, _ error) {
			logger.Infof("rate limit hit, retrying %s", r.Request.URL)
		})

	p := &massiveDataProvider{apiKey: apiKey, client: client}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func untilNextMinute(now time.Time) time.Duration {
	return now.Truncate(time.Minute).Add(time.Minute).Sub(now)
}

func (massiveDataProv *massiveDataProvider) Name() string { return "massive" }

// Secondary returns the configured secondary Provider, if any.
func (massiveDataProv *massiveDataProvider) Secondary() Provider {
	return massiveDataProv.secondary
}

// GetUnderlyingPrice returns the previous session close.
func (massiveDataProv *massiveDataProvider) GetUnderlyingPrice(ctx context.Context, ticker string) (float64, error) {
	var body struct {
		Results []struct {
			Close float64 `json:"c"`
		} `json:"results"`
	}
	path := fmt.Sprintf("/v2/aggs/ticker/%s/prev", url.PathEscape(strings.ToUpper(ticker)))
	if err := massiveDataProv.get(ctx, path, map[string]string{"adjusted": "true"}, &body); err != nil {
		return massiveDataProv.fallbackPrice(ctx, ticker, err)
	}
	if len(body.Results) == 0 || body.Results[0].Close <= 0 {
		return massiveDataProv.fallbackPrice(ctx, ticker, fmt.Errorf("%w: no previous close for %s", ErrNotAvailable, ticker))
	}
	logger.Debugf("event=underlying_price provider=massive ticker=%s price=%.4f", ticker, body.Results[0].Close)
	return body.Results[0].Close, nil
}

func (massiveDataProv *massiveDataProvider) fallbackPrice(ctx context.Context, ticker string, cause error) (float64, error) {
	if massiveDataProv.secondary != nil {
		logger.Debugf("delegating underlying price to %s: %v", massiveDataProv.secondary.Name(), cause)
		return massiveDataProv.secondary.GetUnderlyingPrice(ctx, ticker)
	}
	return 0, cause
}

// massiveContract represents a single option contract
// returned by Massive's contracts reference endpoint.
type massiveContract struct {
	ContractType     string  `json:"contract_type"`
	ExerciseStyle    string  `json:"exercise_style"`
	ExpiryDate       string  `json:"expiration_date"`
	StrikePrice      float64 `json:"strike_price"`
	Ticker           string  `json:"ticker"`
	UnderlyingTicker string  `json:"underlying_ticker"`
}

// GetOptionExpiries lists the unexpired expiries for ticker.
func (massiveDataProv *massiveDataProvider) GetOptionExpiries(ctx context.Context, ticker string) ([]time.Time, error) {
	query := map[string]string{
		"underlying_ticker": strings.ToUpper(ticker),
		"expired":           "false",
		"limit":             "1000",
	}

	var expiries []time.Time
	err := massiveDataProv.paginate(ctx, "/v3/reference/options/contracts", query, func(raw json.RawMessage) error {
		var contracts []massiveContract
		if err := json.Unmarshal(raw, &contracts); err != nil {
			return err
		}
		for _, c := range contracts {
			t, err := time.Parse(DateLayout, c.ExpiryDate)
			if err != nil {
				continue // skip malformed expiry dates
			}
			expiries = append(expiries, t)
		}
		return nil
	})
	if err == nil && len(expiries) == 0 {
		err = fmt.Errorf("%w: no listed expiries for %s", ErrNotAvailable, ticker)
	}
	if err != nil {
		if massiveDataProv.secondary != nil {
			logger.Debugf("delegating expiries to %s: %v", massiveDataProv.secondary.Name(), err)
			return massiveDataProv.secondary.GetOptionExpiries(ctx, ticker)
		}
		return nil, err
	}

	out := uniqueSortedDates(expiries)
	logger.Infof("resolved %d unique expiries for %s", len(out), ticker)
	return out, nil
}

// massiveSnapshot is one entry of the option chain snapshot endpoint.
type massiveSnapshot struct {
	Details struct {
		ContractType string  `json:"contract_type"`
		ExpiryDate   string  `json:"expiration_date"`
		StrikePrice  float64 `json:"strike_price"`
	} `json:"details"`
	Day struct {
		Close float64 `json:"close"`
	} `json:"day"`
	LastQuote struct {
		Bid float64 `json:"bid"`
		Ask float64 `json:"ask"`
	} `json:"last_quote"`
}

// GetOptionChain fetches the chain snapshot for one expiry.
func (massiveDataProv *massiveDataProvider) GetOptionChain(ctx context.Context, ticker string, expiry time.Time) (*OptionChain, error) {
	path := fmt.Sprintf("/v3/snapshot/options/%s", url.PathEscape(strings.ToUpper(ticker)))
	query := map[string]string{
		"expiration_date": expiry.Format(DateLayout),
		"limit":           "250",
	}

	chain := &OptionChain{Underlying: strings.ToUpper(ticker), Expiry: expiry}
	err := massiveDataProv.paginate(ctx, path, query, func(raw json.RawMessage) error {
		var snaps []massiveSnapshot
		if err := json.Unmarshal(raw, &snaps); err != nil {
			return err
		}
		for _, s := range snaps {
			chain.add(Quote{
				Type:      s.Details.ContractType,
				Strike:    s.Details.StrikePrice,
				Bid:       s.LastQuote.Bid,
				Ask:       s.LastQuote.Ask,
				LastPrice: s.Day.Close,
			})
		}
		return nil
	})
	if err == nil && len(chain.Calls)+len(chain.Puts) == 0 {
		err = fmt.Errorf("%w: empty chain for %s %s", ErrNotAvailable, ticker, expiry.Format(DateLayout))
	}
	if err != nil {
		if massiveDataProv.secondary != nil {
			logger.Debugf("delegating option chain to %s: %v", massiveDataProv.secondary.Name(), err)
			return massiveDataProv.secondary.GetOptionChain(ctx, ticker, expiry)
		}
		return nil, err
	}

	chain.sort()
	logger.Tracef("chain %s %s calls=%d puts=%d", ticker, expiry.Format(DateLayout), len(chain.Calls), len(chain.Puts))
	return chain, nil
}

// GetBars retrieves daily OHLCV bars for ticker between from and to.
func (massiveDataProv *massiveDataProvider) GetBars(ctx context.Context, ticker string, from, to time.Time) ([]Bar, error) {
	logger.Debugf("fetching bars: %s from=%s to=%s", ticker, from.Format(DateLayout), to.Format(DateLayout))

	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s",
		url.PathEscape(strings.ToUpper(ticker)), from.Format(DateLayout), to.Format(DateLayout))

	// Massive/POLYGON style response model
	var body struct {
		Results []struct {
			Open      float64 `json:"o"`
			Close     float64 `json:"c"`
			High      float64 `json:"h"`
			Low       float64 `json:"l"`
			Volume    float64 `json:"v"`
			Timestamp int64   `json:"t"` // epoch millis
		} `json:"results"`
	}
	query := map[string]string{"adjusted": "true", "sort": "asc", "limit": "50000"}
	if err := massiveDataProv.get(ctx, path, query, &body); err != nil {
		if massiveDataProv.secondary != nil {
			return massiveDataProv.secondary.GetBars(ctx, ticker, from, to)
		}
		return nil, err
	}

	logger.Tracef("bars received: %d records", len(body.Results))

	out := make([]Bar, 0, len(body.Results))
	for _, r := range body.Results {
		out = append(out, Bar{
			Date:   NewDate(time.UnixMilli(r.Timestamp).UTC()),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return out, nil
}

// get performs one request and decodes the JSON body into out.
func (massiveDataProv *massiveDataProvider) get(ctx context.Context, path string, query map[string]string, out any) error {
	req := massiveDataProv.client.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("massive api request failed: %w", err)
	}
	return decodeMassive(resp, out)
}

// paginate follows next_url links, handing each page's results to fn.
func (massiveDataProv *massiveDataProvider) paginate(ctx context.Context, path string, query map[string]string, fn func(json.RawMessage) error) error {
	reqURL := path
	for reqURL != "" {
		req := massiveDataProv.client.R().SetContext(ctx)
		if query != nil {
			req.SetQueryParams(query)
			query = nil // next_url already carries the filters
		}

		logger.Debugf("massive request URL: %s", reqURL)
		resp, err := req.Get(reqURL)
		if err != nil {
			return fmt.Errorf("massive api request failed: %w", err)
		}

		var page struct {
			Results json.RawMessage `json:"results"`
			NextURL string          `json:"next_url"`
		}
		if err := decodeMassive(resp, &page); err != nil {
			return err
		}
		if len(page.Results) > 0 {
			if err := fn(page.Results); err != nil {
				return fmt.Errorf("decode: %w", err)
			}
		}
		reqURL = page.NextURL
	}
	return nil
}

func decodeMassive(resp *resty.Response, out any) error {
	body := resp.Body()
	if resp.IsError() {
		var dbg struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(body, &dbg)
		msg := dbg.Message
		if msg == "" {
			msg = dbg.Error
		}
		logger.Errorf("massive API error status=%d message=%s", resp.StatusCode(), msg)
		return fmt.Errorf("massive returned status %d: %s", resp.StatusCode(), msg)
	}
	if len(body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
