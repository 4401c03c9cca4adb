package data

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestMassive(t *testing.T, h http.HandlerFunc, opts ...MassiveOption) (Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]MassiveOption{
		WithBaseURL(srv.URL),
		WithRateLimitWait(func() time.Duration { return 10 * time.Millisecond }),
	}, opts...)
	return NewMassiveDataProvider("test", opts...), srv
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func TestMassiveProvider_GetBars_HTTPError(t *testing.T) {
	// fake server returning 500
	p, _ := newTestMassive(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"message":"internal error"}`)
	})

	_, err := p.GetBars(context.Background(), "AAPL", time.Now().AddDate(0, 0, -5), time.Now())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "internal error") {
		t.Fatalf("error should carry server message, got %v", err)
	}
}

func TestMassiveProvider_GetBars(t *testing.T) {
	p, _ := newTestMassive(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/aggs/ticker/AAPL/range/1/day/2025-01-01/2025-01-05" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("authorization header = %q", got)
		}
		writeJSON(w, http.StatusOK, `{"results":[
			{"t":1735689600000,"o":1,"h":2,"l":0.5,"c":1.5,"v":100},
			{"t":1735776000000,"o":1.5,"h":2,"l":1,"c":1.8,"v":120}
		]}`)
	})

	bars, err := p.GetBars(context.Background(), "aapl",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[1].Close != 1.8 || bars[0].Date.Format(DateLayout) != "2025-01-01" {
		t.Fatalf("unexpected bars %+v", bars)
	}
}

func TestMassiveProvider_Pagination(t *testing.T) {
	var calls int32
	var srv *httptest.Server
	p, srv := newTestMassive(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			if r.URL.Query().Get("underlying_ticker") != "SPY" {
				t.Errorf("missing underlying filter: %s", r.URL.RawQuery)
			}
			writeJSON(w, http.StatusOK, `{
				"results": [
					{"expiration_date":"2025-02-21","strike_price":580,"contract_type":"call"},
					{"expiration_date":"2025-01-17","strike_price":580,"contract_type":"put"}
				],
				"next_url": "`+srv.URL+`/v3/reference/options/contracts?cursor=abc"
			}`)
			return
		}
		if r.URL.Query().Get("cursor") != "abc" {
			t.Errorf("second page should follow next_url, got %s", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, `{"results":[
			{"expiration_date":"2025-01-17","strike_price":585,"contract_type":"call"},
			{"expiration_date":"bogus","strike_price":585,"contract_type":"call"}
		]}`)
	})

	expiries, err := p.GetOptionExpiries(context.Background(), "spy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 requests, got %d", calls)
	}
	want := []string{"2025-01-17", "2025-02-21"}
	if len(expiries) != len(want) {
		t.Fatalf("expected %d expiries, got %v", len(want), expiries)
	}
	for i, w := range want {
		if got := expiries[i].Format(DateLayout); got != w {
			t.Errorf("expiry[%d] = %s, want %s", i, got, w)
		}
	}
}

func TestMassiveProvider_RateLimitRetry(t *testing.T) {
	var calls int32
	p, _ := newTestMassive(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			writeJSON(w, http.StatusTooManyRequests, `{"message":"slow down"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"results":[{"c":581.39}]}`)
	})

	price, err := p.GetUnderlyingPrice(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 581.39 {
		t.Fatalf("price = %v, want 581.39", price)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
}

func TestMassiveProvider_OptionChain(t *testing.T) {
	p, _ := newTestMassive(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/snapshot/options/SPY" || r.URL.Query().Get("expiration_date") != "2025-01-17" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		writeJSON(w, http.StatusOK, `{"results":[
			{"details":{"contract_type":"call","strike_price":585},"last_quote":{"bid":9.9,"ask":10.1},"day":{"close":10}},
			{"details":{"contract_type":"put","strike_price":580},"last_quote":{},"day":{"close":7.5}},
			{"details":{"contract_type":"call","strike_price":580},"last_quote":{"bid":12,"ask":12.2},"day":{"close":12.14}}
		]}`)
	})

	chain, err := p.GetOptionChain(context.Background(), "SPY", time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain.Calls) != 2 || len(chain.Puts) != 1 {
		t.Fatalf("calls=%d puts=%d", len(chain.Calls), len(chain.Puts))
	}
	if chain.Calls[0].Strike != 580 {
		t.Fatalf("calls should be sorted by strike: %+v", chain.Calls)
	}
	put, ok := chain.Find("put", 580)
	if !ok || put.Mid() != 7.5 {
		t.Fatalf("put mid should fall back to last price, got %+v", put)
	}
	if got := chain.Strikes(); len(got) != 2 || got[0] != 580 || got[1] != 585 {
		t.Fatalf("strikes = %v", got)
	}
}

func TestMassiveProvider_FallsBackToSecondary(t *testing.T) {
	secondary := NewSyntheticProvider(SyntheticConfig{Seed: 7})
	p, _ := newTestMassive(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, `{"message":"NOT_AUTHORIZED"}`)
	}, WithSecondary(secondary))

	got, err := p.GetUnderlyingPrice(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, _ := secondary.GetUnderlyingPrice(context.Background(), "SPY")
	if got != want {
		t.Fatalf("price = %v, want secondary's %v", got, want)
	}
	if p.Secondary() != secondary {
		t.Fatal("Secondary() should return the configured fallback")
	}
}

func TestUntilNextMinute(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 30, 45, 0, time.UTC)
	if got := untilNextMinute(now); got != 15*time.Second {
		t.Fatalf("got %s, want 15s", got)
	}
}
