package yahoo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dailysignal/pkg/faults"
	"dailysignal/pkg/market"
	"dailysignal/pkg/retry"
)

func sessionOpen(day int) int64 {
	return time.Date(2026, time.January, day, 14, 30, 0, 0, time.UTC).Unix()
}

func chartBody(t *testing.T, regularEnd int64, days []int, closes []any) []byte {
	t.Helper()
	ts := make([]int64, len(days))
	opens, highs, lows, vols := make([]any, len(days)), make([]any, len(days)), make([]any, len(days)), make([]any, len(days))
	for i, d := range days {
		ts[i] = sessionOpen(d)
		if closes[i] == nil {
			continue
		}
		c := closes[i].(float64)
		opens[i], highs[i], lows[i], vols[i] = c-1, c+2, c-2, 1000+i
	}
	payload := map[string]any{
		"chart": map[string]any{
			"result": []any{map[string]any{
				"meta": map[string]any{
					"symbol":               "NVDA",
					"exchangeTimezoneName": "America/New_York",
					"currentTradingPeriod": map[string]any{
						"regular": map[string]any{"start": regularEnd - 23400, "end": regularEnd},
					},
				},
				"timestamp": ts,
				"indicators": map[string]any{
					"quote": []any{map[string]any{"open": opens, "high": highs, "low": lows, "close": closes, "volume": vols}},
				},
			}},
			"error": nil,
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return raw
}

func fastRetry() Option {
	return WithRetry(retry.Policy{Attempts: 3, Base: time.Millisecond, MaxBackoff: time.Millisecond})
}

func newTestProvider(srv *httptest.Server, now time.Time) *Provider {
	return NewProvider("yahoo-test",
		WithClock(func() time.Time { return now }),
		WithClientOptions(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), fastRetry()),
	)
}

func TestDailyBars(t *testing.T) {
	now := time.Date(2026, time.January, 17, 12, 0, 0, 0, time.UTC)
	var gotPath, gotAgent string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotAgent, gotQuery = r.URL.Path, r.Header.Get("User-Agent"), r.URL.Query()
		_, _ = w.Write(chartBody(t, sessionOpen(16)+23400, []int{13, 14, 15, 16}, []any{180.0, nil, 182.5, 184.25}))
	}))
	defer srv.Close()

	series, err := newTestProvider(srv, now).DailyBars(context.Background(), "nvda", 10)
	require.NoError(t, err)
	require.Equal(t, "/v8/finance/chart/NVDA", gotPath)
	require.Equal(t, defaultUserAgent, gotAgent)
	require.Equal(t, []string{"1d"}, gotQuery["interval"])
	require.Equal(t, []string{"1768651200"}, gotQuery["period2"])

	require.Equal(t, 3, series.Len(), "null bar skipped")
	require.Equal(t, "2026-01-16", series.LatestDate().String())
	require.Equal(t, "America/New_York", series.Timezone)
	last, _ := series.Latest()
	require.InDelta(t, 184.25, last.Close, 1e-9)
	require.InDelta(t, 186.25, last.High, 1e-9)
	require.EqualValues(t, 1003, last.Volume)
}

func TestDailyBarsTrimsToLookback(t *testing.T) {
	now := time.Date(2026, time.January, 17, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(chartBody(t, sessionOpen(16)+23400, []int{13, 14, 15, 16}, []any{1.0, 2.0, 3.0, 4.0}))
	}))
	defer srv.Close()

	series, err := newTestProvider(srv, now).DailyBars(context.Background(), "NVDA", 2)
	require.NoError(t, err)
	require.Equal(t, 2, series.Len())
	require.Equal(t, "2026-01-15", series.Bars[0].Date.String())
}

func TestDailyBarsDropsOpenSession(t *testing.T) {
	// 16:00 UTC on the 16th is mid-session in New York
	now := time.Date(2026, time.January, 16, 16, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(chartBody(t, sessionOpen(16)+23400, []int{14, 15, 16}, []any{1.0, 2.0, 3.0}))
	}))
	defer srv.Close()

	series, err := newTestProvider(srv, now).DailyBars(context.Background(), "NVDA", 10)
	require.NoError(t, err)
	require.Equal(t, "2026-01-15", series.LatestDate().String())
}

func TestDailyBarsRetriesServerErrors(t *testing.T) {
	now := time.Date(2026, time.January, 17, 12, 0, 0, 0, time.UTC)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(chartBody(t, sessionOpen(16)+23400, []int{16}, []any{5.0}))
	}))
	defer srv.Close()

	series, err := newTestProvider(srv, now).DailyBars(context.Background(), "NVDA", 5)
	require.NoError(t, err)
	require.Equal(t, 1, series.Len())
	require.EqualValues(t, 3, calls.Load())
}

func TestDailyBarsExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestProvider(srv, time.Now()).DailyBars(context.Background(), "NVDA", 5)
	require.ErrorIs(t, err, faults.ErrProviderUnavailable)
	require.ErrorIs(t, err, retry.ErrExhausted)
}

func TestDailyBarsUnknownSymbol(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	_, err := newTestProvider(srv, time.Now()).DailyBars(context.Background(), "ZZZZ", 5)
	require.ErrorIs(t, err, faults.ErrConfiguration)
	require.Contains(t, err.Error(), "delisted")
	require.EqualValues(t, 1, calls.Load())
}

func TestRegisteredBuilder(t *testing.T) {
	cfg, err := market.LoadConfigFromReader(strings.NewReader(`
default: primary
providers:
  primary:
    type: yahoo
    base_url: https://example.invalid
    http_timeout: 5s
    max_retries: 1
`))
	require.NoError(t, err)
	p, err := cfg.BuildDefault()
	require.NoError(t, err)
	yp, ok := p.(*Provider)
	require.True(t, ok)
	require.Equal(t, "primary", yp.Name())
	require.Equal(t, "https://example.invalid", yp.client.baseURL)
	require.Equal(t, 2, yp.client.policy.Attempts)
}
