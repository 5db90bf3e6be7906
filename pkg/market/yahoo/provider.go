package yahoo

import (
	"context"
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"dailysignal/internal/model"
	"dailysignal/pkg/faults"
	"dailysignal/pkg/market"
	"dailysignal/pkg/retry"
)

const (
	defaultProviderTimeout = 45 * time.Second
	defaultTimezone        = "America/New_York"
)

// Provider adapts Client to market.Provider.
type Provider struct {
	name    string
	client  *Client
	timeout time.Duration
	now     func() time.Time
}

type providerConfig struct {
	timeout       time.Duration
	now           func() time.Time
	clientOptions []Option
}

// ProviderOption customises the provider.
type ProviderOption func(*providerConfig)

// WithTimeout bounds a whole DailyBars call including retries.
func WithTimeout(d time.Duration) ProviderOption {
	return func(cfg *providerConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

// WithClock fixes the request window end; tests use it for deterministic URLs.
func WithClock(now func() time.Time) ProviderOption {
	return func(cfg *providerConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithClientOptions passes options through to the Client.
func WithClientOptions(opts ...Option) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.clientOptions = append(cfg.clientOptions, opts...)
	}
}

// NewProvider constructs a provider named name.
func NewProvider(name string, opts ...ProviderOption) *Provider {
	cfg := &providerConfig{timeout: defaultProviderTimeout, now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}
	if name == "" {
		name = "yahoo"
	}
	return &Provider{
		name:    name,
		client:  NewClient(cfg.clientOptions...),
		timeout: cfg.timeout,
		now:     cfg.now,
	}
}

func init() {
	market.RegisterProvider("yahoo", func(name string, cfg *market.ProviderConfig) (market.Provider, error) {
		clientOpts := []Option{WithBaseURL(cfg.BaseURL), WithUserAgent(cfg.UserAgent)}
		if cfg.HTTPTimeout > 0 {
			clientOpts = append(clientOpts, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
		}
		if cfg.MaxRetries > 0 {
			clientOpts = append(clientOpts, WithRetry(retry.Policy{Attempts: cfg.MaxRetries + 1}))
		}
		return NewProvider(name, WithTimeout(cfg.Timeout), WithClientOptions(clientOpts...)), nil
	})
}

// Name implements market.Provider.
func (p *Provider) Name() string { return p.name }

// DailyBars implements market.Provider. The request window spans enough
// calendar days to cover lookback sessions; a bar for a session that has not
// closed yet is dropped.
func (p *Provider) DailyBars(ctx context.Context, symbol string, lookback int) (*market.Series, error) {
	if lookback <= 0 {
		lookback = 1
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	now := p.now()
	from := now.AddDate(0, 0, -(lookback*7/5 + 14))
	res, err := p.client.fetchChart(ctx, symbol, from, now)
	if err != nil {
		return nil, err
	}
	series, err := toSeries(res, now)
	if err != nil {
		return nil, err
	}
	series = series.Tail(lookback)
	logx.WithContext(ctx).Infof("yahoo: %s bars=%d latest=%s provider=%s", series.Symbol, series.Len(), series.LatestDate(), p.name)
	return series, nil
}

func toSeries(res *chartResult, now time.Time) (*market.Series, error) {
	tz := res.Meta.ExchangeTimezoneName
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, faults.Wrap(faults.KindDataIncomplete, "yahoo: unknown exchange timezone %q", tz)
	}
	if len(res.Indicators.Quote) == 0 {
		return nil, faults.Wrap(faults.KindDataIncomplete, "yahoo: %s: no quote block", res.Meta.Symbol)
	}
	q := res.Indicators.Quote[0]

	series := &market.Series{Symbol: res.Meta.Symbol, Timezone: tz}
	for i, ts := range res.Timestamp {
		open, high, low, closePx := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i)
		vol := atInt(q.Volume, i)
		if open == nil || high == nil || low == nil || closePx == nil || vol == nil {
			continue
		}
		bar := market.Bar{
			Date:   model.DateOf(time.Unix(ts, 0).In(loc)),
			Open:   *open,
			High:   *high,
			Low:    *low,
			Close:  *closePx,
			Volume: *vol,
		}
		if n := len(series.Bars); n > 0 && !series.Bars[n-1].Date.Before(bar.Date) {
			// Yahoo repeats the live session with a second timestamp; keep the later one.
			series.Bars[n-1] = bar
			continue
		}
		series.Bars = append(series.Bars, bar)
	}

	if end := res.Meta.CurrentTradingPeriod.Regular.End; end > 0 && now.Unix() < end {
		open := model.DateOf(time.Unix(end, 0).In(loc))
		if n := len(series.Bars); n > 0 && series.Bars[n-1].Date.Equal(open) {
			series.Bars = series.Bars[:n-1]
		}
	}
	if len(series.Bars) == 0 {
		return nil, faults.Wrap(faults.KindDataIncomplete, "yahoo: %s: no complete bars", res.Meta.Symbol)
	}
	return series, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func atInt(values []*int64, i int) *int64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}
