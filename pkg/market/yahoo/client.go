// Package yahoo reads daily bars from the Yahoo Finance v8 chart endpoint.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"dailysignal/pkg/faults"
	"dailysignal/pkg/retry"
)

const (
	defaultBaseURL     = "https://query1.finance.yahoo.com"
	defaultHTTPTimeout = 15 * time.Second
	defaultUserAgent   = "Mozilla/5.0 (compatible; dailysignal/1.0)"
	maxErrorBody       = 512
)

// Client wraps the chart endpoint.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	policy     retry.Policy
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client (e.g. a go-vcr recorder transport).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			c.baseURL = u
		}
	}
}

// WithUserAgent overrides the User-Agent header; Yahoo rejects empty agents.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRetry replaces the retry policy.
func WithRetry(p retry.Policy) Option {
	return func(c *Client) {
		c.policy = retry.New(p)
	}
}

// NewClient constructs a chart client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		policy:     retry.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// fetchChart fetches daily bars between from and to.
func (c *Client) fetchChart(ctx context.Context, symbol string, from, to time.Time) (*chartResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, faults.Wrap(faults.KindConfiguration, "yahoo: empty symbol")
	}
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.Unix(), 10))
	q.Set("includePrePost", "false")
	q.Set("events", "div,splits")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	var payload chartResponse
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		return c.get(ctx, endpoint, &payload)
	})
	if err != nil {
		return nil, err
	}
	if e := payload.Chart.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, faults.Wrap(faults.KindConfiguration, "yahoo: %s: %s", symbol, e.Description)
		}
		return nil, faults.Wrap(faults.KindProviderUnavailable, "yahoo: %s: %s %s", symbol, e.Code, e.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, faults.Wrap(faults.KindDataIncomplete, "yahoo: %s: empty chart result", symbol)
	}
	return &payload.Chart.Result[0], nil
}

func (c *Client) get(ctx context.Context, endpoint string, out *chartResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("yahoo: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return faults.Wrap(faults.KindProviderUnavailable, "yahoo: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return faults.Wrap(faults.KindProviderUnavailable, "yahoo: read response: %v", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		logx.WithContext(ctx).Infof("yahoo: http %d, will retry", resp.StatusCode)
		return faults.Wrap(faults.KindProviderUnavailable, "yahoo: http %d: %s", resp.StatusCode, snippet(body))
	case resp.StatusCode == http.StatusNotFound:
		// unknown symbols come back as 404 with a chart.error body
		if json.Unmarshal(body, out) == nil && out.Chart.Error != nil {
			return nil
		}
		return faults.Wrap(faults.KindConfiguration, "yahoo: http 404: %s", snippet(body))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("yahoo: http %d: %s", resp.StatusCode, snippet(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("yahoo: decode response: %w", err)
	}
	return nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
