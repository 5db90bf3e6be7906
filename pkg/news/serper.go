package news

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"dailysignal/pkg/faults"
	"dailysignal/pkg/retry"
)

const (
	defaultSerperURL   = "https://google.serper.dev/news"
	defaultHTTPTimeout = 10 * time.Second
	defaultNum         = 20
	maxErrorBody       = 512
)

// SerperClient calls the Serper news search endpoint.
type SerperClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	policy     retry.Policy
}

// SerperOption configures a SerperClient.
type SerperOption func(*SerperClient)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) SerperOption {
	return func(c *SerperClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithEndpoint overrides the search URL.
func WithEndpoint(u string) SerperOption {
	return func(c *SerperClient) {
		if u = strings.TrimSpace(u); u != "" {
			c.endpoint = u
		}
	}
}

// WithRetry replaces the retry policy.
func WithRetry(p retry.Policy) SerperOption {
	return func(c *SerperClient) {
		c.policy = retry.New(p)
	}
}

// NewSerperClient builds a client authenticated with apiKey.
func NewSerperClient(apiKey string, opts ...SerperOption) *SerperClient {
	c := &SerperClient{
		endpoint:   defaultSerperURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		policy:     retry.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type serperRequest struct {
	Q    string `json:"q"`
	Num  int    `json:"num"`
	Type string `json:"type"`
}

type serperResponse struct {
	News []RawArticle `json:"news"`
}

// Search posts q and returns the raw news hits.
func (c *SerperClient) Search(ctx context.Context, q Query) ([]RawArticle, error) {
	if c.apiKey == "" {
		return nil, faults.Wrap(faults.KindConfiguration, "serper: api key is not set")
	}
	num := q.Num
	if num <= 0 {
		num = defaultNum
	}
	body, err := json.Marshal(serperRequest{Q: q.Text, Num: num, Type: "news"})
	if err != nil {
		return nil, fmt.Errorf("serper: encode request: %w", err)
	}

	var out serperResponse
	err = c.policy.Do(ctx, func(ctx context.Context) error {
		return c.post(ctx, body, &out)
	})
	if err != nil {
		return nil, err
	}
	logx.WithContext(ctx).Debugf("serper: %d hits for %q", len(out.News), q.Text)
	return out.News, nil
}

func (c *SerperClient) post(ctx context.Context, body []byte, out *serperResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("serper: build request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return faults.Wrap(faults.KindProviderUnavailable, "serper: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return faults.Wrap(faults.KindProviderUnavailable, "serper: read response: %v", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return faults.Wrap(faults.KindConfiguration, "serper: http %d: check SERPER_API_KEY", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		logx.WithContext(ctx).Infof("serper: http %d, will retry", resp.StatusCode)
		return faults.Wrap(faults.KindProviderUnavailable, "serper: http %d: %s", resp.StatusCode, snippet(raw))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("serper: http %d: %s", resp.StatusCode, snippet(raw))
	}
	*out = serperResponse{}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("serper: decode response: %w", err)
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
