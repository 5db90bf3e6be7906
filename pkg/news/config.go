package news

import (
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"dailysignal/internal/model"
	"dailysignal/pkg/confkit"
	"dailysignal/pkg/faults"
	"dailysignal/pkg/retry"
)

const envAPIKey = "SERPER_API_KEY"

// Config is the on-disk news configuration (etc/news.yaml).
type Config struct {
	Serper struct {
		Endpoint   string `yaml:"endpoint"`
		APIKey     string `yaml:"api_key"`
		TimeoutRaw string `yaml:"timeout"`
		MaxRetries int    `yaml:"max_retries"`
		Num        int    `yaml:"num"`

		Timeout time.Duration `yaml:"-"`
	} `yaml:"serper"`
	MaxArticles int               `yaml:"max_articles"`
	Queries     map[string]string `yaml:"queries"`
	Sources     Sources           `yaml:"sources"`
}

// LoadConfig reads and validates a news file.
func LoadConfig(path string) (*Config, error) {
	cfg, err := confkit.ReadYAML[Config](path, "news")
	if err != nil {
		return nil, faults.Mark(faults.KindConfiguration, err)
	}
	return cfg, cfg.normalise()
}

// LoadConfigFromReader is LoadConfig for an already opened document.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	cfg, err := confkit.DecodeYAML[Config](r, "news")
	if err != nil {
		return nil, faults.Mark(faults.KindConfiguration, err)
	}
	return cfg, cfg.normalise()
}

func (c *Config) normalise() error {
	c.Serper.Endpoint = confkit.Expand(c.Serper.Endpoint)
	if c.Serper.Endpoint == "" {
		c.Serper.Endpoint = defaultSerperURL
	}
	c.Serper.APIKey = confkit.EnvOr(envAPIKey, confkit.Expand(c.Serper.APIKey))
	if c.Serper.MaxRetries <= 0 {
		c.Serper.MaxRetries = 3
	}
	if raw := os.Getenv("SERPER_MAX_RETRIES"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			c.Serper.MaxRetries = v
		}
	}
	if c.Serper.Num <= 0 {
		c.Serper.Num = defaultNum
	}
	if c.MaxArticles <= 0 {
		c.MaxArticles = defaultMaxArticles
	}
	c.Sources = c.Sources.withDefaults()
	timeout, err := confkit.Duration("serper timeout", c.Serper.TimeoutRaw, defaultHTTPTimeout)
	if err != nil {
		return faults.Wrap(faults.KindConfiguration, "news: %v", err)
	}
	c.Serper.Timeout = timeout
	return c.Validate()
}

// Validate checks the query keys. A missing API key is reported by
// RequireAPIKey so --info works without credentials.
func (c *Config) Validate() error {
	for key := range c.Queries {
		if _, err := model.ParseArticleType(key); err != nil {
			return faults.Wrap(faults.KindConfiguration, "news: queries.%s: %v", key, err)
		}
	}
	return nil
}

// RequireAPIKey fails with a configuration error when no Serper key is set.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.Serper.APIKey) == "" {
		return faults.Wrap(faults.KindConfiguration, "news: %s is not set", envAPIKey)
	}
	return nil
}

// RetryPolicy returns the pipeline policy with the configured attempt count.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.New(retry.Policy{Attempts: c.Serper.MaxRetries})
}

// Build wires a Serper-backed Collector.
func (c *Config) Build(opts ...SerperOption) (*Collector, error) {
	if err := c.RequireAPIKey(); err != nil {
		return nil, err
	}
	base := []SerperOption{
		WithEndpoint(c.Serper.Endpoint),
		WithRetry(c.RetryPolicy()),
		WithHTTPClient(&http.Client{Timeout: c.Serper.Timeout}),
	}
	client := NewSerperClient(c.Serper.APIKey, append(base, opts...)...)
	collectorOpts := []CollectorOption{
		WithSources(c.Sources),
		WithMaxArticles(c.MaxArticles),
		WithResultsPerQuery(c.Serper.Num),
	}
	for key, tmpl := range c.Queries {
		kind, _ := model.ParseArticleType(key)
		collectorOpts = append(collectorOpts, WithQuery(kind, tmpl))
	}
	return NewCollector(client, collectorOpts...), nil
}
