package market

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"dailysignal/pkg/confkit"
	"dailysignal/pkg/faults"
)

// Config describes the market data providers available to the pipeline.
type Config struct {
	Default   string                     `yaml:"default"`
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig configures a single provider.
type ProviderConfig struct {
	Type      string `yaml:"type"`
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`

	TimeoutRaw     string        `yaml:"timeout"`
	Timeout        time.Duration `yaml:"-"`
	HTTPTimeoutRaw string        `yaml:"http_timeout"`
	HTTPTimeout    time.Duration `yaml:"-"`
	MaxRetries     int           `yaml:"max_retries"`
}

// ProviderBuilder constructs a Provider from configuration.
type ProviderBuilder func(name string, cfg *ProviderConfig) (Provider, error)

var (
	providerRegistry   = make(map[string]ProviderBuilder)
	providerRegistryMu sync.RWMutex
)

// RegisterProvider registers a provider constructor under a type name.
func RegisterProvider(typeName string, builder ProviderBuilder) {
	providerRegistryMu.Lock()
	defer providerRegistryMu.Unlock()
	providerRegistry[normaliseType(typeName)] = builder
}

func lookupProviderBuilder(typeName string) (ProviderBuilder, bool) {
	providerRegistryMu.RLock()
	defer providerRegistryMu.RUnlock()
	builder, ok := providerRegistry[normaliseType(typeName)]
	return builder, ok
}

func normaliseType(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	cfg, err := confkit.ReadYAML[Config](path, "market")
	if err != nil {
		return nil, faults.Mark(faults.KindConfiguration, err)
	}
	return cfg, cfg.finish()
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	cfg, err := confkit.DecodeYAML[Config](r, "market")
	if err != nil {
		return nil, faults.Mark(faults.KindConfiguration, err)
	}
	return cfg, cfg.finish()
}

func (c *Config) finish() error {
	if err := c.normalise(); err != nil {
		return faults.Mark(faults.KindConfiguration, err)
	}
	return c.Validate()
}

func (c *Config) normalise() error {
	c.Default = confkit.Expand(c.Default)
	if c.Providers == nil {
		c.Providers = make(map[string]*ProviderConfig)
	}
	for name, p := range c.Providers {
		if p == nil {
			p = &ProviderConfig{}
			c.Providers[name] = p
		}
		p.Type = confkit.Expand(p.Type)
		p.BaseURL = confkit.Expand(p.BaseURL)
		p.UserAgent = confkit.Expand(p.UserAgent)

		var err error
		if p.Timeout, err = confkit.Duration("timeout", confkit.Expand(p.TimeoutRaw), 0); err != nil {
			return fmt.Errorf("market provider %s: %w", name, err)
		}
		if p.HTTPTimeout, err = confkit.Duration("http_timeout", confkit.Expand(p.HTTPTimeoutRaw), 0); err != nil {
			return fmt.Errorf("market provider %s: %w", name, err)
		}
	}
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return faults.Wrap(faults.KindConfiguration, "market config: providers cannot be empty")
	}
	if c.Default != "" {
		if _, ok := c.Providers[c.Default]; !ok {
			return faults.Wrap(faults.KindConfiguration, "market config: default provider %q not defined", c.Default)
		}
	}
	for name, p := range c.Providers {
		if strings.TrimSpace(name) == "" {
			return faults.Wrap(faults.KindConfiguration, "market config: provider name cannot be empty")
		}
		if strings.TrimSpace(p.Type) == "" {
			return faults.Wrap(faults.KindConfiguration, "market config: provider %s must specify type", name)
		}
		if _, ok := lookupProviderBuilder(p.Type); !ok {
			return faults.Wrap(faults.KindConfiguration, "market config: provider %s has unsupported type %q", name, p.Type)
		}
		if p.MaxRetries < 0 {
			return faults.Wrap(faults.KindConfiguration, "market config: provider %s max_retries must be >= 0", name)
		}
	}
	return nil
}

// DefaultName returns the configured default, or the only/first provider by name.
func (c *Config) DefaultName() string {
	if c.Default != "" {
		return c.Default
	}
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// BuildProviders instantiates every configured provider.
func (c *Config) BuildProviders() (map[string]Provider, error) {
	result := make(map[string]Provider, len(c.Providers))
	for name, p := range c.Providers {
		builder, ok := lookupProviderBuilder(p.Type)
		if !ok {
			return nil, faults.Wrap(faults.KindConfiguration, "market provider %s: unsupported type %q", name, p.Type)
		}
		provider, err := builder(name, p)
		if err != nil {
			return nil, fmt.Errorf("market provider %s: %w", name, err)
		}
		result[name] = provider
	}
	return result, nil
}

// BuildDefault instantiates only the default provider.
func (c *Config) BuildDefault() (Provider, error) {
	name := c.DefaultName()
	p, ok := c.Providers[name]
	if !ok {
		return nil, faults.Wrap(faults.KindConfiguration, "market config: no providers")
	}
	builder, ok := lookupProviderBuilder(p.Type)
	if !ok {
		return nil, faults.Wrap(faults.KindConfiguration, "market provider %s: unsupported type %q", name, p.Type)
	}
	return builder(name, p)
}
