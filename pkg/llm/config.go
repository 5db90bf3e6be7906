package llm

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"dailysignal/pkg/confkit"
	"dailysignal/pkg/faults"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultModel      = "gpt-4"
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 2
	defaultLogLevel   = "info"

	envAPIKey       = "OPENAI_API_KEY"
	envBaseURL      = "OPENAI_BASE_URL"
	envDefaultModel = "LLM_DEFAULT_MODEL"
	envTimeout      = "LLM_TIMEOUT"
	envMaxRetries   = "LLM_MAX_RETRIES"
)

// Config holds runtime settings for the LLM client.
type Config struct {
	BaseURL      string                 `yaml:"base_url"`
	APIKey       string                 `yaml:"api_key"`
	DefaultModel string                 `yaml:"default_model"`
	TimeoutRaw   string                 `yaml:"timeout"`
	MaxRetries   int                    `yaml:"max_retries"`
	LogLevel     string                 `yaml:"log_level"`
	Models       map[string]ModelConfig `yaml:"models"`

	Timeout time.Duration `yaml:"-"`
}

// ModelConfig defines defaults for a model alias.
type ModelConfig struct {
	ModelName           string   `yaml:"model_name"`
	Temperature         *float64 `yaml:"temperature,omitempty"`
	MaxCompletionTokens *int     `yaml:"max_completion_tokens,omitempty"`
	TopP                *float64 `yaml:"top_p,omitempty"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	cfg, err := confkit.ReadYAML[Config](path, "llm")
	if err != nil {
		return nil, faults.Mark(faults.KindConfiguration, err)
	}
	return cfg, cfg.normalise()
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	cfg, err := confkit.DecodeYAML[Config](r, "llm")
	if err != nil {
		return nil, faults.Mark(faults.KindConfiguration, err)
	}
	return cfg, cfg.normalise()
}

func (c *Config) normalise() error {
	c.applyDefaults()
	c.applyEnvOverrides()
	timeout, err := confkit.Duration("timeout", c.TimeoutRaw, defaultTimeout)
	if err != nil {
		return faults.Wrap(faults.KindConfiguration, "llm config: %v", err)
	}
	c.Timeout = timeout
	if c.MaxRetries < 0 {
		return faults.Wrap(faults.KindConfiguration, "llm config: max_retries cannot be negative")
	}
	return nil
}

// Validate checks that required configuration is present. The API key is
// checked here rather than at load time so --info works without credentials.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.APIKey) == "":
		return faults.Wrap(faults.KindConfiguration, "llm config: %s is not set", envAPIKey)
	case strings.TrimSpace(c.BaseURL) == "":
		return faults.Wrap(faults.KindConfiguration, "llm config: base_url is required")
	case strings.TrimSpace(c.DefaultModel) == "":
		return faults.Wrap(faults.KindConfiguration, "llm config: default_model is required")
	case c.Timeout <= 0:
		return faults.Wrap(faults.KindConfiguration, "llm config: timeout must be positive")
	case c.MaxRetries < 0:
		return faults.Wrap(faults.KindConfiguration, "llm config: max_retries cannot be negative")
	}
	return nil
}

// Model returns the configuration for the given model alias.
func (c *Config) Model(name string) (ModelConfig, bool) {
	if c.Models == nil {
		return ModelConfig{}, false
	}
	modelCfg, ok := c.Models[name]
	return modelCfg, ok
}

// ResolveModel maps an alias to the upstream model name.
func (c *Config) ResolveModel(alias string) (string, ModelConfig) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		alias = c.DefaultModel
	}
	modelCfg, ok := c.Model(alias)
	if !ok || strings.TrimSpace(modelCfg.ModelName) == "" {
		modelCfg.ModelName = alias
	}
	return modelCfg.ModelName, modelCfg
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Models != nil {
		cp.Models = make(map[string]ModelConfig, len(c.Models))
		for k, v := range c.Models {
			cp.Models[k] = v
		}
	}
	return &cp
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(c.DefaultModel) == "" {
		c.DefaultModel = defaultModel
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
}

func (c *Config) applyEnvOverrides() {
	c.BaseURL = expandAndOverride(c.BaseURL, envBaseURL)
	c.APIKey = expandAndOverride(c.APIKey, envAPIKey)
	c.DefaultModel = expandAndOverride(c.DefaultModel, envDefaultModel)

	if raw := os.Getenv(envTimeout); raw != "" {
		c.TimeoutRaw = raw
	} else {
		c.TimeoutRaw = os.ExpandEnv(c.TimeoutRaw)
	}

	if raw := os.Getenv(envMaxRetries); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			c.MaxRetries = v
		}
	}
}

func expandAndOverride(current, envKey string) string {
	return confkit.EnvOr(envKey, confkit.Expand(current))
}
