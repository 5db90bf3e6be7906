package llm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dailysignal/pkg/faults"
)

func clearLLMEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{envAPIKey, envBaseURL, envDefaultModel, envTimeout, envMaxRetries} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigFromReader(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv(envAPIKey, "override-key")
	t.Setenv(envTimeout, "45s")
	t.Setenv(envMaxRetries, "5")

	data := `
base_url: "https://example.com/v1"
api_key: "${OPENAI_API_KEY}"
default_model: "sentiment"
timeout: "30s"
max_retries: 2
log_level: "debug"

models:
  sentiment:
    model_name: "gpt-4"
    temperature: 0.3
    max_completion_tokens: 300
`
	cfg, err := LoadConfigFromReader(strings.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "https://example.com/v1", cfg.BaseURL)
	require.Equal(t, "override-key", cfg.APIKey)
	require.Equal(t, "sentiment", cfg.DefaultModel)
	require.Equal(t, 5, cfg.MaxRetries)
	require.Equal(t, 45*time.Second, cfg.Timeout)

	name, modelCfg := cfg.ResolveModel("")
	require.Equal(t, "gpt-4", name)
	require.InDelta(t, 0.3, *modelCfg.Temperature, 1e-9)
	require.Equal(t, 300, *modelCfg.MaxCompletionTokens)

	name, _ = cfg.ResolveModel("gpt-4o-mini")
	require.Equal(t, "gpt-4o-mini", name)
}

func TestLoadConfigDefaults(t *testing.T) {
	clearLLMEnv(t)
	cfg, err := LoadConfigFromReader(strings.NewReader("{}"))
	require.NoError(t, err)
	require.Equal(t, defaultBaseURL, cfg.BaseURL)
	require.Equal(t, defaultModel, cfg.DefaultModel)
	require.Equal(t, defaultTimeout, cfg.Timeout)
	require.Equal(t, defaultMaxRetries, cfg.MaxRetries)

	err = cfg.Validate()
	require.ErrorIs(t, err, faults.ErrConfiguration)
	require.ErrorContains(t, err, envAPIKey)
}

func TestLoadConfigErrors(t *testing.T) {
	clearLLMEnv(t)
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "bad timeout", yaml: `timeout: "soon"`, want: "invalid timeout"},
		{name: "negative timeout", yaml: `timeout: "-1s"`, want: "must be positive"},
		{name: "negative retries", yaml: `max_retries: -1`, want: "max_retries cannot be negative"},
		{name: "bad yaml", yaml: "models: [", want: "unmarshal llm config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFromReader(strings.NewReader(tt.yaml))
			require.ErrorIs(t, err, faults.ErrConfiguration)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("NO_DOTENV", "1")
	path := filepath.Join(t.TempDir(), "llm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_key: k\ndefault_model: gpt-4\n"), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "k", cfg.APIKey)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, faults.ErrConfiguration)
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := &Config{Models: map[string]ModelConfig{"a": {ModelName: "gpt-4"}}}
	cp := cfg.Clone()
	cp.Models["b"] = ModelConfig{}
	require.Len(t, cfg.Models, 1)
	require.Nil(t, (*Config)(nil).Clone())
}
