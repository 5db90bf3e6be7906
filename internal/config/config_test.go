package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dailysignal/internal/store"
	"dailysignal/pkg/confkit"
	"dailysignal/pkg/faults"
)

func TestLoadShippedConfig(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SERPER_API_KEY", "serper-test")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	path, err := confkit.ProjectPath("etc/dailysignal.yaml")
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, "NVDA", cfg.Symbol)
	require.Equal(t, "America/New_York", cfg.Location().String())
	require.InDelta(t, 0.6, cfg.Weights().Company, 1e-9)
	require.InDelta(t, 0.4, cfg.Weights().Macro, 1e-9)
	require.Equal(t, 10, cfg.Pipeline.MinHistory)
	require.Equal(t, store.DriverSQLite, cfg.Store.Driver)
	require.False(t, cfg.RedisEnabled())

	require.NotNil(t, cfg.LLM.Value)
	require.Equal(t, "sk-test", cfg.LLM.Value.APIKey)
	require.NotNil(t, cfg.Market.Value)
	require.Equal(t, "yahoo", cfg.Market.Value.DefaultName())
	require.NotNil(t, cfg.News.Value)
	require.NotNil(t, cfg.Calendar.Value)
	require.True(t, filepath.IsAbs(cfg.Calendar.File))
	require.Equal(t, filepath.Dir(path), cfg.BaseDir())
	require.Equal(t, path, cfg.MainPath())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dailysignal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	cfg, err := Load(writeConfig(t, "Env: test\n"))
	require.NoError(t, err)
	require.True(t, cfg.IsTestEnv())
	require.Equal(t, "NVDA", cfg.Symbol)
	require.Equal(t, 250, cfg.Pipeline.HistoryWindow)
	require.Equal(t, 3, cfg.Pipeline.MaxArticles)
	require.Equal(t, "json", cfg.Journal.Format)
	require.Nil(t, cfg.LLM.Value)
	require.Equal(t, cfg.TTLSet().Medium.Minutes(), float64(15))
}

func TestLoadRejects(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "env", body: "Env: staging\n", want: "env must be one of"},
		{name: "weights sum", body: "Pipeline:\n  CompanyWeight: 0.7\n  MacroWeight: 0.4\n", want: "weights must sum to 1"},
		{name: "negative weight", body: "Pipeline:\n  CompanyWeight: 1.5\n  MacroWeight: -0.5\n", want: "non-negative"},
		{name: "timezone", body: "Timezone: Mars/Olympus\n", want: "timezone"},
		{name: "history window", body: "Pipeline:\n  MinHistory: 10\n  HistoryWindow: 5\n", want: "historyWindow"},
		{name: "postgres without dsn", body: "Store:\n  Driver: postgres\n", want: "Postgres.DSN"},
		{name: "missing section file", body: "Calendar:\n  File: nowhere.yaml\n", want: "load calendar config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			require.ErrorIs(t, err, faults.ErrConfiguration)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, faults.ErrConfiguration)
}

func TestPromptDirResolvesRelativeToConfig(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	path := writeConfig(t, "Pipeline:\n  PromptDir: prompts\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(filepath.Dir(path), "prompts"), cfg.Pipeline.PromptDir)
}

func TestMustLoadPanics(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	require.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "absent.yaml")) })
}
