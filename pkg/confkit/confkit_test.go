package confkit_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dailysignal/pkg/confkit"
)

func TestResolvePath(t *testing.T) {
	t.Setenv("DS_TEST_DIR", "testvalue")
	tests := []struct {
		name     string
		base     string
		file     string
		expected string
	}{
		{name: "absolute path", base: "/base/dir", file: "/abs/calendar.yaml", expected: "/abs/calendar.yaml"},
		{name: "relative path", base: "/base/dir", file: "calendar.yaml", expected: "/base/dir/calendar.yaml"},
		{name: "relative with env var", base: "/base/dir", file: "${DS_TEST_DIR}/news.yaml", expected: "/base/dir/testvalue/news.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, confkit.ResolvePath(tt.base, tt.file))
		})
	}
}

func TestBaseDir(t *testing.T) {
	require.Equal(t, "/etc/dailysignal", confkit.BaseDir("/etc/dailysignal/dailysignal.yaml"))
	require.Equal(t, "etc", confkit.BaseDir("etc/dailysignal.yaml"))
}

func TestSectionHydrate(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		section := &confkit.Section[string]{}
		err := section.Hydrate("/base", func(string) (*string, error) {
			t.Fatal("loader should not be called")
			return nil, nil
		})
		require.NoError(t, err)
		require.Nil(t, section.Value)
	})

	t.Run("resolves and loads", func(t *testing.T) {
		section := &confkit.Section[string]{File: "calendar.yaml"}
		value := "loaded"
		err := section.Hydrate("/base", func(path string) (*string, error) {
			require.Equal(t, "/base/calendar.yaml", path)
			return &value, nil
		})
		require.NoError(t, err)
		require.Equal(t, "loaded", *section.Value)
		require.Equal(t, "/base/calendar.yaml", section.File)
	})
}

func TestDecodeYAML(t *testing.T) {
	type doc struct {
		Holidays []string `yaml:"holidays"`
	}
	out, err := confkit.DecodeYAML[doc](strings.NewReader("holidays: [2026-01-01]\n"), "calendar")
	require.NoError(t, err)
	require.Equal(t, []string{"2026-01-01"}, out.Holidays)

	_, err = confkit.DecodeYAML[doc](strings.NewReader("holidays: {"), "calendar")
	require.ErrorContains(t, err, "unmarshal calendar config")
}

func TestReadYAMLMissingFile(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	_, err := confkit.ReadYAML[struct{}](filepath.Join(t.TempDir(), "missing.yaml"), "news")
	require.ErrorContains(t, err, "open news config")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDuration(t *testing.T) {
	d, err := confkit.Duration("timeout", "", 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, d)

	d, err = confkit.Duration("timeout", " 250ms ", 0)
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, d)

	_, err = confkit.Duration("timeout", "abc", 0)
	require.ErrorContains(t, err, `invalid timeout "abc"`)

	_, err = confkit.Duration("timeout", "-1s", 0)
	require.ErrorContains(t, err, "must be positive")
}

func TestEnvOr(t *testing.T) {
	t.Setenv("DS_TEST_ENV_OR", "  ")
	require.Equal(t, "fallback", confkit.EnvOr("DS_TEST_ENV_OR", "fallback"))
	t.Setenv("DS_TEST_ENV_OR", "set")
	require.Equal(t, "set", confkit.EnvOr("DS_TEST_ENV_OR", "fallback"))
}

func TestProjectPath(t *testing.T) {
	p, err := confkit.ProjectPath("etc/calendar.yaml")
	require.NoError(t, err)
	require.FileExists(t, p)
}
