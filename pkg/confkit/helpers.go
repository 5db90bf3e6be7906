package confkit

import (
	"fmt"
	"os"
	"strings"
	"time"
)

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	if _, err := os.Stat(p); err == nil {
		return true
	}
	return false
}

// Expand trims s and expands ${VAR} references.
func Expand(s string) string {
	return strings.TrimSpace(os.ExpandEnv(s))
}

// Duration parses an optional positive duration. Empty input returns fallback.
func Duration(field, raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, d)
	}
	return d, nil
}

// EnvOr returns the trimmed value of key, or fallback when unset or blank.
func EnvOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
