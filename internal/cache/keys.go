package cache

import (
	"strings"
	"time"
)

// Namespace is the Redis key prefix for the pipeline.
const Namespace = "dailysignal"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLConf is the YAML shape of the TTL buckets, in seconds.
type TTLConf struct {
	Short  int `json:",default=60"`
	Medium int `json:",default=900"`
	Long   int `json:",default=86400"`
}

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg TTLConf) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, time.Minute),
		Medium: durationOrDefault(cfg.Medium, 15*time.Minute),
		Long:   durationOrDefault(cfg.Long, 24*time.Hour),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// SnapshotKey caches one daily snapshot row.
func SnapshotKey(symbol, date string) string {
	return formatKey("snapshot", strings.ToUpper(symbol), date)
}

// RunLockKey serializes runs for the same target date.
func RunLockKey(date string) string {
	return formatKey("lock", "run", date)
}

// SnapshotTTL keeps rows around for a day; writes invalidate explicitly.
func SnapshotTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLLong)
}

// RunLockTTL bounds how long a crashed run can hold the lock.
func RunLockTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}
