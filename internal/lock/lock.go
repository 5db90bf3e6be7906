// Package lock serialises pipeline runs for the same target date.
package lock

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	cachekeys "dailysignal/internal/cache"
	"dailysignal/internal/model"
)

// ErrHeld is returned when another run holds the lock for the date.
var ErrHeld = errors.New("lock: a run for this date is already in progress")

// Config controls the file lock fallback.
type Config struct {
	Dir string `json:",default=data/locks"`
	// TTL in seconds after which a lock is considered abandoned. Zero uses
	// the medium cache TTL.
	TTL int `json:",optional"`
}

// Locker acquires per-date run locks.
type Locker interface {
	Lock(ctx context.Context, date model.Date) (Handle, error)
}

// Handle releases an acquired lock.
type Handle interface {
	Unlock(ctx context.Context) error
}

// RedisLocker uses go-zero's SET NX based Redis lock.
type RedisLocker struct {
	rds *redis.Redis
	ttl time.Duration
}

// NewRedisLocker builds a locker on rds with the given expiry.
func NewRedisLocker(rds *redis.Redis, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rds: rds, ttl: ttl}
}

func (l *RedisLocker) Lock(ctx context.Context, date model.Date) (Handle, error) {
	key := cachekeys.RunLockKey(date.String())
	rl := redis.NewRedisLock(l.rds, key)
	rl.SetExpire(int(math.Ceil(l.ttl.Seconds())))
	ok, err := rl.AcquireCtx(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (key %s)", ErrHeld, key)
	}
	logx.WithContext(ctx).Infof("[lock] acquired %s ttl=%s", key, l.ttl)
	return redisHandle{lock: rl, key: key}, nil
}

type redisHandle struct {
	lock *redis.RedisLock
	key  string
}

func (h redisHandle) Unlock(ctx context.Context) error {
	released, err := h.lock.ReleaseCtx(ctx)
	if err != nil {
		return fmt.Errorf("lock: release %s: %w", h.key, err)
	}
	if !released {
		logx.WithContext(ctx).Slowf("[lock] %s expired before release", h.key)
	}
	return nil
}

// FileLocker creates an exclusive lock file per date. Files older than the
// TTL are treated as left behind by a crashed run and replaced.
type FileLocker struct {
	dir   string
	ttl   time.Duration
	nowFn func() time.Time
}

// NewFileLocker builds a locker writing into dir.
func NewFileLocker(dir string, ttl time.Duration) *FileLocker {
	if dir == "" {
		dir = filepath.Join("data", "locks")
	}
	return &FileLocker{dir: dir, ttl: ttl, nowFn: time.Now}
}

func (l *FileLocker) path(date model.Date) string {
	return filepath.Join(l.dir, "run_"+date.String()+".lock")
}

func (l *FileLocker) Lock(ctx context.Context, date model.Date) (Handle, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("lock: create %s: %w", l.dir, err)
	}
	path := l.path(date)
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			stamp := l.nowFn().UTC()
			_, werr := fmt.Fprintf(f, "%d %d\n", os.Getpid(), stamp.Unix())
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("lock: write %s: %w", path, werr)
			}
			logx.WithContext(ctx).Infof("[lock] acquired %s", path)
			return fileHandle{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("lock: create %s: %w", path, err)
		}
		if !l.stale(path) {
			return nil, fmt.Errorf("%w (file %s)", ErrHeld, path)
		}
		logx.WithContext(ctx).Slowf("[lock] removing stale %s", path)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("lock: remove stale %s: %w", path, err)
		}
	}
	return nil, fmt.Errorf("%w (file %s)", ErrHeld, path)
}

// stale reports whether the lock file was written longer than ttl ago. A
// file that cannot be parsed falls back to its modification time.
func (l *FileLocker) stale(path string) bool {
	if l.ttl <= 0 {
		return false
	}
	written := time.Time{}
	if data, err := os.ReadFile(path); err == nil {
		fields := strings.Fields(string(data))
		if len(fields) == 2 {
			if sec, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
				written = time.Unix(sec, 0)
			}
		}
	}
	if written.IsZero() {
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		written = info.ModTime()
	}
	return l.nowFn().Sub(written) > l.ttl
}

type fileHandle struct{ path string }

func (h fileHandle) Unlock(context.Context) error {
	if err := os.Remove(h.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("lock: remove %s: %w", h.path, err)
	}
	return nil
}

// New picks the Redis locker when rds is set and the file locker otherwise.
func New(cfg Config, rds *redis.Redis, ttl cachekeys.TTLSet) Locker {
	d := cachekeys.RunLockTTL(ttl)
	if cfg.TTL > 0 {
		d = time.Duration(cfg.TTL) * time.Second
	}
	if rds != nil {
		return NewRedisLocker(rds, d)
	}
	return NewFileLocker(cfg.Dir, d)
}

// Nop is a locker that always succeeds; used for dry runs.
type Nop struct{}

func (Nop) Lock(context.Context, model.Date) (Handle, error) { return nopHandle{}, nil }

type nopHandle struct{}

func (nopHandle) Unlock(context.Context) error { return nil }
