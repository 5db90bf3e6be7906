package store

import (
	"context"
	"errors"

	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/syncx"

	cachekeys "dailysignal/internal/cache"
	"dailysignal/internal/model"
)

// CachedSnapshots puts a Redis read-through cache in front of Get. Every
// write drops the key of the date it touched; range reads pass through.
type CachedSnapshots struct {
	SnapshotStore
	cache  gocache.Cache
	symbol string
}

// NewCachedSnapshots wraps inner with a cache node on rds.
func NewCachedSnapshots(inner SnapshotStore, rds *redis.Redis, symbol string, ttl cachekeys.TTLSet) *CachedSnapshots {
	node := gocache.NewNode(rds, syncx.NewSingleFlight(), gocache.NewStat("dailysignal.snapshots"), ErrNotFound,
		gocache.WithExpiry(cachekeys.SnapshotTTL(ttl)))
	return &CachedSnapshots{SnapshotStore: inner, cache: node, symbol: symbol}
}

func (c *CachedSnapshots) key(date model.Date) string {
	return cachekeys.SnapshotKey(c.symbol, date.String())
}

func (c *CachedSnapshots) Get(ctx context.Context, date model.Date) (*model.Snapshot, error) {
	var snap model.Snapshot
	key := c.key(date)
	err := c.cache.TakeCtx(ctx, &snap, key, func(v any) error {
		row, err := c.SnapshotStore.Get(ctx, date)
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		*v.(*model.Snapshot) = *row
		return nil
	})
	switch {
	case err == nil:
		return &snap, nil
	case c.cache.IsNotFound(err) || errors.Is(err, ErrNotFound):
		return nil, notFound(date)
	default:
		logx.WithContext(ctx).Errorf("store: snapshot cache take key=%s err=%v", key, err)
		return c.SnapshotStore.Get(ctx, date)
	}
}

func (c *CachedSnapshots) InsertIfAbsent(ctx context.Context, s *model.Snapshot) (bool, error) {
	defer c.invalidate(ctx, s.Date)
	return c.SnapshotStore.InsertIfAbsent(ctx, s)
}

func (c *CachedSnapshots) UpsertOverwrite(ctx context.Context, s *model.Snapshot) error {
	defer c.invalidate(ctx, s.Date)
	return c.SnapshotStore.UpsertOverwrite(ctx, s)
}

func (c *CachedSnapshots) UpdateSentiment(ctx context.Context, date model.Date, sent model.Sentiment) error {
	defer c.invalidate(ctx, date)
	return c.SnapshotStore.UpdateSentiment(ctx, date, sent)
}

func (c *CachedSnapshots) SetNextDay(ctx context.Context, date model.Date, nextClose, changePct float64, actual model.Movement) error {
	defer c.invalidate(ctx, date)
	return c.SnapshotStore.SetNextDay(ctx, date, nextClose, changePct, actual)
}

func (c *CachedSnapshots) SetPrediction(ctx context.Context, date model.Date, label model.Movement, confidence float64) error {
	defer c.invalidate(ctx, date)
	return c.SnapshotStore.SetPrediction(ctx, date, label, confidence)
}

func (c *CachedSnapshots) invalidate(ctx context.Context, date model.Date) {
	key := c.key(date)
	if err := c.cache.DelCtx(ctx, key); err != nil && !c.cache.IsNotFound(err) {
		logx.WithContext(ctx).Errorf("store: snapshot cache del key=%s err=%v", key, err)
	}
}
