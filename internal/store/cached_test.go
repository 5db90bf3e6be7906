package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/redis/redistest"

	cachekeys "dailysignal/internal/cache"
	"dailysignal/internal/model"
)

func TestCachedContract(t *testing.T) {
	runContract(t, func(t *testing.T) *Bundle {
		rds := redistest.CreateRedis(t)
		b := NewMemory()
		b.Snapshots = NewCachedSnapshots(b.Snapshots, rds, "NVDA", cachekeys.NewTTLSet(cachekeys.TTLConf{}))
		return b
	})
}

func TestCachedSnapshotsServeFromRedis(t *testing.T) {
	ctx := context.Background()
	rds := redistest.CreateRedis(t)
	inner := NewMemorySnapshots()
	cached := NewCachedSnapshots(inner, rds, "NVDA", cachekeys.NewTTLSet(cachekeys.TTLConf{}))

	_, err := cached.InsertIfAbsent(ctx, snapshotAt("2026-01-16", 180))
	require.NoError(t, err)

	got, err := cached.Get(ctx, day("2026-01-16"))
	require.NoError(t, err)
	require.InDelta(t, 180, got.Close, 1e-9)

	raw, err := rds.GetCtx(ctx, cachekeys.SnapshotKey("NVDA", "2026-01-16"))
	require.NoError(t, err)
	require.Contains(t, raw, `"date":"2026-01-16"`)

	// A write through the decorator drops the cached copy.
	require.NoError(t, cached.SetPrediction(ctx, day("2026-01-16"), model.MovementUp, 0.7))
	raw, err = rds.GetCtx(ctx, cachekeys.SnapshotKey("NVDA", "2026-01-16"))
	require.NoError(t, err)
	require.Empty(t, raw)

	got, err = cached.Get(ctx, day("2026-01-16"))
	require.NoError(t, err)
	require.Equal(t, model.MovementUp, got.Prediction)
}
