package reports_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/redis/redistest"

	"equilibrium-api/internal/persistence/reports"
	"equilibrium-api/pkg/engine"
)

func newTestStore(t *testing.T) *reports.Store {
	t.Helper()
	return reports.NewStore(redistest.CreateRedis(t), time.Minute)
}

func TestPublishAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := engine.ReportKey("BTCUSDT", "ib", "ytd")
	payload := []byte(`{"symbol":"BTCUSDT","report_type":"ib"}`)

	require.NoError(t, store.Publish(ctx, key, payload, 0))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestGetMissingKey(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), engine.ReportKey("BTCUSDT", "ib", "all"))
	require.ErrorIs(t, err, reports.ErrNotFound)
}

func TestPublishWithTTL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	key := engine.FreshnessKey("ETHUSDT")
	require.NoError(t, store.Publish(ctx, key, []byte(`{"fresh":true}`), 90*time.Second))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	// Sub-second ttls round up to one second instead of never expiring.
	require.NoError(t, store.Publish(ctx, key, []byte(`{"fresh":true}`), 200*time.Millisecond))
}

func TestAcquireLockExcludesSecondHolder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	release, acquired, err := store.Acquire(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.True(t, acquired)
	require.NotNil(t, release)

	_, again, err := store.Acquire(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.False(t, again)

	// A different asset is an independent lock.
	releaseOther, acquired, err := store.Acquire(ctx, "ETHUSDT")
	require.NoError(t, err)
	require.True(t, acquired)
	releaseOther()

	release()
	release2, acquired, err := store.Acquire(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.True(t, acquired, "released lock must be acquirable again")
	release2()
}

func TestExists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := engine.ReportKey("BTCUSDT", "timing", "last_30_days")

	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Publish(ctx, key, []byte(`{}`), 0))
	ok, err = store.Exists(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDelRemovesPublishedKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	k1 := engine.ReportKey("BTCUSDT", "ib", "ytd")
	k2 := engine.ReportKey("BTCUSDT", "seasonality", "ytd")
	require.NoError(t, store.Publish(ctx, k1, []byte(`{}`), 0))
	require.NoError(t, store.Publish(ctx, k2, []byte(`{}`), 0))

	n, err := store.Del(ctx, k1, k2)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = store.Get(ctx, k1)
	require.ErrorIs(t, err, reports.ErrNotFound)

	n, err = store.Del(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	require.True(t, store.Ping(context.Background()))

	var nilStore *reports.Store
	require.False(t, nilStore.Ping(context.Background()))
}
