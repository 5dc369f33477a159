package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	"equilibrium-api/pkg/engine"
)

// ErrNotFound marks a cache key with no published payload. Serving maps it
// to an "unavailable" response instead of computing anything inline.
var ErrNotFound = errors.New("reports: not found")

const defaultLockTTL = 10 * time.Minute

var (
	_ engine.ReportCache = (*Store)(nil)
	_ engine.AssetLocker = (*Store)(nil)
)

// Store is the Redis seam between the engine and the serving layer: the
// engine publishes finished report payloads through it, handlers read them
// back, and per-asset run locks live behind the same client.
type Store struct {
	redis   *redis.Redis
	lockTTL time.Duration
}

// NewStore wraps a Redis client, nil when no client is configured. lockTTL
// bounds how long a crashed run can hold an asset lock; zero picks a
// default comfortably above one asset run.
func NewStore(client *redis.Redis, lockTTL time.Duration) *Store {
	if client == nil {
		return nil
	}
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &Store{redis: client, lockTTL: lockTTL}
}

// Publish stores a payload under the given key. A zero ttl keeps the key
// until the next publish overwrites it.
func (s *Store) Publish(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl > 0 {
		seconds := int(ttl / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		if err := s.redis.SetexCtx(ctx, key, string(payload), seconds); err != nil {
			return fmt.Errorf("reports: publish %s: %w", key, err)
		}
		return nil
	}
	if err := s.redis.SetCtx(ctx, key, string(payload)); err != nil {
		return fmt.Errorf("reports: publish %s: %w", key, err)
	}
	return nil
}

// Get returns the payload published under key, ErrNotFound when the key is
// absent. Published payloads are never empty, so an empty reply means the
// key does not exist.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.redis.GetCtx(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reports: get %s: %w", key, err)
	}
	if raw == "" {
		return nil, ErrNotFound
	}
	return []byte(raw), nil
}

// Acquire takes the per-asset run lock. acquired=false without error means
// another process is already working the asset.
func (s *Store) Acquire(ctx context.Context, assetID string) (func(), bool, error) {
	lock := redis.NewRedisLock(s.redis, engine.LockKey(assetID))
	lock.SetExpire(int(s.lockTTL / time.Second))
	acquired, err := lock.AcquireCtx(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("reports: acquire lock %s: %w", assetID, err)
	}
	if !acquired {
		return nil, false, nil
	}
	release := func() {
		// Release on a fresh context so shutdown cancellation cannot
		// leave the lock held until it expires.
		if _, err := lock.ReleaseCtx(context.Background()); err != nil {
			logx.Errorf("reports: release lock %s: %v", assetID, err)
		}
	}
	return release, true, nil
}

// Exists reports whether a payload is published under key without reading
// it. The availability index probes many keys per request and only needs
// presence.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.redis.ExistsCtx(ctx, key)
	if err != nil {
		return false, fmt.Errorf("reports: exists %s: %w", key, err)
	}
	return ok, nil
}

// Ping reports whether the cache answers.
func (s *Store) Ping(ctx context.Context) bool {
	if s == nil || s.redis == nil {
		return false
	}
	return s.redis.PingCtx(ctx)
}

// Del removes published keys and returns how many existed.
func (s *Store) Del(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.redis.DelCtx(ctx, keys...)
	if err != nil {
		return 0, fmt.Errorf("reports: del: %w", err)
	}
	return n, nil
}
