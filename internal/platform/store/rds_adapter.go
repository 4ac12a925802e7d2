package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"bazaar/internal/platform/store/rds"
)

// ErrNoKey is returned by KV.Get when the key does not exist or has expired
var ErrNoKey = errors.New("store: key not found")

// Sentinel TTL values mirroring redis semantics, as surfaced by KV.TTL
const (
	TTLNone    = time.Duration(-1) // key exists without an expiry
	TTLMissing = time.Duration(-2) // key does not exist
)

// KV is the key value seam cache layers program against
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)

	// ScanMatch walks keys matching pattern, invoking fn per key; iteration
	// stops on the first fn error
	ScanMatch(ctx context.Context, pattern string, fn func(key string) error) error

	// TTL returns the remaining lifetime; negative durations follow redis
	// semantics (-1 no expiry, -2 missing key)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	Ping(ctx context.Context) error
}

// newRedisAdapter wraps *rds.RDS as the store.KV seam
func newRedisAdapter(r *rds.RDS) KV {
	return &redisAdapter{inner: r}
}

// redisAdapter adapts *rds.RDS to the store.KV interface
type redisAdapter struct {
	inner *rds.RDS
}

var _ KV = (*redisAdapter)(nil)

func (a *redisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := a.inner.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNoKey
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (a *redisAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return a.inner.Client.Set(ctx, key, value, ttl).Err()
}

func (a *redisAdapter) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return a.inner.Client.Del(ctx, keys...).Result()
}

func (a *redisAdapter) ScanMatch(ctx context.Context, pattern string, fn func(key string) error) error {
	iter := a.inner.Client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (a *redisAdapter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return a.inner.Client.TTL(ctx, key).Result()
}

func (a *redisAdapter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return a.inner.Client.Expire(ctx, key, ttl).Err()
}

func (a *redisAdapter) Ping(ctx context.Context) error {
	return a.inner.Client.Ping(ctx).Err()
}

// Close releases the underlying client
func (a *redisAdapter) Close() error { return a.inner.Close() }
