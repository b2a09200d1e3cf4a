package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Redis is a Cache backed by a shared Redis instance so enrichment results
// survive restarts and are shared across replicas. Single-flight collapsing
// is still per process; Redis TTL handles expiry. Values are stored as JSON.
type Redis[V any] struct {
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
	group     singleflight.Group
	stats     Stats
}

// RedisOption configures a Redis cache.
type RedisOption[V any] func(*Redis[V])

// WithRedisStats attaches hit/miss instrumentation.
func WithRedisStats[V any](s Stats) RedisOption[V] {
	return func(r *Redis[V]) {
		if s != nil {
			r.stats = s
		}
	}
}

// NewRedis builds a Redis-backed cache. ttl falls back to DefaultTTL when
// zero. Capacity is delegated to the Redis instance's eviction policy.
func NewRedis[V any](client redis.UniversalClient, ttl time.Duration, opts ...RedisOption[V]) *Redis[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &Redis[V]{client: client, ttl: ttl, keyPrefix: "enrich:", stats: nopStats{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCompute implements Cache.
func (r *Redis[V]) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (V, error)) (V, error) {
	if v, ok, err := r.lookup(ctx, key); err == nil && ok {
		r.stats.CacheHit()
		return v, nil
	}

	ch := r.group.DoChan(key, func() (any, error) {
		detached := context.WithoutCancel(ctx)
		if v, ok, err := r.lookup(detached, key); err == nil && ok {
			r.stats.CacheHit()
			return v, nil
		}
		r.stats.CacheMiss()
		v, err := compute(detached)
		if err != nil {
			return v, err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return v, fmt.Errorf("marshal cache value: %w", err)
		}
		// A store failure degrades to uncached rather than failing the
		// enrichment that produced the value.
		_ = r.client.Set(detached, r.keyPrefix+key, raw, r.ttl).Err()
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			if v, ok := res.Val.(V); ok {
				return v, res.Err
			}
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func (r *Redis[V]) lookup(ctx context.Context, key string) (V, bool, error) {
	var zero V
	raw, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("unmarshal cache value: %w", err)
	}
	return v, true, nil
}
