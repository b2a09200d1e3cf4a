package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCapacity bounds the number of cached entities.
	DefaultCapacity = 1000
	// DefaultTTL matches the enrichment freshness window.
	DefaultTTL = time.Hour
)

type memoryEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Memory is an in-process Cache backed by an LRU with lazy TTL expiry.
// Expired entries are dropped on access, not by a background sweep.
type Memory[V any] struct {
	entries *lru.Cache[string, memoryEntry[V]]
	ttl     time.Duration
	group   singleflight.Group
	now     func() time.Time
	stats   Stats
}

// MemoryOption configures a Memory cache.
type MemoryOption[V any] func(*Memory[V])

// WithClock overrides the time source. Tests use this to force expiry.
func WithClock[V any](now func() time.Time) MemoryOption[V] {
	return func(m *Memory[V]) {
		m.now = now
	}
}

// WithStats attaches hit/miss instrumentation.
func WithStats[V any](s Stats) MemoryOption[V] {
	return func(m *Memory[V]) {
		if s != nil {
			m.stats = s
		}
	}
}

// NewMemory builds a Memory cache. Capacity and ttl fall back to the
// defaults when zero.
func NewMemory[V any](capacity int, ttl time.Duration, opts ...MemoryOption[V]) (*Memory[V], error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	entries, err := lru.New[string, memoryEntry[V]](capacity)
	if err != nil {
		return nil, err
	}
	m := &Memory[V]{entries: entries, ttl: ttl, now: time.Now, stats: nopStats{}}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// GetOrCompute implements Cache. On a miss the computation runs exactly once
// per key regardless of concurrent callers; a computation error is returned
// to every waiter and nothing is stored, so the next access retries.
func (m *Memory[V]) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := m.lookup(key); ok {
		m.stats.CacheHit()
		return v, nil
	}

	ch := m.group.DoChan(key, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have stored
		// the value between our miss and this execution.
		if v, ok := m.lookup(key); ok {
			m.stats.CacheHit()
			return v, nil
		}
		m.stats.CacheMiss()
		v, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return v, err
		}
		m.entries.Add(key, memoryEntry[V]{value: v, expiresAt: m.now().Add(m.ttl)})
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
		// The in-flight computation is left to finish so its result stays
		// usable for other callers; this caller's result is discarded.
		var zero V
		return zero, ctx.Err()
	}
}

// Len reports the number of live entries, excluding expired ones.
func (m *Memory[V]) Len() int {
	n := 0
	for _, key := range m.entries.Keys() {
		if _, ok := m.lookup(key); ok {
			n++
		}
	}
	return n
}

func (m *Memory[V]) lookup(key string) (V, bool) {
	entry, ok := m.entries.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if m.now().After(entry.expiresAt) {
		m.entries.Remove(key)
		var zero V
		return zero, false
	}
	return entry.value, true
}
