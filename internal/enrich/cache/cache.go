// Package cache provides the bounded, time-expiring store that sits in front
// of the enrichment sources. All backends share single-flight semantics: N
// concurrent callers for one key collapse into a single computation.
package cache

import "context"

// Cache is the contract the enrichment fan-out depends on. Implementations
// must guarantee at most one concurrent invocation of compute per key within
// the process, and must never memoize a failed computation.
type Cache[V any] interface {
	// GetOrCompute returns the cached value for key, or invokes compute and
	// stores its result. compute runs on a context detached from ctx so a
	// cancelled caller cannot poison the shared result; the caller itself
	// still unblocks with ctx.Err() on cancellation.
	GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (V, error)) (V, error)
}

// Stats receives cache outcome notifications. A hit is a lookup served
// without running compute; a miss is a lookup that ran it. Implementations
// must be safe for concurrent use.
type Stats interface {
	CacheHit()
	CacheMiss()
}

type nopStats struct{}

func (nopStats) CacheHit()  {}
func (nopStats) CacheMiss() {}
