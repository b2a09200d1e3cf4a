//go:build integration

package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrisk/internal/enrich"
	"finrisk/internal/enrich/cache"
	"finrisk/pkg/testutil/containers"
)

func sampleResult(key string) enrich.Result {
	return enrich.Result{
		enrich.SourceSanctions: enrich.Record{
			EntityKey: key,
			Source:    enrich.SourceSanctions,
			Found:     true,
			Payload:   map[string]any{"listed": true},
		},
	}
}

func TestRedisCache_ComputeOnceAndShare(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	c := cache.NewRedis[enrich.Result](rc.Client, time.Minute)

	var calls atomic.Int32
	compute := func(ctx context.Context) (enrich.Result, error) {
		calls.Add(1)
		return sampleResult("acme corp"), nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.GetOrCompute(ctx, "acme corp", compute)
			assert.NoError(t, err)
			assert.True(t, res[enrich.SourceSanctions].Found)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())

	// A second cache instance over the same Redis sees the stored value.
	other := cache.NewRedis[enrich.Result](rc.Client, time.Minute)
	res, err := other.GetOrCompute(ctx, "acme corp", func(ctx context.Context) (enrich.Result, error) {
		t.Fatal("compute must not run on warm cache")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, res[enrich.SourceSanctions].Found)
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	c := cache.NewRedis[enrich.Result](rc.Client, time.Second)

	calls := 0
	compute := func(ctx context.Context) (enrich.Result, error) {
		calls++
		return sampleResult("stale co"), nil
	}

	_, err := c.GetOrCompute(ctx, "stale co", compute)
	require.NoError(t, err)
	time.Sleep(1500 * time.Millisecond)
	_, err = c.GetOrCompute(ctx, "stale co", compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRedisCache_FailureNotMemoized(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	c := cache.NewRedis[enrich.Result](rc.Client, time.Minute)

	calls := 0
	_, err := c.GetOrCompute(ctx, "flaky ltd", func(ctx context.Context) (enrich.Result, error) {
		calls++
		return nil, errors.New("sources down")
	})
	require.Error(t, err)

	res, err := c.GetOrCompute(ctx, "flaky ltd", func(ctx context.Context) (enrich.Result, error) {
		calls++
		return sampleResult("flaky ltd"), nil
	})
	require.NoError(t, err)
	assert.True(t, res[enrich.SourceSanctions].Found)
	assert.Equal(t, 2, calls)
}
