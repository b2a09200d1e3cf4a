package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MemoryCacheSuite struct {
	suite.Suite
	ctx context.Context
}

func TestMemoryCacheSuite(t *testing.T) {
	suite.Run(t, new(MemoryCacheSuite))
}

func (s *MemoryCacheSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *MemoryCacheSuite) TestComputeInvokedAtMostOncePerKey() {
	c, err := NewMemory[string](10, time.Minute)
	s.Require().NoError(err)

	var calls atomic.Int32
	compute := func(context.Context) (string, error) {
		calls.Add(1)
		return "value", nil
	}

	v1, err := c.GetOrCompute(s.ctx, "k", compute)
	s.Require().NoError(err)
	v2, err := c.GetOrCompute(s.ctx, "k", compute)
	s.Require().NoError(err)

	s.Equal("value", v1)
	s.Equal("value", v2)
	s.Equal(int32(1), calls.Load())
}

func (s *MemoryCacheSuite) TestSingleFlightUnderConcurrency() {
	c, err := NewMemory[int](10, time.Minute)
	s.Require().NoError(err)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make([]int, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrCompute(s.ctx, "slow", compute)
			s.NoError(err)
			results[i] = v
		}()
	}

	// Give the goroutines time to pile onto the same flight.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	s.Equal(int32(1), calls.Load())
	for _, v := range results {
		s.Equal(42, v)
	}
}

func (s *MemoryCacheSuite) TestFailedComputationNotMemoized() {
	c, err := NewMemory[string](10, time.Minute)
	s.Require().NoError(err)

	boom := errors.New("source down")
	var calls atomic.Int32

	_, err = c.GetOrCompute(s.ctx, "k", func(context.Context) (string, error) {
		calls.Add(1)
		return "", boom
	})
	s.Require().ErrorIs(err, boom)

	v, err := c.GetOrCompute(s.ctx, "k", func(context.Context) (string, error) {
		calls.Add(1)
		return "recovered", nil
	})
	s.Require().NoError(err)
	s.Equal("recovered", v)
	s.Equal(int32(2), calls.Load())
}

func (s *MemoryCacheSuite) TestTTLExpiryIsLazy() {
	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	c, err := NewMemory(10, time.Minute, WithClock[string](clock))
	s.Require().NoError(err)

	var calls atomic.Int32
	compute := func(context.Context) (string, error) {
		calls.Add(1)
		return "v", nil
	}

	_, err = c.GetOrCompute(s.ctx, "k", compute)
	s.Require().NoError(err)
	s.Equal(1, c.Len())

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	s.Equal(0, c.Len())
	_, err = c.GetOrCompute(s.ctx, "k", compute)
	s.Require().NoError(err)
	s.Equal(int32(2), calls.Load())
}

func (s *MemoryCacheSuite) TestLRUEviction() {
	c, err := NewMemory[int](2, time.Minute)
	s.Require().NoError(err)

	for i, key := range []string{"a", "b", "c"} {
		v := i
		_, err := c.GetOrCompute(s.ctx, key, func(context.Context) (int, error) { return v, nil })
		s.Require().NoError(err)
	}

	// "a" is the least recently used entry and must have been evicted.
	var calls atomic.Int32
	_, err = c.GetOrCompute(s.ctx, "a", func(context.Context) (int, error) {
		calls.Add(1)
		return 0, nil
	})
	s.Require().NoError(err)
	s.Equal(int32(1), calls.Load())
}

func (s *MemoryCacheSuite) TestCancelledCallerDoesNotPoisonResult() {
	c, err := NewMemory[string](10, time.Minute)
	s.Require().NoError(err)

	release := make(chan struct{})
	var calls atomic.Int32
	compute := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "late", nil
	}

	cancelCtx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(cancelCtx, "k", compute)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	s.Require().ErrorIs(<-done, context.Canceled)

	// The abandoned computation still completes and lands in the cache.
	close(release)
	s.Require().Eventually(func() bool {
		v, ok := c.lookup("k")
		return ok && v == "late"
	}, time.Second, 10*time.Millisecond)
	s.Equal(int32(1), calls.Load())
}

type countingStats struct {
	hits   atomic.Int32
	misses atomic.Int32
}

func (c *countingStats) CacheHit()  { c.hits.Add(1) }
func (c *countingStats) CacheMiss() { c.misses.Add(1) }

func (s *MemoryCacheSuite) TestStatsCountHitsAndMisses() {
	stats := &countingStats{}
	c, err := NewMemory(10, time.Minute, WithStats[string](stats))
	s.Require().NoError(err)

	compute := func(context.Context) (string, error) { return "v", nil }

	_, err = c.GetOrCompute(s.ctx, "k", compute)
	s.Require().NoError(err)
	_, err = c.GetOrCompute(s.ctx, "k", compute)
	s.Require().NoError(err)
	_, err = c.GetOrCompute(s.ctx, "other", compute)
	s.Require().NoError(err)

	s.Equal(int32(1), stats.hits.Load())
	s.Equal(int32(2), stats.misses.Load())

	// A failed computation is a miss but never a hit afterwards.
	boom := errors.New("source down")
	_, err = c.GetOrCompute(s.ctx, "broken", func(context.Context) (string, error) { return "", boom })
	s.Require().ErrorIs(err, boom)
	s.Equal(int32(3), stats.misses.Load())
	s.Equal(int32(1), stats.hits.Load())
}
