package enrich

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrisk/internal/enrich/cache"
	"finrisk/internal/entity"
)

type fakeSource struct {
	kind   SourceKind
	calls  atomic.Int32
	lookup func(ctx context.Context, e entity.Entity) (Record, error)
}

func (f *fakeSource) Kind() SourceKind { return f.kind }

func (f *fakeSource) Lookup(ctx context.Context, e entity.Entity) (Record, error) {
	f.calls.Add(1)
	return f.lookup(ctx, e)
}

func foundRecord(payload any) func(context.Context, entity.Entity) (Record, error) {
	return func(_ context.Context, _ entity.Entity) (Record, error) {
		return Record{Found: true, Payload: payload}, nil
	}
}

func failing(err error) func(context.Context, entity.Entity) (Record, error) {
	return func(_ context.Context, _ entity.Entity) (Record, error) {
		return Record{}, err
	}
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func newTestCache(t *testing.T) *cache.Memory[Result] {
	t.Helper()
	c, err := cache.NewMemory[Result](100, time.Minute)
	require.NoError(t, err)
	return c
}

func TestFanout_AllSourcesSucceed(t *testing.T) {
	sanctions := &fakeSource{kind: SourceSanctions, lookup: foundRecord(SanctionsPayload{Listed: true})}
	registry := &fakeSource{kind: SourceRegistry, lookup: foundRecord(RegistryPayload{Status: "active"})}

	f := NewFanout([]Source{sanctions, registry}, newTestCache(t), WithRetryPolicy(fastRetry()))

	res, err := f.Enrich(context.Background(), entity.Entity{Name: "Acme Corp", Confidence: 1.0})
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.True(t, res[SourceSanctions].Found)
	assert.Equal(t, "acme corp", res[SourceSanctions].EntityKey)
	assert.True(t, res[SourceRegistry].Found)
	assert.False(t, res.Degraded())
}

func TestFanout_PartialFailureIsolation(t *testing.T) {
	sanctions := &fakeSource{kind: SourceSanctions, lookup: failing(errors.New("connection refused"))}
	registry := &fakeSource{kind: SourceRegistry, lookup: foundRecord(RegistryPayload{Status: "active"})}

	f := NewFanout([]Source{sanctions, registry}, newTestCache(t), WithRetryPolicy(fastRetry()))

	res, err := f.Enrich(context.Background(), entity.Entity{Name: "Globex", Confidence: 1.0})
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.False(t, res[SourceSanctions].Found)
	assert.Contains(t, res[SourceSanctions].Error, "connection refused")
	assert.True(t, res[SourceRegistry].Found)
	assert.True(t, res.Degraded())
}

func TestFanout_RetriesWholeSourceSet(t *testing.T) {
	var attempts atomic.Int32
	flaky := &fakeSource{kind: SourceSanctions}
	flaky.lookup = func(_ context.Context, _ entity.Entity) (Record, error) {
		if attempts.Add(1) < 3 {
			return Record{}, errors.New("timeout")
		}
		return Record{Found: true}, nil
	}
	registry := &fakeSource{kind: SourceRegistry, lookup: foundRecord(nil)}

	f := NewFanout([]Source{flaky, registry}, newTestCache(t), WithRetryPolicy(fastRetry()))

	res, err := f.Enrich(context.Background(), entity.Entity{Name: "Initech", Confidence: 1.0})
	require.NoError(t, err)

	assert.True(t, res[SourceSanctions].Found)
	assert.Equal(t, int32(3), attempts.Load())
	// The sibling is re-queried on each attempt of the whole set.
	assert.Equal(t, int32(3), registry.calls.Load())
}

func TestFanout_SuccessfulResultCached(t *testing.T) {
	registry := &fakeSource{kind: SourceRegistry, lookup: foundRecord(nil)}
	f := NewFanout([]Source{registry}, newTestCache(t), WithRetryPolicy(fastRetry()))

	e := entity.Entity{Name: "Hooli", Confidence: 1.0}
	_, err := f.Enrich(context.Background(), e)
	require.NoError(t, err)
	_, err = f.Enrich(context.Background(), e)
	require.NoError(t, err)

	assert.Equal(t, int32(1), registry.calls.Load())
}

func TestFanout_DegradedResultNotCached(t *testing.T) {
	down := &fakeSource{kind: SourceSanctions, lookup: failing(errors.New("boom"))}
	f := NewFanout([]Source{down}, newTestCache(t), WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))

	e := entity.Entity{Name: "Umbrella", Confidence: 1.0}
	_, err := f.Enrich(context.Background(), e)
	require.NoError(t, err)
	_, err = f.Enrich(context.Background(), e)
	require.NoError(t, err)

	// One call per Enrich: the failure was never memoized.
	assert.Equal(t, int32(2), down.calls.Load())
}

func TestRetryPolicy_StopsAfterMaxAttempts(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

	var calls int
	err := p.Do(context.Background(), func() error {
		calls++
		return errors.New("always failing")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_NoRetryAfterSuccess(t *testing.T) {
	p := fastRetry()

	var calls int
	err := p.Do(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
