package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"finrisk/internal/enrich/cache"
	"finrisk/internal/entity"
)

// Fanout issues lookups to all configured sources concurrently for one
// entity. Results are cached by the entity's normalized name; transient
// failures re-attempt the entire source set; a source that still fails after
// retries degrades to a Found=false record instead of failing its siblings.
type Fanout struct {
	sources []Source
	cache   cache.Cache[Result]
	retry   RetryPolicy
	logger  *slog.Logger
	now     func() time.Time
}

// FanoutOption configures a Fanout.
type FanoutOption func(*Fanout)

// WithLogger sets the logger used for degraded-lookup reporting.
func WithLogger(logger *slog.Logger) FanoutOption {
	return func(f *Fanout) {
		f.logger = logger
	}
}

// WithRetryPolicy overrides the retry policy for the whole per-entity call.
func WithRetryPolicy(p RetryPolicy) FanoutOption {
	return func(f *Fanout) {
		f.retry = p
	}
}

// WithClock overrides record timestamps, for tests.
func WithClock(now func() time.Time) FanoutOption {
	return func(f *Fanout) {
		f.now = now
	}
}

// NewFanout builds a Fanout over the given sources and cache.
func NewFanout(sources []Source, c cache.Cache[Result], opts ...FanoutOption) *Fanout {
	f := &Fanout{
		sources: sources,
		cache:   c,
		retry:   DefaultRetryPolicy(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Enrich returns one record per configured source for the entity. A fully
// successful result is cached under the entity key; a degraded result (one or
// more sources exhausted their retries) is returned to the caller but not
// cached, so the next access retries the failing sources.
func (f *Fanout) Enrich(ctx context.Context, e entity.Entity) (Result, error) {
	res, err := f.cache.GetOrCompute(ctx, e.Key(), func(ctx context.Context) (Result, error) {
		return f.lookupWithRetry(ctx, e)
	})
	if err != nil {
		if res != nil {
			// Degraded but complete: every source has a record, failed ones
			// carry Found=false and an error string.
			f.logger.WarnContext(ctx, "enrichment degraded",
				"entity", e.Key(),
				"error", err,
			)
			return res, nil
		}
		return nil, err
	}
	return res, nil
}

// lookupWithRetry re-attempts the entire source set while any source reports
// a transport failure, then settles on a degraded result.
func (f *Fanout) lookupWithRetry(ctx context.Context, e entity.Entity) (Result, error) {
	var (
		last     Result
		lastErrs []error
	)
	err := f.retry.Do(ctx, func() error {
		res, failures := f.lookupOnce(ctx, e)
		last, lastErrs = res, failures
		if len(failures) > 0 {
			return fmt.Errorf("%d of %d sources failed: %w", len(failures), len(f.sources), failures[0])
		}
		return nil
	})
	if err != nil {
		return last, fmt.Errorf("enrich %s: %w", e.Key(), joinErrs(lastErrs, err))
	}
	return last, nil
}

// lookupOnce queries every source concurrently, capturing each task's error
// instead of propagating it so one failing source never aborts its siblings.
func (f *Fanout) lookupOnce(ctx context.Context, e entity.Entity) (Result, []error) {
	records := make([]Record, len(f.sources))
	errs := make([]error, len(f.sources))

	var g errgroup.Group
	for i, src := range f.sources {
		g.Go(func() error {
			rec, err := src.Lookup(ctx, e)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", src.Kind(), err)
				records[i] = Record{
					EntityKey: e.Key(),
					Source:    src.Kind(),
					Found:     false,
					FetchedAt: f.now(),
					Error:     err.Error(),
				}
				return nil
			}
			rec.EntityKey = e.Key()
			rec.Source = src.Kind()
			if rec.FetchedAt.IsZero() {
				rec.FetchedAt = f.now()
			}
			records[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	res := make(Result, len(records))
	for _, rec := range records {
		res[rec.Source] = rec
	}

	failures := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			failures = append(failures, err)
		}
	}
	return res, failures
}

func joinErrs(errs []error, fallback error) error {
	if len(errs) == 0 {
		return fallback
	}
	return errs[0]
}
