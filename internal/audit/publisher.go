package audit

import (
	"context"
	"log/slog"
	"time"
)

// Store persists audit events. Append-only; events are never updated.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByTransaction(ctx context.Context, transactionID string) ([]Event, error)
}

// Publisher captures structured audit events through a Store so tests can
// swap sinks easily. A failed append is logged, not propagated: the audit
// trail must never fail an assessment.
type Publisher struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger for append-failure reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPublisher builds an audit publisher over the given store.
func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit records one event, stamping the time when the caller left it zero.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.Error("audit append failed",
			"action", event.Action,
			"transaction_id", event.TransactionID,
			"error", err,
		)
	}
}

// List returns the trail for one transaction in append order.
func (p *Publisher) List(ctx context.Context, transactionID string) ([]Event, error) {
	return p.store.ListByTransaction(ctx, transactionID)
}
