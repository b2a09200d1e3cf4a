package graph

import (
	"context"
	"log/slog"
)

// DefaultMaxDepth bounds the traversal to two hops.
const DefaultMaxDepth = 2

// Propagator computes the distance-weighted relationship risk contribution
// for an entity.
type Propagator struct {
	store    Store
	maxDepth int
	logger   *slog.Logger
}

// PropagatorOption configures a Propagator.
type PropagatorOption func(*Propagator)

// WithMaxDepth overrides the traversal depth bound.
func WithMaxDepth(depth int) PropagatorOption {
	return func(p *Propagator) {
		if depth > 0 {
			p.maxDepth = depth
		}
	}
}

// WithLogger sets the logger for absorbed graph failures.
func WithLogger(logger *slog.Logger) PropagatorOption {
	return func(p *Propagator) {
		p.logger = logger
	}
}

// NewPropagator builds a Propagator over the given graph store.
func NewPropagator(store Store, opts ...PropagatorOption) *Propagator {
	p := &Propagator{store: store, maxDepth: DefaultMaxDepth, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RelationshipRisk returns the maximum of peerRiskScore/distance over every
// reachable connection that carries a known peer score, or 0 when there are
// none. Taking the maximum rather than a sum models worst exposure: one close
// high-risk relationship dominates many distant low-risk ones.
//
// A graph query failure is absorbed: relationship risk is an optional signal,
// so the method logs and returns 0 instead of failing the pipeline.
func (p *Propagator) RelationshipRisk(ctx context.Context, entityID string) float64 {
	connections, err := p.store.Connections(ctx, entityID, p.maxDepth)
	if err != nil {
		p.logger.WarnContext(ctx, "graph query failed, treating as no relationship risk",
			"entity_id", entityID,
			"error", err,
		)
		return 0
	}

	max := 0.0
	for _, conn := range connections {
		if conn.PeerRiskScore == nil || conn.Distance < 1 {
			continue
		}
		weighted := *conn.PeerRiskScore / float64(conn.Distance)
		if weighted > max {
			max = weighted
		}
	}
	return max
}
