// Package graph derives relationship risk from an entity's neighborhood in
// the relationship graph.
package graph

import (
	"context"
	"time"
)

// RelationshipType is the closed set of edge types the graph accepts.
type RelationshipType string

const (
	RelAssociatedWith RelationshipType = "ASSOCIATED_WITH"
	RelLocatedIn      RelationshipType = "LOCATED_IN"
	RelTransactsWith  RelationshipType = "TRANSACTS_WITH"
	RelOwns           RelationshipType = "OWNS"
)

// Valid reports whether t is one of the accepted relationship types.
func (t RelationshipType) Valid() bool {
	switch t {
	case RelAssociatedWith, RelLocatedIn, RelTransactsWith, RelOwns:
		return true
	}
	return false
}

// Connection is one reachable peer, annotated with hop distance and, when the
// peer has been scored before, its risk score. Recomputed per query, never
// mutated.
type Connection struct {
	EntityID      string
	Name          string
	Type          RelationshipType
	Distance      int
	PeerRiskScore *float64
}

// Node is the closed set of properties an entity node carries in the graph.
type Node struct {
	ID        string
	Name      string
	Kind      string
	RiskScore float64
}

// EdgeProps is the closed set of properties a relationship carries.
type EdgeProps struct {
	Weight    float64
	CreatedAt time.Time
}

// Store is the relationship-graph collaborator. The risk propagator only
// reads; the write primitives exist for the sibling subsystems that populate
// the graph.
type Store interface {
	Connections(ctx context.Context, entityID string, maxDepth int) ([]Connection, error)
	UpsertEntity(ctx context.Context, node Node) error
	CreateRelationship(ctx context.Context, fromID, toID string, rel RelationshipType, props EdgeProps) error
}
