// Package neo4j implements the relationship-graph store against a Neo4j
// instance.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"finrisk/internal/graph"
)

// Store is the Neo4j-backed graph.Store. Node and edge properties are a
// fixed, explicitly enumerated set; queries never interpolate caller data
// into Cypher beyond the validated relationship type.
type Store struct {
	driver neo4j.DriverWithContext
}

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, uri, username, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Store{driver: driver}, nil
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// EnsureConstraints creates the uniqueness constraint on entity IDs. Called
// once at process start, not by the pipeline.
func (s *Store) EnsureConstraints(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.Run(ctx, `
		CREATE CONSTRAINT entity_id IF NOT EXISTS
		FOR (e:Entity) REQUIRE e.id IS UNIQUE`, nil)
	if err != nil {
		return fmt.Errorf("create entity constraint: %w", err)
	}
	return nil
}

// UpsertEntity creates or updates an entity node with the closed property
// set: name, kind, riskScore, updatedAt.
func (s *Store) UpsertEntity(ctx context.Context, node graph.Node) error {
	if node.ID == "" {
		return fmt.Errorf("upsert entity: empty id")
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.Run(ctx, `
		MERGE (e:Entity {id: $id})
		SET e.name = $name,
		    e.kind = $kind,
		    e.riskScore = $riskScore,
		    e.updatedAt = $updatedAt`,
		map[string]any{
			"id":        node.ID,
			"name":      node.Name,
			"kind":      node.Kind,
			"riskScore": node.RiskScore,
			"updatedAt": time.Now().UTC().Format(time.RFC3339),
		})
	if err != nil {
		return fmt.Errorf("upsert entity %q: %w", node.ID, err)
	}
	return nil
}

// CreateRelationship links two entities. An unknown relationship type
// degrades to ASSOCIATED_WITH; the type is validated against the closed enum
// before being spliced into the query, so no caller-controlled text reaches
// Cypher.
func (s *Store) CreateRelationship(ctx context.Context, fromID, toID string, rel graph.RelationshipType, props graph.EdgeProps) error {
	if !rel.Valid() {
		rel = graph.RelAssociatedWith
	}
	if props.Weight == 0 {
		props.Weight = 1.0
	}
	if props.CreatedAt.IsZero() {
		props.CreatedAt = time.Now().UTC()
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (from:Entity {id: $fromId})
		MATCH (to:Entity {id: $toId})
		MERGE (from)-[r:%s]->(to)
		SET r.weight = $weight,
		    r.createdAt = $createdAt`, rel)

	_, err := session.Run(ctx, query, map[string]any{
		"fromId":    fromID,
		"toId":      toID,
		"weight":    props.Weight,
		"createdAt": props.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("create relationship %s %s->%s: %w", rel, fromID, toID, err)
	}
	return nil
}

// Connections returns every entity reachable within maxDepth hops, annotated
// with shortest hop distance and the peer's stored risk score when present.
func (s *Store) Connections(ctx context.Context, entityID string, maxDepth int) ([]graph.Connection, error) {
	if maxDepth < 1 {
		maxDepth = graph.DefaultMaxDepth
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	// Variable-length patterns cannot take the depth as a parameter; it is a
	// validated small integer, not caller text.
	query := fmt.Sprintf(`
		MATCH path = (e:Entity {id: $entityId})-[:ASSOCIATED_WITH|LOCATED_IN|TRANSACTS_WITH|OWNS*1..%d]-(connected:Entity)
		WITH connected, min(length(path)) AS distance,
		     [r IN relationships(path) | type(r)][-1] AS relType
		RETURN connected.id AS id,
		       connected.name AS name,
		       connected.riskScore AS riskScore,
		       relType,
		       distance`, maxDepth)

	result, err := session.Run(ctx, query, map[string]any{"entityId": entityID})
	if err != nil {
		return nil, fmt.Errorf("query connections for %q: %w", entityID, err)
	}

	var out []graph.Connection
	for result.Next(ctx) {
		record := result.Record()
		conn := graph.Connection{
			EntityID: stringValue(record, "id"),
			Name:     stringValue(record, "name"),
			Type:     graph.RelationshipType(stringValue(record, "relType")),
		}
		if v, ok := record.Get("distance"); ok {
			if d, ok := v.(int64); ok {
				conn.Distance = int(d)
			}
		}
		if v, ok := record.Get("riskScore"); ok && v != nil {
			if score, ok := v.(float64); ok {
				conn.PeerRiskScore = &score
			}
		}
		out = append(out, conn)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections for %q: %w", entityID, err)
	}
	return out, nil
}

func stringValue(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
