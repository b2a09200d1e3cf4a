package graph

import (
	"context"
	"fmt"
	"sync"
)

type memoryEdge struct {
	peerID string
	rel    RelationshipType
	props  EdgeProps
}

// MemoryStore is an in-process graph used by tests and single-node
// deployments without a graph database. Edges are undirected for traversal,
// matching the production store's query semantics.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]Node
	edges map[string][]memoryEdge
}

// NewMemoryStore builds an empty in-memory graph.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]Node),
		edges: make(map[string][]memoryEdge),
	}
}

// UpsertEntity creates or replaces a node.
func (s *MemoryStore) UpsertEntity(_ context.Context, node Node) error {
	if node.ID == "" {
		return fmt.Errorf("upsert entity: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[node.ID] = node
	return nil
}

// CreateRelationship adds an edge between two existing nodes. Unknown
// relationship types degrade to ASSOCIATED_WITH rather than being rejected.
func (s *MemoryStore) CreateRelationship(_ context.Context, fromID, toID string, rel RelationshipType, props EdgeProps) error {
	if !rel.Valid() {
		rel = RelAssociatedWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[fromID]; !ok {
		return fmt.Errorf("create relationship: unknown entity %q", fromID)
	}
	if _, ok := s.nodes[toID]; !ok {
		return fmt.Errorf("create relationship: unknown entity %q", toID)
	}
	s.edges[fromID] = append(s.edges[fromID], memoryEdge{peerID: toID, rel: rel, props: props})
	s.edges[toID] = append(s.edges[toID], memoryEdge{peerID: fromID, rel: rel, props: props})
	return nil
}

// Connections walks the graph breadth-first up to maxDepth hops and returns
// each reachable peer at its shortest distance.
func (s *MemoryStore) Connections(_ context.Context, entityID string, maxDepth int) ([]Connection, error) {
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[entityID]; !ok {
		return nil, nil
	}

	type visit struct {
		id    string
		depth int
	}
	seen := map[string]bool{entityID: true}
	queue := []visit{{id: entityID}}
	var out []Connection

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth == maxDepth {
			continue
		}
		for _, edge := range s.edges[cur.id] {
			if seen[edge.peerID] {
				continue
			}
			seen[edge.peerID] = true
			peer := s.nodes[edge.peerID]
			conn := Connection{
				EntityID: peer.ID,
				Name:     peer.Name,
				Type:     edge.rel,
				Distance: cur.depth + 1,
			}
			if peer.RiskScore > 0 {
				score := peer.RiskScore
				conn.PeerRiskScore = &score
			}
			out = append(out, conn)
			queue = append(queue, visit{id: edge.peerID, depth: cur.depth + 1})
		}
	}
	return out, nil
}
