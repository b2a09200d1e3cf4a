package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(v float64) *float64 { return &v }

type stubStore struct {
	connections []Connection
	err         error
}

func (s *stubStore) Connections(context.Context, string, int) ([]Connection, error) {
	return s.connections, s.err
}

func (s *stubStore) UpsertEntity(context.Context, Node) error { return nil }

func (s *stubStore) CreateRelationship(context.Context, string, string, RelationshipType, EdgeProps) error {
	return nil
}

func TestRelationshipRisk_PicksMaximumWeightedScore(t *testing.T) {
	p := NewPropagator(&stubStore{connections: []Connection{
		{EntityID: "a", Distance: 1, PeerRiskScore: score(40)},
		{EntityID: "b", Distance: 2, PeerRiskScore: score(90)},
	}})

	// 40/1 = 40.0, 90/2 = 45.0; worst exposure wins, not the average.
	assert.Equal(t, 45.0, p.RelationshipRisk(context.Background(), "e"))
}

func TestRelationshipRisk_NoConnections(t *testing.T) {
	p := NewPropagator(&stubStore{})
	assert.Equal(t, 0.0, p.RelationshipRisk(context.Background(), "e"))
}

func TestRelationshipRisk_IgnoresUnscoredPeers(t *testing.T) {
	p := NewPropagator(&stubStore{connections: []Connection{
		{EntityID: "a", Distance: 1},
		{EntityID: "b", Distance: 3, PeerRiskScore: score(30)},
	}})

	assert.Equal(t, 10.0, p.RelationshipRisk(context.Background(), "e"))
}

func TestRelationshipRisk_GraphFailureAbsorbed(t *testing.T) {
	p := NewPropagator(&stubStore{err: errors.New("neo4j unavailable")})
	assert.Equal(t, 0.0, p.RelationshipRisk(context.Background(), "e"))
}

func TestMemoryStore_BFSDistances(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.UpsertEntity(ctx, Node{ID: "a", Name: "A"}))
	require.NoError(t, s.UpsertEntity(ctx, Node{ID: "b", Name: "B", RiskScore: 80}))
	require.NoError(t, s.UpsertEntity(ctx, Node{ID: "c", Name: "C", RiskScore: 60}))
	require.NoError(t, s.UpsertEntity(ctx, Node{ID: "d", Name: "D", RiskScore: 90}))

	require.NoError(t, s.CreateRelationship(ctx, "a", "b", RelTransactsWith, EdgeProps{}))
	require.NoError(t, s.CreateRelationship(ctx, "b", "c", RelOwns, EdgeProps{}))
	require.NoError(t, s.CreateRelationship(ctx, "c", "d", RelAssociatedWith, EdgeProps{}))

	conns, err := s.Connections(ctx, "a", 2)
	require.NoError(t, err)
	require.Len(t, conns, 2)

	byID := map[string]Connection{}
	for _, c := range conns {
		byID[c.EntityID] = c
	}
	assert.Equal(t, 1, byID["b"].Distance)
	assert.Equal(t, 2, byID["c"].Distance)
	require.NotNil(t, byID["b"].PeerRiskScore)
	assert.Equal(t, 80.0, *byID["b"].PeerRiskScore)
	// "d" is three hops out, beyond the bound.
	_, ok := byID["d"]
	assert.False(t, ok)
}

func TestMemoryStore_UnknownRelationshipTypeDegrades(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.UpsertEntity(ctx, Node{ID: "a"}))
	require.NoError(t, s.UpsertEntity(ctx, Node{ID: "b"}))

	require.NoError(t, s.CreateRelationship(ctx, "a", "b", RelationshipType("BEST_FRIENDS"), EdgeProps{}))

	conns, err := s.Connections(ctx, "a", 1)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, RelAssociatedWith, conns[0].Type)
}

func TestMemoryStore_UnknownEntity(t *testing.T) {
	s := NewMemoryStore()
	conns, err := s.Connections(context.Background(), "ghost", 2)
	require.NoError(t, err)
	assert.Empty(t, conns)

	err = s.CreateRelationship(context.Background(), "ghost", "also-ghost", RelOwns, EdgeProps{})
	require.Error(t, err)
}

func TestPropagator_EndToEndOverMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.UpsertEntity(ctx, Node{ID: "target"}))
	require.NoError(t, s.UpsertEntity(ctx, Node{ID: "close-risk", RiskScore: 70}))
	require.NoError(t, s.UpsertEntity(ctx, Node{ID: "far-risk", RiskScore: 95}))
	require.NoError(t, s.CreateRelationship(ctx, "target", "close-risk", RelTransactsWith, EdgeProps{}))
	require.NoError(t, s.CreateRelationship(ctx, "close-risk", "far-risk", RelAssociatedWith, EdgeProps{}))

	p := NewPropagator(s)

	// close-risk: 70/1 = 70; far-risk: 95/2 = 47.5.
	assert.Equal(t, 70.0, p.RelationshipRisk(ctx, "target"))
}
