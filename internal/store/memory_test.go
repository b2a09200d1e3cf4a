package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrisk/internal/pipeline"
	"finrisk/internal/scoring"
)

func TestMemory_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a := pipeline.Assessment{
		ID:            "as-1",
		TransactionID: "TXN-1",
		Status:        pipeline.StatusCompleted,
		Score:         82.5,
		Tier:          scoring.TierHigh,
		StartedAt:     time.Now(),
	}
	require.NoError(t, m.Save(ctx, a))

	got, err := m.Get(ctx, "as-1")
	require.NoError(t, err)
	assert.Equal(t, a, got)

	byTx, err := m.GetByTransaction(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, "as-1", byTx.ID)
}

func TestMemory_SaveIsUpsert(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Save(ctx, pipeline.Assessment{ID: "as-1", TransactionID: "TXN-1", Status: pipeline.StatusReceived}))
	require.NoError(t, m.Save(ctx, pipeline.Assessment{ID: "as-1", TransactionID: "TXN-1", Status: pipeline.StatusCompleted}))

	got, err := m.Get(ctx, "as-1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCompleted, got.Status)
}

func TestMemory_NotFound(t *testing.T) {
	m := NewMemory()

	_, err := m.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.GetByTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
