package store

import (
	"context"
	"sync"

	"finrisk/internal/pipeline"
)

// Memory is the in-process AssessmentStore used by tests and single-node
// runs.
type Memory struct {
	mu            sync.RWMutex
	byID          map[string]pipeline.Assessment
	byTransaction map[string]string
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byID:          make(map[string]pipeline.Assessment),
		byTransaction: make(map[string]string),
	}
}

// Save upserts the assessment by ID.
func (m *Memory) Save(_ context.Context, a pipeline.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[a.ID] = a
	m.byTransaction[a.TransactionID] = a.ID
	return nil
}

// Get returns the assessment with the given ID.
func (m *Memory) Get(_ context.Context, id string) (pipeline.Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byID[id]
	if !ok {
		return pipeline.Assessment{}, ErrNotFound
	}
	return a, nil
}

// GetByTransaction returns the latest assessment for a transaction.
func (m *Memory) GetByTransaction(_ context.Context, transactionID string) (pipeline.Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byTransaction[transactionID]
	if !ok {
		return pipeline.Assessment{}, ErrNotFound
	}
	return m.byID[id], nil
}
