// Package store persists completed and in-flight assessments.
package store

import (
	"context"
	"errors"

	"finrisk/internal/pipeline"
)

// ErrNotFound reports a lookup for an assessment that was never stored.
var ErrNotFound = errors.New("assessment not found")

// AssessmentStore is the persistence contract the orchestrator and the HTTP
// surface share. Save upserts by assessment ID.
type AssessmentStore interface {
	Save(ctx context.Context, a pipeline.Assessment) error
	Get(ctx context.Context, id string) (pipeline.Assessment, error)
	GetByTransaction(ctx context.Context, transactionID string) (pipeline.Assessment, error)
}
