// Package extract pulls candidate entities out of free-text transaction
// notes. Extraction is best-effort; candidates carry a confidence below 1.0
// so normalization prefers structured parties on collision.
package extract

import (
	"context"

	"finrisk/internal/entity"
)

// Extractor finds entity candidates in unstructured text.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]entity.Entity, error)
}
