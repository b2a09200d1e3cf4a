package enrich

import (
	"context"

	"finrisk/internal/entity"
)

// Source is one external enrichment collaborator. Lookup returns a Record for
// "not found" rather than an error; an error means a transport-level failure
// that the fan-out may retry.
type Source interface {
	Kind() SourceKind
	Lookup(ctx context.Context, e entity.Entity) (Record, error)
}
