// Package scoring combines enrichment signals and relationship risk into a
// bounded risk score with an auditable factor trail and a discrete tier.
package scoring

import (
	"finrisk/internal/enrich"
	"finrisk/internal/entity"
)

// Tier is the discrete risk classification used for routing.
type Tier string

const (
	TierLow    Tier = "LOW"
	TierMedium Tier = "MEDIUM"
	TierHigh   Tier = "HIGH"
)

// Severity grades an individual risk factor.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// FactorKind names the scoring component a factor came from.
type FactorKind string

const (
	FactorSanctions          FactorKind = "sanctions"
	FactorJurisdiction       FactorKind = "jurisdiction"
	FactorCorporateStatus    FactorKind = "corporate_status"
	FactorHistoricalBehavior FactorKind = "historical_behavior"
	FactorRelationship       FactorKind = "relationship"
)

// Factor is one material contribution to the score. Factors form the audit
// trail required for compliance traceability; every component with a non-zero
// contribution emits one.
type Factor struct {
	Kind        FactorKind `json:"kind"`
	Severity    Severity   `json:"severity"`
	Weight      float64    `json:"weight"`
	Description string     `json:"description"`
}

// Thresholds are the score cut-offs for tier classification.
type Thresholds struct {
	High   float64
	Medium float64
}

// DefaultThresholds matches production routing: >=75 HIGH, >=50 MEDIUM.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 75, Medium: 50}
}

// Classify maps a score to its tier. Pure function of the thresholds.
func (t Thresholds) Classify(score float64) Tier {
	switch {
	case score >= t.High:
		return TierHigh
	case score >= t.Medium:
		return TierMedium
	default:
		return TierLow
	}
}

// Profile is the per-entity scoring outcome. Built once per pipeline run and
// immutable after construction.
type Profile struct {
	Entity        entity.Entity `json:"entity"`
	Score         float64       `json:"score"`
	Tier          Tier          `json:"tier"`
	Factors       []Factor      `json:"factors"`
	Enrichment    enrich.Result `json:"enrichment"`
	Justification string        `json:"justification"`
}
