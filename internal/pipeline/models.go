// Package pipeline orchestrates the per-transaction risk assessment flow:
// normalization, enrichment, graph propagation, scoring, classification, and
// result publication.
package pipeline

import (
	"fmt"
	"time"

	"finrisk/internal/entity"
	"finrisk/internal/scoring"
)

// Status is the lifecycle state of an assessment run. Transitions are
// strictly forward; a terminal state is never left.
type Status string

const (
	StatusReceived   Status = "RECEIVED"
	StatusNormalized Status = "NORMALIZED"
	StatusEnriched   Status = "ENRICHED"
	StatusAssessed   Status = "ASSESSED"
	StatusScored     Status = "SCORED"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Stage names a pipeline phase. Normalization, enrichment, and persistence
// surface their failures as StageError values; the propagate, score, and
// publish stages absorb failures internally, so their names never reach a
// StageError and are listed to keep the enumeration complete.
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageEnrich    Stage = "enrich"
	StagePropagate Stage = "propagate"
	StageScore     Stage = "score"
	StagePersist   Stage = "persist"
	StagePublish   Stage = "publish"
)

// StageError wraps a failure with the stage it happened in, so callers and
// logs can tell a normalization fault from a storage fault without string
// matching.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// Money is a transaction amount with its currency code.
type Money struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// Party is a structured transaction participant.
type Party struct {
	Name    string          `json:"name"`
	Account string          `json:"account,omitempty"`
	Address *entity.Address `json:"address,omitempty"`
}

// Entity converts the party to a full-confidence entity for normalization.
func (p Party) Entity() entity.Entity {
	return entity.Entity{
		Name:       p.Name,
		Kind:       entity.KindOrganization,
		Address:    p.Address,
		Confidence: 1.0,
	}
}

// Transaction is the assessment input. ID is assigned at ingestion when the
// source data carries none.
type Transaction struct {
	ID       string    `json:"id"`
	Sender   Party     `json:"sender"`
	Receiver Party     `json:"receiver"`
	Amount   Money     `json:"amount"`
	Date     time.Time `json:"date,omitzero"`
	Notes    string    `json:"notes,omitempty"`
	Raw      string    `json:"raw,omitempty"`
}

// Assessment is the pipeline output for one transaction: per-entity profiles,
// the aggregate score, and the routing tier.
type Assessment struct {
	ID            string            `json:"id"`
	TransactionID string            `json:"transaction_id"`
	Status        Status            `json:"status"`
	Profiles      []scoring.Profile `json:"profiles,omitempty"`
	Score         float64           `json:"score"`
	Tier          scoring.Tier      `json:"tier,omitempty"`
	Error         string            `json:"error,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	CompletedAt   time.Time         `json:"completed_at,omitzero"`
}
