// Package audit records the compliance trail of every assessment: state
// transitions, degraded enrichments, and routing decisions, queryable per
// transaction.
package audit

import "time"

// Action names what happened.
type Action string

const (
	ActionReceived        Action = "assessment.received"
	ActionStateChanged    Action = "assessment.state_changed"
	ActionEnrichDegraded  Action = "enrichment.degraded"
	ActionScored          Action = "entity.scored"
	ActionClassified      Action = "assessment.classified"
	ActionPublished       Action = "assessment.published"
	ActionPublishFailed   Action = "assessment.publish_failed"
	ActionAssessmentError Action = "assessment.failed"
)

// Event is one append-only audit record. Kept transport-agnostic so stores
// and sinks can fan out.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	TransactionID string    `json:"transaction_id"`
	AssessmentID  string    `json:"assessment_id,omitempty"`
	EntityKey     string    `json:"entity_key,omitempty"`
	Action        Action    `json:"action"`
	Detail        string    `json:"detail,omitempty"`
}
