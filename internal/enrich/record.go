// Package enrich fans out lookups for one entity to every configured data
// source, under caching, whole-call retry, and partial-failure isolation.
package enrich

import (
	"encoding/json"
	"fmt"
	"time"
)

// SourceKind identifies an external enrichment source.
type SourceKind string

const (
	SourceSanctions     SourceKind = "SANCTIONS"
	SourceRegistry      SourceKind = "REGISTRY"
	SourceFilings       SourceKind = "FILINGS"
	SourceKnowledgeBase SourceKind = "KNOWLEDGE_BASE"
)

// Record is the outcome of one (entity, source) lookup. Found reports whether
// the source had data for the entity; Error is set only when the lookup
// ultimately failed after retries.
type Record struct {
	EntityKey string     `json:"entityKey"`
	Source    SourceKind `json:"source"`
	Found     bool       `json:"found"`
	Payload   any        `json:"payload,omitempty"`
	FetchedAt time.Time  `json:"fetchedAt"`
	Error     string     `json:"error,omitempty"`
}

// UnmarshalJSON restores the typed payload for the record's source kind.
// Without it, records coming back from a shared cache would carry generic
// maps and break the scorer's payload contract.
func (r *Record) UnmarshalJSON(data []byte) error {
	type alias Record
	aux := struct {
		*alias
		Payload json.RawMessage `json:"payload,omitempty"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Payload) == 0 {
		r.Payload = nil
		return nil
	}

	decode := func(v any) error {
		if err := json.Unmarshal(aux.Payload, v); err != nil {
			return fmt.Errorf("decode %s payload: %w", r.Source, err)
		}
		return nil
	}
	switch r.Source {
	case SourceSanctions:
		var p SanctionsPayload
		if err := decode(&p); err != nil {
			return err
		}
		r.Payload = p
	case SourceRegistry:
		var p RegistryPayload
		if err := decode(&p); err != nil {
			return err
		}
		r.Payload = p
	case SourceFilings:
		var p FilingsPayload
		if err := decode(&p); err != nil {
			return err
		}
		r.Payload = p
	case SourceKnowledgeBase:
		var p KnowledgePayload
		if err := decode(&p); err != nil {
			return err
		}
		r.Payload = p
	default:
		var p any
		if err := decode(&p); err != nil {
			return err
		}
		r.Payload = p
	}
	return nil
}

// Result maps each consulted source to its record. At most one record per
// source; built once per pipeline run and never mutated afterwards.
type Result map[SourceKind]Record

// Degraded reports whether any source in the result failed.
func (r Result) Degraded() bool {
	for _, rec := range r {
		if rec.Error != "" {
			return true
		}
	}
	return false
}

// SanctionsPayload is the typed payload of a SANCTIONS record.
type SanctionsPayload struct {
	Listed   bool     `json:"listed"`
	ListName string   `json:"listName,omitempty"`
	Programs []string `json:"programs,omitempty"`
}

// RegistryPayload is the typed payload of a REGISTRY record.
type RegistryPayload struct {
	CompanyNumber string `json:"companyNumber,omitempty"`
	Status        string `json:"status,omitempty"`
	Jurisdiction  string `json:"jurisdiction,omitempty"`
}

// FilingsPayload is the typed payload of a FILINGS record.
type FilingsPayload struct {
	CIK                  string   `json:"cik,omitempty"`
	StateOfIncorporation string   `json:"stateOfIncorporation,omitempty"`
	RecentForms          []string `json:"recentForms,omitempty"`
	OngoingCases         int      `json:"ongoingCases,omitempty"`
}

// KnowledgePayload is the typed payload of a KNOWLEDGE_BASE record.
type KnowledgePayload struct {
	Description string `json:"description,omitempty"`
}
