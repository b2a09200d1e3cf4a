// Package entity defines the parties subject to risk assessment and the
// normalization step that deduplicates them ahead of enrichment.
package entity

import "strings"

// Kind classifies an entity.
type Kind string

const (
	KindOrganization Kind = "ORGANIZATION"
	KindPerson       Kind = "PERSON"
	KindOther        Kind = "OTHER"
)

// Address is the structured address attached to a party, when known.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

// String renders the address as a single comma-joined line for matching
// against jurisdiction lists.
func (a Address) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Street, a.City, a.State, a.Zip, a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Entity is a normalized party. Structured transaction parties carry
// confidence 1.0; free-text extracted candidates carry the extractor's
// confidence, always below 1.0. Immutable once built for a pipeline run.
type Entity struct {
	Name       string   `json:"name"`
	Kind       Kind     `json:"kind"`
	Address    *Address `json:"address,omitempty"`
	Confidence float64  `json:"confidence"`
}

// Key returns the identity key used for deduplication and cache lookups:
// the lower-cased, whitespace-normalized name.
func (e Entity) Key() string {
	return NormalizeKey(e.Name)
}

// Structured reports whether the entity came from structured transaction
// data rather than free-text extraction.
func (e Entity) Structured() bool {
	return e.Confidence >= 1.0
}

// NormalizeKey lower-cases a name and collapses internal whitespace runs so
// "Acme  Corp" and "acme corp" share one identity.
func NormalizeKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
