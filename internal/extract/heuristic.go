package extract

import (
	"context"
	"regexp"
	"strings"

	"finrisk/internal/entity"
)

// orgPattern matches runs of capitalized words ending in a corporate
// designator. Designators anchor the match; bare capitalized phrases are too
// noisy to emit.
var orgPattern = regexp.MustCompile(`\b((?:[A-Z][A-Za-z&.'-]*\s+)*[A-Z][A-Za-z&.'-]*\s+(?:Ltd|LLC|LLP|Inc|Corporation|Corp|Company|Co|GmbH|SA|AG|NV|BV|PLC|Holdings|Group|Partners|Trading|International)\.?)\b`)

// personPattern matches "Mr/Ms/Mrs/Dr Firstname Lastname" honorific forms.
var personPattern = regexp.MustCompile(`\b(?:Mr|Ms|Mrs|Dr|Prof)\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+)`)

const (
	orgConfidence    = 0.7
	personConfidence = 0.6
)

// Heuristic is the default production extractor: designator-anchored regex
// matching, no model dependency, deterministic output order.
type Heuristic struct{}

// NewHeuristic builds the regex-based extractor.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Extract returns organization and person candidates found in text. Duplicate
// names (case-insensitive) are emitted once. Never returns an error; the
// signature carries one for interchangeability with model-backed extractors.
func (h *Heuristic) Extract(_ context.Context, text string) ([]entity.Entity, error) {
	var out []entity.Entity
	seen := map[string]bool{}

	for _, m := range orgPattern.FindAllString(text, -1) {
		name := strings.TrimSuffix(strings.TrimSpace(m), ".")
		key := entity.NormalizeKey(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, entity.Entity{
			Name:       name,
			Kind:       entity.KindOrganization,
			Confidence: orgConfidence,
		})
	}

	for _, m := range personPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		key := entity.NormalizeKey(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, entity.Entity{
			Name:       name,
			Kind:       entity.KindPerson,
			Confidence: personConfidence,
		})
	}

	return out, nil
}
