package entity

// Normalize merges structured parties with free-text extracted candidates and
// deduplicates them by identity key. Order of first appearance is preserved.
//
// Collision rules: the entry with the higher confidence wins; on a tie the
// structured entry is kept. Entities with empty names are dropped. The input
// slices are never mutated.
func Normalize(structuredParties, freeTextEntities []Entity) []Entity {
	seen := make(map[string]int, len(structuredParties)+len(freeTextEntities))
	result := make([]Entity, 0, len(structuredParties)+len(freeTextEntities))

	add := func(e Entity) {
		key := e.Key()
		if key == "" {
			return
		}
		idx, ok := seen[key]
		if !ok {
			seen[key] = len(result)
			result = append(result, e)
			return
		}
		held := result[idx]
		if e.Confidence > held.Confidence {
			result[idx] = e
			return
		}
		if e.Confidence == held.Confidence && e.Structured() && !held.Structured() {
			result[idx] = e
		}
	}

	for _, e := range structuredParties {
		add(e)
	}
	for _, e := range freeTextEntities {
		add(e)
	}
	return result
}
