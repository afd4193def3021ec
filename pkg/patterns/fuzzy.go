package patterns

import "strings"

// Group is a set of semantically equivalent surface forms representing one
// concept, e.g. {ignore, disregard, forget, bypass, skip, omit}.
type Group []string

// FuzzyMatch matches text against variant groups after normalization.
// For each group the first variant whose normalized form is a substring of
// the normalized text is recorded and the rest of the group is skipped.
// A single matched group is noise; the overall match requires hits from at
// least two distinct groups.
func FuzzyMatch(text string, groups []Group) (bool, []string) {
	normalized := Normalize(text)

	var hits []string
	for _, group := range groups {
		for _, variant := range group {
			if strings.Contains(normalized, Normalize(variant)) {
				hits = append(hits, variant)
				break
			}
		}
	}

	return len(hits) >= 2, hits
}
