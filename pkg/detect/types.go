// Package detect classifies a single prompt against the attack pattern
// catalog. It is stateless per call; conversation-level signals live in the
// temporal package.
package detect

import "github.com/sentinelguard/sentinel/pkg/patterns"

// Result is the per-prompt classification outcome. Categories holds every
// attack class that fired, in catalog order; Evidence records what fired it.
type Result struct {
	Prompt     string
	Categories []patterns.Category
	Evidence   map[patterns.Category][]string
	// Keywords holds the privilege keywords found, when that category fired.
	Keywords []string
}

// HasThreat reports whether any category fired.
func (r *Result) HasThreat() bool {
	return len(r.Categories) > 0
}

// Has reports whether a specific category fired.
func (r *Result) Has(cat patterns.Category) bool {
	for _, c := range r.Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// Flags returns the fired categories as plain strings for history records
// and audit rows.
func (r *Result) Flags() []string {
	flags := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		flags = append(flags, string(c))
	}
	return flags
}
