// Package patterns provides the attack pattern catalog for prompt analysis.
// All regex rules are compiled once at package init and shared across the
// classifier and the temporal analyzer.
//
// Design principles:
// - COMPILE ONCE: all rules compiled at init, not per-request
// - ONE NORMALIZATION POLICY: every fuzzy matcher shares Normalize, so all
//   categories get identical obfuscation tolerance
// - SWAPPABLE POLICY: weights, keywords, and extra rules can be overridden
//   from a YAML policy file without touching the mechanism
package patterns

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// leetSubstitutions maps common character stand-ins back to the letters they
// replace. The table is fixed: changing it changes the obfuscation-tolerance
// policy for every category at once.
var leetSubstitutions = map[rune]rune{
	'0': 'o',
	'1': 'i',
	'3': 'e',
	'4': 'a',
	'5': 's',
	'7': 't',
	'8': 'b',
	'@': 'a',
	'$': 's',
	'!': 'i',
}

// Normalize canonicalizes text for fuzzy matching: NFKC fold (collapses
// fullwidth and compatibility homoglyphs), lowercase, leet substitution, and
// removal of '.', '-', '_' and all whitespace. "D.A.N m0de" -> "danmode".
// Pure and deterministic.
func Normalize(text string) string {
	lowered := strings.ToLower(norm.NFKC.String(text))
	return strings.Map(func(r rune) rune {
		if sub, ok := leetSubstitutions[r]; ok {
			return sub
		}
		switch r {
		case '.', '-', '_':
			return -1
		}
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, lowered)
}
