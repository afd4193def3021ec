package detect

import (
	"log/slog"
	"strings"

	"github.com/sentinelguard/sentinel/pkg/patterns"
	"github.com/sentinelguard/sentinel/pkg/telemetry"
)

// Classifier runs every detection layer over one prompt:
//
//	Layer 1: compiled regex rules against the raw text (case-insensitive)
//	Layer 2: fuzzy variant groups against normalized text (catches leet
//	         speak and punctuation obfuscation the regexes miss)
//	Layer 3: privilege keyword counting across raw and normalized forms
//
// A category fires once regardless of how many layers hit it; the evidence
// records every layer that did.
type Classifier struct {
	catalog *patterns.Catalog
	logger  *slog.Logger
}

// NewClassifier creates a classifier over the given catalog.
// A nil logger disables detection tracing.
func NewClassifier(catalog *patterns.Catalog, logger *slog.Logger) *Classifier {
	if catalog == nil {
		catalog = patterns.Get()
	}
	return &Classifier{catalog: catalog, logger: logger}
}

// Classify analyzes a single prompt. The returned result is self-contained
// and safe to retain after the call.
func (c *Classifier) Classify(prompt string) *Result {
	res := &Result{
		Prompt:   prompt,
		Evidence: make(map[patterns.Category][]string),
	}

	lowered := strings.ToLower(prompt)
	normalized := patterns.Normalize(prompt)

	for _, cat := range patterns.Categories {
		var evidence []string

		for _, rule := range c.catalog.Rules(cat) {
			if rule.Regex.MatchString(prompt) {
				evidence = append(evidence, "regex:"+rule.Name)
			}
		}

		if groups := c.catalog.FuzzyGroups(cat); len(groups) > 0 {
			if matched, hits := patterns.FuzzyMatch(prompt, groups); matched {
				evidence = append(evidence, "fuzzy:"+strings.Join(hits, ","))
			}
		}

		if cat == patterns.CategoryPrivilegeEscalation {
			if found := c.privilegeKeywords(lowered, normalized); len(found) >= 2 {
				evidence = append(evidence, "keywords:"+strings.Join(found, ","))
				res.Keywords = found
			}
		}

		if len(evidence) > 0 {
			res.Categories = append(res.Categories, cat)
			res.Evidence[cat] = evidence
			telemetry.TraceDetection(c.logger, string(cat), evidence, normalized)
		}
	}

	return res
}

// privilegeKeywords returns the distinct sensitive terms present in either
// the lowercased or the normalized prompt. Each keyword counts once.
// Multi-word keywords only match the lowercased form, since normalization
// strips the spaces out of the text but not the keyword list.
func (c *Classifier) privilegeKeywords(lowered, normalized string) []string {
	var found []string
	for _, kw := range c.catalog.PrivilegeKeywords() {
		if strings.Contains(lowered, kw) || strings.Contains(normalized, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// KeywordDensity counts distinct privilege keywords in the lowercased text.
// The temporal analyzer tracks this per prompt to spot gradual escalation.
func KeywordDensity(catalog *patterns.Catalog, text string) int {
	lowered := strings.ToLower(text)
	count := 0
	for _, kw := range catalog.PrivilegeKeywords() {
		if strings.Contains(lowered, kw) {
			count++
		}
	}
	return count
}
