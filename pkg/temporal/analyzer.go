// Package temporal analyzes a user's conversation window for attacks that
// only show up across prompts: gradually rising privilege-keyword density,
// repeated role manipulation, and prior override attempts.
package temporal

import (
	"context"
	"fmt"

	"github.com/sentinelguard/sentinel/pkg/detect"
	"github.com/sentinelguard/sentinel/pkg/history"
	"github.com/sentinelguard/sentinel/pkg/patterns"
)

// Conversation-level flags. These feed the scorer and the decision reasons.
const (
	FlagGradualEscalation = "privilege_escalation_over_time"
	FlagRepeatedRoleShift = "repeated_role_manipulation"
	FlagOverrideAttempt   = "system_override_attempt"
)

// Thresholds tunes when each flag fires.
type Thresholds struct {
	// EscalationRate is the keyword-density delta between the recent and
	// earlier parts of the window that flags gradual escalation.
	EscalationRate float64
	// RoleShiftCount is how many role_manipulation hits in the window
	// flag repetition.
	RoleShiftCount int
	// OverrideCount is how many system_override hits in the window flag
	// a prior attempt.
	OverrideCount int
}

// DefaultThresholds returns the standard tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EscalationRate: 3,
		RoleShiftCount: 2,
		OverrideCount:  1,
	}
}

// Analysis is the outcome of one conversation scan.
type Analysis struct {
	Flags      []string
	Repetition map[string]int
}

// HasTemporalAttack reports whether any conversation-level flag fired.
func (a *Analysis) HasTemporalAttack() bool {
	return len(a.Flags) > 0
}

// Has reports whether a specific flag fired.
func (a *Analysis) Has(flag string) bool {
	for _, f := range a.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Analyzer scans a user's history window.
type Analyzer struct {
	store      history.Store
	catalog    *patterns.Catalog
	thresholds Thresholds
}

// NewAnalyzer creates an analyzer over the given history store.
func NewAnalyzer(store history.Store, catalog *patterns.Catalog, thresholds Thresholds) *Analyzer {
	if catalog == nil {
		catalog = patterns.Get()
	}
	return &Analyzer{store: store, catalog: catalog, thresholds: thresholds}
}

// Analyze scans the user's current window. The escalation delta needs at
// least three prompts of signal; the repetition checks run on any history,
// so a single blocked override on turn one already flags turn two.
func (a *Analyzer) Analyze(ctx context.Context, userID string) (*Analysis, error) {
	records, err := a.store.Recent(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("temporal analysis for %s: %w", userID, err)
	}

	analysis := &Analysis{Repetition: make(map[string]int)}
	if len(records) == 0 {
		return analysis, nil
	}

	if a.escalating(records) {
		analysis.Flags = append(analysis.Flags, FlagGradualEscalation)
	}

	for _, rec := range records {
		for _, flag := range rec.Flags {
			analysis.Repetition[flag]++
		}
	}
	if analysis.Repetition[string(patterns.CategoryRoleManipulation)] >= a.thresholds.RoleShiftCount {
		analysis.Flags = append(analysis.Flags, FlagRepeatedRoleShift)
	}
	if analysis.Repetition[string(patterns.CategorySystemOverride)] >= a.thresholds.OverrideCount {
		analysis.Flags = append(analysis.Flags, FlagOverrideAttempt)
	}

	return analysis, nil
}

// escalating compares privilege-keyword density between the last three
// prompts and everything before them. A benign conversation that drifts
// toward admin/credential talk is the signature this catches. Fewer than
// three prompts is not enough signal for a trend.
func (a *Analyzer) escalating(records []history.Record) bool {
	if len(records) < 3 {
		return false
	}
	densities := make([]float64, len(records))
	for i, rec := range records {
		densities[i] = float64(detect.KeywordDensity(a.catalog, rec.Prompt))
	}

	recent := densities[len(densities)-3:]
	earlier := densities[:len(densities)-3]

	var recentSum float64
	for _, d := range recent {
		recentSum += d
	}
	recentAvg := recentSum / 3

	var earlierSum float64
	for _, d := range earlier {
		earlierSum += d
	}
	divisor := float64(len(earlier))
	if divisor < 1 {
		divisor = 1
	}
	earlierAvg := earlierSum / divisor

	return recentAvg-earlierAvg >= a.thresholds.EscalationRate
}
