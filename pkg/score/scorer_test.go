package score

import (
	"context"
	"errors"
	"testing"

	"github.com/sentinelguard/sentinel/pkg/detect"
	"github.com/sentinelguard/sentinel/pkg/history"
	"github.com/sentinelguard/sentinel/pkg/oracle"
	"github.com/sentinelguard/sentinel/pkg/patterns"
	"github.com/sentinelguard/sentinel/pkg/temporal"
)

// stubEscalator records calls and returns a fixed verdict or error.
type stubEscalator struct {
	verdict *oracle.Verdict
	err     error
	calls   int
	turns   []oracle.Turn
}

func (s *stubEscalator) Escalate(_ context.Context, _ string, recent []oracle.Turn) (*oracle.Verdict, error) {
	s.calls++
	s.turns = recent
	return s.verdict, s.err
}

func detection(cats ...patterns.Category) *detect.Result {
	return &detect.Result{Prompt: "test prompt", Categories: cats}
}

func newScorer(esc oracle.Escalator) *Scorer {
	return NewScorer(patterns.Get(), esc, 0.5, 0.8, nil)
}

func TestScoreNoThreats(t *testing.T) {
	s := newScorer(nil)
	out := s.Score(context.Background(), detection(), nil, nil)
	if out.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", out.Confidence)
	}
}

func TestScoreSingleCategory(t *testing.T) {
	s := newScorer(nil)

	tests := []struct {
		cat  patterns.Category
		want float64
	}{
		// max == mean for one category, so confidence equals the weight
		{patterns.CategoryJailbreak, 0.95},
		{patterns.CategorySystemOverride, 0.9},
		{patterns.CategoryDataExtraction, 0.7},
	}
	for _, tt := range tests {
		out := s.Score(context.Background(), detection(tt.cat), nil, nil)
		if out.Confidence != tt.want {
			t.Errorf("Score(%s) = %v, want %v", tt.cat, out.Confidence, tt.want)
		}
	}
}

func TestScoreMultipleCategories(t *testing.T) {
	s := newScorer(nil)

	// weights 0.9 and 0.7: max 0.9, mean 0.8, blend 0.85
	out := s.Score(context.Background(),
		detection(patterns.CategorySystemOverride, patterns.CategoryDataExtraction), nil, nil)
	if out.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", out.Confidence)
	}
}

func TestScoreTemporalBonus(t *testing.T) {
	s := newScorer(nil)

	temp := &temporal.Analysis{Flags: []string{temporal.FlagOverrideAttempt}}
	// data_extraction 0.7 + one flag 0.15 = 0.85
	out := s.Score(context.Background(), detection(patterns.CategoryDataExtraction), temp, nil)
	if out.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", out.Confidence)
	}
}

func TestScoreCapsAtOne(t *testing.T) {
	s := newScorer(nil)

	temp := &temporal.Analysis{Flags: []string{
		temporal.FlagGradualEscalation,
		temporal.FlagRepeatedRoleShift,
		temporal.FlagOverrideAttempt,
	}}
	out := s.Score(context.Background(), detection(patterns.CategoryJailbreak), temp, nil)
	if out.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", out.Confidence)
	}
}

func TestScoreEscalatesAmbiguousBand(t *testing.T) {
	esc := &stubEscalator{verdict: &oracle.Verdict{IsAttack: true, Confidence: 0.95}}
	s := newScorer(esc)

	// data_extraction alone scores 0.7, inside [0.5, 0.8)
	out := s.Score(context.Background(), detection(patterns.CategoryDataExtraction), nil, nil)
	if esc.calls != 1 {
		t.Fatalf("escalator calls = %d, want 1", esc.calls)
	}
	if out.Confidence != 0.95 {
		t.Errorf("attack verdict should raise confidence to 0.95, got %v", out.Confidence)
	}
	if out.Verdict == nil {
		t.Error("outcome should carry the verdict")
	}
}

func TestScoreSafeVerdictLowersConfidence(t *testing.T) {
	esc := &stubEscalator{verdict: &oracle.Verdict{IsAttack: false, Confidence: 0.3}}
	s := newScorer(esc)

	out := s.Score(context.Background(), detection(patterns.CategoryDataExtraction), nil, nil)
	if out.Confidence != 0.3 {
		t.Errorf("safe verdict should lower confidence to 0.3, got %v", out.Confidence)
	}
}

func TestScoreNoEscalationOutsideBand(t *testing.T) {
	esc := &stubEscalator{verdict: &oracle.Verdict{IsAttack: false, Confidence: 0.1}}
	s := newScorer(esc)

	// jailbreak scores 0.95, above the band: no escalation
	s.Score(context.Background(), detection(patterns.CategoryJailbreak), nil, nil)
	// clean prompt scores 0, below the band
	s.Score(context.Background(), detection(), nil, nil)

	if esc.calls != 0 {
		t.Errorf("escalator calls = %d, want 0", esc.calls)
	}
}

func TestScoreBandGateSeesRoundedScore(t *testing.T) {
	esc := &stubEscalator{verdict: &oracle.Verdict{IsAttack: false, Confidence: 0.1}}

	// a weight of 0.795 scores 0.795 raw but 0.8 rounded, which is at the
	// block threshold and no longer ambiguous
	catalog := patterns.NewCatalog()
	catalog.SetWeight(patterns.CategoryJailbreak, 0.795)
	s := NewScorer(catalog, esc, 0.5, 0.8, nil)

	out := s.Score(context.Background(), detection(patterns.CategoryJailbreak), nil, nil)
	if esc.calls != 0 {
		t.Errorf("escalator calls = %d, want 0", esc.calls)
	}
	if out.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", out.Confidence)
	}
}

func TestScoreFailOpenOnOracleError(t *testing.T) {
	esc := &stubEscalator{err: errors.New("provider down")}
	s := newScorer(esc)

	out := s.Score(context.Background(), detection(patterns.CategoryDataExtraction), nil, nil)
	if out.Confidence != 0.7 {
		t.Errorf("oracle failure should keep local score 0.7, got %v", out.Confidence)
	}
	if out.Verdict != nil {
		t.Error("failed escalation should not carry a verdict")
	}
}

func TestScoreFailOpenOnNilVerdict(t *testing.T) {
	esc := &stubEscalator{}
	s := newScorer(esc)

	out := s.Score(context.Background(), detection(patterns.CategoryDataExtraction), nil, nil)
	if out.Confidence != 0.7 {
		t.Errorf("nil verdict should keep local score 0.7, got %v", out.Confidence)
	}
}

func TestScorePassesRecentTurns(t *testing.T) {
	esc := &stubEscalator{verdict: &oracle.Verdict{IsAttack: false, Confidence: 0.2}}
	s := newScorer(esc)

	recent := []history.Record{
		{Prompt: "p1", Decision: "ALLOW"},
		{Prompt: "p2", Decision: "ALLOW"},
		{Prompt: "p3", Decision: "SANITIZE"},
		{Prompt: "p4", Decision: "BLOCK"},
	}
	s.Score(context.Background(), detection(patterns.CategoryDataExtraction), nil, recent)

	if len(esc.turns) != 3 {
		t.Fatalf("turns = %d, want 3", len(esc.turns))
	}
	if esc.turns[0].Prompt != "p2" || esc.turns[2].Decision != "BLOCK" {
		t.Errorf("turns = %+v", esc.turns)
	}
}

func TestScoreEquivalenceWithAndWithoutNilEscalator(t *testing.T) {
	withNil := newScorer(nil)
	withFailing := newScorer(&stubEscalator{err: errors.New("down")})

	det := detection(patterns.CategoryDataExtraction)
	a := withNil.Score(context.Background(), det, nil, nil)
	b := withFailing.Score(context.Background(), det, nil, nil)
	if a.Confidence != b.Confidence {
		t.Errorf("nil escalator %v != failing escalator %v", a.Confidence, b.Confidence)
	}
}
