// Package score fuses per-prompt detection and conversation-level analysis
// into a single confidence value, escalating ambiguous cases to the oracle.
package score

import (
	"context"
	"log/slog"
	"math"

	"github.com/sentinelguard/sentinel/pkg/detect"
	"github.com/sentinelguard/sentinel/pkg/history"
	"github.com/sentinelguard/sentinel/pkg/oracle"
	"github.com/sentinelguard/sentinel/pkg/patterns"
	"github.com/sentinelguard/sentinel/pkg/temporal"
)

// temporalBonus is added per conversation-level flag on top of the
// category base.
const temporalBonus = 0.15

// escalationTurns is how much history the oracle sees.
const escalationTurns = 3

// Outcome is the fused scoring result. Verdict is non-nil only when the
// oracle was consulted and answered.
type Outcome struct {
	Confidence float64
	Verdict    *oracle.Verdict
}

// Scorer computes attack confidence. The escalation band [low, high) is
// where local signals are too ambiguous to act on alone; prompts scoring
// inside it are sent to the oracle when one is configured.
type Scorer struct {
	catalog   *patterns.Catalog
	escalator oracle.Escalator
	logger    *slog.Logger
	low       float64
	high      float64
}

// NewScorer creates a scorer. escalator may be nil to disable escalation.
func NewScorer(catalog *patterns.Catalog, escalator oracle.Escalator, low, high float64, logger *slog.Logger) *Scorer {
	if catalog == nil {
		catalog = patterns.Get()
	}
	return &Scorer{
		catalog:   catalog,
		escalator: escalator,
		logger:    logger,
		low:       low,
		high:      high,
	}
}

// Score fuses the detection result, temporal analysis, and recent history
// into a final confidence in [0, 1], rounded to two decimals.
func (s *Scorer) Score(ctx context.Context, det *detect.Result, temp *temporal.Analysis, recent []history.Record) Outcome {
	// the band gate sees the rounded score, so 0.795 rounds to 0.8 and is
	// no longer ambiguous
	confidence := round2(s.localScore(det, temp))

	if s.escalator != nil && confidence >= s.low && confidence < s.high {
		if verdict := s.escalate(ctx, det.Prompt, recent); verdict != nil {
			return Outcome{Confidence: round2(merge(confidence, verdict)), Verdict: verdict}
		}
	}

	return Outcome{Confidence: confidence}
}

// localScore blends the fired category weights: the average of the maximum
// and the mean rewards a single severe category without letting several
// mild ones pile past it. Temporal flags add a flat bonus each.
func (s *Scorer) localScore(det *detect.Result, temp *temporal.Analysis) float64 {
	if det == nil || len(det.Categories) == 0 {
		return 0
	}

	var maxW, sumW float64
	for _, cat := range det.Categories {
		w := s.catalog.Weight(cat)
		sumW += w
		if w > maxW {
			maxW = w
		}
	}
	meanW := sumW / float64(len(det.Categories))
	confidence := (maxW + meanW) / 2

	if temp != nil {
		confidence += temporalBonus * float64(len(temp.Flags))
	}

	return math.Min(confidence, 1.0)
}

// escalate asks the oracle, passing the most recent turns as context.
// Any failure is fail-open: the local score stands.
func (s *Scorer) escalate(ctx context.Context, prompt string, recent []history.Record) *oracle.Verdict {
	start := len(recent) - escalationTurns
	if start < 0 {
		start = 0
	}
	turns := make([]oracle.Turn, 0, escalationTurns)
	for _, rec := range recent[start:] {
		turns = append(turns, oracle.Turn{Prompt: rec.Prompt, Decision: rec.Decision})
	}

	verdict, err := s.escalator.Escalate(ctx, prompt, turns)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("oracle escalation failed, keeping local score", "err", err)
		}
		return nil
	}
	return verdict
}

// merge folds the oracle's opinion into the local score. An attack verdict
// can only raise confidence; a safe verdict can only lower it. The oracle
// never drags an attack score below what the judge itself asserts.
func merge(local float64, v *oracle.Verdict) float64 {
	if v.IsAttack {
		return math.Max(local, v.Confidence)
	}
	return math.Min(local, v.Confidence)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
