// Package decision turns a fused confidence into an operational verdict
// with human-readable reasons. Thresholds split the range into three bands:
// ALLOW below sanitize, SANITIZE between, BLOCK at and above block.
package decision

import (
	"fmt"

	"github.com/sentinelguard/sentinel/pkg/detect"
	"github.com/sentinelguard/sentinel/pkg/oracle"
	"github.com/sentinelguard/sentinel/pkg/patterns"
	"github.com/sentinelguard/sentinel/pkg/temporal"
)

// Outcome is the action the caller must take.
type Outcome string

const (
	Allow    Outcome = "ALLOW"
	Sanitize Outcome = "SANITIZE"
	Block    Outcome = "BLOCK"
)

// SanitizePrefix marks a prompt demoted to untrusted data. Downstream
// systems treat everything after the marker as user content, never as
// instructions.
const SanitizePrefix = "[SANITIZED INPUT - User Query]: "

// Decision is the full verdict for one prompt.
type Decision struct {
	Outcome         Outcome  `json:"decision"`
	Confidence      float64  `json:"confidence"`
	Reasons         []string `json:"reasons"`
	AttacksDetected []string `json:"attacks_detected"`
	TemporalFlags   []string `json:"temporal_flags"`
	SanitizedPrompt string   `json:"sanitized_prompt,omitempty"`
	LLMReasoning    string   `json:"llm_reasoning,omitempty"`
}

// Engine maps confidence to outcomes.
type Engine struct {
	blockThreshold    float64
	sanitizeThreshold float64
}

// NewEngine creates an engine. The sanitize threshold must not exceed the
// block threshold, otherwise the SANITIZE band would be empty or inverted.
func NewEngine(blockThreshold, sanitizeThreshold float64) (*Engine, error) {
	if sanitizeThreshold > blockThreshold {
		return nil, fmt.Errorf("sanitize threshold %v exceeds block threshold %v",
			sanitizeThreshold, blockThreshold)
	}
	return &Engine{
		blockThreshold:    blockThreshold,
		sanitizeThreshold: sanitizeThreshold,
	}, nil
}

// Decide assembles the final verdict from the detection result, temporal
// analysis, fused confidence, and the oracle's verdict when one exists.
func (e *Engine) Decide(det *detect.Result, temp *temporal.Analysis, confidence float64, verdict *oracle.Verdict) *Decision {
	d := &Decision{
		Outcome:         Allow,
		Confidence:      confidence,
		AttacksDetected: det.Flags(),
	}
	if temp != nil {
		d.TemporalFlags = temp.Flags
	}
	if verdict != nil {
		d.LLMReasoning = verdict.Reasoning
	}

	switch {
	case confidence >= e.blockThreshold:
		d.Outcome = Block
	case confidence >= e.sanitizeThreshold:
		d.Outcome = Sanitize
		d.SanitizedPrompt = SanitizePrefix + det.Prompt
	}

	d.Reasons = e.reasons(det, temp, confidence, verdict, d.Outcome)
	return d
}

func (e *Engine) reasons(det *detect.Result, temp *temporal.Analysis, confidence float64, verdict *oracle.Verdict, outcome Outcome) []string {
	// Stale-history collapse: current prompt is clean and allowed, but the
	// window still carries attack flags. One summary line instead of
	// re-alarming on old prompts.
	if outcome == Allow && !det.HasThreat() && temp != nil && temp.HasTemporalAttack() {
		return []string{"Previous attacks detected in this session, but current prompt is safe"}
	}

	var reasons []string

	if verdict != nil {
		if verdict.IsAttack {
			reasons = append(reasons, "LLM analysis: "+verdict.Reasoning)
		} else {
			reasons = append(reasons, "LLM analysis (safe): "+verdict.Reasoning)
		}
	}

	for _, cat := range det.Categories {
		switch cat {
		case patterns.CategorySystemOverride:
			reasons = append(reasons, fmt.Sprintf("System instruction override detected: %v",
				head(det.Evidence[cat], 2)))
		case patterns.CategoryRoleManipulation:
			reasons = append(reasons, fmt.Sprintf("Role manipulation attempt detected: %v",
				head(det.Evidence[cat], 2)))
		case patterns.CategoryPrivilegeEscalation:
			reasons = append(reasons, fmt.Sprintf("Privilege escalation keywords found: %v",
				head(det.Keywords, 3)))
		case patterns.CategoryDataExtraction:
			reasons = append(reasons, "Data extraction pattern detected")
		case patterns.CategoryJailbreak:
			reasons = append(reasons, fmt.Sprintf("Known jailbreak pattern detected: %v",
				head(det.Evidence[cat], 2)))
		}
	}

	if temp != nil {
		for _, flag := range temp.Flags {
			switch flag {
			case temporal.FlagGradualEscalation:
				reasons = append(reasons, "Gradual privilege escalation detected across conversation")
			case temporal.FlagRepeatedRoleShift:
				reasons = append(reasons, "Multiple role manipulation attempts in conversation history")
			case temporal.FlagOverrideAttempt:
				reasons = append(reasons, "System override attempted in conversation history")
			}
		}
	}

	if len(reasons) == 0 {
		switch outcome {
		case Block:
			reasons = append(reasons, fmt.Sprintf("High-confidence threat detected (confidence: %.2f)", confidence))
		case Sanitize:
			reasons = append(reasons, fmt.Sprintf("Moderate threat detected - prompt sanitized (confidence: %.2f)", confidence))
		default:
			reasons = append(reasons, "No significant threats detected")
		}
	}

	return reasons
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
