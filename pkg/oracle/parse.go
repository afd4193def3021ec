package oracle

import (
	"strconv"
	"strings"
)

const unparseableReasoning = "Unable to parse LLM response - defaulting to safe"

// ParseVerdict extracts a verdict from the judge's plain-text reply:
//
//	VERDICT: ATTACK
//	CONFIDENCE: 0.85
//	REASONING: The prompt attempts to ...
//
// The parser never fails. Models drift from the requested format under
// load, so every missing or garbled field falls back to a safe default:
// not an attack, confidence 0.5.
func ParseVerdict(response string) *Verdict {
	v := &Verdict{
		IsAttack:   false,
		Confidence: 0.5,
		Reasoning:  unparseableReasoning,
	}

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)

		switch {
		case strings.HasPrefix(upper, "VERDICT:"):
			// models decorate the token ("[ATTACK]", "ATTACK - because...");
			// any mention on the verdict line counts
			v.IsAttack = strings.Contains(upper, "ATTACK")
		case strings.HasPrefix(upper, "CONFIDENCE:"):
			value := strings.TrimSpace(trimmed[len("CONFIDENCE:"):])
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				v.Confidence = clamp01(f)
			}
		}
	}

	// Reasoning can span lines; capture everything after the marker.
	if idx := strings.Index(strings.ToUpper(response), "REASONING:"); idx != -1 {
		reasoning := strings.TrimSpace(response[idx+len("REASONING:"):])
		if reasoning != "" {
			v.Reasoning = reasoning
		}
	}

	return v
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
