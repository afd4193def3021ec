// Package oracle escalates ambiguous prompts to a second opinion. Two
// implementations exist: a remote LLM judge speaking the OpenAI-compatible
// chat API, and an embedding-similarity judge that needs no chat model.
// Both are advisory; a nil verdict means the caller keeps its local score.
package oracle

import "context"

// Verdict is the judge's opinion on one prompt.
type Verdict struct {
	IsAttack   bool    `json:"is_attack"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Turn is one prior prompt with the decision it received, given to the
// judge as conversation context.
type Turn struct {
	Prompt   string `json:"prompt"`
	Decision string `json:"decision"`
}

// Escalator is the judge interface. Escalate may return (nil, nil) when the
// judge is unavailable or declines; the caller must treat that as
// no-opinion, not as safe.
type Escalator interface {
	Escalate(ctx context.Context, prompt string, recent []Turn) (*Verdict, error)
}
