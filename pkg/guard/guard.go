// Package guard wires the full analysis pipeline: classify the prompt,
// scan the conversation, fuse a confidence, decide, audit, and record.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelguard/sentinel/pkg/audit"
	"github.com/sentinelguard/sentinel/pkg/decision"
	"github.com/sentinelguard/sentinel/pkg/detect"
	"github.com/sentinelguard/sentinel/pkg/history"
	"github.com/sentinelguard/sentinel/pkg/score"
	"github.com/sentinelguard/sentinel/pkg/temporal"
)

// escalationContext is how many prior turns the scorer hands the oracle.
const escalationContext = 3

// Result is one analyzed prompt. LogID is empty when the audit write
// failed; the decision itself is never blocked on auditing.
type Result struct {
	*decision.Decision
	LogID string `json:"log_id,omitempty"`
}

// Guard is the top-level analyzer. All collaborators are injected, so
// tests can swap any layer.
type Guard struct {
	classifier *detect.Classifier
	temporal   *temporal.Analyzer
	scorer     *score.Scorer
	engine     *decision.Engine
	history    history.Store
	audit      audit.Store
	logger     *slog.Logger
}

// New assembles a guard from its layers.
func New(classifier *detect.Classifier, temp *temporal.Analyzer, scorer *score.Scorer,
	engine *decision.Engine, hist history.Store, auditStore audit.Store, logger *slog.Logger) *Guard {
	return &Guard{
		classifier: classifier,
		temporal:   temp,
		scorer:     scorer,
		engine:     engine,
		history:    hist,
		audit:      auditStore,
		logger:     logger,
	}
}

// Analyze runs the full pipeline for one prompt. The decision is appended
// to the user's history window after it is made, so a prompt never
// influences its own temporal analysis.
func (g *Guard) Analyze(ctx context.Context, userID, prompt string) (*Result, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	recent, err := g.history.Recent(ctx, userID, escalationContext)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", userID, err)
	}

	det := g.classifier.Classify(prompt)

	temp, err := g.temporal.Analyze(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("temporal analysis for %s: %w", userID, err)
	}

	outcome := g.scorer.Score(ctx, det, temp, recent)
	d := g.engine.Decide(det, temp, outcome.Confidence, outcome.Verdict)

	logID := g.writeAudit(ctx, userID, prompt, d)

	if err := g.history.Append(ctx, userID, history.Record{
		Prompt:     prompt,
		Timestamp:  time.Now().UTC(),
		Decision:   string(d.Outcome),
		Confidence: d.Confidence,
		Flags:      det.Flags(),
	}); err != nil {
		return nil, fmt.Errorf("record history for %s: %w", userID, err)
	}

	if g.logger != nil {
		g.logger.Info("prompt analyzed",
			"user_id", userID,
			"decision", d.Outcome,
			"confidence", d.Confidence,
			"attacks", len(d.AttacksDetected),
		)
	}

	return &Result{Decision: d, LogID: logID}, nil
}

// writeAudit persists the decision. Audit failure degrades to a warning:
// blocking traffic because the audit disk is full would turn bookkeeping
// into an outage.
func (g *Guard) writeAudit(ctx context.Context, userID, prompt string, d *decision.Decision) string {
	rec := audit.Record{
		ID:              uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		UserID:          userID,
		Prompt:          prompt,
		Decision:        string(d.Outcome),
		Confidence:      d.Confidence,
		Reasons:         d.Reasons,
		AttacksDetected: d.AttacksDetected,
		TemporalFlags:   d.TemporalFlags,
		SanitizedPrompt: d.SanitizedPrompt,
	}
	if err := g.audit.Log(ctx, rec); err != nil {
		if g.logger != nil {
			g.logger.Warn("audit write failed", "user_id", userID, "err", err)
		}
		return ""
	}
	return rec.ID
}

// History returns up to limit records from the user's current window,
// oldest first. limit <= 0 returns the whole window.
func (g *Guard) History(ctx context.Context, userID string, limit int) ([]history.Record, error) {
	return g.history.Recent(ctx, userID, limit)
}

// ClearHistory drops the user's window.
func (g *Guard) ClearHistory(ctx context.Context, userID string) error {
	return g.history.Clear(ctx, userID)
}

// AuditLogs returns a user's audit trail, newest first.
func (g *Guard) AuditLogs(ctx context.Context, userID string, limit int) ([]audit.Record, error) {
	return g.audit.UserLogs(ctx, userID, limit)
}

// BlockedLogs returns recent blocked prompts across all users.
func (g *Guard) BlockedLogs(ctx context.Context, limit int) ([]audit.Record, error) {
	return g.audit.BlockedLogs(ctx, limit)
}

// Stats combines audit aggregates with live history counts.
type Stats struct {
	Audit   audit.Stats   `json:"audit"`
	History history.Stats `json:"history"`
}

// Statistics reports gateway-wide aggregates.
func (g *Guard) Statistics(ctx context.Context) (Stats, error) {
	auditStats, err := g.audit.Statistics(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("audit statistics: %w", err)
	}
	historyStats, err := g.history.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("history statistics: %w", err)
	}
	return Stats{Audit: auditStats, History: historyStats}, nil
}
