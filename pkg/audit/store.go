// Package audit persists every decision the gateway makes. The audit store
// is the system of record: history windows slide and expire, audit rows do
// not.
package audit

import (
	"context"
	"time"
)

// Record is one persisted decision.
type Record struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	UserID          string    `json:"user_id"`
	Prompt          string    `json:"prompt"`
	Decision        string    `json:"decision"`
	Confidence      float64   `json:"confidence"`
	Reasons         []string  `json:"reasons"`
	AttacksDetected []string  `json:"attacks_detected"`
	TemporalFlags   []string  `json:"temporal_flags"`
	SanitizedPrompt string    `json:"sanitized_prompt,omitempty"`
}

// Stats aggregates the whole audit log.
type Stats struct {
	TotalLogs     int                `json:"total_logs"`
	UniqueUsers   int                `json:"unique_users"`
	Decisions     map[string]int     `json:"decisions"`
	AvgConfidence map[string]float64 `json:"avg_confidence"`
}

// Store is the audit backend. Implementations must be safe for concurrent
// use. Query results are newest first.
type Store interface {
	// Log persists one record.
	Log(ctx context.Context, rec Record) error

	// UserLogs returns up to limit records for one user, newest first.
	UserLogs(ctx context.Context, userID string, limit int) ([]Record, error)

	// BlockedLogs returns up to limit BLOCK records, newest first.
	BlockedLogs(ctx context.Context, limit int) ([]Record, error)

	// Statistics aggregates the full log.
	Statistics(ctx context.Context) (Stats, error)

	// Close releases backend resources.
	Close() error
}

// DefaultQueryLimit applies when a caller passes limit <= 0.
const DefaultQueryLimit = 100
