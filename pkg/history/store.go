// Package history tracks per-user conversation history with a bounded
// sliding window. The window is what the temporal analyzer and the oracle
// escalation see; anything older is gone on purpose.
package history

import (
	"context"
	"time"
)

// Record is one analyzed prompt in a user's window.
type Record struct {
	Prompt     string    `json:"prompt"`
	Timestamp  time.Time `json:"timestamp"`
	Decision   string    `json:"decision"`
	Confidence float64   `json:"confidence"`
	Flags      []string  `json:"flags,omitempty"`
}

// Stats is an aggregate snapshot across all tracked users.
type Stats struct {
	Users   int `json:"users"`
	Prompts int `json:"prompts"`
}

// Store is the conversation history backend. Implementations must be safe
// for concurrent use; all operations apply to a single user's window.
type Store interface {
	// Append adds a record to the user's window, evicting the oldest
	// record once the window is full.
	Append(ctx context.Context, userID string, rec Record) error

	// Recent returns up to n most recent records, oldest first.
	// n <= 0 returns the whole window.
	Recent(ctx context.Context, userID string, n int) ([]Record, error)

	// Clear drops the user's window entirely.
	Clear(ctx context.Context, userID string) error

	// Stats reports tracked user and prompt counts.
	Stats(ctx context.Context) (Stats, error)
}
