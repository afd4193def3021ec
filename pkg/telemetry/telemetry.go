// Package telemetry wires structured logging for the gateway.
// Detection internals (which rule fired, on what normalized text) are logged
// at Debug so production logs stay decision-level by default.
package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process logger. level is one of debug, info, warn,
// error (case-insensitive); anything else falls back to info.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	}))
}

// TraceDetection records one category hit with its evidence and the
// normalized text the fuzzy matcher saw. Prompts are not logged here;
// the audit store is the system of record for prompt content.
func TraceDetection(logger *slog.Logger, category string, evidence []string, normalized string) {
	if logger == nil {
		return
	}
	logger.Debug("detection hit",
		"category", category,
		"evidence", strings.Join(evidence, ","),
		"normalized_len", len(normalized),
	)
}
