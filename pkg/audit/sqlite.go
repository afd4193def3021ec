package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id               TEXT PRIMARY KEY,
	timestamp        TEXT NOT NULL,
	user_id          TEXT NOT NULL,
	prompt           TEXT NOT NULL,
	decision         TEXT NOT NULL,
	confidence       REAL NOT NULL,
	reasons          TEXT NOT NULL,
	attacks_detected TEXT NOT NULL,
	temporal_flags   TEXT NOT NULL,
	sanitized_prompt TEXT
);
CREATE INDEX IF NOT EXISTS idx_user_timestamp ON audit_logs(user_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_decision ON audit_logs(decision);
`

// SQLiteStore is the default single-node audit backend. The pure-Go driver
// keeps the binary cgo-free.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the audit database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Log persists one record.
func (s *SQLiteStore) Log(ctx context.Context, rec Record) error {
	reasons, attacks, flags, err := encodeLists(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs
			(id, timestamp, user_id, prompt, decision, confidence,
			 reasons, attacks_detected, temporal_flags, sanitized_prompt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.UserID, rec.Prompt, rec.Decision, rec.Confidence,
		reasons, attacks, flags, rec.SanitizedPrompt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// UserLogs returns up to limit records for one user, newest first.
func (s *SQLiteStore) UserLogs(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, user_id, prompt, decision, confidence,
		       reasons, attacks_detected, temporal_flags, sanitized_prompt
		FROM audit_logs WHERE user_id = ?
		ORDER BY timestamp DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query user logs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

// BlockedLogs returns up to limit BLOCK records, newest first.
func (s *SQLiteStore) BlockedLogs(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, user_id, prompt, decision, confidence,
		       reasons, attacks_detected, temporal_flags, sanitized_prompt
		FROM audit_logs WHERE decision = 'BLOCK'
		ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query blocked logs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

// Statistics aggregates the full log.
func (s *SQLiteStore) Statistics(ctx context.Context) (Stats, error) {
	st := Stats{
		Decisions:     make(map[string]int),
		AvgConfidence: make(map[string]float64),
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT user_id) FROM audit_logs`)
	if err := row.Scan(&st.TotalLogs, &st.UniqueUsers); err != nil {
		return Stats{}, fmt.Errorf("audit totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT decision, COUNT(*), AVG(confidence) FROM audit_logs GROUP BY decision`)
	if err != nil {
		return Stats{}, fmt.Errorf("audit decision stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var decision string
		var count int
		var avg float64
		if err := rows.Scan(&decision, &count, &avg); err != nil {
			return Stats{}, fmt.Errorf("scan decision stats: %w", err)
		}
		st.Decisions[decision] = count
		st.AvgConfidence[decision] = avg
	}
	return st, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// rowScanner covers *sql.Rows for shared scan code.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecords(rows rowScanner) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var rec Record
		var ts, reasons, attacks, flags string
		var sanitized sql.NullString
		if err := rows.Scan(&rec.ID, &ts, &rec.UserID, &rec.Prompt,
			&rec.Decision, &rec.Confidence, &reasons, &attacks, &flags, &sanitized); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}

		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse audit timestamp %q: %w", ts, err)
		}
		rec.Timestamp = parsed
		rec.SanitizedPrompt = sanitized.String

		if err := decodeLists(&rec, reasons, attacks, flags); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func encodeLists(rec Record) (reasons, attacks, flags string, err error) {
	enc := func(items []string) (string, error) {
		if items == nil {
			items = []string{}
		}
		b, err := json.Marshal(items)
		return string(b), err
	}
	if reasons, err = enc(rec.Reasons); err != nil {
		return "", "", "", fmt.Errorf("encode reasons: %w", err)
	}
	if attacks, err = enc(rec.AttacksDetected); err != nil {
		return "", "", "", fmt.Errorf("encode attacks: %w", err)
	}
	if flags, err = enc(rec.TemporalFlags); err != nil {
		return "", "", "", fmt.Errorf("encode temporal flags: %w", err)
	}
	return reasons, attacks, flags, nil
}

func decodeLists(rec *Record, reasons, attacks, flags string) error {
	if err := json.Unmarshal([]byte(reasons), &rec.Reasons); err != nil {
		return fmt.Errorf("decode reasons: %w", err)
	}
	if err := json.Unmarshal([]byte(attacks), &rec.AttacksDetected); err != nil {
		return fmt.Errorf("decode attacks: %w", err)
	}
	if err := json.Unmarshal([]byte(flags), &rec.TemporalFlags); err != nil {
		return fmt.Errorf("decode temporal flags: %w", err)
	}
	return nil
}
