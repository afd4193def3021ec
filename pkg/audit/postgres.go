package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id               TEXT PRIMARY KEY,
	timestamp        TIMESTAMPTZ NOT NULL,
	user_id          TEXT NOT NULL,
	prompt           TEXT NOT NULL,
	decision         TEXT NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL,
	reasons          JSONB NOT NULL,
	attacks_detected JSONB NOT NULL,
	temporal_flags   JSONB NOT NULL,
	sanitized_prompt TEXT
);
CREATE INDEX IF NOT EXISTS idx_user_timestamp ON audit_logs(user_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_decision ON audit_logs(decision);
`

// PostgresStore is the multi-replica audit backend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Log persists one record.
func (s *PostgresStore) Log(ctx context.Context, rec Record) error {
	reasons := rec.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	attacks := rec.AttacksDetected
	if attacks == nil {
		attacks = []string{}
	}
	flags := rec.TemporalFlags
	if flags == nil {
		flags = []string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs
			(id, timestamp, user_id, prompt, decision, confidence,
			 reasons, attacks_detected, temporal_flags, sanitized_prompt)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.Timestamp.UTC(), rec.UserID, rec.Prompt,
		rec.Decision, rec.Confidence, reasons, attacks, flags, rec.SanitizedPrompt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// UserLogs returns up to limit records for one user, newest first.
func (s *PostgresStore) UserLogs(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, timestamp, user_id, prompt, decision, confidence,
		       reasons, attacks_detected, temporal_flags, COALESCE(sanitized_prompt, '')
		FROM audit_logs WHERE user_id = $1
		ORDER BY timestamp DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query user logs: %w", err)
	}
	defer rows.Close()
	return scanPgRecords(rows)
}

// BlockedLogs returns up to limit BLOCK records, newest first.
func (s *PostgresStore) BlockedLogs(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, timestamp, user_id, prompt, decision, confidence,
		       reasons, attacks_detected, temporal_flags, COALESCE(sanitized_prompt, '')
		FROM audit_logs WHERE decision = 'BLOCK'
		ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query blocked logs: %w", err)
	}
	defer rows.Close()
	return scanPgRecords(rows)
}

// Statistics aggregates the full log.
func (s *PostgresStore) Statistics(ctx context.Context) (Stats, error) {
	st := Stats{
		Decisions:     make(map[string]int),
		AvgConfidence: make(map[string]float64),
	}

	row := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT user_id) FROM audit_logs`)
	if err := row.Scan(&st.TotalLogs, &st.UniqueUsers); err != nil {
		return Stats{}, fmt.Errorf("audit totals: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT decision, COUNT(*), AVG(confidence) FROM audit_logs GROUP BY decision`)
	if err != nil {
		return Stats{}, fmt.Errorf("audit decision stats: %w", err)
	}
	defer rows.Close()

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

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type pgRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanPgRecords(rows pgRows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.UserID, &rec.Prompt,
			&rec.Decision, &rec.Confidence, &rec.Reasons, &rec.AttacksDetected,
			&rec.TemporalFlags, &rec.SanitizedPrompt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
