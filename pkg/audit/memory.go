package audit

import (
	"context"
	"sync"
)

// MemoryStore keeps audit records in a slice. Tests and ephemeral
// deployments only; everything is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Log persists one record.
func (s *MemoryStore) Log(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// UserLogs returns up to limit records for one user, newest first.
func (s *MemoryStore) UserLogs(_ context.Context, userID string, limit int) ([]Record, error) {
	return s.filter(limit, func(r Record) bool { return r.UserID == userID }), nil
}

// BlockedLogs returns up to limit BLOCK records, newest first.
func (s *MemoryStore) BlockedLogs(_ context.Context, limit int) ([]Record, error) {
	return s.filter(limit, func(r Record) bool { return r.Decision == "BLOCK" }), nil
}

func (s *MemoryStore) filter(limit int, keep func(Record) bool) []Record {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(s.records[i]) {
			out = append(out, s.records[i])
		}
	}
	return out
}

// Statistics aggregates the full log.
func (s *MemoryStore) Statistics(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		TotalLogs:     len(s.records),
		Decisions:     make(map[string]int),
		AvgConfidence: make(map[string]float64),
	}

	users := make(map[string]struct{})
	sums := make(map[string]float64)
	for _, rec := range s.records {
		users[rec.UserID] = struct{}{}
		st.Decisions[rec.Decision]++
		sums[rec.Decision] += rec.Confidence
	}
	st.UniqueUsers = len(users)
	for decision, count := range st.Decisions {
		st.AvgConfidence[decision] = sums[decision] / float64(count)
	}
	return st, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
