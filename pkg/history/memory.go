package history

import (
	"context"
	"sync"
)

// userWindow holds one user's sliding window. Each window has its own lock
// so heavy traffic from one user does not serialize everyone else.
type userWindow struct {
	mu      sync.Mutex
	records []Record
}

// MemoryStore is the default in-process history backend.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*userWindow
	max   int
}

// NewMemoryStore creates a store keeping at most max records per user.
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = 10
	}
	return &MemoryStore{
		users: make(map[string]*userWindow),
		max:   max,
	}
}

func (s *MemoryStore) window(userID string) *userWindow {
	s.mu.RLock()
	w, ok := s.users[userID]
	s.mu.RUnlock()
	if ok {
		return w
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok = s.users[userID]; ok {
		return w
	}
	w = &userWindow{}
	s.users[userID] = w
	return w
}

// Append adds a record, evicting the oldest once the window is full.
func (s *MemoryStore) Append(_ context.Context, userID string, rec Record) error {
	w := s.window(userID)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.records = append(w.records, rec)
	if len(w.records) > s.max {
		// shift instead of reslice so the evicted head can be collected
		copy(w.records, w.records[len(w.records)-s.max:])
		w.records = w.records[:s.max]
	}
	return nil
}

// Recent returns up to n most recent records, oldest first.
func (s *MemoryStore) Recent(_ context.Context, userID string, n int) ([]Record, error) {
	w := s.window(userID)
	w.mu.Lock()
	defer w.mu.Unlock()

	records := w.records
	if n > 0 && n < len(records) {
		records = records[len(records)-n:]
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out, nil
}

// Clear drops the user's window.
func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	return nil
}

// Stats reports tracked user and prompt counts.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Users: len(s.users)}
	for _, w := range s.users {
		w.mu.Lock()
		st.Prompts += len(w.records)
		w.mu.Unlock()
	}
	return st, nil
}
