package history

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func rec(prompt string) Record {
	return Record{
		Prompt:     prompt,
		Timestamp:  time.Now().UTC(),
		Decision:   "ALLOW",
		Confidence: 0.1,
	}
}

func TestMemoryStoreWindowBound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)

	for i := range 7 {
		if err := s.Append(ctx, "alice", rec(fmt.Sprintf("prompt-%d", i))); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Recent(ctx, "alice", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("window len = %d, want 3", len(got))
	}
	// oldest first, most recent three survive
	want := []string{"prompt-4", "prompt-5", "prompt-6"}
	for i, w := range want {
		if got[i].Prompt != w {
			t.Errorf("window[%d] = %q, want %q", i, got[i].Prompt, w)
		}
	}
}

func TestMemoryStoreRecentN(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	for i := range 5 {
		_ = s.Append(ctx, "bob", rec(fmt.Sprintf("p%d", i)))
	}

	got, err := s.Recent(ctx, "bob", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Prompt != "p2" || got[2].Prompt != "p4" {
		t.Errorf("Recent(3) = %v", got)
	}

	// asking for more than exists returns everything
	got, _ = s.Recent(ctx, "bob", 100)
	if len(got) != 5 {
		t.Errorf("Recent(100) len = %d, want 5", len(got))
	}

	// unknown user is empty, not an error
	got, err = s.Recent(ctx, "nobody", 3)
	if err != nil || len(got) != 0 {
		t.Errorf("Recent(unknown) = %v, %v", got, err)
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	_ = s.Append(ctx, "alice", rec("alice-1"))
	_ = s.Append(ctx, "bob", rec("bob-1"))

	got, _ := s.Recent(ctx, "alice", 0)
	if len(got) != 1 || got[0].Prompt != "alice-1" {
		t.Errorf("alice window = %v", got)
	}
}

func TestMemoryStoreClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	_ = s.Append(ctx, "alice", rec("p1"))
	if err := s.Clear(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Recent(ctx, "alice", 0)
	if len(got) != 0 {
		t.Errorf("window after clear = %v", got)
	}

	st, _ := s.Stats(ctx)
	if st.Users != 0 {
		t.Errorf("users after clear = %d, want 0", st.Users)
	}
}

func TestMemoryStoreStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	for i := range 3 {
		_ = s.Append(ctx, "alice", rec(fmt.Sprintf("a%d", i)))
	}
	_ = s.Append(ctx, "bob", rec("b0"))

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Users != 2 || st.Prompts != 4 {
		t.Errorf("stats = %+v, want 2 users / 4 prompts", st)
	}
}

func TestMemoryStoreConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)
	var wg sync.WaitGroup

	for u := range 8 {
		userID := fmt.Sprintf("user-%d", u)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				_ = s.Append(ctx, userID, rec(fmt.Sprintf("p%d", i)))
				_, _ = s.Recent(ctx, userID, 3)
			}
		}()
	}
	wg.Wait()

	st, _ := s.Stats(ctx)
	if st.Users != 8 || st.Prompts != 80 {
		t.Errorf("stats = %+v, want 8 users / 80 prompts", st)
	}
}
