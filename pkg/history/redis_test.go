package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisStore(t *testing.T, max int) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)

	s, err := NewRedisStore(context.Background(), mr.Addr(), max)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t, 10)

	in := rec("hello there")
	in.Flags = []string{"jailbreak"}
	if err := s.Append(ctx, "alice", in); err != nil {
		t.Fatal(err)
	}

	got, err := s.Recent(ctx, "alice", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Prompt != in.Prompt || got[0].Decision != in.Decision {
		t.Errorf("got %+v, want %+v", got[0], in)
	}
	if len(got[0].Flags) != 1 || got[0].Flags[0] != "jailbreak" {
		t.Errorf("flags = %v", got[0].Flags)
	}
}

func TestRedisStoreWindowBound(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t, 3)

	for i := range 7 {
		if err := s.Append(ctx, "alice", rec(fmt.Sprintf("prompt-%d", i))); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Recent(ctx, "alice", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Prompt != "prompt-4" || got[2].Prompt != "prompt-6" {
		t.Errorf("window = %v", got)
	}
}

func TestRedisStoreRecentN(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t, 10)

	for i := range 5 {
		_ = s.Append(ctx, "bob", rec(fmt.Sprintf("p%d", i)))
	}

	got, err := s.Recent(ctx, "bob", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Prompt != "p3" || got[1].Prompt != "p4" {
		t.Errorf("Recent(2) = %v", got)
	}
}

func TestRedisStoreClearAndStats(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t, 10)

	_ = s.Append(ctx, "alice", rec("a1"))
	_ = s.Append(ctx, "alice", rec("a2"))
	_ = s.Append(ctx, "bob", rec("b1"))

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Users != 2 || st.Prompts != 3 {
		t.Errorf("stats = %+v, want 2 users / 3 prompts", st)
	}

	if err := s.Clear(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Recent(ctx, "alice", 0)
	if len(got) != 0 {
		t.Errorf("window after clear = %v", got)
	}

	st, _ = s.Stats(ctx)
	if st.Users != 1 || st.Prompts != 1 {
		t.Errorf("stats after clear = %+v", st)
	}
}

func TestRedisStoreConnectFailure(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "127.0.0.1:1", 10)
	if err == nil {
		t.Error("expected connection error, got nil")
	}
}
