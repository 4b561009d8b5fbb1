package state

import (
	"context"
	"sync"
	"testing"
)

func TestAmountWaitChatMatch(t *testing.T) {
	ctx := context.Background()
	s := NewAmountWaitStore()

	s.Set(ctx, 42, 100)

	if !s.IsWaiting(42, 100) {
		t.Fatal("expected waiting in the chat it was set for")
	}
	if s.IsWaiting(42, 200) {
		t.Fatal("waiting must not leak into a different chat")
	}
	if s.IsWaiting(7, 100) {
		t.Fatal("unrelated user must not be waiting")
	}
}

func TestAmountWaitClear(t *testing.T) {
	ctx := context.Background()
	s := NewAmountWaitStore()

	s.Set(ctx, 42, 100)
	s.Clear(ctx, 42)

	if s.IsWaiting(42, 100) {
		t.Fatal("expected cleared")
	}
	if s.Count() != 0 {
		t.Fatalf("Count = %d, want 0", s.Count())
	}

	// Clearing an absent entry is a no-op.
	s.Clear(ctx, 42)
	s.Clear(ctx, 9000)
}

func TestAmountWaitOverwrite(t *testing.T) {
	ctx := context.Background()
	s := NewAmountWaitStore()

	s.Set(ctx, 42, 100)
	s.Set(ctx, 42, 200)

	if s.IsWaiting(42, 100) {
		t.Fatal("old chat must not match after overwrite")
	}
	if !s.IsWaiting(42, 200) {
		t.Fatal("expected waiting in the latest chat")
	}
	if s.Count() != 1 {
		t.Fatalf("Count = %d, want 1", s.Count())
	}
}

func TestAmountWaitConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewAmountWaitStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			s.Set(ctx, id, id*10)
			_ = s.IsWaiting(id, id*10)
			s.Clear(ctx, id)
		}(int64(i))
	}
	wg.Wait()

	if s.Count() != 0 {
		t.Fatalf("Count = %d, want 0", s.Count())
	}
}
