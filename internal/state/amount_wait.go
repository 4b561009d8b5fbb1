package state

import (
	"context"
	"sync"

	"github.com/m3rciful/fundbot/core/logger"
	"log/slog"
)

// AmountWaitStore tracks users whose next text message is a donation amount.
// The chat id is recorded so a user waiting in one chat is not considered
// waiting in another.
type AmountWaitStore struct {
	mu      sync.Mutex
	waiting map[int64]int64
}

// NewAmountWaitStore returns an empty store.
func NewAmountWaitStore() *AmountWaitStore {
	return &AmountWaitStore{waiting: make(map[int64]int64)}
}

// Set marks the user as waiting for an amount in the given chat.
func (s *AmountWaitStore) Set(ctx context.Context, userID, chatID int64) {
	s.mu.Lock()
	s.waiting[userID] = chatID
	s.mu.Unlock()
	logger.Debug(ctx, "state.amount", "amount_wait.set",
		slog.Int64("user_id", userID),
		slog.Int64("chat_id", chatID),
	)
}

// IsWaiting reports whether the user is waiting for an amount in this chat.
func (s *AmountWaitStore) IsWaiting(userID, chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.waiting[userID]
	return ok && stored == chatID
}

// Clear removes the waiting mark unconditionally. Clearing an absent entry
// is a no-op.
func (s *AmountWaitStore) Clear(ctx context.Context, userID int64) {
	s.mu.Lock()
	_, existed := s.waiting[userID]
	delete(s.waiting, userID)
	s.mu.Unlock()
	if !existed {
		logger.Debug(ctx, "state.amount", "amount_wait.clear_absent",
			slog.Int64("user_id", userID),
		)
		return
	}
	logger.Debug(ctx, "state.amount", "amount_wait.clear",
		slog.Int64("user_id", userID),
	)
}

// Count returns the number of users currently waiting.
func (s *AmountWaitStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiting)
}
