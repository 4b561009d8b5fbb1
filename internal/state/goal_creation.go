package state

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/m3rciful/fundbot/core/logger"
	"github.com/m3rciful/fundbot/internal/domain"
	"log/slog"
)

// Step identifies the current stage of a goal-creation conversation.
type Step int

const (
	// StepNone means no creation is in flight for the user.
	StepNone Step = iota
	// StepTitle means the next message is the goal title.
	StepTitle
	// StepDescription means the next message is the goal description.
	StepDescription
	// StepAmount means the next message is the target amount.
	StepAmount
)

func (s Step) String() string {
	switch s {
	case StepTitle:
		return "waiting_for_title"
	case StepDescription:
		return "waiting_for_description"
	case StepAmount:
		return "waiting_for_amount"
	default:
		return "none"
	}
}

// MaxTitleLen bounds a goal title; titles of this length or longer are
// rejected and the creation is cancelled.
const MaxTitleLen = 255

// Creation accumulates goal fields as steps complete.
type Creation struct {
	ChatID      int64
	Step        Step
	Title       string
	Description string
}

// GoalCreationStore tracks per-admin goal-creation conversations.
// Each mutation validates input, stores the field, and advances the step by
// exactly one; any validation failure cancels the conversation outright.
type GoalCreationStore struct {
	mu       sync.Mutex
	sessions map[int64]*Creation
}

// NewGoalCreationStore returns an empty store.
func NewGoalCreationStore() *GoalCreationStore {
	return &GoalCreationStore{sessions: make(map[int64]*Creation)}
}

// Start resets the user's creation to the title step with empty fields,
// overwriting any prior in-flight creation.
func (s *GoalCreationStore) Start(ctx context.Context, userID, chatID int64) {
	s.mu.Lock()
	s.sessions[userID] = &Creation{ChatID: chatID, Step: StepTitle}
	s.mu.Unlock()
	logger.Debug(ctx, "state.goal", "goal_creation.start",
		slog.Int64("user_id", userID),
		slog.Int64("chat_id", chatID),
	)
}

// InProgress reports whether the user has a creation in flight. A finished
// creation is indistinguishable from one that never started.
func (s *GoalCreationStore) InProgress(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[userID]
	return ok
}

// Current returns a snapshot of the user's creation, if any.
func (s *GoalCreationStore) Current(userID int64) (Creation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[userID]
	if !ok {
		return Creation{}, false
	}
	return *c, true
}

// SetTitle validates and stores the title, advancing to the description step.
// An over-length or empty title cancels the creation and returns a
// Validation error.
func (s *GoalCreationStore) SetTitle(ctx context.Context, userID int64, title string) error {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) >= MaxTitleLen {
		s.Cancel(ctx, userID)
		return domain.NewValidation("goal title must be 1 to %d characters", MaxTitleLen-1)
	}

	s.mu.Lock()
	c, ok := s.sessions[userID]
	if ok && c.Step == StepTitle {
		c.Title = title
		c.Step = StepDescription
	}
	s.mu.Unlock()

	if !ok {
		logger.Warn(ctx, "state.goal", "goal_creation.set_absent",
			slog.Int64("user_id", userID),
			slog.String("step", StepTitle.String()),
		)
		return nil
	}
	logger.Debug(ctx, "state.goal", "goal_creation.title_set",
		slog.Int64("user_id", userID),
	)
	return nil
}

// SetDescription validates and stores the description, advancing to the
// amount step. An empty description cancels the creation.
func (s *GoalCreationStore) SetDescription(ctx context.Context, userID int64, description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		s.Cancel(ctx, userID)
		return domain.NewValidation("goal description must not be empty")
	}

	s.mu.Lock()
	c, ok := s.sessions[userID]
	if ok && c.Step == StepDescription {
		c.Description = description
		c.Step = StepAmount
	}
	s.mu.Unlock()

	if !ok {
		logger.Warn(ctx, "state.goal", "goal_creation.set_absent",
			slog.Int64("user_id", userID),
			slog.String("step", StepDescription.String()),
		)
		return nil
	}
	logger.Debug(ctx, "state.goal", "goal_creation.description_set",
		slog.Int64("user_id", userID),
	)
	return nil
}

// Finish removes the user's creation after the goal has been persisted.
func (s *GoalCreationStore) Finish(ctx context.Context, userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	logger.Debug(ctx, "state.goal", "goal_creation.finish",
		slog.Int64("user_id", userID),
	)
}

// Cancel deletes the user's creation outright. Cancelling an absent entry
// is a no-op.
func (s *GoalCreationStore) Cancel(ctx context.Context, userID int64) {
	s.mu.Lock()
	_, existed := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()
	if !existed {
		logger.Debug(ctx, "state.goal", "goal_creation.cancel_absent",
			slog.Int64("user_id", userID),
		)
		return
	}
	logger.Debug(ctx, "state.goal", "goal_creation.cancel",
		slog.Int64("user_id", userID),
	)
}

// Count returns the number of creations in flight.
func (s *GoalCreationStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
