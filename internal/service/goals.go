package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/fundbot/core/logger"
	"github.com/m3rciful/fundbot/internal/domain"
	"github.com/m3rciful/fundbot/internal/state"
	"log/slog"
)

// MaxTargetAmount caps a goal target to keep progress math sane.
const MaxTargetAmount = 100_000_000

// GoalService owns the goal-creation conversation and active-goal reads.
type GoalService struct {
	ledger   Ledger
	creation *state.GoalCreationStore
}

// NewGoalService wires the goal flow.
func NewGoalService(ledger Ledger, creation *state.GoalCreationStore) *GoalService {
	return &GoalService{ledger: ledger, creation: creation}
}

// ActiveGoal returns the currently active goal.
func (s *GoalService) ActiveGoal(ctx context.Context) (*domain.Goal, error) {
	return s.ledger.GetActiveGoal(ctx)
}

// StartCreation begins the three-step creation conversation for an admin.
func (s *GoalService) StartCreation(ctx context.Context, userID, chatID int64) {
	s.creation.Start(ctx, userID, chatID)
}

// CancelCreation aborts an in-flight creation.
func (s *GoalService) CancelCreation(ctx context.Context, userID int64) {
	s.creation.Cancel(ctx, userID)
}

// CreationInProgress reports whether the user is mid-creation.
func (s *GoalService) CreationInProgress(userID int64) bool {
	return s.creation.InProgress(userID)
}

// CreationStep returns the user's current creation step.
func (s *GoalService) CreationStep(userID int64) state.Step {
	c, ok := s.creation.Current(userID)
	if !ok {
		return state.StepNone
	}
	return c.Step
}

// SetTitle stores the title and advances the conversation.
func (s *GoalService) SetTitle(ctx context.Context, userID int64, title string) error {
	return s.creation.SetTitle(ctx, userID, title)
}

// SetDescription stores the description and advances the conversation.
func (s *GoalService) SetDescription(ctx context.Context, userID int64, description string) error {
	return s.creation.SetDescription(ctx, userID, description)
}

// FinalizeCreation parses the target amount, persists the goal (deactivating
// any prior active goal), and removes the conversation state. Any parse or
// bound failure cancels the creation; the admin starts over.
func (s *GoalService) FinalizeCreation(ctx context.Context, userID int64, amountText string) (*domain.Goal, error) {
	c, ok := s.creation.Current(userID)
	if !ok || c.Step != state.StepAmount {
		logger.Warn(ctx, "service.goals", "creation.finalize_absent",
			slog.Int64("user_id", userID),
		)
		return nil, domain.NewNotFound("no goal creation in progress")
	}

	target, err := strconv.ParseInt(strings.TrimSpace(amountText), 10, 64)
	if err != nil {
		s.creation.Cancel(ctx, userID)
		return nil, domain.NewValidation("target amount must be a whole number")
	}
	if target <= 0 || target > MaxTargetAmount {
		s.creation.Cancel(ctx, userID)
		return nil, domain.NewValidation("target amount must be between 1 and %d", MaxTargetAmount)
	}

	goal, err := s.ledger.CreateGoal(ctx, c.Title, c.Description, target)
	if err != nil {
		s.creation.Cancel(ctx, userID)
		return nil, fmt.Errorf("finalize creation: %w", err)
	}
	s.creation.Finish(ctx, userID)

	logger.Info(ctx, "service.goals", "goal.activated",
		slog.Int64("goal_id", goal.ID),
		slog.Int64("user_id", userID),
		slog.Int64("amount", goal.TargetAmount),
	)
	return goal, nil
}
