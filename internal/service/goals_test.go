package service

import (
	"context"
	"testing"

	"github.com/m3rciful/fundbot/internal/domain"
	"github.com/m3rciful/fundbot/internal/state"
)

func TestGoalCreationFlow(t *testing.T) {
	// Admin walks through all three steps; a new goal becomes active and the
	// previous one is deactivated.
	ctx := context.Background()
	ledger := newFakeLedger()
	old := ledger.addActiveGoal("Old goal", 1000)
	svc := NewGoalService(ledger, state.NewGoalCreationStore())

	svc.StartCreation(ctx, 1, 10)
	if err := svc.SetTitle(ctx, 1, "Roof"); err != nil {
		t.Fatalf("SetTitle: %v", err)
	}
	if err := svc.SetDescription(ctx, 1, "Roof repair fund"); err != nil {
		t.Fatalf("SetDescription: %v", err)
	}
	goal, err := svc.FinalizeCreation(ctx, 1, "5000")
	if err != nil {
		t.Fatalf("FinalizeCreation: %v", err)
	}

	if goal.Title != "Roof" || goal.Description != "Roof repair fund" || goal.TargetAmount != 5000 {
		t.Fatalf("goal = %+v", goal)
	}
	if svc.CreationInProgress(1) {
		t.Fatal("creation must be gone after finalize")
	}

	active, err := svc.ActiveGoal(ctx)
	if err != nil {
		t.Fatalf("ActiveGoal: %v", err)
	}
	if active.ID != goal.ID {
		t.Fatalf("active goal = %d, want %d", active.ID, goal.ID)
	}
	for _, g := range ledger.goals {
		if g.ID == old.ID && g.IsActive {
			t.Fatal("previous goal must be deactivated")
		}
	}
}

func TestFinalizeCreationInvalidAmount(t *testing.T) {
	ctx := context.Background()
	svc := NewGoalService(newFakeLedger(), state.NewGoalCreationStore())

	cases := []struct {
		name   string
		amount string
	}{
		{"not a number", "lots"},
		{"zero", "0"},
		{"negative", "-100"},
		{"too large", "100000001"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc.StartCreation(ctx, 1, 10)
			if err := svc.SetTitle(ctx, 1, "Roof"); err != nil {
				t.Fatalf("SetTitle: %v", err)
			}
			if err := svc.SetDescription(ctx, 1, "desc"); err != nil {
				t.Fatalf("SetDescription: %v", err)
			}

			_, err := svc.FinalizeCreation(ctx, 1, tc.amount)
			if !domain.IsKind(err, domain.KindValidation) {
				t.Fatalf("kind = %v, want validation", domain.KindOf(err))
			}
			if svc.CreationInProgress(1) {
				t.Fatal("failed finalize must cancel the creation")
			}
		})
	}
}

func TestFinalizeCreationWithoutState(t *testing.T) {
	svc := NewGoalService(newFakeLedger(), state.NewGoalCreationStore())

	_, err := svc.FinalizeCreation(context.Background(), 1, "5000")
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("kind = %v, want not found", domain.KindOf(err))
	}
}

func TestFinalizeCreationAtWrongStep(t *testing.T) {
	ctx := context.Background()
	svc := NewGoalService(newFakeLedger(), state.NewGoalCreationStore())

	svc.StartCreation(ctx, 1, 10)
	_, err := svc.FinalizeCreation(ctx, 1, "5000")
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("kind = %v, want not found", domain.KindOf(err))
	}
	if got := svc.CreationStep(1); got != state.StepTitle {
		t.Fatalf("step = %v, want title", got)
	}
}
