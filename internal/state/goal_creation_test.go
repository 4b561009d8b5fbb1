package state

import (
	"context"
	"strings"
	"testing"

	"github.com/m3rciful/fundbot/internal/domain"
)

func TestGoalCreationHappyPath(t *testing.T) {
	ctx := context.Background()
	s := NewGoalCreationStore()

	s.Start(ctx, 1, 10)
	if !s.InProgress(1) {
		t.Fatal("expected creation in progress after Start")
	}

	if err := s.SetTitle(ctx, 1, "Roof"); err != nil {
		t.Fatalf("SetTitle: %v", err)
	}
	c, ok := s.Current(1)
	if !ok || c.Step != StepDescription || c.Title != "Roof" {
		t.Fatalf("after title: %+v ok=%v", c, ok)
	}

	if err := s.SetDescription(ctx, 1, "Roof repair fund"); err != nil {
		t.Fatalf("SetDescription: %v", err)
	}
	c, ok = s.Current(1)
	if !ok || c.Step != StepAmount || c.Description != "Roof repair fund" {
		t.Fatalf("after description: %+v ok=%v", c, ok)
	}

	s.Finish(ctx, 1)
	if s.InProgress(1) {
		t.Fatal("finished creation must be indistinguishable from never started")
	}
}

func TestGoalCreationLongTitleCancels(t *testing.T) {
	ctx := context.Background()
	s := NewGoalCreationStore()

	s.Start(ctx, 1, 10)
	err := s.SetTitle(ctx, 1, strings.Repeat("x", MaxTitleLen))
	if err == nil {
		t.Fatal("expected validation error for over-length title")
	}
	if !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("kind = %v, want validation", domain.KindOf(err))
	}
	if s.InProgress(1) {
		t.Fatal("creation must be cancelled after invalid title")
	}
}

func TestGoalCreationEmptyInputCancels(t *testing.T) {
	ctx := context.Background()
	s := NewGoalCreationStore()

	s.Start(ctx, 1, 10)
	if err := s.SetTitle(ctx, 1, "   "); err == nil {
		t.Fatal("expected validation error for blank title")
	}
	if s.InProgress(1) {
		t.Fatal("expected cancelled")
	}

	s.Start(ctx, 1, 10)
	if err := s.SetTitle(ctx, 1, "Roof"); err != nil {
		t.Fatalf("SetTitle: %v", err)
	}
	if err := s.SetDescription(ctx, 1, ""); err == nil {
		t.Fatal("expected validation error for empty description")
	}
	if s.InProgress(1) {
		t.Fatal("expected cancelled")
	}
}

func TestGoalCreationStartOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewGoalCreationStore()

	s.Start(ctx, 1, 10)
	if err := s.SetTitle(ctx, 1, "Old"); err != nil {
		t.Fatalf("SetTitle: %v", err)
	}

	s.Start(ctx, 1, 10)
	c, ok := s.Current(1)
	if !ok || c.Step != StepTitle || c.Title != "" {
		t.Fatalf("Start must reset state, got %+v", c)
	}
	if s.Count() != 1 {
		t.Fatalf("Count = %d, want 1", s.Count())
	}
}

func TestGoalCreationMutationOnAbsentStateIsNoop(t *testing.T) {
	ctx := context.Background()
	s := NewGoalCreationStore()

	if err := s.SetTitle(ctx, 99, "Roof"); err != nil {
		t.Fatalf("mutation on absent state must not error, got %v", err)
	}
	if s.InProgress(99) {
		t.Fatal("no-op mutation must not create state")
	}

	s.Cancel(ctx, 99)
	s.Finish(ctx, 99)
}
