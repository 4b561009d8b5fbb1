package service

import (
	"context"
	"testing"

	"github.com/m3rciful/fundbot/internal/domain"
)

func TestPercent(t *testing.T) {
	cases := []struct {
		name    string
		current int64
		target  int64
		want    float64
	}{
		{"empty", 0, 5000, 0},
		{"half", 2500, 5000, 50},
		{"full", 5000, 5000, 100},
		{"overshoot", 5500, 5000, 110},
		{"zero target", 100, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := &domain.Goal{CurrentAmount: tc.current, TargetAmount: tc.target}
			if got := Percent(g); got != tc.want {
				t.Fatalf("Percent = %v, want %v", got, tc.want)
			}
		})
	}
	if got := Percent(nil); got != 0 {
		t.Fatalf("Percent(nil) = %v, want 0", got)
	}
}

func TestProgressBar(t *testing.T) {
	cases := []struct {
		percent float64
		want    string
	}{
		{0, "[□□□□□□□□□□]"},
		{4, "[□□□□□□□□□□]"},
		{5, "[■□□□□□□□□□]"},
		{50, "[■■■■■□□□□□]"},
		{94, "[■■■■■■■■■□]"},
		{95, "[■■■■■■■■■■]"},
		{99, "[■■■■■■■■■■]"},
		{100, "[■■■■■■■■■■]"},
		{110, "[■■■■■■■■■■]"},
	}
	for _, tc := range cases {
		if got := ProgressBar(tc.percent); got != tc.want {
			t.Errorf("ProgressBar(%v) = %s, want %s", tc.percent, got, tc.want)
		}
	}
}

func TestActiveGoalStats(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	goal := ledger.addActiveGoal("Roof", 5000)
	pay := NewPaymentService(ledger, &fakeEmitter{}, testConfig())
	svc := NewStatsService(ledger)

	// Two donations from one user, one from another.
	inputs := []CompletePaymentInput{
		{ChargeID: "c1", Amount: 100, Currency: "RUB", UserID: 1},
		{ChargeID: "c2", Amount: 200, Currency: "RUB", UserID: 1},
		{ChargeID: "c3", Amount: 300, Currency: "RUB", UserID: 2},
	}
	for _, in := range inputs {
		if _, _, err := pay.CompletePayment(ctx, in); err != nil {
			t.Fatalf("CompletePayment %s: %v", in.ChargeID, err)
		}
	}

	stats, err := svc.ActiveGoalStats(ctx)
	if err != nil {
		t.Fatalf("ActiveGoalStats: %v", err)
	}
	if stats.Goal.ID != goal.ID {
		t.Fatalf("goal id = %d, want %d", stats.Goal.ID, goal.ID)
	}
	if stats.DonorCount != 2 || stats.DonationCount != 3 {
		t.Fatalf("donors=%d donations=%d, want 2 and 3", stats.DonorCount, stats.DonationCount)
	}
	if stats.Goal.CurrentAmount != 600 {
		t.Fatalf("current amount = %d, want 600", stats.Goal.CurrentAmount)
	}
}
