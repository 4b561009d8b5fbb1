package service

import (
	"context"

	"github.com/m3rciful/fundbot/internal/domain"
)

// Ledger is the storage contract the services depend on.
type Ledger interface {
	GetActiveGoal(ctx context.Context) (*domain.Goal, error)
	CreateGoal(ctx context.Context, title, description string, targetAmount int64) (*domain.Goal, error)
	FindPledgeByChargeID(ctx context.Context, chargeID string) (*domain.Pledge, error)
	RecordCompletedPayment(ctx context.Context, p *domain.Pledge) (*domain.Pledge, error)
	ActiveGoalStats(ctx context.Context) (*domain.GoalStats, error)
}
