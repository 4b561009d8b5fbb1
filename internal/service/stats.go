package service

import (
	"context"
	"math"
	"strings"

	"github.com/m3rciful/fundbot/internal/domain"
)

const progressSegments = 10

// StatsService projects ledger state into human-readable progress.
type StatsService struct {
	ledger Ledger
}

// NewStatsService wires the projection.
func NewStatsService(ledger Ledger) *StatsService {
	return &StatsService{ledger: ledger}
}

// ActiveGoalStats returns the active goal with donor aggregates.
func (s *StatsService) ActiveGoalStats(ctx context.Context) (*domain.GoalStats, error) {
	return s.ledger.ActiveGoalStats(ctx)
}

// Percent computes collection progress, guarding against a zero target.
func Percent(goal *domain.Goal) float64 {
	if goal == nil || goal.TargetAmount <= 0 {
		return 0
	}
	return float64(goal.CurrentAmount) / float64(goal.TargetAmount) * 100
}

// ProgressBar renders percent as 10 discrete segments. Fill count rounds
// half away from zero; anything at or past 100 renders fully filled.
func ProgressBar(percent float64) string {
	filled := int(math.Round(percent / progressSegments))
	if percent >= 100 {
		filled = progressSegments
	}
	if filled < 0 {
		filled = 0
	}
	if filled > progressSegments {
		filled = progressSegments
	}

	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(strings.Repeat("■", filled))
	b.WriteString(strings.Repeat("□", progressSegments-filled))
	b.WriteByte(']')
	return b.String()
}
