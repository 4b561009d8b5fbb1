package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/fundbot/core/logger"
	"github.com/m3rciful/fundbot/internal/domain"
	"log/slog"
)

// uniqueViolation is the Postgres error code raised by unique indexes.
const uniqueViolation = "23505"

// Repository provides storage access for users, goals, and pledges.
type Repository struct {
	db *sqlx.DB
}

// New wraps the given database handle.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// GetUserByTelegramID looks a user up by the external Telegram id.
func (r *Repository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u,
		`SELECT id, telegram_id, username, first_name, last_name, is_admin, created_at
		 FROM users WHERE telegram_id = $1`, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("user %d not found", telegramID)
	}
	if err != nil {
		return nil, domain.NewTransient("get user", err)
	}
	return &u, nil
}

// GetOrCreateUser returns the stored user, inserting one lazily on the
// first observed update. Identity fields are refreshed on every call.
func (r *Repository) GetOrCreateUser(ctx context.Context, telegramID int64, username, firstName, lastName string, isAdmin bool) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u,
		`INSERT INTO users (telegram_id, username, first_name, last_name, is_admin)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (telegram_id) DO UPDATE
		 SET username = EXCLUDED.username,
		     first_name = EXCLUDED.first_name,
		     last_name = EXCLUDED.last_name,
		     is_admin = EXCLUDED.is_admin
		 RETURNING id, telegram_id, username, first_name, last_name, is_admin, created_at`,
		telegramID, username, firstName, lastName, isAdmin)
	if err != nil {
		return nil, domain.NewTransient("upsert user", err)
	}
	return &u, nil
}

// GetActiveGoal returns the single active goal, or NotFound when none exists.
func (r *Repository) GetActiveGoal(ctx context.Context) (*domain.Goal, error) {
	var g domain.Goal
	err := r.db.GetContext(ctx, &g,
		`SELECT id, title, description, target_amount, current_amount, is_active, created_at
		 FROM goals WHERE is_active LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("no active goal")
	}
	if err != nil {
		return nil, domain.NewTransient("get active goal", err)
	}
	return &g, nil
}

// CreateGoal deactivates any prior active goal and inserts a new active one
// as a single transaction.
func (r *Repository) CreateGoal(ctx context.Context, title, description string, targetAmount int64) (*domain.Goal, error) {
	start := time.Now()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, domain.NewTransient("begin create goal", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE goals SET is_active = FALSE WHERE is_active`); err != nil {
		return nil, domain.NewTransient("deactivate prior goal", err)
	}

	var g domain.Goal
	err = tx.GetContext(ctx, &g,
		`INSERT INTO goals (title, description, target_amount, current_amount, is_active)
		 VALUES ($1, $2, $3, 0, TRUE)
		 RETURNING id, title, description, target_amount, current_amount, is_active, created_at`,
		title, description, targetAmount)
	if err != nil {
		return nil, domain.NewTransient("insert goal", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.NewTransient("commit create goal", err)
	}

	logger.DB.LogAttrs(ctx, slog.LevelInfo, "goal.created",
		slog.Int64("goal_id", g.ID),
		slog.Int64("amount", g.TargetAmount),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return &g, nil
}

// IncrementCurrentAmount adds delta to the goal's running total as an atomic
// storage-level update.
func (r *Repository) IncrementCurrentAmount(ctx context.Context, goalID, delta int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE goals SET current_amount = current_amount + $1 WHERE id = $2`,
		delta, goalID)
	if err != nil {
		return domain.NewTransient("increment goal amount", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.NewTransient("increment goal amount", err)
	}
	if affected == 0 {
		return domain.NewNotFound("goal %d not found", goalID)
	}
	return nil
}

// FindPledgeByChargeID looks a pledge up by the provider charge id.
func (r *Repository) FindPledgeByChargeID(ctx context.Context, chargeID string) (*domain.Pledge, error) {
	var p domain.Pledge
	err := r.db.GetContext(ctx, &p,
		`SELECT id, user_id, goal_id, amount, currency, charge_id, status, created_at
		 FROM pledges WHERE charge_id = $1`, chargeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("pledge for charge %s not found", chargeID)
	}
	if err != nil {
		return nil, domain.NewTransient("find pledge", err)
	}
	return &p, nil
}

// AppendPledge inserts a single ledger entry. A duplicate charge id maps to
// a Duplicate error.
func (r *Repository) AppendPledge(ctx context.Context, p *domain.Pledge) (*domain.Pledge, error) {
	var out domain.Pledge
	err := r.db.GetContext(ctx, &out,
		`INSERT INTO pledges (user_id, goal_id, amount, currency, charge_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, user_id, goal_id, amount, currency, charge_id, status, created_at`,
		p.UserID, p.GoalID, p.Amount, p.Currency, p.ChargeID, p.Status)
	if isUniqueViolation(err) {
		return nil, domain.NewDuplicate(fmt.Sprintf("charge %s already recorded", p.ChargeID), err)
	}
	if err != nil {
		return nil, domain.NewTransient("insert pledge", err)
	}
	return &out, nil
}

// RecordCompletedPayment appends a completed pledge and increments the goal
// total as one transaction, keeping the ledger sum invariant intact under
// concurrent completions. A duplicate charge id aborts the transaction with
// a Duplicate error and leaves the total untouched.
func (r *Repository) RecordCompletedPayment(ctx context.Context, p *domain.Pledge) (*domain.Pledge, error) {
	start := time.Now()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, domain.NewTransient("begin record payment", err)
	}
	defer tx.Rollback()

	var out domain.Pledge
	err = tx.GetContext(ctx, &out,
		`INSERT INTO pledges (user_id, goal_id, amount, currency, charge_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, user_id, goal_id, amount, currency, charge_id, status, created_at`,
		p.UserID, p.GoalID, p.Amount, p.Currency, p.ChargeID, domain.PledgeStatusCompleted)
	if isUniqueViolation(err) {
		return nil, domain.NewDuplicate(fmt.Sprintf("charge %s already recorded", p.ChargeID), err)
	}
	if err != nil {
		return nil, domain.NewTransient("insert pledge", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE goals SET current_amount = current_amount + $1 WHERE id = $2`,
		p.Amount, p.GoalID); err != nil {
		return nil, domain.NewTransient("increment goal amount", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.NewTransient("commit record payment", err)
	}

	logger.DB.LogAttrs(ctx, slog.LevelInfo, "pledge.recorded",
		slog.Int64("pledge_id", out.ID),
		slog.Int64("goal_id", out.GoalID),
		slog.Int64("amount", out.Amount),
		slog.String("currency", out.Currency),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return &out, nil
}

// ActiveGoalStats returns the active goal with its donor and donation
// aggregates.
func (r *Repository) ActiveGoalStats(ctx context.Context) (*domain.GoalStats, error) {
	goal, err := r.GetActiveGoal(ctx)
	if err != nil {
		return nil, err
	}

	var agg struct {
		Donors    int64 `db:"donors"`
		Donations int64 `db:"donations"`
	}
	err = r.db.GetContext(ctx, &agg,
		`SELECT COUNT(DISTINCT user_id) AS donors, COUNT(*) AS donations
		 FROM pledges WHERE goal_id = $1 AND status = $2`,
		goal.ID, domain.PledgeStatusCompleted)
	if err != nil {
		return nil, domain.NewTransient("goal aggregates", err)
	}

	return &domain.GoalStats{
		Goal:          *goal,
		DonorCount:    agg.Donors,
		DonationCount: agg.Donations,
	}, nil
}
