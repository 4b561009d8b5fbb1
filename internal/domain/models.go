package domain

import "time"

// User is a Telegram account known to the bot. Created lazily on the first
// observed update and never deleted.
type User struct {
	ID         int64     `db:"id"`
	TelegramID int64     `db:"telegram_id"`
	Username   string    `db:"username"`
	FirstName  string    `db:"first_name"`
	LastName   string    `db:"last_name"`
	IsAdmin    bool      `db:"is_admin"`
	CreatedAt  time.Time `db:"created_at"`
}

// Goal is a fundraising target. At most one goal is active at any time;
// the storage layer enforces that with a partial unique index.
type Goal struct {
	ID            int64     `db:"id"`
	Title         string    `db:"title"`
	Description   string    `db:"description"`
	TargetAmount  int64     `db:"target_amount"`
	CurrentAmount int64     `db:"current_amount"`
	IsActive      bool      `db:"is_active"`
	CreatedAt     time.Time `db:"created_at"`
}

// Pledge statuses. A pledge is written only after provider confirmation and
// never updated once completed.
const (
	PledgeStatusPending   = "pending"
	PledgeStatusCompleted = "completed"
	PledgeStatusFailed    = "failed"
)

// Pledge is a ledger entry for a single confirmed donation. ChargeID is the
// provider's identifier and the sole idempotency key for completion.
type Pledge struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	GoalID    int64     `db:"goal_id"`
	Amount    int64     `db:"amount"`
	Currency  string    `db:"currency"`
	ChargeID  string    `db:"charge_id"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

// GoalStats is the projection rendered by stats handlers.
type GoalStats struct {
	Goal          Goal
	DonorCount    int64
	DonationCount int64
}
