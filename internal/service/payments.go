package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/fundbot/core/logger"
	"github.com/m3rciful/fundbot/internal/domain"
	"log/slog"
)

// PaymentConfig bounds donation amounts and identifies the provider.
type PaymentConfig struct {
	ProviderToken string
	Currency      string
	MinAmount     int64
	MaxAmount     int64
	Presets       []int64
}

// Invoice describes a provider payment request before it leaves the bot.
type Invoice struct {
	Title       string
	Description string
	Payload     string
	Currency    string
	Amount      int64
}

// InvoiceEmitter delivers an invoice to the chat. The payment service never
// talks to the transport directly.
type InvoiceEmitter interface {
	EmitInvoice(ctx context.Context, chatID int64, inv Invoice) error
}

// PaymentService validates, authorizes, and records donations.
type PaymentService struct {
	ledger  Ledger
	emitter InvoiceEmitter
	cfg     PaymentConfig
}

// NewPaymentService wires the payment pipeline.
func NewPaymentService(ledger Ledger, emitter InvoiceEmitter, cfg PaymentConfig) *PaymentService {
	return &PaymentService{ledger: ledger, emitter: emitter, cfg: cfg}
}

// Config exposes the payment bounds for handlers rendering prompts.
func (s *PaymentService) Config() PaymentConfig { return s.cfg }

// ValidateAmount checks the inclusive donation bounds.
func (s *PaymentService) ValidateAmount(amount int64) error {
	if amount < s.cfg.MinAmount || amount > s.cfg.MaxAmount {
		return domain.NewValidation("amount must be between %d and %d", s.cfg.MinAmount, s.cfg.MaxAmount)
	}
	return nil
}

// ParseAmount converts user text into a donation amount, applying bounds.
func (s *PaymentService) ParseAmount(text string) (int64, error) {
	amount, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, domain.NewValidation("amount must be a whole number")
	}
	if err := s.ValidateAmount(amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// CreateInvoice emits a provider invoice for the active goal. No ledger
// write happens here; the pledge is recorded only on completion.
func (s *PaymentService) CreateInvoice(ctx context.Context, chatID, userID, amount int64) error {
	goal, err := s.ledger.GetActiveGoal(ctx)
	if err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	if err := s.ValidateAmount(amount); err != nil {
		return err
	}

	inv := Invoice{
		Title:       goal.Title,
		Description: goal.Description,
		Payload:     BuildPayload(goal.ID, userID),
		Currency:    s.cfg.Currency,
		Amount:      amount,
	}
	if err := s.emitter.EmitInvoice(ctx, chatID, inv); err != nil {
		return domain.NewTransient("emit invoice", err)
	}

	logger.Info(ctx, "service.payments", "invoice.created",
		slog.Int64("goal_id", goal.ID),
		slog.Int64("user_id", userID),
		slog.Int64("amount", amount),
		slog.String("currency", s.cfg.Currency),
	)
	return nil
}

// AuthorizePreCheckout answers the provider's synchronous gate. It approves
// iff an active goal still exists; it does not re-check the amount bound or
// match the goal against the invoice payload.
func (s *PaymentService) AuthorizePreCheckout(ctx context.Context) error {
	if _, err := s.ledger.GetActiveGoal(ctx); err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.NewNotFound("fundraising is not accepting donations right now")
		}
		return fmt.Errorf("pre-checkout: %w", err)
	}
	return nil
}

// CompletePaymentInput carries a provider completion notice.
type CompletePaymentInput struct {
	ChargeID      string
	Amount        int64
	Currency      string
	UserID        int64
	PayloadGoalID int64
}

// CompletePayment records a confirmed payment exactly once. A redelivered
// notice with a known charge id reports success without writing. The pledge
// credits the goal active at completion time; a payload mismatch is logged
// for auditing.
func (s *PaymentService) CompletePayment(ctx context.Context, in CompletePaymentInput) (*domain.Pledge, bool, error) {
	if existing, err := s.ledger.FindPledgeByChargeID(ctx, in.ChargeID); err == nil {
		logger.Info(ctx, "service.payments", "payment.duplicate",
			slog.String("charge_id", in.ChargeID),
			slog.Int64("pledge_id", existing.ID),
		)
		return existing, true, nil
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return nil, false, fmt.Errorf("complete payment: %w", err)
	}

	goal, err := s.ledger.GetActiveGoal(ctx)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			logger.Error(ctx, "service.payments", "payment.orphaned",
				slog.String("charge_id", in.ChargeID),
				slog.Int64("amount", in.Amount),
			)
			return nil, false, domain.NewNotFound("no active goal for completed payment %s", in.ChargeID)
		}
		return nil, false, fmt.Errorf("complete payment: %w", err)
	}
	if in.PayloadGoalID != 0 && in.PayloadGoalID != goal.ID {
		logger.Warn(ctx, "service.payments", "payment.goal_mismatch",
			slog.String("charge_id", in.ChargeID),
			slog.Int64("goal_id", goal.ID),
			slog.Int64("payload", in.PayloadGoalID),
		)
	}

	// Runs to completion or fails outright, never partially commits.
	pledge, err := s.ledger.RecordCompletedPayment(context.WithoutCancel(ctx), &domain.Pledge{
		UserID:   in.UserID,
		GoalID:   goal.ID,
		Amount:   in.Amount,
		Currency: in.Currency,
		ChargeID: in.ChargeID,
		Status:   domain.PledgeStatusCompleted,
	})
	if err != nil {
		if domain.IsKind(err, domain.KindDuplicate) {
			// Lost the race against a concurrent redelivery.
			if existing, lookupErr := s.ledger.FindPledgeByChargeID(ctx, in.ChargeID); lookupErr == nil {
				return existing, true, nil
			}
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("complete payment: %w", err)
	}

	logger.Info(ctx, "service.payments", "payment.completed",
		slog.String("charge_id", in.ChargeID),
		slog.Int64("pledge_id", pledge.ID),
		slog.Int64("goal_id", pledge.GoalID),
		slog.Int64("amount", pledge.Amount),
		slog.String("currency", pledge.Currency),
	)
	return pledge, false, nil
}

// BuildPayload encodes goal, user, and a timestamp into the invoice payload.
// The timestamp is a uniqueness hint only; it never deduplicates anything.
func BuildPayload(goalID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", goalID, userID, time.Now().UnixNano())
}

// ParsePayload extracts the goal id from an invoice payload. Malformed
// payloads yield zero; completion never depends on the payload.
func ParsePayload(payload string) int64 {
	parts := strings.SplitN(payload, ":", 3)
	if len(parts) < 1 {
		return 0
	}
	goalID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0
	}
	return goalID
}
