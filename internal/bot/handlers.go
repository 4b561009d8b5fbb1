package bot

import (
	"context"

	"github.com/m3rciful/fundbot/core/logger"
	"github.com/m3rciful/fundbot/core/metrics"
	"github.com/m3rciful/fundbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/fundbot/core/telegram/helpers"
	"github.com/m3rciful/fundbot/core/telegram/middleware"
	"github.com/m3rciful/fundbot/internal/domain"
	"github.com/m3rciful/fundbot/internal/service"
	"github.com/m3rciful/fundbot/internal/state"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

func (a *App) isAdmin(userID int64) bool {
	return a.cfg.Core.Telegram.AdminID != 0 && userID == a.cfg.Core.Telegram.AdminID
}

// upsertUser records the sender lazily on the first observed update.
func (a *App) upsertUser(ctx context.Context, sender *tele.User) (*domain.User, error) {
	if sender == nil {
		return nil, domain.NewValidation("update carries no sender")
	}
	return a.repo.GetOrCreateUser(ctx, sender.ID, sender.Username, sender.FirstName, sender.LastName, a.isAdmin(sender.ID))
}

// replyForError maps an error kind to the user-facing message.
func (a *App) replyForError(err error) string {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return msgAmountInvalid(a.cfg.Payments.MinAmount, a.cfg.Payments.MaxAmount)
	case domain.KindNotFound:
		return msgNoActiveGoal
	default:
		return msgGenericError
	}
}

// --- commands ---

func (a *App) handleStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if _, err := a.upsertUser(ctx, c.Sender()); err != nil {
		logger.Warn(ctx, "bot", "start.upsert_failed",
			slog.String("err", err.Error()),
		)
	}
	return tghelpers.SendMD(c, msgWelcome, mainKeyboard())
}

func (a *App) handleDonate(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if _, err := a.goals.ActiveGoal(ctx); err != nil {
		return tghelpers.SendText(c, a.replyForError(err))
	}
	return tghelpers.SendMD(c, msgChooseAmount, donateKeyboard(a.cfg.Payments.Presets, a.cfg.Payments.Currency))
}

func (a *App) handleStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	stats, err := a.stats.ActiveGoalStats(ctx)
	if err != nil {
		return tghelpers.SendText(c, a.replyForError(err))
	}
	return tghelpers.SendMD(c, msgStats(stats))
}

func (a *App) handleNewGoal(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	a.goals.StartCreation(ctx, sender.ID, c.Chat().ID)
	return tghelpers.SendText(c, msgCreationTitle)
}

// requireAdmin gates h behind the configured admin id. Users flagged as admin
// in storage pass as well.
func (a *App) requireAdmin(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID: a.cfg.Core.Telegram.AdminID,
		OnReject: func(c tele.Context) error {
			ctx := tghelpers.BuildContext(c)
			if a.repo != nil {
				if user, err := tghelpers.CurrentUser[*domain.User](ctx, a.repo, c.Sender().ID); err == nil && user != nil && user.IsAdmin {
					return h(c)
				}
			}
			return tghelpers.SendText(c, msgAdminOnly)
		},
	})(h)
}

func (a *App) handleCancel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if a.goals.CreationInProgress(sender.ID) {
		a.goals.CancelCreation(ctx, sender.ID)
		return tghelpers.SendText(c, msgCreationCancelled)
	}
	if a.amountWait.IsWaiting(sender.ID, c.Chat().ID) {
		a.amountWait.Clear(ctx, sender.ID)
		return tghelpers.SendText(c, msgCancelled)
	}
	return tghelpers.SendText(c, msgNothingToCancel)
}

// --- callbacks ---

func (a *App) handleCallback(c tele.Context) error {
	_ = c.Respond()

	key := callbacks.CallbackKey(c)
	if h, ok := a.registry.GetCallback(key); ok {
		return h(c)
	}
	return a.registry.CallbackNotFound()(c)
}

func (a *App) handlePresetCallback(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	amount, err := callbacks.PayloadInt64(c)
	if err != nil {
		return tghelpers.SendText(c, msgGenericError)
	}
	if err := a.payments.CreateInvoice(ctx, c.Chat().ID, c.Sender().ID, amount); err != nil {
		_ = tghelpers.SendText(c, a.replyForError(err))
		return err
	}
	return nil
}

func (a *App) handleCustomCallback(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	a.amountWait.Set(ctx, c.Sender().ID, c.Chat().ID)
	return tghelpers.SendText(c, msgEnterAmount)
}

// handleStatsCallback edits the keyboard message in place where possible.
func (a *App) handleStatsCallback(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	stats, err := a.stats.ActiveGoalStats(ctx)
	if err != nil {
		return tghelpers.SendText(c, a.replyForError(err))
	}
	return tghelpers.EditOrSendMD(c, msgStats(stats))
}

// --- conversation text ---

// handleCreationText advances the admin's goal-creation conversation by one
// step.
func (a *App) handleCreationText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	text := c.Text()
	if text == "/cancel" {
		return a.handleCancel(c)
	}

	switch a.goals.CreationStep(userID) {
	case state.StepTitle:
		if err := a.goals.SetTitle(ctx, userID, text); err != nil {
			_ = tghelpers.SendText(c, err.Error()+" "+msgCreationCancelled)
			return err
		}
		return tghelpers.SendText(c, msgCreationDesc)
	case state.StepDescription:
		if err := a.goals.SetDescription(ctx, userID, text); err != nil {
			_ = tghelpers.SendText(c, err.Error()+" "+msgCreationCancelled)
			return err
		}
		return tghelpers.SendText(c, msgCreationAmount)
	case state.StepAmount:
		goal, err := a.goals.FinalizeCreation(ctx, userID, text)
		if err != nil {
			if domain.IsKind(err, domain.KindValidation) {
				_ = tghelpers.SendText(c, err.Error()+" "+msgCreationCancelled)
			} else {
				_ = tghelpers.SendText(c, msgGenericError)
			}
			return err
		}
		return tghelpers.SendMD(c, msgGoalCreated(goal), mainKeyboard())
	default:
		return nil
	}
}

// handleAmountText consumes the armed amount-wait state. The state is
// cleared before validation: an invalid amount does not keep the user stuck
// in amount entry.
func (a *App) handleAmountText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if c.Text() == "/cancel" {
		return a.handleCancel(c)
	}
	sender := c.Sender()
	a.amountWait.Clear(ctx, sender.ID)

	amount, err := a.payments.ParseAmount(c.Text())
	if err != nil {
		return tghelpers.SendText(c, a.replyForError(err))
	}
	if err := a.payments.CreateInvoice(ctx, c.Chat().ID, sender.ID, amount); err != nil {
		_ = tghelpers.SendText(c, a.replyForError(err))
		return err
	}
	return nil
}

// handleCommandText routes slash commands and reply-keyboard labels.
func (a *App) handleCommandText(c tele.Context) error {
	text := c.Text()
	switch text {
	case btnDonate:
		return a.handleDonate(c)
	case btnStats:
		return a.handleStats(c)
	}

	if _, cmd, ok := a.registry.LookupCommand(text); ok && cmd.Handler != nil {
		h := cmd.Handler
		if cmd.AdminOnly {
			h = a.requireAdmin(h)
		}
		return h(c)
	}
	if fb := a.registry.TextFallback(); fb != nil {
		return fb(c)
	}
	return tghelpers.SendText(c, msgUnknownInput)
}

// --- payments ---

// handlePreCheckout answers the provider gate synchronously. It must not go
// through the async sender; Telegram voids the payment if the answer is
// late.
func (a *App) handlePreCheckout(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if err := a.payments.AuthorizePreCheckout(ctx); err != nil {
		reason := msgPreCheckoutFail
		if !domain.IsKind(err, domain.KindNotFound) {
			reason = msgGenericError
		}
		logger.Warn(ctx, "bot", "pre_checkout.rejected",
			slog.String("err", err.Error()),
		)
		return c.Accept(reason)
	}
	return c.Accept()
}

// handlePayment records a completed payment exactly once and cleans up the
// stale invoice message.
func (a *App) handlePayment(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	payment := c.Message().Payment
	if payment == nil {
		return nil
	}

	user, err := a.upsertUser(ctx, c.Sender())
	if err != nil {
		metrics.PaymentsCompleted.WithLabelValues("failed").Inc()
		_ = tghelpers.SendText(c, msgGenericError)
		return err
	}

	chargeID := payment.ProviderChargeID
	if chargeID == "" {
		chargeID = payment.TelegramChargeID
	}

	pledge, duplicate, err := a.payments.CompletePayment(ctx, service.CompletePaymentInput{
		ChargeID:      chargeID,
		Amount:        int64(payment.Total / minorUnitsPerMajor),
		Currency:      payment.Currency,
		UserID:        user.ID,
		PayloadGoalID: service.ParsePayload(payment.Payload),
	})
	if err != nil {
		metrics.PaymentsCompleted.WithLabelValues("failed").Inc()
		_ = tghelpers.SendText(c, msgGenericError)
		return err
	}

	if duplicate {
		metrics.PaymentsCompleted.WithLabelValues("duplicate").Inc()
		return nil
	}
	metrics.PaymentsCompleted.WithLabelValues("recorded").Inc()

	chatID := c.Chat().ID
	if msgID, ok := a.emitter.TakeInvoiceMessage(chatID); ok {
		if err := tghelpers.DeleteMessage(c, c.Bot(), chatID, msgID); err != nil {
			logger.Warn(ctx, "bot", "invoice.delete_failed",
				slog.String("err", err.Error()),
			)
		}
	}
	return tghelpers.SendText(c, msgThankYou(pledge.Amount, pledge.Currency))
}
