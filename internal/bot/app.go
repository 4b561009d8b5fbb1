package bot

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/fundbot/core/logger"
	coretelegram "github.com/m3rciful/fundbot/core/telegram"
	"github.com/m3rciful/fundbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/fundbot/core/telegram/helpers"
	"github.com/m3rciful/fundbot/internal/repository"
	"github.com/m3rciful/fundbot/internal/service"
	"github.com/m3rciful/fundbot/internal/state"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// App owns the bot's services, conversation state, and update routing.
type App struct {
	cfg *Config

	repo       *repository.Repository
	amountWait *state.AmountWaitStore
	goals      *service.GoalService
	payments   *service.PaymentService
	stats      *service.StatsService
	emitter    *invoiceEmitter

	registry   *coretelegram.Registry
	dispatcher *Dispatcher
}

// NewApp wires repositories, services, and routing for the given config.
func NewApp(cfg *Config, db *sqlx.DB) *App {
	a := &App{
		cfg:        cfg,
		repo:       repository.New(db),
		amountWait: state.NewAmountWaitStore(),
	}

	creation := state.NewGoalCreationStore()
	a.goals = service.NewGoalService(a.repo, creation)
	a.emitter = newInvoiceEmitter(nil, cfg.Payments.ProviderToken)
	a.payments = service.NewPaymentService(a.repo, a.emitter, cfg.PaymentConfig())
	a.stats = service.NewStatsService(a.repo)

	a.registry = a.buildRegistry()
	a.dispatcher = NewDispatcher(a.bindings()...)
	return a
}

func (a *App) buildRegistry() *coretelegram.Registry {
	reg := coretelegram.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Start the bot",
	})
	reg.RegisterCommand("/donate", commands.Command{
		Handler:     a.handleDonate,
		Description: "Donate to the current goal",
		Aliases:     []string{"pay"},
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.handleStats,
		Description: "Show fundraising progress",
		Aliases:     []string{"progress"},
	})
	reg.RegisterCommand("/newgoal", commands.Command{
		Handler:     a.handleNewGoal,
		Description: "Create a new fundraising goal",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.handleCancel,
		Description: "Cancel the current action",
	})

	_ = reg.RegisterCallback(cbDonatePreset, a.handlePresetCallback)
	_ = reg.RegisterCallback(cbDonateCustom, a.handleCustomCallback)
	_ = reg.RegisterCallback(cbShowStats, a.handleStatsCallback)

	reg.SetTextFallback(func(c tele.Context) error {
		return tghelpers.SendText(c, msgUnknownInput)
	})
	return reg
}

// bindings fixes the dispatch order. Payment shapes come first: they must
// never be shadowed by conversation state. The FSM bindings precede the
// generic text binding so an armed conversation consumes the next message.
func (a *App) bindings() []Binding {
	return []Binding{
		{
			Name: "pre_checkout",
			Match: func(upd tele.Update) bool {
				return upd.PreCheckoutQuery != nil
			},
			Handle: a.handlePreCheckout,
		},
		{
			Name: "payment",
			Match: func(upd tele.Update) bool {
				return upd.Message != nil && upd.Message.Payment != nil
			},
			Handle: a.handlePayment,
		},
		{
			Name: "callback",
			Match: func(upd tele.Update) bool {
				return upd.Callback != nil
			},
			Handle: a.handleCallback,
		},
		{
			Name: "goal_creation",
			Match: func(upd tele.Update) bool {
				return upd.Message != nil && upd.Message.Sender != nil &&
					a.goals.CreationInProgress(upd.Message.Sender.ID)
			},
			Handle: a.handleCreationText,
		},
		{
			Name: "amount_entry",
			Match: func(upd tele.Update) bool {
				return upd.Message != nil && upd.Message.Sender != nil &&
					a.amountWait.IsWaiting(upd.Message.Sender.ID, upd.Message.Chat.ID)
			},
			Handle: a.handleAmountText,
		},
		{
			Name: "text",
			Match: func(upd tele.Update) bool {
				return upd.Message != nil && upd.Message.Text != ""
			},
			Handle: a.handleCommandText,
		},
	}
}

// TelegramRunOptions assembles the bot runtime configuration.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	routes := []coretelegram.Route{
		{Endpoint: tele.OnText, Handler: a.dispatcher.Dispatch},
		{Endpoint: tele.OnCallback, Handler: a.dispatcher.Dispatch},
		{Endpoint: tele.OnCheckout, Handler: a.dispatcher.Dispatch},
		{Endpoint: tele.OnPayment, Handler: a.dispatcher.Dispatch},
	}

	return coretelegram.RunOptions{
		Config:      &a.cfg.Core,
		Registry:    a.registry,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.emitter.SetBot(rt.Bot)
			logger.TWire.Info("tg.wire",
				slog.String("event", "complete"),
				slog.Int("commands", len(a.registry.Commands())),
				slog.Int("callbacks", len(a.registry.ListCallbacks())),
			)
			return nil
		},
	}, nil
}
