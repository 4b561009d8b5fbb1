package bot

import (
	"errors"
	"reflect"
	"runtime/debug"
	"strings"
	"time"

	"github.com/m3rciful/fundbot/core/logger"
	"github.com/m3rciful/fundbot/core/metrics"
	tghelpers "github.com/m3rciful/fundbot/core/telegram/helpers"
	"github.com/m3rciful/fundbot/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Binding pairs an update predicate with its handler.
type Binding struct {
	Name   string
	Match  func(upd tele.Update) bool
	Handle tele.HandlerFunc
}

// Dispatcher routes each inbound update to exactly one handler.
//
// Bindings are evaluated in registration order and the first matching one
// wins; later predicates are not evaluated at all. The order is part of the
// contract: conversation-state bindings must come before the generic text
// binding, or an armed FSM would never see its reply. Updates matching no
// binding are dropped with a diagnostic and never retried. A panicking
// handler is contained here and the update counts as delivered; redelivery
// is the transport's business, which is why payment completion is
// idempotent.
type Dispatcher struct {
	bindings []Binding
}

// NewDispatcher fixes the binding order for the lifetime of the bot.
func NewDispatcher(bindings ...Binding) *Dispatcher {
	kept := make([]Binding, 0, len(bindings))
	for _, b := range bindings {
		if b.Match == nil || b.Handle == nil {
			logger.Warn(logger.Background(), "bot", "dispatch.binding_skip",
				slog.String("handler", b.Name),
			)
			continue
		}
		kept = append(kept, b)
	}
	return &Dispatcher{bindings: kept}
}

// Dispatch delivers the update to the first matching binding.
func (d *Dispatcher) Dispatch(c tele.Context) error {
	upd := c.Update()
	for _, b := range d.bindings {
		if !b.Match(upd) {
			continue
		}
		d.invoke(c, b)
		return nil
	}

	ctx := tghelpers.BuildContext(c)
	logger.Warn(ctx, "bot", "dispatch.drop",
		slog.String("status", "skip"),
		slog.Int("update_id", upd.ID),
		slog.String("kind", middleware.UpdateKind(upd)),
	)
	metrics.HandlerOutcomes.WithLabelValues("none", "drop").Inc()
	return nil
}

// invoke runs the handler with panic containment and emits the summary line.
func (d *Dispatcher) invoke(c tele.Context, b Binding) {
	start := time.Now()
	name := normalizeHandlerName(b.Name)
	ctx := tghelpers.WithHandler(c, name)

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ctx, "bot", "dispatch.panic",
					slog.String("handler", name),
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		err = b.Handle(c)
	}()

	msgs, kb := middleware.GetCounters(c)
	status, outcome := "ok", "ok"
	if err != nil {
		status, outcome = "fail", "fail"
	}

	duration := logger.RoundMS(time.Since(start))
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", name),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", duration.Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
			slog.String("cause", name),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)

	metrics.HandlerOutcomes.WithLabelValues(name, outcome).Inc()
	metrics.HandlerDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var c interface{ Code() string }
	if errors.As(err, &c) {
		code := strings.TrimSpace(c.Code())
		if code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil {
		return strings.ToUpper(strings.ReplaceAll(t.Name(), " ", "_"))
	}
	return "UNKNOWN_ERROR"
}
