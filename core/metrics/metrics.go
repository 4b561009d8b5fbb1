// Package metrics exposes Prometheus counters for the bot runtime and an
// optional exposition endpoint. Collectors are registered on the default
// registry so tests can read them back through promauto.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/fundbot/core/logger"
	"log/slog"
)

var (
	// UpdatesReceived counts inbound updates by shape.
	UpdatesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundbot_updates_received_total",
		Help: "Inbound Telegram updates by shape.",
	}, []string{"kind"})

	// HandlerOutcomes counts dispatched handler results.
	HandlerOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundbot_handler_outcomes_total",
		Help: "Dispatched handler results by handler name and outcome.",
	}, []string{"handler", "outcome"})

	// HandlerDuration observes handler latency.
	HandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fundbot_handler_duration_seconds",
		Help:    "Handler execution latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"handler"})

	// PaymentsCompleted counts completed payments, including duplicates
	// resolved as idempotent no-ops.
	PaymentsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundbot_payments_completed_total",
		Help: "Payment completions by result (recorded, duplicate, failed).",
	}, []string{"result"})
)

// Server wraps the exposition HTTP listener.
type Server struct {
	srv *http.Server
}

// StartServer begins serving /metrics on addr. It returns immediately; serve
// errors are logged, not fatal.
func StartServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s := &Server{srv: &http.Server{Addr: addr, Handler: mux}}
	go func() {
		logger.Info(context.Background(), "metrics", "listen", slog.String("listen", addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(context.Background(), "metrics", "serve.fail",
				slog.String("err", err.Error()),
			)
		}
	}()
	return s
}

// Stop shuts the exposition listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
