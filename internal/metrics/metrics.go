// Package metrics defines Prometheus instrumentation for the monitoring loop
// and serves it over HTTP together with a liveness endpoint.
package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	CyclesTotal    prometheus.Counter
	CycleErrors    prometheus.Counter
	QuotesTotal    prometheus.Counter
	QuoteErrors    prometheus.Counter
	SignalsTotal   *prometheus.CounterVec // labels: action
	ApprovalsTotal *prometheus.CounterVec // labels: outcome
	TradesTotal    prometheus.Counter
	TradeErrors    prometheus.Counter

	QuoteDur    prometheus.Histogram
	ApprovalDur prometheus.Histogram

	MonitoringActive prometheus.Gauge
}

// New registers all bot metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers all bot metrics on reg. Tests pass a fresh registry to
// avoid duplicate-registration panics across cases.
func NewWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dexwatch_cycles_total",
			Help: "Completed monitoring cycles",
		}),
		CycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dexwatch_cycle_errors_total",
			Help: "Cycles aborted by an error (each triggers the error backoff)",
		}),
		QuotesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dexwatch_quotes_total",
			Help: "Price quotes fetched from the venue",
		}),
		QuoteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dexwatch_quote_errors_total",
			Help: "Quote failures degraded to a zero price",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexwatch_signals_total",
			Help: "Trade signals fired (by action)",
		}, []string{"action"}),
		ApprovalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexwatch_approvals_total",
			Help: "Approval outcomes (by outcome)",
		}, []string{"outcome"}),
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dexwatch_trades_total",
			Help: "Successfully executed trades",
		}),
		TradeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dexwatch_trade_errors_total",
			Help: "Trade executions rejected by the venue",
		}),
		QuoteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dexwatch_quote_duration_seconds",
			Help:    "Venue quote latency",
			Buckets: prometheus.DefBuckets,
		}),
		ApprovalDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dexwatch_approval_duration_seconds",
			Help:    "Wall-clock time from proposal post to resolution",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		MonitoringActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dexwatch_monitoring_active",
			Help: "1 while the monitoring loop is running",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal, m.CycleErrors,
		m.QuotesTotal, m.QuoteErrors,
		m.SignalsTotal, m.ApprovalsTotal,
		m.TradesTotal, m.TradeErrors,
		m.QuoteDur, m.ApprovalDur,
		m.MonitoringActive,
	)
	return m
}

// Health tracks coarse liveness state for /healthz.
type Health struct {
	startedAt  time.Time
	monitoring atomic.Bool
}

// NewHealth creates a Health tracker.
func NewHealth() *Health {
	return &Health{startedAt: time.Now().UTC()}
}

// SetMonitoring records whether the loop is active.
func (h *Health) SetMonitoring(v bool) {
	h.monitoring.Store(v)
}

func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":     "ok",
		"monitoring": h.monitoring.Load(),
		"uptime_s":   int(time.Since(h.startedAt).Seconds()),
	})
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *Health) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
