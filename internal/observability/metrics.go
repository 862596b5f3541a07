// Package observability exposes Prometheus metrics for the HTTP surface and
// the ledger lifecycle.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects application metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	transactionsPosted    prometheus.Counter
	transactionsCancelled prometheus.Counter
	integrityViolations   prometheus.Counter
	budgetAlerts          prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "veranda_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "veranda_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	posted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "veranda_ledger_transactions_posted_total",
		Help: "Ledger transactions moved to POSTED.",
	})
	cancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "veranda_ledger_transactions_cancelled_total",
		Help: "Ledger transactions moved to CANCELLED.",
	})
	violations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "veranda_ledger_integrity_violations_total",
		Help: "Posted transactions found unbalanced by the integrity scan.",
	})
	alerts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "veranda_budget_alerts_total",
		Help: "Budget execution rows breaching the variance threshold.",
	})
	registry.MustRegister(requests, duration, posted, cancelled, violations, alerts)
	return &Metrics{
		registry:              registry,
		handler:               promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:         requests,
		requestDuration:       duration,
		transactionsPosted:    posted,
		transactionsCancelled: cancelled,
		integrityViolations:   violations,
		budgetAlerts:          alerts,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// TransactionPosted increments the posted counter.
func (m *Metrics) TransactionPosted() {
	if m != nil {
		m.transactionsPosted.Inc()
	}
}

// TransactionCancelled increments the cancelled counter.
func (m *Metrics) TransactionCancelled() {
	if m != nil {
		m.transactionsCancelled.Inc()
	}
}

// IntegrityViolation increments the unbalanced-transaction counter.
func (m *Metrics) IntegrityViolation() {
	if m != nil {
		m.integrityViolations.Inc()
	}
}

// BudgetAlert increments the variance-breach counter.
func (m *Metrics) BudgetAlert() {
	if m != nil {
		m.budgetAlerts.Inc()
	}
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
