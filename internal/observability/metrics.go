package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth attempt outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeUnknownEmail = "unknown_email"
	OutcomeBadPassword  = "bad_password"
	OutcomeConflict     = "conflict"
)

// Metrics collects Prometheus metrics for the gateway.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authAttempts    *prometheus.CounterVec
	txCreated       prometheus.Counter
	txApproved      prometheus.Counter
	authzDenied     *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP and domain metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "txgate_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "txgate_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	authAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "txgate_auth_attempts_total",
		Help: "Login and registration attempts by kind and outcome.",
	}, []string{"kind", "outcome"})
	txCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "txgate_transactions_created_total",
		Help: "Transactions recorded.",
	})
	txApproved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "txgate_transactions_approved_total",
		Help: "Transactions approved.",
	})
	denied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "txgate_authz_denied_total",
		Help: "Requests rejected for missing capabilities.",
	}, []string{"route"})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "txgate_permission_cache_lookups_total",
		Help: "Permission cache lookups by result.",
	}, []string{"result"})
	registry.MustRegister(requests, duration, authAttempts, txCreated, txApproved, denied, cacheLookups)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		authAttempts:    authAttempts,
		txCreated:       txCreated,
		txApproved:      txApproved,
		authzDenied:     denied,
		cacheLookups:    cacheLookups,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route.
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

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// AuthAttempt counts a login or register attempt.
func (m *Metrics) AuthAttempt(kind, outcome string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(kind, outcome).Inc()
}

// TransactionCreated counts a recorded transaction.
func (m *Metrics) TransactionCreated() {
	if m == nil {
		return
	}
	m.txCreated.Inc()
}

// TransactionApproved counts an approval.
func (m *Metrics) TransactionApproved() {
	if m == nil {
		return
	}
	m.txApproved.Inc()
}

// AuthzDenied counts a 403 issued by the permission gate.
func (m *Metrics) AuthzDenied(r *http.Request) {
	if m == nil {
		return
	}
	m.authzDenied.WithLabelValues(routePattern(r)).Inc()
}

// CacheLookup counts a permission cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
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
