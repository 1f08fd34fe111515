package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application, including the
// payroll and ledger counters the services report into.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	payrollGenerated prometheus.Counter
	payrollPaid      prometheus.Counter
	journalsPosted   *prometheus.CounterVec
	journalsRejected *prometheus.CounterVec
	jobsTotal        *prometheus.CounterVec
}

// NewMetrics initialises the registry and all application metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	payrollGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_payroll_entries_generated_total",
		Help: "Payroll entries created by generation runs.",
	})
	payrollPaid := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_payroll_entries_paid_total",
		Help: "Payroll entries transitioned to paid.",
	})
	journalsPosted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_ledger_journals_posted_total",
		Help: "Balanced journals posted, by reference type.",
	}, []string{"reference_type"})
	journalsRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_ledger_journals_rejected_total",
		Help: "Journal postings rejected before persistence, by reason.",
	}, []string{"reason"})
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_jobs_total",
		Help: "Background job executions by task and outcome.",
	}, []string{"task", "outcome"})
	registry.MustRegister(requests, duration, payrollGenerated, payrollPaid, journalsPosted, journalsRejected, jobs)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		payrollGenerated: payrollGenerated,
		payrollPaid:      payrollPaid,
		journalsPosted:   journalsPosted,
		journalsRejected: journalsRejected,
		jobsTotal:        jobs,
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

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// EntriesGenerated implements the payroll metrics port.
func (m *Metrics) EntriesGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.payrollGenerated.Add(float64(n))
}

// EntryPaid implements the payroll metrics port.
func (m *Metrics) EntryPaid() {
	if m == nil {
		return
	}
	m.payrollPaid.Inc()
}

// JournalPosted implements the ledger metrics port.
func (m *Metrics) JournalPosted(refType string, lines int) {
	if m == nil {
		return
	}
	m.journalsPosted.WithLabelValues(refType).Inc()
}

// JournalRejected implements the ledger metrics port.
func (m *Metrics) JournalRejected(reason string) {
	if m == nil {
		return
	}
	m.journalsRejected.WithLabelValues(reason).Inc()
}

// JobExecuted records a background task run.
func (m *Metrics) JobExecuted(task, outcome string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(task, outcome).Inc()
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
