package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	payrollCloses  *prometheus.CounterVec
	invoiceCloses  *prometheus.CounterVec
	ledgerRows     prometheus.Counter
	unbalancedDocs prometheus.Gauge
}

// NewMetrics initialises the registry and the base metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gaja_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gaja_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	payrollCloses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gaja_payroll_closes_total",
		Help: "Payroll month close attempts by outcome.",
	}, []string{"outcome"})
	invoiceCloses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gaja_invoice_closes_total",
		Help: "Invoice close attempts by outcome.",
	}, []string{"outcome"})
	ledgerRows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gaja_ledger_rows_posted_total",
		Help: "General ledger rows appended by close operations.",
	})
	unbalanced := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gaja_ledger_unbalanced_documents",
		Help: "Unbalanced documents found by the last integrity scan.",
	})
	registry.MustRegister(requests, duration, payrollCloses, invoiceCloses, ledgerRows, unbalanced)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		payrollCloses:   payrollCloses,
		invoiceCloses:   invoiceCloses,
		ledgerRows:      ledgerRows,
		unbalancedDocs:  unbalanced,
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

// Middleware records request counts and latencies per route.
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

// ObservePayrollClose counts one payroll close attempt and the ledger rows
// it produced.
func (m *Metrics) ObservePayrollClose(outcome string, glRows int) {
	if m == nil {
		return
	}
	m.payrollCloses.WithLabelValues(outcome).Inc()
	m.ledgerRows.Add(float64(glRows))
}

// ObserveInvoiceClose counts one invoice close attempt and the ledger rows
// it produced.
func (m *Metrics) ObserveInvoiceClose(outcome string, glRows int) {
	if m == nil {
		return
	}
	m.invoiceCloses.WithLabelValues(outcome).Inc()
	m.ledgerRows.Add(float64(glRows))
}

// SetUnbalancedDocuments records the result of the nightly integrity scan.
func (m *Metrics) SetUnbalancedDocuments(n int) {
	if m == nil {
		return
	}
	m.unbalancedDocs.Set(float64(n))
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
