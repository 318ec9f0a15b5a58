package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts handled requests by route, method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acctreq_http_requests_total",
		Help: "Total number of HTTP requests handled",
	}, []string{"path", "method", "status"})

	// HTTPRequestDuration records handler latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "acctreq_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method"})

	// HTTPErrorsTotal counts error responses by domain error code.
	HTTPErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acctreq_http_errors_total",
		Help: "Total number of error responses by code",
	}, []string{"path", "method", "code"})

	// IntakeTotal counts inbound emails by reconciliation outcome.
	IntakeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acctreq_intake_total",
		Help: "Inbound emails processed by outcome",
	}, []string{"outcome"})

	// AuditWriteFailures counts audit entries that could not be stored.
	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acctreq_audit_write_failures_total",
		Help: "Audit entries dropped because the store rejected them",
	})

	// OutboundEmailTotal counts staff replies by delivery result.
	OutboundEmailTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acctreq_outbound_email_total",
		Help: "Outbound emails by result",
	}, []string{"result"})
)

// Metrics records request level counters. A nil *Metrics is a no-op.
type Metrics struct{}

// NewMetrics returns the metrics recorder backed by the default registry.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	HTTPRequestsTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	HTTPErrorsTotal.WithLabelValues(path, method, code).Inc()
}

// RecordIntake counts one reconciled inbound email.
func (m *Metrics) RecordIntake(outcome string) {
	if m == nil {
		return
	}
	IntakeTotal.WithLabelValues(outcome).Inc()
}

// RecordAuditFailure counts one dropped audit entry.
func (m *Metrics) RecordAuditFailure() {
	if m == nil {
		return
	}
	AuditWriteFailures.Inc()
}

// RecordOutboundEmail counts one staff reply attempt.
func (m *Metrics) RecordOutboundEmail(ok bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	}
	OutboundEmailTotal.WithLabelValues(result).Inc()
}
