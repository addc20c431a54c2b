package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	requestsTotal          *prometheus.CounterVec
	requestLatencySeconds  *prometheus.HistogramVec
	dataOperationsTotal    *prometheus.CounterVec
	auditStreamEventsTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors for the
// personal data API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "personal_data_requests_total",
			Help: "Total number of personal data API requests served.",
		}, []string{"method", "route", "status"})

		requestLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "personal_data_request_latency_seconds",
			Help:    "Latency distribution for personal data API requests.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"method", "route"})

		dataOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "personal_data_operations_total",
			Help: "Outcome of personal data store operations by audit action.",
		}, []string{"action", "outcome"})

		auditStreamEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_stream_events_total",
			Help: "Audit entries published to the compliance event stream.",
		}, []string{"outcome"})

		prometheus.MustRegister(requestsTotal, requestLatencySeconds, dataOperationsTotal, auditStreamEventsTotal)
	})
}

// Requests exposes the request counter.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// RequestLatency exposes the request latency histogram.
func RequestLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return requestLatencySeconds
}

// DataOperations exposes the store operation counter.
func DataOperations() *prometheus.CounterVec {
	RegisterMetrics()
	return dataOperationsTotal
}

// AuditStreamEvents exposes the audit stream publish counter.
func AuditStreamEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return auditStreamEventsTotal
}
