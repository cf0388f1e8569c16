package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Refund metrics
	RefundsTotal          *prometheus.CounterVec
	RefundAmount          *prometheus.HistogramVec
	RefundSessionsActive  prometheus.Gauge
	RefundUndosTotal      prometheus.Counter
	RefundValidationTotal *prometheus.CounterVec

	// Gateway metrics
	GatewayCallsTotal   *prometheus.CounterVec
	GatewayCallDuration *prometheus.HistogramVec
}

// New creates a Metrics instance with all metrics registered against the
// given registerer. Passing a fresh registry keeps tests isolated.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "refundsrv"
	}
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Refund metrics
		RefundsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "refund",
				Name:      "submissions_total",
				Help:      "Total number of refund submission attempts",
			},
			[]string{"method", "status"}, // status: success, failure
		),
		RefundAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "refund",
				Name:      "amount",
				Help:      "Refund amounts in major currency units",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
			},
			[]string{"currency"},
		),
		RefundSessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "refund",
				Name:      "sessions_active",
				Help:      "Number of active refund sessions",
			},
		),
		RefundUndosTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "refund",
				Name:      "undos_total",
				Help:      "Total number of refunds undone during the grace window",
			},
		),
		RefundValidationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "refund",
				Name:      "validations_total",
				Help:      "Total number of refund amount validations",
			},
			[]string{"result"}, // valid, too_high, too_low
		),

		// Gateway metrics
		GatewayCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "calls_total",
				Help:      "Total number of gateway refund calls",
			},
			[]string{"gateway", "status"},
		),
		GatewayCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "call_duration_seconds",
				Help:      "Gateway refund call duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"gateway"},
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := statusCodeToString(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRefund records a refund submission attempt.
func (m *Metrics) RecordRefund(method, status string) {
	m.RefundsTotal.WithLabelValues(method, status).Inc()
}

// RecordRefundAmount records a successfully issued refund amount.
func (m *Metrics) RecordRefundAmount(currency string, amount float64) {
	m.RefundAmount.WithLabelValues(currency).Observe(amount)
}

// RecordValidation records a refund amount validation result.
func (m *Metrics) RecordValidation(result string) {
	m.RefundValidationTotal.WithLabelValues(result).Inc()
}

// RecordGatewayCall records a gateway refund call.
func (m *Metrics) RecordGatewayCall(gateway, status string, duration time.Duration) {
	m.GatewayCallsTotal.WithLabelValues(gateway, status).Inc()
	m.GatewayCallDuration.WithLabelValues(gateway).Observe(duration.Seconds())
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
