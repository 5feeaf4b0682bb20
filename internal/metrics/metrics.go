// Package metrics exposes Prometheus collectors for the status service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Proxy pool stages, in verification order.
const (
	ProxyStageDiscovered = "discovered"
	ProxyStageAlive      = "alive"
	ProxyStageValidated  = "validated"
)

var (
	fetchAttemptsTotal         *prometheus.CounterVec
	fetchAttemptDuration       *prometheus.HistogramVec
	invocationsTotal           *prometheus.CounterVec
	inflightInvocations        prometheus.Gauge
	proxyCandidatesTotal       *prometheus.CounterVec
	diagnosticsTotal           *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statusgate_fetch_attempts_total",
				Help: "Total fetch attempts, labeled by method and outcome.",
			},
			[]string{"method", "outcome"},
		)

		fetchAttemptDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "statusgate_fetch_attempt_duration_seconds",
				Help:    "Histogram of per-attempt latencies, labeled by method.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method"},
		)

		invocationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statusgate_invocations_total",
				Help: "Total pipeline invocations, labeled by result.",
			},
			[]string{"result"},
		)

		inflightInvocations = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "statusgate_inflight_invocations",
				Help: "Number of pipeline invocations currently running.",
			},
		)

		proxyCandidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statusgate_proxy_candidates_total",
				Help: "Proxy candidates seen per verification stage.",
			},
			[]string{"stage"},
		)

		diagnosticsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statusgate_diagnostics_deliveries_total",
				Help: "Diagnostics delivery attempts, labeled by result.",
			},
			[]string{"result"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAttempt records one fetch attempt.
func ObserveAttempt(method, outcome string, duration time.Duration) {
	fetchAttemptsTotal.WithLabelValues(method, outcome).Inc()
	fetchAttemptDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// ObserveInvocation increments the invocation counter for the given result.
func ObserveInvocation(result string) {
	invocationsTotal.WithLabelValues(result).Inc()
}

// IncInflightInvocations increments the in-flight invocations gauge.
func IncInflightInvocations() {
	inflightInvocations.Inc()
}

// DecInflightInvocations decrements the in-flight invocations gauge.
func DecInflightInvocations() {
	inflightInvocations.Dec()
}

// AddProxyCandidates records how many candidates reached a stage.
func AddProxyCandidates(stage string, count int) {
	if count > 0 {
		proxyCandidatesTotal.WithLabelValues(stage).Add(float64(count))
	}
}

// ObserveDiagnosticsDelivery increments the diagnostics delivery counter.
func ObserveDiagnosticsDelivery(result string) {
	diagnosticsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
