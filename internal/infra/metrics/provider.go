package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(providerCallDuration, providerCallsTotal) }

var (
	providerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "origami_call_duration_seconds",
			Help:    "Latency of credit provider calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
		[]string{"op", "result"},
	)

	providerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "origami_calls_total",
			Help: "Credit provider calls by operation and result (ok|http_error|transport_error).",
		},
		[]string{"op", "result"},
	)
)

func ObserveProviderCall(op, result string, d time.Duration) {
	providerCallsTotal.WithLabelValues(norm(op), norm(result)).Inc()
	providerCallDuration.WithLabelValues(norm(op), norm(result)).Observe(d.Seconds())
}
