package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(idempotencyTotal, idempotencyPurgedTotal, rateLimitedTotal) }

var (
	// result: miss|replay|conflict|stored
	idempotencyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idempotency_requests_total",
			Help: "Idempotency-Key lookups and stores by scope and result.",
		},
		[]string{"scope", "result"},
	)

	idempotencyPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "idempotency_entries_purged_total",
			Help: "Expired idempotency entries removed by the sweeper.",
		},
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by route.",
		},
		[]string{"route"},
	)
)

func IncIdempotency(scope, result string) {
	idempotencyTotal.WithLabelValues(norm(scope), norm(result)).Inc()
}

func AddIdempotencyPurged(n int64) {
	if n > 0 {
		idempotencyPurgedTotal.Add(float64(n))
	}
}

func IncRateLimited(route string) {
	rateLimitedTotal.WithLabelValues(norm(route)).Inc()
}
