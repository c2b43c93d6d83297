package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(callbackDeliveriesTotal, scheduledTasksTotal, eventsPublishedTotal) }

var (
	// result: sent|error|skipped
	callbackDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_callback_deliveries_total",
			Help: "Gateway callback attempts by result.",
		},
		[]string{"result"},
	)

	// state: scheduled|ran|failed|dropped
	scheduledTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_tasks_total",
			Help: "Delayed tasks by lifecycle state.",
		},
		[]string{"state"},
	)

	// result: ok|error|dropped
	eventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_events_published_total",
			Help: "Status-change events published, by result.",
		},
		[]string{"result"},
	)
)

func IncCallbackDelivery(result string) {
	callbackDeliveriesTotal.WithLabelValues(norm(result)).Inc()
}

func IncScheduledTask(state string) {
	scheduledTasksTotal.WithLabelValues(norm(state)).Inc()
}

func IncEventPublished(result string) {
	eventsPublishedTotal.WithLabelValues(norm(result)).Inc()
}
