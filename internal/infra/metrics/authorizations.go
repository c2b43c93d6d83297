package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		authorizationsTotal,
		authorizationReplaysTotal,
		confirmationsTotal,
		eligibilityChecksTotal,
	)
}

var (
	// path: sync|async|fixture|cancel
	authorizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorizations_total",
			Help: "Authorization records written, by resulting status and path.",
		},
		[]string{"status", "path"},
	)

	authorizationReplaysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_replays_total",
			Help: "Authorize calls answered from an existing record, by status.",
		},
		[]string{"status"},
	)

	// result: applied|duplicate|ignored_terminal
	confirmationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confirmations_total",
			Help: "Confirmation decisions received, by decision and result.",
		},
		[]string{"decision", "result"},
	)

	// result: eligible|not_eligible|error
	eligibilityChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_checks_total",
			Help: "Margin checks by result.",
		},
		[]string{"result"},
	)
)

func IncAuthorization(status, path string) {
	authorizationsTotal.WithLabelValues(norm(status), norm(path)).Inc()
}

func IncAuthorizationReplay(status string) {
	authorizationReplaysTotal.WithLabelValues(norm(status)).Inc()
}

func IncConfirmation(decision, result string) {
	confirmationsTotal.WithLabelValues(norm(decision), norm(result)).Inc()
}

func IncEligibilityCheck(result string) {
	eligibilityChecksTotal.WithLabelValues(norm(result)).Inc()
}
