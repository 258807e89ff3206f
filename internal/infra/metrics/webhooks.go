package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookDeliveriesTotal,
		webhookSignatureFailures,
		webhookDuplicateDeliveries,
		webhookTerminalConflicts,
		webhookHandlerDuration,
	)
}

var (
	// result: processed|duplicate|unknown_payment|malformed|bad_signature|error
	webhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_deliveries_total",
			Help: "Webhook deliveries by gateway and processing result.",
		},
		[]string{"gateway", "result"},
	)

	webhookSignatureFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_signature_failures_total",
			Help: "Deliveries rejected by signature verification.",
		},
		[]string{"gateway"},
	)

	webhookDuplicateDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_duplicates_total",
			Help: "Deliveries short-circuited by the event-id dedup cache.",
		},
		[]string{"gateway"},
	)

	// A terminal row received a webhook asserting a different terminal status.
	// The delivery is dropped; this counter keeps the gap observable.
	webhookTerminalConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_terminal_conflicts_total",
			Help: "Conflicting terminal-status webhooks dropped after settlement.",
		},
		[]string{"gateway"},
	)

	webhookHandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_webhook_duration_seconds",
			Help:    "Duration of webhook handlers in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"gateway"},
	)
)

func IncWebhookDelivery(gateway, result string) {
	webhookDeliveriesTotal.WithLabelValues(norm(gateway), norm(result)).Inc()
}

func IncWebhookSignatureFailure(gateway string) {
	webhookSignatureFailures.WithLabelValues(norm(gateway)).Inc()
}

func IncWebhookDuplicate(gateway string) {
	webhookDuplicateDeliveries.WithLabelValues(norm(gateway)).Inc()
}

func IncWebhookTerminalConflict(gateway string) {
	webhookTerminalConflicts.WithLabelValues(norm(gateway)).Inc()
}

func ObserveWebhookDuration(gateway string, seconds float64) {
	webhookHandlerDuration.WithLabelValues(norm(gateway)).Observe(seconds)
}
