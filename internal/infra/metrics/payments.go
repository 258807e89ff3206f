package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		intentRequestsTotal,
		stalePendingSeen,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by gateway and status (pending/succeeded/failed).",
		},
		[]string{"gateway", "status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "Total minor-unit value of successful payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	// result: ok|config_error|upstream_error|error
	intentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intent_requests_total",
			Help: "Create-intent calls by gateway and result.",
		},
		[]string{"gateway", "result"},
	)

	stalePendingSeen = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_stale_pending_seen_total",
			Help: "Pending payments seen past the staleness cutoff by the reconciler.",
		},
		[]string{"gateway"},
	)
)

func IncPayment(gateway, status string) {
	paymentsTotal.WithLabelValues(norm(gateway), norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncIntentRequest(gateway, result string) {
	intentRequestsTotal.WithLabelValues(norm(gateway), norm(result)).Inc()
}

func IncStalePending(gateway string) {
	stalePendingSeen.WithLabelValues(norm(gateway)).Inc()
}
