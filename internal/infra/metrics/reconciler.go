package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(reconcileTotal)
}

var reconcileTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "payment_reconcile_total",
		Help: "Stale PENDING transactions settled by the reconciler, by outcome.",
	},
	[]string{"outcome"},
)

func IncReconcile(outcome string) {
	reconcileTotal.WithLabelValues(norm(outcome)).Inc()
}
