package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		transactionsTotal,
		revenueTotal,
	)
}

var (
	transactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_transactions_total",
			Help: "Ledger transactions by type and terminal status.",
		},
		[]string{"type", "status"},
	)

	revenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_revenue_total",
			Help: "The total monetary value of successful transactions, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func IncTransaction(typ, status string) {
	transactionsTotal.WithLabelValues(norm(typ), norm(status)).Inc()
}

func AddRevenue(currency string, amount int64) {
	revenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}
