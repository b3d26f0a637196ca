package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(outboxPublishTotal, outboxPendingGauge)
}

var (
	outboxPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_total",
			Help: "Outbox relay publish attempts by result.",
		},
		[]string{"result"},
	)

	outboxPendingGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_batch_claimed",
			Help: "Size of the most recently claimed outbox batch.",
		},
	)
)

func IncOutboxPublish(result string) {
	outboxPublishTotal.WithLabelValues(norm(result)).Inc()
}

func SetOutboxClaimed(n int) {
	outboxPendingGauge.Set(float64(n))
}
