package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(webhookEventsTotal)
}

var webhookEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Inbound gateway webhook events by kind and outcome (applied/skipped/replayed/rejected).",
	},
	[]string{"kind", "outcome"},
)

func IncWebhookEvent(kind, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(kind), norm(outcome)).Inc()
}
