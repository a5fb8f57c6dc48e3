// internal/webhook/metrics.go
package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var deliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "libraflow_webhook_deliveries_total",
		Help: "Webhook delivery attempts by event type and outcome.",
	},
	[]string{"event_type", "outcome"},
)
