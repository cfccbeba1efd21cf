package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capsuled_deliveries_total",
			Help: "Capsule delivery attempts by outcome",
		},
		[]string{"outcome"}, // delivered|failed|skipped
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "capsuled_delivery_run_seconds",
			Help:    "Duration of delivery scheduler runs",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		DeliveriesTotal,
		RunDuration,
	)
}
