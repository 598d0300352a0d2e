package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planit_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	CheckoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planit_checkouts_total",
			Help: "Checkout attempts by flow and outcome",
		},
		[]string{"flow", "outcome"},
	)

	CapacityRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planit_capacity_rejections_total",
			Help: "Checkouts rejected because an instance was sold out",
		},
	)

	CapRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planit_purchase_cap_rejections_total",
			Help: "Checkouts rejected by the per-user purchase cap",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planit_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "planit_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planit_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planit_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
