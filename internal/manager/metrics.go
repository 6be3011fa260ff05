package manager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	healthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcehub_health_checks_total",
		Help: "Health checks by resulting source status.",
	}, []string{"status"})

	aggregateRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcehub_aggregate_fetches_total",
		Help: "Fan-out fetches that reached the sources, by resource kind.",
	}, []string{"kind"})

	aggregateSourceErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcehub_aggregate_source_errors_total",
		Help: "Per-source failures inside aggregate queries, by resource kind.",
	}, []string{"kind"})

	healthCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sourcehub_health_check_duration_seconds",
		Help:    "Latency of a single source health probe.",
		Buckets: prometheus.DefBuckets,
	})
)
