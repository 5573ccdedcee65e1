package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrisense_analyses_total",
			Help: "Total soil analyses by outcome",
		},
		[]string{"outcome"},
	)

	HealthScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nutrisense_health_score",
			Help:    "Distribution of computed soil health scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrisense_store_operations_total",
			Help: "Total record store operations",
		},
		[]string{"operation", "status"},
	)

	AICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrisense_ai_calls_total",
			Help: "Total recommendation provider calls",
		},
		[]string{"task", "status"},
	)

	AILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nutrisense_ai_latency_seconds",
			Help:    "Recommendation provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrisense_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "code"},
	)
)
