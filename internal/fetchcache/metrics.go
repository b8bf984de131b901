package fetchcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ensureTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchcache_ensure_total",
			Help: "Ensure calls by outcome (fresh, dispatched, joined).",
		},
		[]string{"resource", "outcome"},
	)

	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchcache_fetches_total",
			Help: "Completed resource fetches by result.",
		},
		[]string{"resource", "result"},
	)

	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetchcache_fetch_duration_seconds",
			Help:    "Duration of resource fetches.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)
)
