package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_events_published_total",
			Help: "Events written to Kafka, by topic and result",
		},
		[]string{"topic", "result"},
	)

	eventPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_event_publish_duration_seconds",
			Help:    "Time spent writing one event to Kafka",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"topic"},
	)

	eventSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storefront_event_size_bytes",
			Help:    "Encoded size of published events",
			Buckets: prometheus.ExponentialBuckets(256, 4, 6),
		},
	)
)
