package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	collectionMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_collection_mutations_total",
			Help: "Persisted cart and wishlist mutations.",
		},
		[]string{"kind", "op"},
	)

	storeOpens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_store_opens_total",
			Help: "Cart and wishlist loads from the state repository, by result.",
		},
		[]string{"kind", "result"},
	)
)
