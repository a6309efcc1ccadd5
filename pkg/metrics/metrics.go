// Package metrics holds the prometheus collectors shared by the session
// engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registry every collector below is registered on.
var Registry = prometheus.NewRegistry()

var (
	// Reconciles counts reconcile runs by trigger topic and whether the run
	// was the deferred retry.
	Reconciles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cachemap",
		Name:      "reconciles_total",
		Help:      "Reconcile runs by trigger topic.",
	}, []string{"topic", "deferred"})

	// StaleListings counts listing responses dropped by generation fencing.
	StaleListings = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cachemap",
		Name:      "stale_listings_total",
		Help:      "Listing responses discarded because a newer fetch superseded them.",
	})

	// Mutations counts tag mutations by operation and outcome.
	Mutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cachemap",
		Name:      "tag_mutations_total",
		Help:      "Tag mutations by operation and outcome.",
	}, []string{"op", "outcome"})

	// PendingMutations tracks optimistic writes not yet confirmed.
	PendingMutations = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cachemap",
		Name:      "tag_mutations_pending",
		Help:      "Optimistic tag writes awaiting backend confirmation.",
	})
)

func init() {
	Registry.MustRegister(Reconciles, StaleListings, Mutations, PendingMutations)
}

// Handler serves the registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
