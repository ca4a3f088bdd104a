// Package metrics holds the Prometheus collectors of the lending
// service and the /metrics handler that exposes them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LendingOperations counts lending operations by name and outcome
	// ("ok" or the error kind).
	LendingOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "library",
		Name:      "lending_operations_total",
		Help:      "Lending lifecycle operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	// OverdueMarked counts borrowings moved to OVERDUE by the sweep.
	OverdueMarked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "library",
		Name:      "borrowings_marked_overdue_total",
		Help:      "Borrowings moved to OVERDUE by the overdue sweep.",
	})

	// EventsPublished counts lending events handed to the broker by outcome.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "library",
		Name:      "lending_events_published_total",
		Help:      "Lending events published to the broker by outcome.",
	}, []string{"outcome"})

	// RateLimited counts requests rejected by the token bucket.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "library",
		Name:      "rate_limited_requests_total",
		Help:      "Requests rejected with 429 by route.",
	}, []string{"route"})

	// CacheLookups counts response cache lookups by result ("hit" or "miss").
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "library",
		Name:      "response_cache_lookups_total",
		Help:      "Response cache lookups by result.",
	}, []string{"result"})
)

// Handler returns the Prometheus /metrics handler.
func Handler() http.Handler { return promhttp.Handler() }
