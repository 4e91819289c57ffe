// Package metrics holds the Prometheus collectors shared by the skill. They
// are registered on the default registry so the HTTP server can expose them
// with promhttp.Handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Searches counts catalogue queries by kind (artist, album, ...) and
	// outcome (hit, miss, error).
	Searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spotify_skill",
		Name:      "searches_total",
		Help:      "Catalogue queries by kind and outcome.",
	}, []string{"kind", "outcome"})

	// ResolveDuration observes how long resolving a phrase to a URI took.
	ResolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spotify_skill",
		Name:      "resolve_duration_seconds",
		Help:      "Time taken to resolve a phrase to a playable URI.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	// TokenRefreshes counts access tokens obtained with the stored refresh
	// token.
	TokenRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spotify_skill",
		Name:      "token_refreshes_total",
		Help:      "Access tokens refreshed and persisted.",
	})
)

// Outcome labels for Searches.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)
