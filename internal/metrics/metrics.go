// Package metrics declares the Prometheus collectors the API exports.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts served requests.
	// Labels: method, route (chi pattern), status (HTTP code)
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storyforest",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	// HTTPDuration measures request latency.
	// Labels: method, route
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storyforest",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "route"})

	// NodeTransitions counts node status changes.
	// Labels: from, to ("" from means creation)
	NodeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storyforest",
		Subsystem: "nodes",
		Name:      "transitions_total",
		Help:      "Node lifecycle transitions",
	}, []string{"from", "to"})

	// LikeToggles counts like toggles.
	// Labels: action (liked, unliked)
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storyforest",
		Subsystem: "likes",
		Name:      "toggles_total",
		Help:      "Like toggles by outcome",
	}, []string{"action"})

	// NotificationsDropped counts best-effort notifications that were lost.
	// Labels: type, stage (publish, persist, decode)
	NotificationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storyforest",
		Subsystem: "notifications",
		Name:      "dropped_total",
		Help:      "Best-effort notifications that failed to persist",
	}, []string{"type", "stage"})

	// SearchIndexErrors counts failed search index updates.
	// Labels: op (upsert, delete)
	SearchIndexErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storyforest",
		Subsystem: "search",
		Name:      "index_errors_total",
		Help:      "Failed search index updates",
	}, []string{"op"})

	// RateLimited counts rejected mutating requests.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "storyforest",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-user rate limiter",
	})
)
