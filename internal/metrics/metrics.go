// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reelsync_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Sessions
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reelsync_active_sessions",
			Help: "Number of live app sessions",
		},
	)

	SessionsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelsync_sessions_reaped_total",
			Help: "Sessions closed after exceeding the idle timeout",
		},
	)

	AuthTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_auth_transitions_total",
			Help: "Authentication state transitions by target state",
		},
		[]string{"state"},
	)

	// Notifications
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_notifications_created_total",
			Help: "Notifications added to a device list, by category",
		},
		[]string{"category"},
	)

	NotificationsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelsync_notifications_deduplicated_total",
			Help: "Notifications skipped because identical unread text was present",
		},
	)

	// Watchlist
	WatchlistOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_watchlist_operations_total",
			Help: "Watchlist operations by source kind, operation and outcome",
		},
		[]string{"source", "operation", "outcome"},
	)

	RemoteSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reelsync_remote_subscriptions",
			Help: "Open remote watchlist snapshot subscriptions",
		},
	)

	// Catalog
	CatalogCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelsync_catalog_cache_hits_total",
			Help: "Catalog responses served from cache",
		},
	)

	CatalogCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelsync_catalog_cache_misses_total",
			Help: "Catalog lookups that reached the upstream API",
		},
	)

	CatalogFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_catalog_fallbacks_total",
			Help: "Catalog requests answered by the built-in fallback",
		},
		[]string{"endpoint"},
	)

	// WebSocket
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reelsync_websocket_connections",
			Help: "Open WebSocket connections",
		},
	)
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// RecordHTTPRequest observes one completed request.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// RecordWatchlistOp counts a watchlist operation outcome.
func RecordWatchlistOp(source, op string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	WatchlistOperations.WithLabelValues(source, op, outcome).Inc()
}
