// Package metrics defines the Prometheus collectors for the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kovers_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kovers_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kovers_users_registered_total",
			Help: "Total users registered with a password",
		},
	)

	GuestsJoined = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kovers_guests_joined_total",
			Help: "Total guest users created",
		},
	)

	MessagesPosted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kovers_messages_posted_total",
			Help: "Total messages posted",
		},
	)

	DMRoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kovers_dm_rooms_created_total",
			Help: "Total direct message rooms created",
		},
	)

	CallsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kovers_calls_started_total",
			Help: "Total calls started",
		},
		[]string{"type"}, // "voice" or "video"
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kovers_rate_limit_hits_total",
			Help: "Total requests rejected by the rate limiter",
		},
	)

	// Persistence metrics
	StoreFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kovers_store_flush_duration_seconds",
			Help:    "Duration of whole-file store flushes",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
	)

	StoreFlushErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kovers_store_flush_errors_total",
			Help: "Total failed store flushes",
		},
	)
)
