package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Document store metrics
var (
	// DocumentsSaved counts successful saves by document kind
	DocumentsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebase_documents_saved_total",
			Help: "Total named documents saved by kind",
		},
		[]string{"kind"},
	)

	// DocumentsDeleted counts successful deletes by document kind
	DocumentsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebase_documents_deleted_total",
			Help: "Total named documents deleted by kind",
		},
		[]string{"kind"},
	)
)

// Gateway metrics
var (
	// ForwardedEvents counts relay attempts by event (allow-listed name or "other") and outcome (ok/rejected/error)
	ForwardedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebase_forwarded_events_total",
			Help: "Total events relayed to websocket subscribers by event and status",
		},
		[]string{"event", "status"},
	)
)

// Websocket metrics
var (
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rebase_websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)

	// WebsocketDropped counts clients dropped because their send buffer was full
	WebsocketDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rebase_websocket_dropped_clients_total",
			Help: "Total websocket clients dropped for lagging behind",
		},
	)
)

// HTTP metrics
var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebase_http_requests_total",
			Help: "Total HTTP requests by method and status code",
		},
		[]string{"method", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rebase_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method"},
	)
)
