package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vigil_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Ingestion metrics
	ReadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_readings_total",
			Help: "Total number of sensor readings ingested",
		},
		[]string{"source", "kind", "status"}, // status: accepted, malformed
	)

	DocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_documents_total",
			Help: "Total number of documents observed per source",
		},
		[]string{"source", "result"}, // result: changed, unchanged
	)

	ObserverErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_observer_errors_total",
			Help: "Total number of observer callbacks that panicked during fan-out",
		},
		[]string{"source"},
	)

	PollErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_poll_errors_total",
			Help: "Total number of failed poll cycles",
		},
		[]string{"source"},
	)

	BrokerReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_broker_reconnects_total",
			Help: "Total number of broker reconnection attempts",
		},
	)

	// Alerting metrics
	AlertsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_alerts_fired_total",
			Help: "Total number of alerts that passed the cooldown gate",
		},
		[]string{"kind"},
	)

	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_alerts_suppressed_total",
			Help: "Total number of alerts suppressed by the cooldown gate",
		},
		[]string{"kind"},
	)

	// Dispatch metrics
	DispatchStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_dispatch_started_total",
			Help: "Total number of actions started by the dispatcher",
		},
	)

	DispatchSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_dispatch_skipped_total",
			Help: "Total number of actions dropped because one was in flight",
		},
	)

	DispatchFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_dispatch_failed_total",
			Help: "Total number of actions that returned an error",
		},
	)

	ActionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vigil_action_duration_seconds",
			Help:    "Time taken by a dispatched action",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// WebSocket metrics
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vigil_websocket_clients",
			Help: "Current number of connected websocket clients",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
