package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_core_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vigil_core_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Alert pipeline metrics
	AlertsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_core_alerts_processed_total",
			Help: "Total number of alerts accepted by the pipeline",
		},
		[]string{"severity", "outcome"}, // sent / suppressed
	)

	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_core_alerts_suppressed_total",
			Help: "Total number of alerts gated before dispatch",
		},
		[]string{"reason"}, // silenced / rate_limited / filtered
	)

	ActiveAlerts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vigil_core_active_alerts",
			Help: "Number of alerts currently in the active set",
		},
		[]string{"severity"},
	)

	CorrelationsFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_core_correlations_found_total",
			Help: "Total number of correlation groups attached to alerts",
		},
		[]string{"rule"},
	)

	// Dispatch metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_core_notifications_sent_total",
			Help: "Total number of notifications dispatched",
		},
		[]string{"channel", "success"}, // true / false
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vigil_core_dispatch_duration_seconds",
			Help:    "Per-channel send duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		},
		[]string{"channel"},
	)

	// Escalation metrics
	EscalationsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_core_escalations_fired_total",
			Help: "Total number of escalation levels fired",
		},
		[]string{"severity", "level"},
	)

	EscalationsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_core_escalations_cancelled_total",
			Help: "Total number of pending escalations cancelled by ack/resolve",
		},
		[]string{"severity"},
	)

	// Store metrics
	CleanupRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_core_cleanup_runs_total",
			Help: "Total number of retention cleanup cycles",
		},
	)

	CleanupPruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_core_cleanup_pruned_total",
			Help: "Total number of entries dropped by retention cleanup",
		},
		[]string{"kind"}, // history / silence / resolved
	)

	// Streaming metrics
	ActiveWebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vigil_core_websocket_connections_active",
			Help: "Number of active lifecycle-event stream connections",
		},
	)
)
