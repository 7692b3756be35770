// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

// Package metrics provides Prometheus instrumentation for PulseTrack.
//
// All collectors are registered through promauto at package load; the /metrics
// endpoint exposes them in Prometheus text format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Auth Metrics
	AuthVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_verifications_total",
			Help: "Total number of credential verification attempts",
		},
		[]string{"result"}, // "ok", "missing", "invalid", "expired"
	)

	// Record Store Metrics
	StoreMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_mutations_total",
			Help: "Total number of record mutations",
		},
		[]string{"kind", "action", "result"}, // result: "ok", "conflict", "not_found", "error"
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of record store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "create", "list", "update", "delete", "aggregate"
	)

	// NATS Event Metrics
	NATSMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_published_total",
			Help: "Total number of change events published to NATS",
		},
	)

	NATSMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_consumed_total",
			Help: "Total number of change events consumed from NATS",
		},
	)

	NATSMessagesParseFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_parse_failed_total",
			Help: "Total number of change events that failed to parse",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_dropped_total",
			Help: "Total number of WebSocket messages dropped (slow client)",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordAuthVerification records a credential verification outcome.
func RecordAuthVerification(result string) {
	AuthVerifications.WithLabelValues(result).Inc()
}

// RecordStoreMutation records a record mutation outcome.
func RecordStoreMutation(kind, action, result string) {
	StoreMutations.WithLabelValues(kind, action, result).Inc()
}

// RecordStoreOperation records the duration of a store operation.
func RecordStoreOperation(operation string, duration time.Duration) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordNATSPublish records a change event published to NATS.
func RecordNATSPublish() {
	NATSMessagesPublished.Inc()
}

// RecordNATSConsume records a change event consumed from NATS.
func RecordNATSConsume() {
	NATSMessagesConsumed.Inc()
}

// RecordNATSParseFailed records a change event that failed to parse.
func RecordNATSParseFailed() {
	NATSMessagesParseFailed.Inc()
}

// RecordWSConnection tracks WebSocket connect/disconnect.
func RecordWSConnection(connected bool) {
	if connected {
		WSConnections.Inc()
	} else {
		WSConnections.Dec()
	}
}

// RecordWSError records a WebSocket error by type.
func RecordWSError(errorType string) {
	WSErrors.WithLabelValues(errorType).Inc()
}

// SetCircuitBreakerState updates the state gauge for a named breaker.
func SetCircuitBreakerState(name string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
}
