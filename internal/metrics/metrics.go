// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

// Package metrics provides Prometheus instrumentation for Crossview:
// API request latency and throughput, WebSocket connection and broadcast
// counts, chat volume, and simulation tick performance.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
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
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// WebSocket metrics
	WSConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connected_clients",
			Help: "Current number of connected WebSocket clients",
		},
	)

	WSBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_broadcasts_total",
			Help: "Total number of messages broadcast to WebSocket clients",
		},
		[]string{"type"},
	)

	WSDroppedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_dropped_messages_total",
			Help: "Total number of broadcast messages dropped due to full channels",
		},
		[]string{"type"},
	)

	// Chat metrics
	ChatMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total number of chat messages relayed",
		},
	)

	ChatMessagesRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_rejected_total",
			Help: "Total number of chat messages rejected before relay",
		},
		[]string{"reason"}, // "rate_limited", "empty", "too_long"
	)

	// Emergency metrics
	EmergencyEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emergency_events_total",
			Help: "Total number of emergency events triggered",
		},
		[]string{"kind", "source"}, // kind normalized in RecordEmergency; source is "websocket" or "api"
	)

	// Simulation metrics
	SimTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sim_tick_duration_seconds",
			Help:    "Duration of one simulation tick in seconds",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
		},
	)

	SimVehicles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sim_vehicles",
			Help: "Current vehicle count per approach direction",
		},
		[]string{"direction"},
	)

	SimMeanSpeedKPH = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sim_mean_speed_kph",
			Help: "Mean vehicle speed across all approaches in km/h",
		},
	)
)

// RecordAPIRequest records metrics for a completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(active bool) {
	if active {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// SetConnectedClients updates the WebSocket client gauge.
func SetConnectedClients(n int) {
	WSConnectedClients.Set(float64(n))
}

// RecordBroadcast counts one accepted broadcast of the given message type.
func RecordBroadcast(messageType string) {
	WSBroadcastsTotal.WithLabelValues(messageType).Inc()
}

// RecordDroppedMessage counts one dropped broadcast of the given message type.
func RecordDroppedMessage(messageType string) {
	WSDroppedMessagesTotal.WithLabelValues(messageType).Inc()
}

// RecordChatMessage counts one relayed chat message.
func RecordChatMessage() {
	ChatMessagesTotal.Inc()
}

// RecordChatRejected counts one rejected chat message with the given reason.
func RecordChatRejected(reason string) {
	ChatMessagesRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordEmergency counts one emergency trigger.
// emergencyKindLabels is the closed set of kind label values. Client-supplied
// kinds outside this set are folded into "other" to keep label cardinality
// bounded on unauthenticated input.
var emergencyKindLabels = map[string]bool{
	"accident":    true,
	"breakdown":   true,
	"hazard":      true,
	"medical":     true,
	"unspecified": true,
}

func RecordEmergency(kind, source string) {
	kind = strings.ToLower(kind)
	if !emergencyKindLabels[kind] {
		kind = "other"
	}
	EmergencyEventsTotal.WithLabelValues(kind, source).Inc()
}

// ObserveTick records the duration of one simulation tick.
func ObserveTick(d time.Duration) {
	SimTickDuration.Observe(d.Seconds())
}

// SetDirectionVehicles updates the vehicle gauge for one direction.
func SetDirectionVehicles(direction string, count int) {
	SimVehicles.WithLabelValues(direction).Set(float64(count))
}

// SetMeanSpeed updates the mean speed gauge.
func SetMeanSpeed(kph float64) {
	SimMeanSpeedKPH.Set(kph)
}
