// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

package api

import (
	"net/http"
	"time"
)

// HealthStatus describes the service state for the main health endpoint.
type HealthStatus struct {
	Status           string  `json:"status"`
	Version          string  `json:"version"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	SimulationSeq    uint64  `json:"simulation_seq"`
	ConnectedClients int     `json:"connected_clients"`
	ActiveSessions   int     `json:"active_sessions"`
}

// Health returns overall service health. The simulation sequence number
// doubles as a heartbeat: a stalled tick loop stops advancing it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()

	status := "healthy"
	clients := 0
	if h.hub == nil {
		status = "degraded"
	} else {
		clients = h.hub.GetClientCount()
	}

	WriteSuccess(w, r, HealthStatus{
		Status:           status,
		Version:          "1.0.0",
		UptimeSeconds:    time.Since(h.startTime).Seconds(),
		SimulationSeq:    snap.Seq,
		ConnectedClients: clients,
		ActiveSessions:   h.registry.Count(),
	})
}

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// The service is ready once the hub is accepting clients.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("hub not initialized")
		return
	}

	WriteSuccess(w, r, map[string]interface{}{
		"ready": true,
	})
}
