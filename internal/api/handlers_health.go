// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

package api

import (
	"net/http"
	"time"
)

// healthStatus is the payload for health endpoints.
type healthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Clients   int       `json:"websocket_clients"`
	Detail    string    `json:"detail,omitempty"`
}

// SetReadyCheck installs the readiness probe run by /health/ready. Wired at
// startup, before the server begins accepting requests.
func (h *Handler) SetReadyCheck(fn func() error) {
	h.ready = fn
}

// HealthLive handles GET /health/live: process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(healthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Clients:   h.hub.GetClientCount(),
	})
}

// HealthReady handles GET /health/ready: dependencies are reachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.ready != nil {
		if err := h.ready(); err != nil {
			rw.writeJSON(http.StatusServiceUnavailable, APIResponse{
				Success: false,
				Data: healthStatus{
					Status:    "degraded",
					Timestamp: time.Now().UTC(),
					Clients:   h.hub.GetClientCount(),
					Detail:    err.Error(),
				},
			})
			return
		}
	}

	rw.Success(healthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Clients:   h.hub.GetClientCount(),
	})
}
