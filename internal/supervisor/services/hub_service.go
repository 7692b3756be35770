// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

// Package services wraps PulseTrack's long-lived components as suture
// services.
package services

import (
	"context"
)

// ContextHub matches *websocket.Hub's RunWithContext method, keeping this
// package free of a websocket import.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// HubService runs the websocket hub under supervision. The hub's
// RunWithContext already follows the suture.Service pattern; this wrapper
// only adds a name for event logging.
type HubService struct {
	hub  ContextHub
	name string
}

// NewHubService creates a hub service wrapper.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{
		hub:  hub,
		name: "websocket-hub",
	}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer for suture's event log.
func (s *HubService) String() string {
	return s.name
}
