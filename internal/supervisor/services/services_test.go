// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

// fakeHub records the context it was run with and blocks until cancellation.
type fakeHub struct {
	started atomic.Bool
}

func (h *fakeHub) RunWithContext(ctx context.Context) error {
	h.started.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func TestHubService(t *testing.T) {
	hub := &fakeHub{}
	svc := NewHubService(hub)

	if svc.String() != "websocket-hub" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(time.Second)
	for !hub.started.Load() {
		select {
		case <-deadline:
			t.Fatal("hub never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

// fakeServer implements HTTPServer with controllable behavior.
type fakeServer struct {
	listenErr error
	closed    chan struct{}
	shutdowns atomic.Int32
}

func newFakeServer(listenErr error) *fakeServer {
	return &fakeServer{listenErr: listenErr, closed: make(chan struct{})}
}

func (s *fakeServer) ListenAndServe() error {
	if s.listenErr != nil {
		return s.listenErr
	}
	<-s.closed
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(_ context.Context) error {
	s.shutdowns.Add(1)
	close(s.closed)
	return nil
}

func TestHTTPService_GracefulShutdown(t *testing.T) {
	server := newFakeServer(nil)
	svc := NewHTTPService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if server.shutdowns.Load() != 1 {
		t.Errorf("shutdowns = %d, want 1", server.shutdowns.Load())
	}
}

func TestHTTPService_ListenFailure(t *testing.T) {
	listenErr := errors.New("address in use")
	svc := NewHTTPService(newFakeServer(listenErr), time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, listenErr) {
		t.Errorf("Serve() error = %v, want wrapped %v", err, listenErr)
	}
}

func TestHTTPService_DefaultTimeout(t *testing.T) {
	svc := NewHTTPService(newFakeServer(nil), 0)
	if svc.shutdownTimeout != 10*time.Second {
		t.Errorf("shutdownTimeout = %v, want 10s default", svc.shutdownTimeout)
	}
}
