// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

package events

import (
	"fmt"
	"time"
)

// ServerConfig configures the embedded NATS JetStream server.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns embedded server defaults suitable for a
// single-instance deployment.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "./data/nats",
		JetStreamMaxMem:   64 * 1024 * 1024,
		JetStreamMaxStore: 1024 * 1024 * 1024,
	}
}

// StreamConfig configures the JetStream stream that carries change events.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// DefaultStreamConfig returns the stream settings for record change events.
// Change events are ephemeral fanout material, so retention is short.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name:            StreamName,
		Subjects:        []string{TopicRoot + ".>"},
		MaxAge:          10 * time.Minute,
		MaxBytes:        64 * 1024 * 1024,
		MaxMsgs:         100_000,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// Validate checks stream settings for internal consistency.
func (c StreamConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("stream name required")
	}
	if len(c.Subjects) == 0 {
		return fmt.Errorf("stream requires at least one subject")
	}
	if c.DuplicateWindow > c.MaxAge && c.MaxAge > 0 {
		return fmt.Errorf("duplicate window %v exceeds max age %v", c.DuplicateWindow, c.MaxAge)
	}
	return nil
}

// PublisherConfig configures the change event publisher.
type PublisherConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool
}

// DefaultPublisherConfig returns publisher defaults with reconnection and
// JetStream message-id deduplication enabled.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024,
		EnableTrackMsgID: true,
	}
}

// SubscriberConfig configures a change event subscriber.
type SubscriberConfig struct {
	URL              string
	StreamName       string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	MaxReconnects    int
	ReconnectWait    time.Duration
	MaxDeliver       int
	MaxAckPending    int
	AckWaitTimeout   time.Duration
	CloseTimeout     time.Duration
}

// DefaultSubscriberConfig returns subscriber defaults bound to the change
// event stream. Capture feeds are deliberately non-durable: a restarted
// process only cares about mutations from then on.
func DefaultSubscriberConfig(url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		StreamName:       StreamName,
		SubscribersCount: 1,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		MaxDeliver:       1,
		MaxAckPending:    1024,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     10 * time.Second,
	}
}

// CircuitBreakerConfig configures publish-path circuit breaking.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultCircuitBreakerConfig returns breaker settings for the publish path.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             "nats-publish",
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 5,
	}
}
