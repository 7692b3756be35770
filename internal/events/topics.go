// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

// Package events carries record change events over NATS JetStream via
// Watermill. The store publishes one event per committed mutation; the
// capture bridges subscribe per kind and hand events to the websocket hub.
//
// Topic scheme: records.{kind}.{uid}. Owner scoping lives in the topic
// itself, so a capture bridge can recover the owner without decoding the
// payload and delivery stays per-owner end to end.
package events

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/pulsetrack/pulsetrack/internal/records"
)

// StreamName is the JetStream stream holding all record change events.
const StreamName = "RECORDS"

// TopicRoot prefixes every change event subject.
const TopicRoot = "records"

// Topic returns the owner-scoped subject for a kind, e.g.
// "records.mood.user-1".
func Topic(kind records.Kind, uid string) string {
	return TopicRoot + "." + kind.String() + "." + uid
}

// KindWildcard returns the subject matching every owner's events of one
// kind, e.g. "records.mood.>".
func KindWildcard(kind records.Kind) string {
	return TopicRoot + "." + kind.String() + ".>"
}

// ParseTopic extracts the kind and owner from a change event subject.
func ParseTopic(topic string) (records.Kind, string, error) {
	parts := strings.SplitN(topic, ".", 3)
	if len(parts) != 3 || parts[0] != TopicRoot || parts[2] == "" {
		return "", "", fmt.Errorf("malformed change topic %q", topic)
	}
	kind, err := records.ParseKind(parts[1])
	if err != nil {
		return "", "", err
	}
	return kind, parts[2], nil
}

// EncodeChange serializes a change event for the wire.
func EncodeChange(ev records.ChangeEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode change event: %w", err)
	}
	return data, nil
}

// DecodeChange deserializes a change event from the wire. Data stays as
// decoded JSON (map or scalar); consumers forward it without reshaping.
func DecodeChange(payload []byte) (records.ChangeEvent, error) {
	var ev records.ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return records.ChangeEvent{}, fmt.Errorf("decode change event: %w", err)
	}
	if _, err := records.ParseKind(ev.Kind.String()); err != nil {
		return records.ChangeEvent{}, err
	}
	return ev, nil
}
