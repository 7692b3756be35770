// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

package events

import (
	"testing"

	"github.com/pulsetrack/pulsetrack/internal/records"
)

func TestTopicScheme(t *testing.T) {
	t.Parallel()

	if got := Topic(records.KindMood, "user-1"); got != "records.mood.user-1" {
		t.Fatalf("Topic = %q", got)
	}
	if got := KindWildcard(records.KindSleep); got != "records.sleep.>" {
		t.Fatalf("KindWildcard = %q", got)
	}
}

func TestParseTopic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		topic    string
		wantKind records.Kind
		wantUID  string
		wantErr  bool
	}{
		{"valid", "records.workout.user-9", records.KindWorkout, "user-9", false},
		{"uid with dots", "records.mood.tenant.user-1", records.KindMood, "tenant.user-1", false},
		{"wrong root", "events.mood.user-1", "", "", true},
		{"unknown kind", "records.steps.user-1", "", "", true},
		{"missing uid", "records.mood.", "", "", true},
		{"too short", "records.mood", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			kind, uid, err := ParseTopic(tt.topic)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.topic)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTopic(%q): %v", tt.topic, err)
			}
			if kind != tt.wantKind || uid != tt.wantUID {
				t.Fatalf("got (%v, %q), want (%v, %q)", kind, uid, tt.wantKind, tt.wantUID)
			}
		})
	}
}

func TestChangeEventRoundTrip(t *testing.T) {
	t.Parallel()

	ev := records.ChangeEvent{
		Kind:   records.KindMood,
		Action: records.ActionDelete,
		UID:    "user-1",
		Data:   records.DeleteData{ID: "abc"},
	}

	data, err := EncodeChange(ev)
	if err != nil {
		t.Fatalf("EncodeChange: %v", err)
	}
	got, err := DecodeChange(data)
	if err != nil {
		t.Fatalf("DecodeChange: %v", err)
	}
	if got.Kind != ev.Kind || got.Action != ev.Action || got.UID != ev.UID {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.EventName() != "moodUpdate" {
		t.Fatalf("EventName = %q", got.EventName())
	}
}

func TestDecodeChangeRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	if _, err := DecodeChange([]byte(`{"kind":"steps","action":"create","uid":"u"}`)); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, err := DecodeChange([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestStreamConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultStreamConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cfg.Name = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty name")
	}

	cfg = DefaultStreamConfig()
	cfg.DuplicateWindow = cfg.MaxAge * 2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for duplicate window beyond max age")
	}
}
