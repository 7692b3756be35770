// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

package records

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, kind := range Kinds {
		if got, err := ParseKind(kind.String()); err != nil || got != kind {
			t.Fatalf("ParseKind(%q) = %v, %v", kind, got, err)
		}
	}
	if _, err := ParseKind("meditation"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestKindEventName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want string
	}{
		{KindSleep, "sleepUpdate"},
		{KindMood, "moodUpdate"},
		{KindWorkout, "workoutUpdate"},
	}
	for _, tt := range tests {
		if got := tt.kind.EventName(); got != tt.want {
			t.Fatalf("EventName(%s) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestBuildSleep(t *testing.T) {
	t.Parallel()

	rec, err := Build(KindSleep, "user-1", map[string]any{
		"hours":   7.5,
		"quality": "good",
	}, testNow)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	s, ok := rec.(*Sleep)
	if !ok {
		t.Fatalf("Build returned %T, want *Sleep", rec)
	}
	if s.ID == "" {
		t.Fatal("expected generated id")
	}
	if s.UID != "user-1" {
		t.Fatalf("uid = %q", s.UID)
	}
	if s.Hours != 7.5 || s.Quality != "good" {
		t.Fatalf("fields not applied: %+v", s)
	}
	// Date defaults to the mutation time when the payload omits it.
	if !s.Date.Equal(testNow) {
		t.Fatalf("date = %v, want %v", s.Date, testNow)
	}
	if !s.CreatedAt.Equal(testNow) || !s.UpdatedAt.Equal(testNow) {
		t.Fatalf("timestamps not set: %+v", s.RecordMeta)
	}
}

func TestBuildMoodRejectsFractionalLevel(t *testing.T) {
	t.Parallel()

	_, err := Build(KindMood, "user-1", map[string]any{
		"date":  "2026-08-29",
		"level": 3.5,
	}, testNow)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Message != "level must be an integer" {
		t.Fatalf("unexpected errors: %v", verr.Fields)
	}
}

func TestBuildWorkoutNormalizes(t *testing.T) {
	t.Parallel()

	rec, err := Build(KindWorkout, "user-1", map[string]any{
		"date":     "2026-08-29",
		"duration": float64(45),
		"type":     "  Running ",
	}, testNow)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	w := rec.(*Workout)
	if w.Type != "running" {
		t.Fatalf("type = %q, want lowercase trimmed", w.Type)
	}
	if w.Intensity != DefaultIntensity {
		t.Fatalf("intensity = %q, want default %q", w.Intensity, DefaultIntensity)
	}
}

func TestBuildWorkoutOtherRequiresCustomType(t *testing.T) {
	t.Parallel()

	_, err := Build(KindWorkout, "user-1", map[string]any{
		"date":     "2026-08-29",
		"duration": float64(30),
		"type":     "other",
	}, testNow)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Field != "custom_type" {
		t.Fatalf("unexpected errors: %v", verr.Fields)
	}
}

func TestBuildRejectsFutureDate(t *testing.T) {
	t.Parallel()

	_, err := Build(KindSleep, "user-1", map[string]any{
		"date":    "2027-01-01",
		"hours":   8.0,
		"quality": "good",
	}, testNow)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestPatchPreservesIdentity(t *testing.T) {
	t.Parallel()

	rec, err := Build(KindMood, "user-1", map[string]any{
		"date":  "2026-08-29",
		"level": float64(3),
		"notes": "steady",
	}, testNow)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	id := rec.Meta().ID

	later := testNow.Add(time.Hour)
	if err := Patch(rec, map[string]any{"level": float64(5)}, later); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	m := rec.(*Mood)
	if m.ID != id || m.UID != "user-1" {
		t.Fatalf("identity changed: %+v", m.RecordMeta)
	}
	if m.Level != 5 {
		t.Fatalf("level = %v, want 5", m.Level)
	}
	if m.Notes != "steady" {
		t.Fatalf("untouched field changed: %q", m.Notes)
	}
	if !m.CreatedAt.Equal(testNow) {
		t.Fatalf("created_at changed: %v", m.CreatedAt)
	}
	if !m.UpdatedAt.Equal(later) {
		t.Fatalf("updated_at = %v, want %v", m.UpdatedAt, later)
	}
}

func TestPatchRevalidates(t *testing.T) {
	t.Parallel()

	rec, err := Build(KindSleep, "user-1", map[string]any{
		"hours":   7.0,
		"quality": "good",
	}, testNow)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	err = Patch(rec, map[string]any{"hours": float64(30)}, testNow)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUniqueKey(t *testing.T) {
	t.Parallel()

	date := NewDate(time.Date(2026, 8, 29, 23, 50, 0, 0, time.UTC))

	sleep := &Sleep{RecordMeta: Meta{Date: date}}
	if got := sleep.UniqueKey(); got != "2026-08-29" {
		t.Fatalf("sleep key = %q", got)
	}

	// Workout keys include the type so two types may share a day.
	run := &Workout{RecordMeta: Meta{Date: date}, Type: "running"}
	yoga := &Workout{RecordMeta: Meta{Date: date}, Type: "yoga"}
	if run.UniqueKey() == yoga.UniqueKey() {
		t.Fatal("distinct types must not collide")
	}
	if got := run.UniqueKey(); got != "2026-08-29:running" {
		t.Fatalf("workout key = %q", got)
	}
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	rec, err := Build(KindWorkout, "user-1", map[string]any{
		"date":      "2026-08-29",
		"duration":  float64(60),
		"type":      "strength",
		"exercises": []any{map[string]any{"name": "squat", "sets": float64(5), "reps": float64(5)}},
	}, testNow)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(KindWorkout, data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	w := decoded.(*Workout)
	if w.ID != rec.Meta().ID || w.Duration != 60 || len(w.Exercises) != 1 {
		t.Fatalf("round trip lost data: %+v", w)
	}
	if w.Exercises[0].Sets == nil || *w.Exercises[0].Sets != 5 {
		t.Fatalf("exercise detail lost: %+v", w.Exercises[0])
	}
}

func TestDateUnmarshalLayouts(t *testing.T) {
	t.Parallel()

	var d Date
	if err := d.UnmarshalJSON([]byte(`"2026-08-29"`)); err != nil {
		t.Fatalf("plain date: %v", err)
	}
	if err := d.UnmarshalJSON([]byte(`"2026-08-29T08:30:00+02:00"`)); err != nil {
		t.Fatalf("rfc3339: %v", err)
	}
	if d.Location() != time.UTC {
		t.Fatal("dates must normalize to UTC")
	}
	if err := d.UnmarshalJSON([]byte(`"29/08/2026"`)); err == nil {
		t.Fatal("expected error for unknown layout")
	}
}

func TestParsePeriod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Period
		days int
	}{
		{"week", PeriodWeek, 7},
		{"month", PeriodMonth, 30},
		{"year", PeriodYear, 365},
		{"", PeriodWeek, 7},
		{"decade", PeriodWeek, 7},
	}
	for _, tt := range tests {
		p := ParsePeriod(tt.in)
		if p != tt.want || p.Days() != tt.days {
			t.Fatalf("ParsePeriod(%q) = %v (%d days), want %v (%d)", tt.in, p, p.Days(), tt.want, tt.days)
		}
	}
}

func TestListOptionsNormalize(t *testing.T) {
	t.Parallel()

	o := ListOptions{Page: 0, Limit: -5}.Normalize()
	if o.Page != 1 || o.Limit != DefaultLimit {
		t.Fatalf("normalized = %+v", o)
	}

	o = ListOptions{Page: 3, Limit: 10}.Normalize()
	if o.Page != 3 || o.Limit != 10 {
		t.Fatalf("valid options altered: %+v", o)
	}
}
