// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

package records

import (
	"testing"

	"github.com/pulsetrack/pulsetrack/internal/schema"
)

func TestCreateSchemaMood(t *testing.T) {
	t.Parallel()

	s := CreateSchema(KindMood, testNow)

	// Batch semantics: out-of-range level and oversized notes are both
	// reported in one pass.
	long := make([]byte, 501)
	for i := range long {
		long[i] = 'x'
	}
	errs := schema.Validate(s, map[string]any{
		"date":  "2026-08-29",
		"level": float64(9),
		"notes": string(long),
	})
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}

	errs = schema.Validate(s, map[string]any{"level": float64(3)})
	if len(errs) != 1 || errs[0].Message != "date is required" {
		t.Fatalf("expected date requirement, got %v", errs)
	}
}

func TestCreateSchemaSleepOmitsDate(t *testing.T) {
	t.Parallel()

	// Sleep dates default server-side, so the schema does not require one.
	errs := schema.Validate(CreateSchema(KindSleep, testNow), map[string]any{
		"hours":   7.5,
		"quality": "average",
	})
	if len(errs) != 0 {
		t.Fatalf("expected clean payload, got %v", errs)
	}
}

func TestUpdateSchemaAllOptional(t *testing.T) {
	t.Parallel()

	for _, kind := range Kinds {
		if errs := schema.Validate(UpdateSchema(kind, testNow), map[string]any{}); len(errs) != 0 {
			t.Fatalf("%s: empty patch should validate, got %v", kind, errs)
		}
	}

	// Rules other than required still apply.
	errs := schema.Validate(UpdateSchema(KindWorkout, testNow), map[string]any{
		"duration": float64(500),
	})
	if len(errs) != 1 || errs[0].Message != "duration cannot exceed 300" {
		t.Fatalf("expected bound violation, got %v", errs)
	}
}
