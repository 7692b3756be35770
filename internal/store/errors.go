// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

package store

import "errors"

var (
	// ErrConflict reports a uniqueness violation: the owner already has a
	// record for the same day (and workout type). Both the advisory
	// pre-check and a lost commit race surface this same error.
	ErrConflict = errors.New("record already exists for this date")

	// ErrNotFound reports that no record matches the given id and owner.
	// An ownership mismatch is indistinguishable from nonexistence.
	ErrNotFound = errors.New("record not found")
)
