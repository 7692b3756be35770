// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

package records

import "time"

// Action is the mutation that produced a change event.
type Action string

// Mutation actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ChangeEvent is the ephemeral notification derived from one committed
// mutation. It is constructed by the store, carried over the message bus,
// and delivered once to the owner's connected channels; it is never
// persisted.
//
// Data holds the full record on create and update, and only the record id
// on delete.
type ChangeEvent struct {
	Kind   Kind   `json:"kind"`
	Action Action `json:"action"`
	UID    string `json:"uid"`
	Data   any    `json:"data"`
}

// EventName returns the typed name clients receive, e.g. "sleepUpdate".
func (e ChangeEvent) EventName() string {
	return e.Kind.EventName()
}

// DeleteData is the payload of a delete event.
type DeleteData struct {
	ID string `json:"id"`
}

// Period is a trailing aggregation window.
type Period string

// Aggregation periods.
const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// ParsePeriod maps a query value to a period; unrecognized values fall back
// to a week rather than erroring.
func ParsePeriod(s string) Period {
	switch Period(s) {
	case PeriodWeek, PeriodMonth, PeriodYear:
		return Period(s)
	default:
		return PeriodWeek
	}
}

// Days returns the trailing window length in days.
func (p Period) Days() int {
	switch p {
	case PeriodMonth:
		return 30
	case PeriodYear:
		return 365
	default:
		return 7
	}
}

// Since returns the window's inclusive lower bound relative to now.
func (p Period) Since(now time.Time) time.Time {
	return now.Add(-time.Duration(p.Days()) * 24 * time.Hour)
}

// TrendPoint is one calendar-day bucket in a stats response.
type TrendPoint struct {
	Date    string  `json:"date"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Stats is the aggregate view of a record kind over a trailing period.
// Average is the mean of the per-day bucket means, not a pooled mean over
// raw entries; a day with one entry weighs the same as a day with five.
type Stats struct {
	Average float64      `json:"average"`
	Count   int          `json:"count"`
	Trend   []TrendPoint `json:"trend"`
}

// TypeSummary aggregates workouts of one type over a trailing period.
type TypeSummary struct {
	Type          string  `json:"type"`
	TotalDuration float64 `json:"total_duration"`
	Sessions      int     `json:"sessions"`
	AvgDuration   float64 `json:"avg_duration"`
}

// ListOptions filters and pages an owner's record listing.
type ListOptions struct {
	// StartDate and EndDate bound the listing inclusively when non-zero.
	StartDate time.Time
	EndDate   time.Time

	// Page is 1-based; values below 1 are treated as 1.
	Page int

	// Limit caps the page size; values below 1 fall back to DefaultLimit.
	Limit int
}

// DefaultLimit is the page size applied when a listing does not specify one.
const DefaultLimit = 30

// Normalize clamps paging values into their valid ranges.
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = DefaultLimit
	}
	return o
}
