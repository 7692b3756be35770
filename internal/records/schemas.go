// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

package records

import (
	"time"

	"github.com/pulsetrack/pulsetrack/internal/schema"
)

// CreateSchema returns the payload schema for creating a record of the given
// kind. Schemas are built per call so the future-date bound tracks the
// current clock.
func CreateSchema(kind Kind, now time.Time) schema.Schema {
	switch kind {
	case KindSleep:
		return schema.Schema{
			"date":    {Type: schema.TypeDate, MaxDate: schema.Date(now)},
			"hours":   {Required: true, Type: schema.TypeNumber, Min: schema.Float(0), Max: schema.Float(24)},
			"quality": {Required: true, Type: schema.TypeString, Enum: SleepQualities},
		}
	case KindMood:
		return schema.Schema{
			"date":  {Required: true, Type: schema.TypeDate, MaxDate: schema.Date(now)},
			"level": {Required: true, Type: schema.TypeNumber, Min: schema.Float(1), Max: schema.Float(5)},
			"notes": {Type: schema.TypeString, MaxLength: 500},
			"tags":  {Type: schema.TypeArray, Items: &schema.ItemRules{Type: schema.TypeString, Enum: MoodTags}},
		}
	default:
		return schema.Schema{
			"date":            {Type: schema.TypeDate, MaxDate: schema.Date(now)},
			"duration":        {Required: true, Type: schema.TypeNumber, Min: schema.Float(1), Max: schema.Float(300)},
			"type":            {Required: true, Type: schema.TypeString, Enum: WorkoutTypes},
			"custom_type":     {Type: schema.TypeString, MaxLength: 50},
			"intensity":       {Type: schema.TypeString, Enum: WorkoutIntensities},
			"calories_burned": {Type: schema.TypeNumber, Min: schema.Float(0)},
			"notes":           {Type: schema.TypeString, MaxLength: 500},
			"exercises":       {Type: schema.TypeArray},
		}
	}
}

// UpdateSchema returns the payload schema for a partial update. Every field
// is optional; the rules that do apply are the same as on create.
func UpdateSchema(kind Kind, now time.Time) schema.Schema {
	s := CreateSchema(kind, now)
	for field, rules := range s {
		rules.Required = false
		s[field] = rules
	}
	return s
}
