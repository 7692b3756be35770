// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

// Package schema implements a declarative, transport-independent validation
// engine for record payloads.
//
// A Schema maps field names to rule sets. Validate interprets the schema
// against a decoded JSON payload and returns every violation at once (batch
// semantics, not fail-fast):
//
//	errs := schema.Validate(schema.Schema{
//	    "level": {Required: true, Type: schema.TypeNumber, Min: schema.Float(1), Max: schema.Float(5)},
//	}, payload)
//
// An empty result means the payload may proceed; a non-empty result rejects
// the whole request atomically.
package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FieldType is the declared type of a schema field.
type FieldType string

// Supported field types.
const (
	TypeDate   FieldType = "date"
	TypeNumber FieldType = "number"
	TypeString FieldType = "string"
	TypeArray  FieldType = "array"
)

// ItemRules constrains the elements of an array field.
type ItemRules struct {
	// Type, if set, is checked against every element.
	Type FieldType

	// Enum, if set, is the allowed value set for every element.
	Enum []string
}

// Rules is the rule set for a single field.
type Rules struct {
	// Required rejects empty values (missing, nil, blank-after-trim string).
	Required bool

	// Type selects the validation dispatch for non-empty values.
	Type FieldType

	// Min and Max are inclusive bounds for number fields.
	Min *float64
	Max *float64

	// MaxLength is the maximum rune count for string fields (0 = unlimited).
	MaxLength int

	// Enum is the allowed value set for string fields.
	Enum []string

	// MaxDate is the latest allowed instant for date fields.
	MaxDate *time.Time

	// Items constrains elements of array fields.
	Items *ItemRules
}

// Schema maps field names to their rule sets.
type Schema map[string]Rules

// FieldError describes a single validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Float returns a pointer to v, for use in Rules literals.
func Float(v float64) *float64 {
	return &v
}

// Date returns a pointer to t, for use in Rules literals.
func Date(t time.Time) *time.Time {
	return &t
}

// dateLayouts are the accepted date formats, tried in order.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// ParseDate parses a payload value into a calendar instant.
// Accepts RFC3339 timestamps and plain YYYY-MM-DD dates.
func ParseDate(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Validate interprets the schema against the payload and returns all
// accumulated field errors. Fields are evaluated independently; a required
// field that is empty produces exactly one error and no further checks for
// that field, and an empty optional field is skipped entirely.
func Validate(s Schema, payload map[string]any) []FieldError {
	var errs []FieldError

	// Deterministic error order regardless of map iteration.
	fields := make([]string, 0, len(s))
	for field := range s {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		rules := s[field]
		value, present := payload[field]

		if isEmpty(value, present) {
			if rules.Required {
				errs = append(errs, FieldError{field, field + " is required"})
			}
			continue
		}

		switch rules.Type {
		case TypeDate:
			errs = append(errs, checkDate(field, value, rules)...)
		case TypeNumber:
			errs = append(errs, checkNumber(field, value, rules)...)
		case TypeString:
			errs = append(errs, checkString(field, value, rules)...)
		case TypeArray:
			errs = append(errs, checkArray(field, value, rules)...)
		}
	}

	return errs
}

// isEmpty classifies a payload value as empty: missing, nil, or a string
// that is blank after trimming.
func isEmpty(value any, present bool) bool {
	if !present || value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func checkDate(field string, value any, rules Rules) []FieldError {
	t, ok := ParseDate(value)
	if !ok {
		return []FieldError{{field, field + " must be a valid date"}}
	}
	if rules.MaxDate != nil && t.After(*rules.MaxDate) {
		return []FieldError{{field, field + " cannot be in the future"}}
	}
	return nil
}

func checkNumber(field string, value any, rules Rules) []FieldError {
	n, ok := asNumber(value)
	if !ok {
		return []FieldError{{field, field + " must be a number"}}
	}

	var errs []FieldError
	if rules.Min != nil && n < *rules.Min {
		errs = append(errs, FieldError{field, field + " must be at least " + formatNumber(*rules.Min)})
	}
	if rules.Max != nil && n > *rules.Max {
		errs = append(errs, FieldError{field, field + " cannot exceed " + formatNumber(*rules.Max)})
	}
	return errs
}

func checkString(field string, value any, rules Rules) []FieldError {
	s, ok := value.(string)
	if !ok {
		return []FieldError{{field, field + " must be a string"}}
	}

	var errs []FieldError
	if rules.MaxLength > 0 && len([]rune(s)) > rules.MaxLength {
		errs = append(errs, FieldError{field, fmt.Sprintf("%s cannot exceed %d characters", field, rules.MaxLength)})
	}
	if len(rules.Enum) > 0 && !contains(rules.Enum, s) {
		errs = append(errs, FieldError{field, field + " must be one of: " + strings.Join(rules.Enum, ", ")})
	}
	return errs
}

func checkArray(field string, value any, rules Rules) []FieldError {
	items, ok := value.([]any)
	if !ok {
		return []FieldError{{field, field + " must be an array"}}
	}
	if rules.Items == nil {
		return nil
	}

	var errs []FieldError
	for i, item := range items {
		if rules.Items.Type == TypeString {
			if _, ok := item.(string); !ok {
				errs = append(errs, FieldError{field, fmt.Sprintf("Item %d in %s must be a string", i+1, field)})
			}
		}
		if len(rules.Items.Enum) > 0 {
			s, _ := item.(string)
			if !contains(rules.Items.Enum, s) {
				errs = append(errs, FieldError{field, fmt.Sprintf("Invalid value '%v' in %s", item, field)})
			}
		}
	}
	return errs
}

// asNumber accepts the numeric types a decoded JSON payload or direct Go
// caller can produce.
func asNumber(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json2Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// json2Number matches goccy/go-json and encoding/json Number values without
// importing either package here.
type json2Number interface {
	Float64() (float64, error)
	String() string
}

// formatNumber renders a bound without trailing zeros (5, not 5.000000).
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
