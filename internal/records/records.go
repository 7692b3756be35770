// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

// Package records defines the wellness record kinds (sleep, mood, workout),
// their field constraints, and the change events derived from mutations.
//
// Field constraints exist in two layers on purpose: the declarative schemas
// in schemas.go gate incoming payloads at the API boundary, and each record's
// Validate method re-checks the same invariants before a write. The second
// layer catches anything that bypasses the HTTP path.
package records

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/pulsetrack/pulsetrack/internal/schema"
)

// Kind identifies one of the three record kinds.
type Kind string

// Record kinds.
const (
	KindSleep   Kind = "sleep"
	KindMood    Kind = "mood"
	KindWorkout Kind = "workout"
)

// Kinds lists every record kind, in fanout subscription order.
var Kinds = []Kind{KindSleep, KindMood, KindWorkout}

// ParseKind validates a kind string from a URL or topic segment.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindSleep, KindMood, KindWorkout:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown record kind %q", s)
	}
}

// String returns the kind as a plain string.
func (k Kind) String() string {
	return string(k)
}

// EventName returns the typed event name clients subscribe to, e.g.
// "moodUpdate" for mood records.
func (k Kind) EventName() string {
	return string(k) + "Update"
}

// Enumerations shared by the schemas and the struct-level validators.
var (
	SleepQualities     = []string{"good", "average", "poor"}
	MoodTags           = []string{"work", "family", "health", "social", "hobby"}
	WorkoutTypes       = []string{"cardio", "strength", "hiit", "yoga", "pilates", "cycling", "running", "swimming", "other"}
	WorkoutIntensities = []string{"low", "medium", "high"}
)

// WorkoutTypeOther requires a custom type label on the record.
const WorkoutTypeOther = "other"

// DefaultIntensity is applied when a workout payload omits intensity.
const DefaultIntensity = "medium"

// ValidationError carries the complete batch of field violations for a
// rejected payload. It is never truncated to the first failure.
type ValidationError struct {
	Fields []schema.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Date is a calendar instant that accepts both RFC3339 timestamps and plain
// YYYY-MM-DD values on the wire, and always marshals as RFC3339 UTC.
type Date struct {
	time.Time
}

// NewDate wraps t as a record date.
func NewDate(t time.Time) Date {
	return Date{t.UTC()}
}

// DayKey returns the UTC calendar-day bucket for the date, e.g. "2026-08-30".
func (d Date) DayKey() string {
	return d.UTC().Format("2006-01-02")
}

// UnmarshalJSON accepts RFC3339 timestamps and plain dates.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, ok := schema.ParseDate(s)
	if !ok {
		return fmt.Errorf("invalid date %q", s)
	}
	d.Time = t.UTC()
	return nil
}

// MarshalJSON renders the date as RFC3339 UTC.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.UTC().Format(time.RFC3339))
}

// Meta holds the fields common to every record kind.
type Meta struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	Date      Date      `json:"date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordMeta aliases Meta for embedding. The concrete kinds embed it under
// this name so the field does not collide with the Record interface's Meta
// accessor; JSON still flattens the embedded fields.
type RecordMeta = Meta

// Record is a single persisted wellness entry. Implementations are *Sleep,
// *Mood and *Workout.
type Record interface {
	// Meta exposes the common identity and timestamp fields.
	Meta() *Meta

	// Kind returns the record kind.
	Kind() Kind

	// UniqueKey returns the per-owner uniqueness component: the calendar
	// day, plus the workout type for workouts.
	UniqueKey() string

	// MetricValue returns the numeric field used for trend aggregation
	// (hours, mood level, workout duration).
	MetricValue() float64

	// Validate re-checks field invariants before a write. Returns a
	// *ValidationError on violation.
	Validate() error
}

// Sleep is one night's sleep log. One entry per owner per calendar day.
type Sleep struct {
	RecordMeta
	Hours   float64 `json:"hours"`
	Quality string  `json:"quality"`
}

func (s *Sleep) Meta() *Meta          { return &s.RecordMeta }
func (s *Sleep) Kind() Kind           { return KindSleep }
func (s *Sleep) UniqueKey() string    { return s.Date.DayKey() }
func (s *Sleep) MetricValue() float64 { return s.Hours }

func (s *Sleep) Validate() error {
	var errs []schema.FieldError
	errs = appendDateErrors(errs, s.Date)
	if s.Hours < 0 {
		errs = append(errs, schema.FieldError{Field: "hours", Message: "hours must be at least 0"})
	}
	if s.Hours > 24 {
		errs = append(errs, schema.FieldError{Field: "hours", Message: "hours cannot exceed 24"})
	}
	if !inSet(SleepQualities, s.Quality) {
		errs = append(errs, schema.FieldError{Field: "quality", Message: "quality must be one of: " + strings.Join(SleepQualities, ", ")})
	}
	return validationResult(errs)
}

// Mood is one day's mood log. One entry per owner per calendar day.
type Mood struct {
	RecordMeta
	Level float64  `json:"level"`
	Notes string   `json:"notes,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

func (m *Mood) Meta() *Meta          { return &m.RecordMeta }
func (m *Mood) Kind() Kind           { return KindMood }
func (m *Mood) UniqueKey() string    { return m.Date.DayKey() }
func (m *Mood) MetricValue() float64 { return m.Level }

func (m *Mood) Validate() error {
	var errs []schema.FieldError
	errs = appendDateErrors(errs, m.Date)
	if m.Level != math.Trunc(m.Level) {
		errs = append(errs, schema.FieldError{Field: "level", Message: "level must be an integer"})
	}
	if m.Level < 1 {
		errs = append(errs, schema.FieldError{Field: "level", Message: "level must be at least 1"})
	}
	if m.Level > 5 {
		errs = append(errs, schema.FieldError{Field: "level", Message: "level cannot exceed 5"})
	}
	if len([]rune(m.Notes)) > 500 {
		errs = append(errs, schema.FieldError{Field: "notes", Message: "notes cannot exceed 500 characters"})
	}
	for _, tag := range m.Tags {
		if !inSet(MoodTags, tag) {
			errs = append(errs, schema.FieldError{Field: "tags", Message: fmt.Sprintf("Invalid value '%s' in tags", tag)})
		}
	}
	return validationResult(errs)
}

// Exercise is one movement inside a workout. Sets, reps and weight are
// optional; when present they must be positive (weight may be zero for
// bodyweight movements).
type Exercise struct {
	Name   string   `json:"name"`
	Sets   *int     `json:"sets,omitempty"`
	Reps   *int     `json:"reps,omitempty"`
	Weight *float64 `json:"weight,omitempty"`
}

// Workout is one training session. One entry per owner per calendar day per
// workout type; several types on the same day are allowed.
type Workout struct {
	RecordMeta
	Duration       float64    `json:"duration"`
	Type           string     `json:"type"`
	CustomType     string     `json:"custom_type,omitempty"`
	Intensity      string     `json:"intensity"`
	CaloriesBurned *float64   `json:"calories_burned,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Exercises      []Exercise `json:"exercises,omitempty"`
}

func (w *Workout) Meta() *Meta          { return &w.RecordMeta }
func (w *Workout) Kind() Kind           { return KindWorkout }
func (w *Workout) UniqueKey() string    { return w.Date.DayKey() + ":" + w.Type }
func (w *Workout) MetricValue() float64 { return w.Duration }

// DisplayType is the user-facing type label; "other" resolves to the custom
// label.
func (w *Workout) DisplayType() string {
	if w.Type == WorkoutTypeOther {
		return w.CustomType
	}
	if w.Type == "" {
		return ""
	}
	return strings.ToUpper(w.Type[:1]) + w.Type[1:]
}

func (w *Workout) Validate() error {
	var errs []schema.FieldError
	errs = appendDateErrors(errs, w.Date)
	if w.Duration < 1 {
		errs = append(errs, schema.FieldError{Field: "duration", Message: "duration must be at least 1"})
	}
	if w.Duration > 300 {
		errs = append(errs, schema.FieldError{Field: "duration", Message: "duration cannot exceed 300"})
	}
	if !inSet(WorkoutTypes, w.Type) {
		errs = append(errs, schema.FieldError{Field: "type", Message: "type must be one of: " + strings.Join(WorkoutTypes, ", ")})
	}
	if w.Type == WorkoutTypeOther && strings.TrimSpace(w.CustomType) == "" {
		errs = append(errs, schema.FieldError{Field: "custom_type", Message: "custom_type is required"})
	}
	if len([]rune(w.CustomType)) > 50 {
		errs = append(errs, schema.FieldError{Field: "custom_type", Message: "custom_type cannot exceed 50 characters"})
	}
	if !inSet(WorkoutIntensities, w.Intensity) {
		errs = append(errs, schema.FieldError{Field: "intensity", Message: "intensity must be one of: " + strings.Join(WorkoutIntensities, ", ")})
	}
	if w.CaloriesBurned != nil && *w.CaloriesBurned < 0 {
		errs = append(errs, schema.FieldError{Field: "calories_burned", Message: "calories_burned must be at least 0"})
	}
	if len([]rune(w.Notes)) > 500 {
		errs = append(errs, schema.FieldError{Field: "notes", Message: "notes cannot exceed 500 characters"})
	}
	for i, ex := range w.Exercises {
		if strings.TrimSpace(ex.Name) == "" {
			errs = append(errs, schema.FieldError{Field: "exercises", Message: fmt.Sprintf("Item %d in exercises requires a name", i+1)})
		}
		if ex.Sets != nil && *ex.Sets < 1 {
			errs = append(errs, schema.FieldError{Field: "exercises", Message: fmt.Sprintf("Item %d in exercises: sets must be at least 1", i+1)})
		}
		if ex.Reps != nil && *ex.Reps < 1 {
			errs = append(errs, schema.FieldError{Field: "exercises", Message: fmt.Sprintf("Item %d in exercises: reps must be at least 1", i+1)})
		}
		if ex.Weight != nil && *ex.Weight < 0 {
			errs = append(errs, schema.FieldError{Field: "exercises", Message: fmt.Sprintf("Item %d in exercises: weight must be at least 0", i+1)})
		}
	}
	return validationResult(errs)
}

// New returns an empty record of the given kind.
func New(kind Kind) Record {
	switch kind {
	case KindSleep:
		return &Sleep{}
	case KindMood:
		return &Mood{}
	default:
		return &Workout{}
	}
}

// Build constructs a new record of the given kind from a validated payload,
// assigning identity and timestamps. The payload's date defaults to now when
// absent. The caller is expected to have run the kind's create schema first;
// Build still re-validates.
func Build(kind Kind, uid string, payload map[string]any, now time.Time) (Record, error) {
	rec := New(kind)
	if err := decodeInto(rec, payload); err != nil {
		return nil, err
	}

	meta := rec.Meta()
	meta.ID = uuid.NewString()
	meta.UID = uid
	if meta.Date.IsZero() {
		meta.Date = NewDate(now)
	}
	meta.CreatedAt = now.UTC()
	meta.UpdatedAt = now.UTC()

	normalize(rec)
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Patch applies a partial field replace onto an existing record. Identity
// and creation time are preserved; UpdatedAt is advanced. The patched record
// is re-validated in full.
func Patch(rec Record, patch map[string]any, now time.Time) error {
	meta := *rec.Meta()
	if err := decodeInto(rec, patch); err != nil {
		return err
	}

	m := rec.Meta()
	m.ID = meta.ID
	m.UID = meta.UID
	m.CreatedAt = meta.CreatedAt
	m.UpdatedAt = now.UTC()

	normalize(rec)
	return rec.Validate()
}

// Decode deserializes a stored record of the given kind.
func Decode(kind Kind, data []byte) (Record, error) {
	rec := New(kind)
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", kind, err)
	}
	return rec, nil
}

// Encode serializes a record for storage or transport.
func Encode(rec Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s record: %w", rec.Kind(), err)
	}
	return data, nil
}

// decodeInto merges the payload's JSON representation onto the record.
// Fields absent from the payload keep their current values.
func decodeInto(rec Record, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return &ValidationError{Fields: []schema.FieldError{
			{Field: "body", Message: "payload does not match the record shape"},
		}}
	}
	return nil
}

// normalize applies the canonical forms a payload may omit: trimmed
// lowercase workout types and the default intensity.
func normalize(rec Record) {
	if w, ok := rec.(*Workout); ok {
		w.Type = strings.ToLower(strings.TrimSpace(w.Type))
		w.CustomType = strings.TrimSpace(w.CustomType)
		if w.Intensity == "" {
			w.Intensity = DefaultIntensity
		}
	}
}

func appendDateErrors(errs []schema.FieldError, d Date) []schema.FieldError {
	if d.IsZero() {
		return append(errs, schema.FieldError{Field: "date", Message: "date is required"})
	}
	if d.After(time.Now().Add(time.Minute)) {
		return append(errs, schema.FieldError{Field: "date", Message: "date cannot be in the future"})
	}
	return errs
}

func validationResult(errs []schema.FieldError) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: errs}
}

func inSet(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
