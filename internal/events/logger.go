// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/pulsetrack/pulsetrack/internal/logging"
)

// WatermillLogger adapts the global zerolog logger to Watermill's
// LoggerAdapter interface so bus internals log through the same sink as the
// rest of the process.
type WatermillLogger struct {
	logger zerolog.Logger
}

// NewWatermillLogger returns a LoggerAdapter backed by the global logger.
func NewWatermillLogger() *WatermillLogger {
	return &WatermillLogger{
		logger: logging.With().Str("component", "watermill").Logger(),
	}
}

// Error logs an error-level message.
func (l *WatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.event(l.logger.Error().Err(err), fields).Msg(msg)
}

// Info logs an info-level message.
func (l *WatermillLogger) Info(msg string, fields watermill.LogFields) {
	l.event(l.logger.Info(), fields).Msg(msg)
}

// Debug logs a debug-level message.
func (l *WatermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.event(l.logger.Debug(), fields).Msg(msg)
}

// Trace logs a trace-level message.
func (l *WatermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.event(l.logger.Trace(), fields).Msg(msg)
}

// With returns a logger that always carries the given fields.
func (l *WatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &WatermillLogger{logger: ctx.Logger()}
}

func (l *WatermillLogger) event(ev *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	return ev
}
