// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

// Package api provides the HTTP surface: record CRUD, aggregation queries,
// and the websocket upgrade endpoint, all behind bearer-token auth.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/pulsetrack/pulsetrack/internal/logging"
	"github.com/pulsetrack/pulsetrack/internal/schema"
)

// APIResponse is the wire envelope for every endpoint. Success carries Data
// (and Count for listings); failures carry Message or field-level Errors,
// never both.
type APIResponse struct {
	// Success indicates whether the request was successful
	Success bool `json:"success"`

	// Count is the number of items for list responses
	Count *int `json:"count,omitempty"`

	// Data contains the response payload (null on error)
	Data interface{} `json:"data,omitempty"`

	// Message is a human-readable error message
	Message string `json:"message,omitempty"`

	// Errors contains field-level validation failures
	Errors []schema.FieldError `json:"errors,omitempty"`
}

// ResponseWriter provides methods for writing standardized API responses.
type ResponseWriter struct {
	w http.ResponseWriter
	r *http.Request
}

// NewResponseWriter creates a new response writer.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, r: r}
}

// Success writes a 200 response with data.
func (rw *ResponseWriter) Success(data interface{}) {
	rw.writeJSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// SuccessList writes a 200 response with a list payload and its count.
func (rw *ResponseWriter) SuccessList(data interface{}, count int) {
	rw.writeJSON(http.StatusOK, APIResponse{
		Success: true,
		Count:   &count,
		Data:    data,
	})
}

// Created writes a 201 Created response.
func (rw *ResponseWriter) Created(data interface{}) {
	rw.writeJSON(http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

// Error writes an error response with the given status code.
func (rw *ResponseWriter) Error(statusCode int, message string) {
	rw.writeJSON(statusCode, APIResponse{
		Success: false,
		Message: message,
	})
}

// ValidationFailed writes a 400 response carrying field-level errors.
func (rw *ResponseWriter) ValidationFailed(errs []schema.FieldError) {
	rw.writeJSON(http.StatusBadRequest, APIResponse{
		Success: false,
		Errors:  errs,
	})
}

// BadRequest writes a 400 Bad Request error.
func (rw *ResponseWriter) BadRequest(message string) {
	rw.Error(http.StatusBadRequest, message)
}

// Unauthorized writes a 401 Unauthorized error.
func (rw *ResponseWriter) Unauthorized(message string) {
	rw.Error(http.StatusUnauthorized, message)
}

// NotFound writes a 404 Not Found error.
func (rw *ResponseWriter) NotFound(message string) {
	rw.Error(http.StatusNotFound, message)
}

// Conflict writes a 409 Conflict error.
func (rw *ResponseWriter) Conflict(message string) {
	rw.Error(http.StatusConflict, message)
}

// InternalError writes a 500 Internal Server Error. The error itself is
// logged, never echoed to the client.
func (rw *ResponseWriter) InternalError(err error) {
	logging.Error().
		Err(err).
		Str("path", rw.r.URL.Path).
		Str("request_id", logging.RequestIDFromContext(rw.r.Context())).
		Msg("request failed")
	rw.Error(http.StatusInternalServerError, "Internal server error")
}

// writeJSON writes JSON response with proper headers.
func (rw *ResponseWriter) writeJSON(statusCode int, data interface{}) {
	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(statusCode)

	if err := json.NewEncoder(rw.w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
