// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"

	"github.com/pulsetrack/pulsetrack/internal/auth"
	"github.com/pulsetrack/pulsetrack/internal/logging"
	"github.com/pulsetrack/pulsetrack/internal/records"
	"github.com/pulsetrack/pulsetrack/internal/schema"
	"github.com/pulsetrack/pulsetrack/internal/store"
	ws "github.com/pulsetrack/pulsetrack/internal/websocket"
)

// maxBodyBytes bounds request payloads; wellness records are tiny.
const maxBodyBytes = 1 << 20

// Handler serves the record API and the websocket upgrade endpoint.
type Handler struct {
	store          *store.RecordStore
	hub            *ws.Hub
	verifier       auth.Verifier
	allowedOrigins []string
	now            func() time.Time
	ready          func() error
}

// NewHandler creates a Handler.
func NewHandler(st *store.RecordStore, hub *ws.Hub, verifier auth.Verifier, allowedOrigins []string) *Handler {
	return &Handler{
		store:          st,
		hub:            hub,
		verifier:       verifier,
		allowedOrigins: allowedOrigins,
		now:            time.Now,
	}
}

// kindLabel capitalizes a kind for user-facing messages ("Mood already
// logged for this date").
func kindLabel(kind records.Kind) string {
	s := kind.String()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// decodeBody reads the request payload into a generic map for schema
// validation. Returns false after writing a 400 when the body is not a JSON
// object.
func decodeBody(rw *ResponseWriter, r *http.Request) (map[string]any, bool) {
	defer func() { _ = r.Body.Close() }()

	var payload map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil || payload == nil {
		rw.BadRequest("Invalid JSON payload")
		return nil, false
	}
	return payload, true
}

// principal returns the verified principal; the auth middleware guarantees
// it is present on every route that reaches a record handler.
func principal(r *http.Request) *auth.Principal {
	return auth.PrincipalFrom(r.Context())
}

// CreateRecord handles POST /api/v1/{kind}.
func (h *Handler) CreateRecord(kind records.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := NewResponseWriter(w, r)
		p := principal(r)

		payload, ok := decodeBody(rw, r)
		if !ok {
			return
		}

		now := h.now()
		if errs := schema.Validate(records.CreateSchema(kind, now), payload); len(errs) > 0 {
			rw.ValidationFailed(errs)
			return
		}

		rec, err := records.Build(kind, p.UID, payload, now)
		if err != nil {
			rw.respondBuildError(err)
			return
		}

		if err := h.store.Create(r.Context(), rec); err != nil {
			switch {
			case errors.Is(err, store.ErrConflict):
				rw.Conflict(kindLabel(kind) + " already logged for this date")
			default:
				rw.InternalError(err)
			}
			return
		}

		rw.Created(rec)
	}
}

// ListRecords handles GET /api/v1/{kind}.
func (h *Handler) ListRecords(kind records.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := NewResponseWriter(w, r)
		p := principal(r)

		opts, ok := parseListOptions(rw, r)
		if !ok {
			return
		}

		recs, err := h.store.List(r.Context(), kind, p.UID, opts)
		if err != nil {
			rw.InternalError(err)
			return
		}

		rw.SuccessList(recs, len(recs))
	}
}

// GetRecord handles GET /api/v1/{kind}/{id}.
func (h *Handler) GetRecord(kind records.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := NewResponseWriter(w, r)
		p := principal(r)
		id := r.PathValue("id")

		rec, err := h.store.Get(r.Context(), kind, p.UID, id)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				rw.NotFound(kindLabel(kind) + " record not found")
			default:
				rw.InternalError(err)
			}
			return
		}

		rw.Success(rec)
	}
}

// UpdateRecord handles PUT /api/v1/{kind}/{id}.
func (h *Handler) UpdateRecord(kind records.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := NewResponseWriter(w, r)
		p := principal(r)
		id := r.PathValue("id")

		patch, ok := decodeBody(rw, r)
		if !ok {
			return
		}

		now := h.now()
		if errs := schema.Validate(records.UpdateSchema(kind, now), patch); len(errs) > 0 {
			rw.ValidationFailed(errs)
			return
		}

		rec, err := h.store.Update(r.Context(), kind, p.UID, id, patch, now)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				rw.NotFound(kindLabel(kind) + " record not found")
			case errors.Is(err, store.ErrConflict):
				rw.Conflict(kindLabel(kind) + " already logged for this date")
			default:
				rw.respondBuildError(err)
			}
			return
		}

		rw.Success(rec)
	}
}

// DeleteRecord handles DELETE /api/v1/{kind}/{id}.
func (h *Handler) DeleteRecord(kind records.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := NewResponseWriter(w, r)
		p := principal(r)
		id := r.PathValue("id")

		if err := h.store.Delete(r.Context(), kind, p.UID, id); err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				rw.NotFound(kindLabel(kind) + " record not found")
			default:
				rw.InternalError(err)
			}
			return
		}

		rw.Success(records.DeleteData{ID: id})
	}
}

// RecordStats handles GET /api/v1/{kind}/stats.
func (h *Handler) RecordStats(kind records.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := NewResponseWriter(w, r)
		p := principal(r)

		period := records.ParsePeriod(r.URL.Query().Get("period"))
		stats, err := h.store.Aggregate(r.Context(), kind, p.UID, period, h.now())
		if err != nil {
			rw.InternalError(err)
			return
		}

		rw.Success(stats)
	}
}

// WorkoutSummary handles GET /api/v1/workout/summary.
func (h *Handler) WorkoutSummary(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p := principal(r)

	period := records.ParsePeriod(r.URL.Query().Get("period"))
	summary, err := h.store.WorkoutSummary(r.Context(), p.UID, period, h.now())
	if err != nil {
		rw.InternalError(err)
		return
	}

	rw.Success(summary)
}

// respondBuildError maps a record construction failure: validation errors
// become field-level 400s, anything else a 500.
func (rw *ResponseWriter) respondBuildError(err error) {
	var verr *records.ValidationError
	if errors.As(err, &verr) {
		rw.ValidationFailed(verr.Fields)
		return
	}
	rw.InternalError(err)
}

// parseListOptions reads paging and date-range query parameters. Returns
// false after writing a 400 on malformed dates.
func parseListOptions(rw *ResponseWriter, r *http.Request) (records.ListOptions, bool) {
	q := r.URL.Query()
	var opts records.ListOptions

	if s := q.Get("start_date"); s != "" {
		t, ok := schema.ParseDate(s)
		if !ok {
			rw.BadRequest("start_date must be a valid date")
			return opts, false
		}
		opts.StartDate = t
	}
	if s := q.Get("end_date"); s != "" {
		t, ok := schema.ParseDate(s)
		if !ok {
			rw.BadRequest("end_date must be a valid date")
			return opts, false
		}
		opts.EndDate = t
	}
	if s := q.Get("page"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			opts.Page = n
		}
	}
	if s := q.Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			opts.Limit = n
		}
	}

	return opts, true
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow clients.
func (h *Handler) getUpgrader() gws.Upgrader {
	return gws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins. Requests
// without an Origin header (non-browser clients) are allowed; browser
// origins must match the configured allow list.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket handles GET /api/v1/ws. The channel is authenticated BEFORE the
// upgrade: an invalid token never reaches the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	p, err := auth.Handshake(r.Context(), h.verifier, r)
	if err != nil {
		if errors.Is(err, auth.ErrNoCredentials) {
			rw.Unauthorized("No token provided")
		} else {
			rw.Unauthorized("Unauthorized")
		}
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.hub, conn, p.UID)
	h.hub.Register <- client
	client.Start()
}
