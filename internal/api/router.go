// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulsetrack/pulsetrack/internal/auth"
	"github.com/pulsetrack/pulsetrack/internal/records"
)

// Router assembles the HTTP surface from its handlers and middleware.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	verifier      auth.Verifier
}

// NewRouter creates a Router.
func NewRouter(handler *Handler, mw *ChiMiddleware, verifier auth.Verifier) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: mw,
		verifier:      verifier,
	}
}

// Setup configures all HTTP routes using Chi router.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(RequestIDWithLogging())      // Add X-Request-ID header with logging context
	r.Use(chimiddleware.RealIP)        // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer)     // Recover from panics
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight

	// ========================
	// Health Endpoints
	// ========================
	// Permissive rate limiting so monitoring can probe frequently.
	r.Route("/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
		r.Get("/", router.handler.HealthLive)
	})

	// ========================
	// Record Endpoints
	// ========================
	// All record data requires a verified IdP token; every operation is
	// scoped to the token's subject. Only /api/v1/health stays open so API
	// consumers can probe without credentials.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())

		r.Get("/health", router.handler.HealthReady)

		r.Group(func(r chi.Router) {
			r.Use(PrometheusMetrics)
			r.Use(auth.Middleware(router.verifier))

			for _, kind := range records.Kinds {
				router.registerRecordRoutes(r, kind)
			}
		})
	})

	// ========================
	// WebSocket Endpoint
	// ========================
	// Not behind the auth middleware: the handshake verifies the token
	// itself so it can also read it from the query string.
	r.Route("/api/v1/ws", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitWebSocket())
		r.Get("/", router.handler.WebSocket)
	})

	// ========================
	// Observability
	// ========================
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// registerRecordRoutes mounts one kind's CRUD and aggregation routes.
func (router *Router) registerRecordRoutes(r chi.Router, kind records.Kind) {
	r.Route("/"+kind.String(), func(r chi.Router) {
		r.Use(chiPathValue) // Bridge Chi URL params to r.PathValue()

		r.Get("/", router.handler.ListRecords(kind))
		r.Post("/", router.handler.CreateRecord(kind))
		r.Get("/stats", router.handler.RecordStats(kind))
		if kind == records.KindWorkout {
			r.Get("/summary", router.handler.WorkoutSummary)
		}

		r.Get("/{id}", router.handler.GetRecord(kind))
		r.Put("/{id}", router.handler.UpdateRecord(kind))
		r.Patch("/{id}", router.handler.UpdateRecord(kind))
		r.Delete("/{id}", router.handler.DeleteRecord(kind))
	})
}

// chiPathValue middleware injects Chi URL params into the request so
// handlers using r.PathValue() continue to work. This bridges Chi's
// chi.URLParam() with Go 1.22+'s r.PathValue().
func chiPathValue(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		if rctx != nil {
			for i, key := range rctx.URLParams.Keys {
				if i < len(rctx.URLParams.Values) {
					r.SetPathValue(key, rctx.URLParams.Values[i])
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
