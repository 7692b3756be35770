// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/pulsetrack/pulsetrack/internal/logging"
	"github.com/pulsetrack/pulsetrack/internal/metrics"
)

type contextKey struct{}

var principalKey = contextKey{}

// WithPrincipal returns a context carrying the verified principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal attached by the middleware, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// ExtractToken pulls the bearer token from the Authorization header, falling
// back to the "token" query parameter for websocket handshakes where browsers
// cannot set headers. Returns "" when neither is present or well-formed.
func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	return r.URL.Query().Get("token")
}

// Middleware rejects requests that do not carry a valid IdP token and
// attaches the verified principal to the request context.
//
// A request with no token is rejected without touching the verifier, so an
// unreachable IdP cannot be probed by anonymous traffic. All verification
// failures collapse to one uniform 401 body.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				metrics.RecordAuthVerification("missing")
				writeUnauthorized(w, "No token provided")
				return
			}

			principal, err := verifier.Verify(r.Context(), token)
			if err != nil {
				result := "invalid"
				if errors.Is(err, ErrExpiredCredentials) {
					result = "expired"
				}
				metrics.RecordAuthVerification(result)
				logging.Debug().
					Err(err).
					Str("path", r.URL.Path).
					Msg("token verification failed")
				writeUnauthorized(w, "Unauthorized")
				return
			}

			metrics.RecordAuthVerification("success")
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// Handshake authenticates a websocket upgrade request before the connection
// is upgraded. Same token sources and failure modes as Middleware.
func Handshake(ctx context.Context, verifier Verifier, r *http.Request) (*Principal, error) {
	token := ExtractToken(r)
	if token == "" {
		metrics.RecordAuthVerification("missing")
		return nil, ErrNoCredentials
	}

	principal, err := verifier.Verify(ctx, token)
	if err != nil {
		result := "invalid"
		if errors.Is(err, ErrExpiredCredentials) {
			result = "expired"
		}
		metrics.RecordAuthVerification(result)
		return nil, err
	}

	metrics.RecordAuthVerification("success")
	return principal, nil
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	body := map[string]any{
		"success": false,
		"message": message,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("failed to write unauthorized response")
	}
}
