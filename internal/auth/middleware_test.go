// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

// fakeVerifier maps tokens to canned results and counts calls.
type fakeVerifier struct {
	principals map[string]*Principal
	errs       map[string]error
	calls      int
}

func (f *fakeVerifier) Verify(_ context.Context, token string) (*Principal, error) {
	f.calls++
	if err, ok := f.errs[token]; ok {
		return nil, err
	}
	if p, ok := f.principals[token]; ok {
		return p, nil
	}
	return nil, ErrInvalidCredentials
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{
		principals: map[string]*Principal{
			"good-token": {UID: "user-123", Email: "user@example.com"},
		},
		errs: map[string]error{
			"expired-token": ErrExpiredCredentials,
		},
	}
}

func TestExtractToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"bearer header", "Bearer abc123", "", "abc123"},
		{"lowercase scheme", "bearer abc123", "", "abc123"},
		{"padded token", "Bearer   abc123", "", "abc123"},
		{"wrong scheme", "Basic abc123", "", ""},
		{"scheme only", "Bearer", "", ""},
		{"no header no query", "", "", ""},
		{"query fallback", "", "abc123", "abc123"},
		{"header wins over query", "Bearer fromheader", "fromquery", "fromheader"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			target := "/api/v1/sleep"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			r := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := ExtractToken(r); got != tt.want {
				t.Errorf("ExtractToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		authz       string
		wantStatus  int
		wantMessage string
		wantCalls   int
		wantUID     string
	}{
		{
			name:        "missing token rejected without verifier call",
			authz:       "",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "No token provided",
			wantCalls:   0,
		},
		{
			name:        "malformed header rejected without verifier call",
			authz:       "Basic dXNlcjpwYXNz",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "No token provided",
			wantCalls:   0,
		},
		{
			name:        "invalid token",
			authz:       "Bearer bad-token",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Unauthorized",
			wantCalls:   1,
		},
		{
			name:        "expired token gets same uniform body",
			authz:       "Bearer expired-token",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Unauthorized",
			wantCalls:   1,
		},
		{
			name:       "valid token passes through with principal",
			authz:      "Bearer good-token",
			wantStatus: http.StatusOK,
			wantCalls:  1,
			wantUID:    "user-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := newFakeVerifier()

			var gotUID string
			handler := Middleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if p := PrincipalFrom(r.Context()); p != nil {
					gotUID = p.UID
				}
				w.WriteHeader(http.StatusOK)
			}))

			r := httptest.NewRequest(http.MethodGet, "/api/v1/sleep", nil)
			if tt.authz != "" {
				r.Header.Set("Authorization", tt.authz)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if verifier.calls != tt.wantCalls {
				t.Errorf("verifier calls = %d, want %d", verifier.calls, tt.wantCalls)
			}
			if gotUID != tt.wantUID {
				t.Errorf("principal UID = %q, want %q", gotUID, tt.wantUID)
			}

			if tt.wantMessage != "" {
				var body struct {
					Success bool   `json:"success"`
					Message string `json:"message"`
				}
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if body.Success {
					t.Error("success = true, want false")
				}
				if body.Message != tt.wantMessage {
					t.Errorf("message = %q, want %q", body.Message, tt.wantMessage)
				}
				if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
					t.Errorf("Content-Type = %q, want application/json", ct)
				}
			}
		})
	}
}

func TestHandshake(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		authz   string
		wantErr error
		wantUID string
	}{
		{"header token", "/ws", "Bearer good-token", nil, "user-123"},
		{"query token", "/ws?token=good-token", "", nil, "user-123"},
		{"no token", "/ws", "", ErrNoCredentials, ""},
		{"bad token", "/ws?token=bad-token", "", ErrInvalidCredentials, ""},
		{"expired token", "/ws?token=expired-token", "", ErrExpiredCredentials, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := newFakeVerifier()
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.authz != "" {
				r.Header.Set("Authorization", tt.authz)
			}

			principal, err := Handshake(context.Background(), verifier, r)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Handshake() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantUID != "" && (principal == nil || principal.UID != tt.wantUID) {
				t.Errorf("principal = %+v, want UID %q", principal, tt.wantUID)
			}
		})
	}
}
