// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/pulsetrack/pulsetrack/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "error",
		Format: "console",
		Output: io.Discard,
	})
}

// testIdP is a minimal identity provider: one RSA key, a discovery document,
// and a JWKS endpoint.
type testIdP struct {
	t        *testing.T
	key      *rsa.PrivateKey
	kid      string
	server   *httptest.Server
	audience string
}

func newTestIdP(t *testing.T) *testIdP {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	idp := &testIdP{
		t:        t,
		key:      key,
		kid:      "test-key-1",
		audience: "pulsetrack-client",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":   idp.server.URL,
			"jwks_uri": idp.server.URL + "/jwks",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		pub := &idp.key.PublicKey
		eBytes := []byte{byte(pub.E >> 16), byte(pub.E >> 8), byte(pub.E)}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": idp.kid,
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(eBytes),
			}},
		})
	})

	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)
	return idp
}

// sign issues a token with sensible defaults, letting tests override claims.
func (idp *testIdP) sign(overrides jwt.MapClaims) string {
	idp.t.Helper()

	claims := jwt.MapClaims{
		"iss":   idp.server.URL,
		"aud":   idp.audience,
		"sub":   "user-123",
		"email": "user@example.com",
		"name":  "Test User",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range overrides {
		claims[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = idp.kid

	signed, err := token.SignedString(idp.key)
	if err != nil {
		idp.t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (idp *testIdP) verifier(t *testing.T) *IDTokenVerifier {
	t.Helper()
	v, err := NewIDTokenVerifier(context.Background(), Config{
		IssuerURL: idp.server.URL,
		Audience:  idp.audience,
	})
	if err != nil {
		t.Fatalf("NewIDTokenVerifier() error = %v", err)
	}
	return v
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{IssuerURL: "https://idp.example.com", Audience: "client"}, false},
		{"missing issuer", Config{Audience: "client"}, true},
		{"missing audience", Config{IssuerURL: "https://idp.example.com"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyValidToken(t *testing.T) {
	idp := newTestIdP(t)
	v := idp.verifier(t)

	principal, err := v.Verify(context.Background(), idp.sign(nil))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if principal.UID != "user-123" {
		t.Errorf("UID = %q, want %q", principal.UID, "user-123")
	}
	if principal.Email != "user@example.com" {
		t.Errorf("Email = %q, want %q", principal.Email, "user@example.com")
	}
	if principal.Name != "Test User" {
		t.Errorf("Name = %q, want %q", principal.Name, "Test User")
	}
	if principal.Claims["sub"] != "user-123" {
		t.Error("raw claims not carried on principal")
	}
}

func TestVerifyAudienceArray(t *testing.T) {
	idp := newTestIdP(t)
	v := idp.verifier(t)

	token := idp.sign(jwt.MapClaims{"aud": []string{"other-client", idp.audience}})
	if _, err := v.Verify(context.Background(), token); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestVerifyFailures(t *testing.T) {
	idp := newTestIdP(t)
	v := idp.verifier(t)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	forged := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": idp.server.URL,
		"aud": idp.audience,
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	forged.Header["kid"] = idp.kid
	forgedStr, err := forged.SignedString(otherKey)
	if err != nil {
		t.Fatalf("sign forged token: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty token", "", ErrNoCredentials},
		{"garbage token", "not.a.jwt", ErrInvalidCredentials},
		{"expired", idp.sign(jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()}), ErrExpiredCredentials},
		{"wrong issuer", idp.sign(jwt.MapClaims{"iss": "https://evil.example.com"}), ErrInvalidCredentials},
		{"wrong audience", idp.sign(jwt.MapClaims{"aud": "someone-else"}), ErrInvalidCredentials},
		{"wrong signing key", forgedStr, ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyRejectsSymmetricAlg(t *testing.T) {
	idp := newTestIdP(t)
	v := idp.verifier(t)

	// A token signed with HS256 using the kid as secret must never validate,
	// even with otherwise correct claims.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": idp.server.URL,
		"aud": idp.audience,
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = idp.kid
	signed, err := token.SignedString([]byte(idp.kid))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := v.Verify(context.Background(), signed); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Verify() error = %v, want %v", err, ErrInvalidCredentials)
	}
}

func TestVerifyUnknownKid(t *testing.T) {
	idp := newTestIdP(t)
	v := idp.verifier(t)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": idp.server.URL,
		"aud": idp.audience,
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "rotated-away"
	signed, err := token.SignedString(idp.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := v.Verify(context.Background(), signed); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Verify() error = %v, want %v", err, ErrInvalidCredentials)
	}
}

func TestNewIDTokenVerifierUnreachableIdP(t *testing.T) {
	t.Parallel()

	_, err := NewIDTokenVerifier(context.Background(), Config{
		IssuerURL: "http://127.0.0.1:1",
		Audience:  "client",
	})
	if err == nil {
		t.Fatal("expected error for unreachable identity provider")
	}
}

func TestPrincipalNameFallsBackToUID(t *testing.T) {
	idp := newTestIdP(t)
	v := idp.verifier(t)

	token := idp.sign(jwt.MapClaims{"name": ""})
	principal, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if principal.Name != principal.UID {
		t.Errorf("Name = %q, want fallback to UID %q", principal.Name, principal.UID)
	}
}
