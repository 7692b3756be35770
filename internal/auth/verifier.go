// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

// Package auth verifies bearer tokens minted by the external identity
// provider. PulseTrack never issues credentials of its own: every request
// and websocket channel presents an IdP ID token, verified locally against
// the provider's published JWKS.
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoCredentials indicates no credentials were provided.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates credentials were invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExpiredCredentials indicates credentials have expired.
	ErrExpiredCredentials = errors.New("credentials expired")
)

// Principal is the verified identity behind a request. UID is the IdP
// subject and is the sole ownership key for records and channels.
type Principal struct {
	UID    string
	Email  string
	Name   string
	Claims jwt.MapClaims
}

// Verifier turns a raw bearer token into a Principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// Config locates the identity provider.
type Config struct {
	// IssuerURL is the IdP base URL; tokens must carry it as iss.
	IssuerURL string
	// Audience is this deployment's client id; tokens must carry it as aud.
	Audience string
	// JWKSURI overrides discovery when set.
	JWKSURI string
	// CacheTTL bounds how long fetched signing keys are trusted.
	CacheTTL time.Duration
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.IssuerURL == "" {
		return errors.New("identity issuer URL is required")
	}
	if c.Audience == "" {
		return errors.New("identity audience is required")
	}
	return nil
}

// IDTokenVerifier validates RS256 ID tokens against the IdP's JWKS.
type IDTokenVerifier struct {
	config Config
	issuer string
	keys   *jwksCache
}

// NewIDTokenVerifier creates a verifier. When no JWKS URI is configured it
// performs OIDC discovery against the issuer.
func NewIDTokenVerifier(ctx context.Context, config Config) (*IDTokenVerifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid identity config: %w", err)
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	issuer := config.IssuerURL
	jwksURI := config.JWKSURI
	if jwksURI == "" {
		disc, err := discover(ctx, httpClient, config.IssuerURL)
		if err != nil {
			return nil, err
		}
		issuer = disc.Issuer
		jwksURI = disc.JWKSURI
	}

	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 15 * time.Minute
	}

	v := &IDTokenVerifier{
		config: config,
		issuer: issuer,
		keys:   newJWKSCache(jwksURI, httpClient, cacheTTL),
	}

	// Pre-fetch JWKS so a broken IdP fails at startup, not first request.
	if _, err := v.keys.getKeys(ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	return v, nil
}

type discovery struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

func discover(ctx context.Context, client *http.Client, issuerURL string) (*discovery, error) {
	discoveryURL := strings.TrimSuffix(issuerURL, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity discovery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity discovery returned status %d", resp.StatusCode)
	}

	var disc discovery
	if err := json.NewDecoder(resp.Body).Decode(&disc); err != nil {
		return nil, fmt.Errorf("failed to parse discovery document: %w", err)
	}
	if disc.JWKSURI == "" {
		return nil, errors.New("identity discovery missing jwks_uri")
	}
	if disc.Issuer == "" {
		disc.Issuer = issuerURL
	}
	return &disc, nil
}

// Verify parses and validates one bearer token.
func (v *IDTokenVerifier) Verify(ctx context.Context, tokenStr string) (*Principal, error) {
	if tokenStr == "" {
		return nil, ErrNoCredentials
	}

	token, err := v.parseAndValidate(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredCredentials
		}
		return nil, ErrInvalidCredentials
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return buildPrincipal(claims), nil
}

func (v *IDTokenVerifier) parseAndValidate(ctx context.Context, tokenStr string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		// Verify signing algorithm
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kidVal, ok := token.Header["kid"]
		if !ok {
			return nil, errors.New("token missing kid header")
		}
		kid, ok := kidVal.(string)
		if !ok {
			return nil, errors.New("token kid header is not a string")
		}

		key, err := v.keys.getKey(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("failed to get key for kid %s: %w", kid, err)
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	iss, ok := claims["iss"].(string)
	if !ok {
		return nil, errors.New("token missing iss claim")
	}
	if iss != v.issuer {
		return nil, fmt.Errorf("invalid issuer: got %s, want %s", iss, v.issuer)
	}

	if err := v.validateAudience(claims); err != nil {
		return nil, err
	}

	return token, nil
}

// validateAudience checks that the token audience includes our client id.
func (v *IDTokenVerifier) validateAudience(claims jwt.MapClaims) error {
	audClaim := claims["aud"]
	if audClaim == nil {
		return errors.New("token missing aud claim")
	}

	audience := v.config.Audience

	// Audience can be a string or array of strings
	switch aud := audClaim.(type) {
	case string:
		if aud != audience {
			return fmt.Errorf("invalid audience: got %s, want %s", aud, audience)
		}
	case []interface{}:
		found := false
		for _, a := range aud {
			if s, ok := a.(string); ok && s == audience {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("audience %s not in token", audience)
		}
	default:
		return fmt.Errorf("unexpected audience type: %T", audClaim)
	}

	return nil
}

// buildPrincipal creates a Principal from validated claims.
func buildPrincipal(claims jwt.MapClaims) *Principal {
	p := &Principal{Claims: claims}

	if sub, ok := claims["sub"].(string); ok {
		p.UID = sub
	}
	if email, ok := claims["email"].(string); ok {
		p.Email = email
	}
	for _, claim := range []string{"name", "preferred_username"} {
		if name, ok := claims[claim].(string); ok && name != "" {
			p.Name = name
			break
		}
	}
	if p.Name == "" {
		p.Name = p.UID
	}

	return p
}

// jwksCache caches JWKS keys with TTL support.
type jwksCache struct {
	uri        string
	httpClient *http.Client
	ttl        time.Duration

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

func newJWKSCache(uri string, client *http.Client, ttl time.Duration) *jwksCache {
	return &jwksCache{
		uri:        uri,
		httpClient: client,
		ttl:        ttl,
		keys:       make(map[string]*rsa.PublicKey),
	}
}

// getKey retrieves a key by ID, refreshing the cache if needed.
func (c *jwksCache) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	expired := time.Since(c.fetched) > c.ttl
	c.mu.RUnlock()

	if ok && !expired {
		return key, nil
	}

	keys, err := c.getKeys(ctx)
	if err != nil {
		// If we have a cached key and refresh failed, use it
		if ok {
			return key, nil
		}
		return nil, err
	}

	key, ok = keys[kid]
	if !ok {
		return nil, fmt.Errorf("key not found: %s", kid)
	}

	return key, nil
}

// getKeys fetches and caches all keys from the JWKS endpoint.
func (c *jwksCache) getKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Check if still valid (another goroutine might have refreshed)
	if time.Since(c.fetched) < c.ttl && len(c.keys) > 0 {
		return c.keys, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.uri, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS fetch failed with status %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
			Alg string `json:"alg"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	c.keys = make(map[string]*rsa.PublicKey)

	for _, key := range jwks.Keys {
		if key.Kty != "RSA" {
			continue
		}

		nBytes, err := base64URLDecode(key.N)
		if err != nil {
			continue
		}
		eBytes, err := base64URLDecode(key.E)
		if err != nil {
			continue
		}

		n := new(big.Int).SetBytes(nBytes)
		e := 0
		for _, b := range eBytes {
			e = e<<8 + int(b)
		}

		c.keys[key.Kid] = &rsa.PublicKey{
			N: n,
			E: e,
		}
	}

	c.fetched = time.Now()
	return c.keys, nil
}

// base64URLDecode decodes a base64url encoded string.
func base64URLDecode(s string) ([]byte, error) {
	// Add padding if needed
	switch len(s) % 4 {
	case 2:
		s += "=="
	case 3:
		s += "="
	}

	return base64.URLEncoding.DecodeString(s)
}
