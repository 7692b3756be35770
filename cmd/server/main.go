// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

// Package main is the entry point for the PulseTrack server.
//
// PulseTrack is a self-hosted wellness tracking backend: sleep, mood, and
// workout records with per-owner uniqueness, schema-validated writes, and
// real-time sync to every device an owner has connected.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered Koanf v2 sources (defaults, YAML file, env)
//  2. NATS JetStream: embedded server by default, external broker optional
//  3. Change stream: provisioned before any publisher or subscriber starts
//  4. Record store: Badger-backed persistence publishing one event per write
//  5. Identity: token verifier against the external IdP's signing keys
//  6. Fanout: websocket hub plus the change capture bridge
//  7. HTTP server: REST API, websocket channel, health and metrics
//
// The hub and HTTP server run under a suture supervisor tree; a crash in
// live delivery restarts only that layer while the HTTP API keeps serving.
// The capture bridge runs outside the tree, so a closed change feed stays
// closed instead of being restarted.
//
// # Configuration
//
// Required settings name the identity provider; everything else has defaults:
//
//	export IDP_ISSUER_URL=https://id.example.com
//	export IDP_AUDIENCE=pulsetrack-client
//	./pulsetrack
//
// To share an external NATS cluster instead of the embedded server:
//
//	export NATS_EMBEDDED=false
//	export NATS_URL=nats://broker.internal:4222
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, websocket clients receive close frames, the capture
// bridge stops, and the store and broker connections close in reverse
// startup order.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/pulsetrack/pulsetrack/internal/api"
	"github.com/pulsetrack/pulsetrack/internal/auth"
	"github.com/pulsetrack/pulsetrack/internal/capture"
	"github.com/pulsetrack/pulsetrack/internal/config"
	"github.com/pulsetrack/pulsetrack/internal/events"
	"github.com/pulsetrack/pulsetrack/internal/logging"
	"github.com/pulsetrack/pulsetrack/internal/store"
	"github.com/pulsetrack/pulsetrack/internal/supervisor"
	"github.com/pulsetrack/pulsetrack/internal/supervisor/services"
	ws "github.com/pulsetrack/pulsetrack/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Bool("embedded_nats", cfg.NATS.Embedded).
		Msg("PulseTrack starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================
	// NATS JetStream
	// ========================
	natsURL := cfg.NATS.URL
	var embedded *events.EmbeddedServer
	if cfg.NATS.Embedded {
		embedded, err = events.NewEmbeddedServer(events.ServerConfig{
			Host:              cfg.NATS.Host,
			Port:              cfg.NATS.Port,
			StoreDir:          cfg.NATS.StoreDir,
			JetStreamMaxMem:   cfg.NATS.MaxMemory,
			JetStreamMaxStore: cfg.NATS.MaxStore,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
		}
		natsURL = embedded.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server ready")
	}

	nc, err := natsgo.Connect(natsURL)
	if err != nil {
		logging.Fatal().Err(err).Str("url", natsURL).Msg("Failed to connect to NATS")
	}

	js, err := jetstream.New(nc)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create JetStream context")
	}

	streamCfg := events.DefaultStreamConfig()
	if cfg.NATS.StreamMaxAge > 0 {
		streamCfg.MaxAge = cfg.NATS.StreamMaxAge
	}
	streamInit, err := events.NewStreamInitializer(js, streamCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create stream initializer")
	}
	if _, err := streamInit.EnsureStream(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to provision change event stream")
	}

	// ========================
	// Change Event Publisher
	// ========================
	publisher, err := events.NewPublisher(events.DefaultPublisherConfig(natsURL), nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create change event publisher")
	}
	publisher.SetCircuitBreaker(events.NewCircuitBreaker(events.DefaultCircuitBreakerConfig()))

	// ========================
	// Record Store
	// ========================
	recordStore, err := store.Open(store.Config{
		Dir:        cfg.Store.Dir,
		GCInterval: cfg.Store.GCInterval,
	}, publisher)
	if err != nil {
		logging.Fatal().Err(err).Str("dir", cfg.Store.Dir).Msg("Failed to open record store")
	}

	// ========================
	// Identity
	// ========================
	verifier, err := auth.NewIDTokenVerifier(ctx, auth.Config{
		IssuerURL: cfg.Identity.IssuerURL,
		Audience:  cfg.Identity.Audience,
		JWKSURI:   cfg.Identity.JWKSURI,
		CacheTTL:  cfg.Identity.JWKSCacheTTL,
	})
	if err != nil {
		logging.Fatal().Err(err).Str("issuer", cfg.Identity.IssuerURL).Msg("Failed to initialize token verifier")
	}

	// ========================
	// Fanout
	// ========================
	hub := ws.NewHub()

	subCfg := events.DefaultSubscriberConfig(natsURL)
	subCfg.DurableName = cfg.NATS.DurableName
	subCfg.QueueGroup = cfg.NATS.QueueGroup
	subscriber, err := events.NewSubscriber(subCfg, nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create change event subscriber")
	}
	// The bridge runs unsupervised: once a kind's feed ends its pump stays
	// down until restart, and a supervisor restart would mask that.
	bridge := capture.NewBridge(subscriber, hub)
	if err := bridge.Start(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to start change capture bridge")
	}

	// ========================
	// HTTP Surface
	// ========================
	handler := api.NewHandler(recordStore, hub, verifier, cfg.Security.CORSOrigins)
	handler.SetReadyCheck(func() error {
		if embedded != nil && !embedded.IsRunning() {
			return errors.New("embedded NATS server not running")
		}
		probeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if !streamInit.IsHealthy(probeCtx) {
			return errors.New("change event stream unavailable")
		}
		return nil
	})

	mw := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins:   cfg.Security.CORSOrigins,
		CORSAllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders:   []string{"Content-Type", "Authorization"},
		CORSAllowCredentials: false,
		CORSMaxAge:           86400,
		RateLimitRequests:    cfg.Security.RateLimitReqs,
		RateLimitWindow:      cfg.Security.RateLimitWindow,
		RateLimitDisabled:    cfg.Security.RateLimitDisabled,
	})
	router := api.NewRouter(handler, mw, verifier)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ========================
	// Supervisor Tree
	// ========================
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddFanoutService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPService(srv, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("PulseTrack ready")
	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}

	// Reverse startup order: consumers before the store, the store before the
	// broker, the broker before the embedded server.
	bridge.Stop()
	if err := subscriber.Close(); err != nil {
		logging.Warn().Err(err).Msg("Subscriber close failed")
	}
	if err := publisher.Close(); err != nil {
		logging.Warn().Err(err).Msg("Publisher close failed")
	}
	if err := recordStore.Close(); err != nil {
		logging.Warn().Err(err).Msg("Record store close failed")
	}
	nc.Close()
	if embedded != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		if err := embedded.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("Embedded NATS shutdown failed")
		}
		cancel()
	}

	logging.Info().Msg("PulseTrack stopped")
}
