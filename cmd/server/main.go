// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

// Package main is the entry point for the Jukewire server.
//
// Jukewire turns a shared listening space into a crowd-curated jukebox:
// guests join a session, spend credits to queue and vote on tracks, and a
// per-session monitor keeps the playback zone in step with the queue.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, YAML file, environment (Koanf v2)
//  2. Credit ledger: BadgerDB persistence, or in-memory when no path set
//  3. Zone provider: HTTP client, optionally wrapped in a circuit breaker
//  4. Queue store, WebSocket hub, and zone monitor registry
//  5. Session service: credit-gated mutations over the queue and ledger
//  6. HTTP API: chi router with JWT auth, rate limiting, and CORS
//  7. Supervisor tree: messaging layer (hub, monitors) and API layer
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (config.yaml),
// built-in defaults. Common settings:
//
//	SECURITY_JWT_SECRET    32+ character signing secret (required)
//	PROVIDER_URL           zone playback provider base URL
//	PROVIDER_TOKEN         provider API token
//	CREDITS_PATH           Badger directory; empty = in-memory
//	SERVER_PORT            listen port (default 8090)
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting new connections, waits for in-flight requests to complete,
// stops every session monitor, closes WebSocket clients, and finally
// closes the credit ledger.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jukewire/jukewire/internal/api"
	"github.com/jukewire/jukewire/internal/auth"
	"github.com/jukewire/jukewire/internal/config"
	"github.com/jukewire/jukewire/internal/credits"
	"github.com/jukewire/jukewire/internal/logging"
	"github.com/jukewire/jukewire/internal/monitor"
	"github.com/jukewire/jukewire/internal/provider"
	"github.com/jukewire/jukewire/internal/queue"
	"github.com/jukewire/jukewire/internal/session"
	"github.com/jukewire/jukewire/internal/supervisor"
	"github.com/jukewire/jukewire/internal/supervisor/services"
	ws "github.com/jukewire/jukewire/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Jukewire with supervisor tree")
	logging.Info().
		Str("provider_url", cfg.Provider.URL).
		Bool("breaker", cfg.Provider.BreakerEnabled).
		Str("credits_path", cfg.Credits.Path).
		Int64("starting_balance", cfg.Credits.StartingBalance).
		Msg("Configuration loaded")

	// Credit ledger: Badger when a path is configured, otherwise in-memory.
	// The in-memory ledger loses balances on restart, which is fine for
	// development but not for anything guests care about.
	var ledger credits.Ledger
	if cfg.Credits.Path != "" {
		badgerLedger, err := credits.OpenBadger(cfg.Credits.Path, cfg.Credits.StartingBalance)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Credits.Path).Msg("Failed to open credit ledger")
		}
		ledger = badgerLedger
		logging.Info().Str("path", cfg.Credits.Path).Msg("Credit ledger opened")
	} else {
		ledger = credits.NewMemory(cfg.Credits.StartingBalance)
		logging.Warn().Msg("Credit ledger is in-memory (CREDITS_PATH not set); balances are lost on restart")
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing credit ledger")
		}
	}()

	// Zone provider client, optionally behind a circuit breaker so a
	// flapping provider does not stall every monitor pass.
	var providerClient provider.Client = provider.NewHTTPClient(cfg.Provider)
	if cfg.Provider.BreakerEnabled {
		providerClient = provider.NewBreakerClient(providerClient)
		logging.Info().Msg("Provider circuit breaker enabled")
	}

	store := queue.NewStore()
	hub := ws.NewHub()

	registry := monitor.NewRegistry(providerClient, store, hub, monitor.Config{
		PollInterval:      cfg.Session.PollInterval,
		PollFloor:         cfg.Session.PollFloor,
		PollBuffer:        cfg.Session.PollBuffer,
		AssignmentTimeout: cfg.Session.AssignmentTimeout,
		DefaultContentID:  cfg.Session.DefaultContentID,
	})

	svc := session.NewService(store, ledger, registry, hub, providerClient, session.Config{
		TrackCost: cfg.Session.TrackCost,
		VoteCost:  cfg.Session.VoteCost,
	})

	tokens, err := auth.NewManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize token manager")
	}

	handler := api.NewHandler(svc, tokens, hub, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Supervisor tree: the messaging layer carries the hub and the monitor
	// registry, the API layer carries the HTTP server. sutureslog bridges
	// suture's events into zerolog via the slog adapter.
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddMessagingService(hub)
	tree.AddMessagingService(registry)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Server stopped gracefully")
}
