// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

// Package main is the entry point for the Crossview server.
//
// Crossview simulates traffic at a four-way intersection and streams the
// state to browser clients over WebSocket, alongside a lightweight chat
// with user presence and map locations. A REST API exposes the same state,
// lets operators tune the simulation at runtime, trigger emergency holds,
// and ask a rule-based assistant about current conditions.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Simulation: In-memory traffic engine with a fixed tick
//  3. WebSocket Hub: Real-time fan-out to connected clients
//  4. Gateway: Routes inbound client messages to sessions, chat, and the engine
//  5. HTTP Server: REST API plus the WebSocket upgrade endpoint
//
// All components run under a suture supervision tree: the realtime layer
// (hub, simulation ticker) and the API layer (HTTP server) restart
// independently on failure.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (CROSSVIEW_ prefix)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Closes all WebSocket clients
//
// # Example Usage
//
// Development with defaults:
//
//	./crossview
//
// Tuned simulation behind a proxy:
//
//	export CROSSVIEW_HTTP_PORT=8080
//	export CROSSVIEW_SIM_DENSITY=0.8
//	export CROSSVIEW_SIM_MAX_SPEED_KPH=50
//	export CROSSVIEW_CORS_ORIGINS=https://traffic.example.org
//	./crossview
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/junctionlab/crossview/internal/api"
	"github.com/junctionlab/crossview/internal/assistant"
	"github.com/junctionlab/crossview/internal/chat"
	"github.com/junctionlab/crossview/internal/config"
	"github.com/junctionlab/crossview/internal/gateway"
	"github.com/junctionlab/crossview/internal/logging"
	"github.com/junctionlab/crossview/internal/session"
	"github.com/junctionlab/crossview/internal/simulation"
	"github.com/junctionlab/crossview/internal/supervisor"
	"github.com/junctionlab/crossview/internal/supervisor/services"
	ws "github.com/junctionlab/crossview/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings.
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
		Dur("tick_interval", cfg.Simulation.TickInterval).
		Float64("density", cfg.Simulation.Density).
		Float64("max_speed_kph", cfg.Simulation.MaxSpeedKPH).
		Msg("Starting Crossview")

	// Core state: simulation engine, session registry, chat history.
	engine := simulation.NewEngine(cfg.Simulation)
	registry := session.NewRegistry()
	history := chat.NewHistory(cfg.Chat.HistorySize)
	asst := assistant.New(engine)

	// WebSocket hub and the gateway that handles its traffic.
	hub := ws.NewHub()
	gw := gateway.New(hub, registry, history, engine, cfg.Chat)

	// HTTP surface.
	handler := api.NewHandler(cfg, engine, registry, history, asst, hub, gw.AnnounceEmergency)
	router := api.NewRouter(handler, api.NewChiMiddlewareFromSecurity(
		cfg.Security.CORSOrigins,
		cfg.Security.RateLimitReqs,
		cfg.Security.RateLimitWindow,
		cfg.Security.RateLimitDisabled,
	))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	// Supervisor tree. The slog adapter bridges zerolog to slog for
	// sutureslog compatibility.
	slogLogger := slog.New(logging.NewSlogHandler())
	tree, err := supervisor.NewTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddRealtimeService(services.NewHubService(hub))
	tree.AddRealtimeService(services.NewSimulationService(engine, gw))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handling for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain the error channel until the supervisor finishes.
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

	logging.Info().Msg("Crossview stopped gracefully")
}
