// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/junctionlab/crossview/internal/assistant"
	"github.com/junctionlab/crossview/internal/chat"
	"github.com/junctionlab/crossview/internal/config"
	"github.com/junctionlab/crossview/internal/logging"
	"github.com/junctionlab/crossview/internal/models"
	"github.com/junctionlab/crossview/internal/session"
	"github.com/junctionlab/crossview/internal/simulation"
	ws "github.com/junctionlab/crossview/internal/websocket"
)

// Handler holds dependencies for all HTTP handlers.
type Handler struct {
	config    *config.Config
	engine    *simulation.Engine
	registry  *session.Registry
	history   *chat.History
	assistant *assistant.Assistant
	hub       *ws.Hub
	announce  func(event models.EmergencyEvent)
	startTime time.Time
}

// NewHandler creates a handler with all dependencies wired.
// announce is called with the emergency event after a REST trigger so it
// also reaches WebSocket clients; nil disables the fan-out.
func NewHandler(
	cfg *config.Config,
	engine *simulation.Engine,
	registry *session.Registry,
	history *chat.History,
	asst *assistant.Assistant,
	hub *ws.Hub,
	announce func(event models.EmergencyEvent),
) *Handler {
	return &Handler{
		config:    cfg,
		engine:    engine,
		registry:  registry,
		history:   history,
		assistant: asst,
		hub:       hub,
		announce:  announce,
		startTime: time.Now(),
	}
}

// decodeJSONBody decodes a request body into dst.
func decodeJSONBody(r *http.Request, dst interface{}) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(dst)
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout for protection against slow clients.
func (h *Handler) getUpgrader() gorillaws.Upgrader {
	return gorillaws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins against the
// configured CORS origins. A missing Origin header is rejected because
// legitimate browser WebSockets always include one.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("websocket connection rejected: missing Origin header")
		return false
	}

	// Fail open when config is absent (tests, development).
	if h.config == nil {
		return true
	}

	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", origin).Msg("websocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the connection and hands it to the hub. Each
// connection gets a fresh session ID; the gateway registers the session
// when the hub reports the connect.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("websocket connection rejected: hub not initialized")
		NewResponseWriter(w, r).ServiceUnavailable("WebSocket service unavailable")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade error")
		return
	}

	chatCfg := h.config.Chat
	client := ws.NewClient(h.hub, conn, uuid.New().String(),
		rate.Limit(chatCfg.RatePerSecond), chatCfg.Burst)
	h.hub.Register <- client
	client.Start()
}
