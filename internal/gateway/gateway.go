// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

// Package gateway wires the WebSocket hub to the application state. It is
// the single place where inbound client messages are validated and turned
// into registry, chat, and simulation operations, and where state changes
// fan back out as broadcasts.
package gateway

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/junctionlab/crossview/internal/chat"
	"github.com/junctionlab/crossview/internal/config"
	"github.com/junctionlab/crossview/internal/logging"
	"github.com/junctionlab/crossview/internal/metrics"
	"github.com/junctionlab/crossview/internal/models"
	"github.com/junctionlab/crossview/internal/session"
	"github.com/junctionlab/crossview/internal/simulation"
	ws "github.com/junctionlab/crossview/internal/websocket"
)

// maxNameLen caps display names, counted in runes.
const maxNameLen = 64

// helloPayload sets the display name for a session.
type helloPayload struct {
	Name string `json:"name"`
}

// chatPayload carries one chat message from a client.
type chatPayload struct {
	Text string `json:"text"`
}

// locationPayload reports the client's map position.
type locationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// emergencyPayload requests an emergency hold at the intersection.
type emergencyPayload struct {
	Kind string `json:"kind"`
	Note string `json:"note"`
}

// welcomeData is sent once to a client right after it connects.
type welcomeData struct {
	SessionID string                  `json:"session_id"`
	Name      string                  `json:"name"`
	Params    models.SimulationParams `json:"params"`
	Users     []models.User           `json:"users"`
}

// Gateway implements websocket.Handler and simulation.Publisher.
type Gateway struct {
	hub      *ws.Hub
	registry *session.Registry
	history  *chat.History
	engine   *simulation.Engine
	cfg      config.ChatConfig
}

// New creates a gateway and installs it as the hub's handler.
func New(hub *ws.Hub, registry *session.Registry, history *chat.History, engine *simulation.Engine, cfg config.ChatConfig) *Gateway {
	g := &Gateway{
		hub:      hub,
		registry: registry,
		history:  history,
		engine:   engine,
		cfg:      cfg,
	}
	hub.SetHandler(g)
	return g
}

// OnConnect registers the session, sends the join bundle to the new client
// (welcome, chat history, current locations), and announces the updated
// presence list to everyone.
func (g *Gateway) OnConnect(client *ws.Client) {
	user := g.registry.Add(client.SessionID(), "")

	client.Send(ws.Message{
		Type: ws.MessageTypeWelcome,
		Data: welcomeData{
			SessionID: user.SessionID,
			Name:      user.Name,
			Params:    g.engine.Params(),
			Users:     g.registry.Users(),
		},
	})
	client.Send(ws.Message{
		Type: ws.MessageTypeChatHistory,
		Data: g.history.Recent(g.cfg.HistorySize),
	})
	client.Send(ws.Message{
		Type: ws.MessageTypeLocationList,
		Data: g.registry.Locations(),
	})

	g.broadcastUserList()
}

// OnDisconnect drops the session and announces the updated lists.
func (g *Gateway) OnDisconnect(client *ws.Client) {
	if _, ok := g.registry.Remove(client.SessionID()); !ok {
		return
	}
	g.broadcastUserList()
	g.hub.BroadcastJSON(ws.MessageTypeLocationList, g.registry.Locations())
}

// OnMessage routes one inbound client message. Unknown types are logged
// and dropped; a malformed payload never disconnects the client.
func (g *Gateway) OnMessage(client *ws.Client, msg ws.Message) {
	var err error
	switch msg.Type {
	case ws.MessageTypeHello:
		err = g.handleHello(client, msg.Data)
	case ws.MessageTypeChat:
		err = g.handleChat(client, msg.Data)
	case ws.MessageTypeLocation:
		err = g.handleLocation(client, msg.Data)
	case ws.MessageTypeEmergency:
		err = g.handleEmergency(client, msg.Data)
	default:
		logging.Warn().
			Str("session_id", client.SessionID()).
			Str("message_type", msg.Type).
			Msg("unknown websocket message type")
		return
	}

	if err != nil {
		logging.Warn().
			Err(err).
			Str("session_id", client.SessionID()).
			Str("message_type", msg.Type).
			Msg("rejected websocket message")
	}
}

func (g *Gateway) handleHello(client *ws.Client, data interface{}) error {
	var payload helloPayload
	if err := decodePayload(data, &payload); err != nil {
		return err
	}

	name := strings.TrimSpace(payload.Name)
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	// Truncate on runes so a multi-byte character is never split.
	if runes := []rune(name); len(runes) > maxNameLen {
		name = string(runes[:maxNameLen])
	}

	if _, err := g.registry.SetName(client.SessionID(), name); err != nil {
		return err
	}

	g.broadcastUserList()
	g.hub.BroadcastJSON(ws.MessageTypeLocationList, g.registry.Locations())
	return nil
}

func (g *Gateway) handleChat(client *ws.Client, data interface{}) error {
	if !client.AllowChat() {
		metrics.RecordChatRejected("rate_limited")
		return fmt.Errorf("chat rate limit exceeded")
	}

	var payload chatPayload
	if err := decodePayload(data, &payload); err != nil {
		metrics.RecordChatRejected("malformed")
		return err
	}

	text := strings.TrimSpace(payload.Text)
	if text == "" {
		metrics.RecordChatRejected("empty")
		return fmt.Errorf("chat text must not be empty")
	}
	if utf8.RuneCountInString(text) > g.cfg.MaxMessageLen {
		metrics.RecordChatRejected("too_long")
		return fmt.Errorf("chat text exceeds %d characters", g.cfg.MaxMessageLen)
	}

	user, ok := g.registry.Get(client.SessionID())
	if !ok {
		return fmt.Errorf("unknown session %q", client.SessionID())
	}

	msg := g.history.Append(user.SessionID, user.Name, text)
	metrics.RecordChatMessage()
	g.hub.BroadcastJSON(ws.MessageTypeChat, msg)
	return nil
}

func (g *Gateway) handleLocation(client *ws.Client, data interface{}) error {
	var payload locationPayload
	if err := decodePayload(data, &payload); err != nil {
		return err
	}

	if _, err := g.registry.SetLocation(client.SessionID(), payload.Latitude, payload.Longitude); err != nil {
		return err
	}

	g.hub.BroadcastJSON(ws.MessageTypeLocationList, g.registry.Locations())
	return nil
}

func (g *Gateway) handleEmergency(client *ws.Client, data interface{}) error {
	var payload emergencyPayload
	if err := decodePayload(data, &payload); err != nil {
		return err
	}

	event := g.engine.TriggerEmergency(payload.Kind, payload.Note, simulation.SourceWebSocket)
	logging.Info().
		Str("session_id", client.SessionID()).
		Str("event_id", event.ID).
		Msg("emergency reported by client")
	g.AnnounceEmergency(event)
	return nil
}

// AnnounceEmergency broadcasts an emergency event to all clients. Also
// used by the REST trigger endpoint.
func (g *Gateway) AnnounceEmergency(event models.EmergencyEvent) {
	logging.Info().
		Str("event_id", event.ID).
		Str("kind", event.Kind).
		Str("source", event.Source).
		Msg("emergency announced")
	g.hub.BroadcastJSON(ws.MessageTypeEmergency, event)
}

// PublishSnapshot implements simulation.Publisher by fanning one snapshot
// out to all connected clients.
func (g *Gateway) PublishSnapshot(snap models.TrafficSnapshot) {
	g.hub.BroadcastJSON(ws.MessageTypeTrafficUpdate, snap)
}

func (g *Gateway) broadcastUserList() {
	g.hub.BroadcastJSON(ws.MessageTypeUserList, g.registry.Users())
}

// decodePayload converts the loosely-typed message data (a JSON object
// decoded into a map) into a typed payload struct.
func decodePayload(data interface{}, v interface{}) error {
	if data == nil {
		return fmt.Errorf("missing message payload")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}
