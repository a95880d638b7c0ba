// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/junctionlab/crossview/internal/chat"
	"github.com/junctionlab/crossview/internal/config"
	"github.com/junctionlab/crossview/internal/logging"
	"github.com/junctionlab/crossview/internal/models"
	"github.com/junctionlab/crossview/internal/session"
	"github.com/junctionlab/crossview/internal/simulation"
	ws "github.com/junctionlab/crossview/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

type testEnv struct {
	gateway  *Gateway
	hub      *ws.Hub
	registry *session.Registry
	history  *chat.History
	engine   *simulation.Engine
	server   *httptest.Server
}

// newTestEnv starts a hub, a gateway, and an httptest server that upgrades
// connections the way the API layer does.
func newTestEnv(t *testing.T, chatCfg config.ChatConfig) *testEnv {
	t.Helper()

	hub := ws.NewHub()
	registry := session.NewRegistry()
	history := chat.NewHistory(chatCfg.HistorySize)
	engine := simulation.NewEngine(config.SimulationConfig{
		TickInterval:   time.Second,
		Density:        0.5,
		MaxSpeedKPH:    60,
		SpawnDistanceM: 500,
		MinHeadwayM:    25,
		MaxGroupSize:   12,
		EmergencyHold:  15 * time.Second,
	})
	g := New(hub, registry, history, engine, chatCfg)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.RunWithContext(ctx) }()
	time.Sleep(10 * time.Millisecond)

	upgrader := gorillaws.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := ws.NewClient(hub, conn, uuid.New().String(),
			rate.Limit(chatCfg.RatePerSecond), chatCfg.Burst)
		hub.Register <- client
		client.Start()
	}))
	t.Cleanup(server.Close)

	return &testEnv{gateway: g, hub: hub, registry: registry, history: history, engine: engine, server: server}
}

func defaultChatConfig() config.ChatConfig {
	return config.ChatConfig{
		HistorySize:   50,
		MaxMessageLen: 500,
		RatePerSecond: 100, // effectively unlimited for most tests
		Burst:         100,
	}
}

func dial(t *testing.T, env *testEnv) *gorillaws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.server.URL, "http")
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitForType reads messages until one of the wanted type arrives.
func waitForType(t *testing.T, conn *gorillaws.Conn, msgType string) ws.Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		var msg ws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q: %v", msgType, err)
		}
		if msg.Type == msgType {
			return msg
		}
	}
	t.Fatalf("no %q message within deadline", msgType)
	return ws.Message{}
}

func decodeInto(t *testing.T, data interface{}, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

func TestJoinBundle(t *testing.T) {
	env := newTestEnv(t, defaultChatConfig())
	env.history.Append("old-session", "alice", "earlier message")

	conn := dial(t, env)

	welcome := waitForType(t, conn, ws.MessageTypeWelcome)
	var wd struct {
		SessionID string                  `json:"session_id"`
		Name      string                  `json:"name"`
		Params    models.SimulationParams `json:"params"`
		Users     []models.User           `json:"users"`
	}
	decodeInto(t, welcome.Data, &wd)
	if wd.SessionID == "" {
		t.Error("welcome should carry a session ID")
	}
	if !strings.HasPrefix(wd.Name, "guest-") {
		t.Errorf("default name = %q, want guest- prefix", wd.Name)
	}
	if wd.Params.MaxSpeedKPH != 60 {
		t.Errorf("welcome params max speed = %g, want 60", wd.Params.MaxSpeedKPH)
	}
	if len(wd.Users) != 1 || wd.Users[0].SessionID != wd.SessionID {
		t.Errorf("welcome users = %+v, want the joiner itself", wd.Users)
	}

	historyMsg := waitForType(t, conn, ws.MessageTypeChatHistory)
	var msgs []models.ChatMessage
	decodeInto(t, historyMsg.Data, &msgs)
	if len(msgs) != 1 || msgs[0].Text != "earlier message" {
		t.Errorf("chat history = %+v, want the earlier message", msgs)
	}

	userList := waitForType(t, conn, ws.MessageTypeUserList)
	var users []models.User
	decodeInto(t, userList.Data, &users)
	if len(users) != 1 {
		t.Errorf("user list has %d entries, want 1", len(users))
	}
}

func TestHelloRename(t *testing.T) {
	env := newTestEnv(t, defaultChatConfig())
	conn := dial(t, env)
	waitForType(t, conn, ws.MessageTypeUserList)

	if err := conn.WriteJSON(ws.Message{Type: ws.MessageTypeHello, Data: helloPayload{Name: "alice"}}); err != nil {
		t.Fatalf("write hello: %v", err)
	}

	userList := waitForType(t, conn, ws.MessageTypeUserList)
	var users []models.User
	decodeInto(t, userList.Data, &users)
	if len(users) != 1 || users[0].Name != "alice" {
		t.Errorf("user list = %+v, want one user named alice", users)
	}
}

func TestChatRelay(t *testing.T) {
	env := newTestEnv(t, defaultChatConfig())

	alice := dial(t, env)
	waitForType(t, alice, ws.MessageTypeUserList)
	bob := dial(t, env)
	waitForType(t, bob, ws.MessageTypeUserList)

	if err := alice.WriteJSON(ws.Message{Type: ws.MessageTypeChat, Data: chatPayload{Text: "  hello there  "}}); err != nil {
		t.Fatalf("write chat: %v", err)
	}

	msg := waitForType(t, bob, ws.MessageTypeChat)
	var cm models.ChatMessage
	decodeInto(t, msg.Data, &cm)
	if cm.Text != "hello there" {
		t.Errorf("relayed text = %q, want trimmed %q", cm.Text, "hello there")
	}
	if cm.ID == "" || cm.Sender == "" {
		t.Errorf("relayed message missing ID or sender: %+v", cm)
	}

	if env.history.Len() != 1 {
		t.Errorf("history len = %d, want 1", env.history.Len())
	}
}

func TestChatValidation(t *testing.T) {
	cfg := defaultChatConfig()
	cfg.MaxMessageLen = 10
	env := newTestEnv(t, cfg)

	conn := dial(t, env)
	waitForType(t, conn, ws.MessageTypeUserList)

	// Empty and oversized messages are rejected without disconnecting.
	_ = conn.WriteJSON(ws.Message{Type: ws.MessageTypeChat, Data: chatPayload{Text: "   "}})
	_ = conn.WriteJSON(ws.Message{Type: ws.MessageTypeChat, Data: chatPayload{Text: "this is far too long"}})
	_ = conn.WriteJSON(ws.Message{Type: ws.MessageTypeChat, Data: chatPayload{Text: "ok"}})

	msg := waitForType(t, conn, ws.MessageTypeChat)
	var cm models.ChatMessage
	decodeInto(t, msg.Data, &cm)
	if cm.Text != "ok" {
		t.Errorf("first relayed message = %q, want the valid one", cm.Text)
	}
	if env.history.Len() != 1 {
		t.Errorf("history len = %d, want only the valid message", env.history.Len())
	}
}

func TestHelloTruncatesLongNameOnRunes(t *testing.T) {
	env := newTestEnv(t, defaultChatConfig())
	conn := dial(t, env)
	waitForType(t, conn, ws.MessageTypeUserList)

	long := strings.Repeat("ż", 100)
	if err := conn.WriteJSON(ws.Message{Type: ws.MessageTypeHello, Data: helloPayload{Name: long}}); err != nil {
		t.Fatalf("write hello: %v", err)
	}

	userList := waitForType(t, conn, ws.MessageTypeUserList)
	var users []models.User
	decodeInto(t, userList.Data, &users)
	if len(users) != 1 {
		t.Fatalf("user list has %d entries, want 1", len(users))
	}
	if got := utf8.RuneCountInString(users[0].Name); got != maxNameLen {
		t.Errorf("name rune count = %d, want %d", got, maxNameLen)
	}
	if !utf8.ValidString(users[0].Name) {
		t.Error("truncated name must remain valid UTF-8")
	}
}

func TestChatLengthCountsRunes(t *testing.T) {
	cfg := defaultChatConfig()
	cfg.MaxMessageLen = 10
	env := newTestEnv(t, cfg)

	conn := dial(t, env)
	waitForType(t, conn, ws.MessageTypeUserList)

	// 10 runes but 20 bytes; the limit counts runes, so this passes.
	text := strings.Repeat("ż", 10)
	if err := conn.WriteJSON(ws.Message{Type: ws.MessageTypeChat, Data: chatPayload{Text: text}}); err != nil {
		t.Fatalf("write chat: %v", err)
	}

	msg := waitForType(t, conn, ws.MessageTypeChat)
	var cm models.ChatMessage
	decodeInto(t, msg.Data, &cm)
	if cm.Text != text {
		t.Errorf("relayed text = %q, want %q", cm.Text, text)
	}
}

func TestChatRateLimit(t *testing.T) {
	cfg := defaultChatConfig()
	cfg.RatePerSecond = 1
	cfg.Burst = 1
	env := newTestEnv(t, cfg)

	conn := dial(t, env)
	waitForType(t, conn, ws.MessageTypeUserList)

	_ = conn.WriteJSON(ws.Message{Type: ws.MessageTypeChat, Data: chatPayload{Text: "first"}})
	_ = conn.WriteJSON(ws.Message{Type: ws.MessageTypeChat, Data: chatPayload{Text: "second"}})

	waitForType(t, conn, ws.MessageTypeChat)
	time.Sleep(100 * time.Millisecond)

	if env.history.Len() != 1 {
		t.Errorf("history len = %d, want 1 (second message rate limited)", env.history.Len())
	}
}

func TestLocationBroadcast(t *testing.T) {
	env := newTestEnv(t, defaultChatConfig())

	conn := dial(t, env)
	waitForType(t, conn, ws.MessageTypeUserList)

	if err := conn.WriteJSON(ws.Message{
		Type: ws.MessageTypeLocation,
		Data: locationPayload{Latitude: 52.41, Longitude: 16.93},
	}); err != nil {
		t.Fatalf("write location: %v", err)
	}

	// The join bundle includes an empty location_list; wait for one that
	// carries the new position.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msg := waitForType(t, conn, ws.MessageTypeLocationList)
		var locs []models.UserLocation
		decodeInto(t, msg.Data, &locs)
		if len(locs) == 1 {
			if locs[0].Latitude != 52.41 || locs[0].Longitude != 16.93 {
				t.Errorf("location = %+v, want (52.41, 16.93)", locs[0])
			}
			return
		}
	}
	t.Fatal("location_list with the reported position never arrived")
}

func TestEmergencyFromClient(t *testing.T) {
	env := newTestEnv(t, defaultChatConfig())

	conn := dial(t, env)
	waitForType(t, conn, ws.MessageTypeUserList)

	if err := conn.WriteJSON(ws.Message{
		Type: ws.MessageTypeEmergency,
		Data: emergencyPayload{Kind: "ambulance", Note: "northbound"},
	}); err != nil {
		t.Fatalf("write emergency: %v", err)
	}

	msg := waitForType(t, conn, ws.MessageTypeEmergency)
	var event models.EmergencyEvent
	decodeInto(t, msg.Data, &event)
	if event.Kind != "ambulance" || event.Note != "northbound" {
		t.Errorf("event = %+v, want ambulance/northbound", event)
	}
	if event.Source != simulation.SourceWebSocket {
		t.Errorf("event source = %q, want %q", event.Source, simulation.SourceWebSocket)
	}

	if _, active := env.engine.LastEmergency(); !active {
		t.Error("engine should report an active emergency hold")
	}
}

func TestPublishSnapshot(t *testing.T) {
	env := newTestEnv(t, defaultChatConfig())

	conn := dial(t, env)
	waitForType(t, conn, ws.MessageTypeUserList)

	env.engine.Advance(time.Second)
	env.gateway.PublishSnapshot(env.engine.Snapshot())

	msg := waitForType(t, conn, ws.MessageTypeTrafficUpdate)
	var snap models.TrafficSnapshot
	decodeInto(t, msg.Data, &snap)
	if len(snap.Directions) != 4 {
		t.Errorf("snapshot has %d directions, want 4", len(snap.Directions))
	}
	if snap.Seq != 1 {
		t.Errorf("snapshot seq = %d, want 1", snap.Seq)
	}
}

func TestDisconnectUpdatesPresence(t *testing.T) {
	env := newTestEnv(t, defaultChatConfig())

	alice := dial(t, env)
	waitForType(t, alice, ws.MessageTypeUserList)
	bob := dial(t, env)
	waitForType(t, bob, ws.MessageTypeUserList)

	if env.registry.Count() != 2 {
		t.Fatalf("registry count = %d, want 2", env.registry.Count())
	}

	bob.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msg := waitForType(t, alice, ws.MessageTypeUserList)
		var users []models.User
		decodeInto(t, msg.Data, &users)
		if len(users) == 1 {
			return
		}
	}
	t.Fatal("user_list never shrank after disconnect")
}
