// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

/*
Package websocket provides real-time bidirectional communication for live
traffic updates and chat.

This package implements WebSocket support for streaming simulation
snapshots, chat messages, user presence, map locations, and emergency
alerts to connected frontend clients. It uses the gorilla/websocket
library with a hub-client architecture for efficient message broadcasting.

Key Components:

  - Hub: Central message broker that manages client connections and broadcasts
  - Client: Represents a single WebSocket connection with read/write goroutines
  - Handler: Application callback interface for lifecycle and inbound messages
  - Message: Typed message structure for different event types

Architecture:

The package implements a hub-and-spoke pattern:

	┌──────────┐
	│   Hub    │ ← Broadcasts to all clients
	└────┬─────┘
	     │
	┌────┴─────┬─────────┬─────────┐
	│          │         │         │
	│ Client1  │ Client2 │ Client3 │ Client4
	│          │         │         │
	└──────────┴─────────┴─────────┘

Each client has two goroutines:
  - readPump: Reads from WebSocket, answers pings, forwards to the Handler
  - writePump: Writes to WebSocket, sends keepalive pings

Message Types:

Inbound (client to server):

  - hello: Set the display name for the session
  - chat: Post a chat message (rate limited per connection)
  - location: Report a map position (latitude, longitude)
  - emergency: Trigger an emergency hold at the intersection
  - ping: Application-level keepalive, answered with pong

Outbound (server to client):

  - welcome: Session details sent once after connect
  - chat_history: Recent chat messages sent once after connect
  - user_list: Full presence list, sent on every join/leave/rename
  - location_list: All reported positions, sent on every location change
  - chat: A single relayed chat message
  - emergency: An emergency event notification
  - traffic_update: One simulation snapshot per tick
  - pong: Reply to ping

Delivery Semantics:

Broadcasts are best-effort. The hub's broadcast channel and every client's
send buffer are bounded; when either is full the message is dropped and
counted, never queued. A client that cannot keep up is disconnected.

Thread Safety:

The package is fully thread-safe:
  - Hub uses a mutex for client map access
  - Channels coordinate goroutine communication
  - Each client has separate read/write goroutines

Connection Keepalive:

  - writeWait: 10 seconds (time allowed to write a message)
  - pongWait: 60 seconds (time allowed to read a pong)
  - pingPeriod: 54 seconds (ping interval, must be < pongWait)
  - maxMessageSize: 512 KB

See Also:

  - github.com/gorilla/websocket: Underlying WebSocket library
  - internal/gateway: Application handler coordinating sessions, chat, and traffic
  - internal/api: WebSocket endpoint handler
*/
package websocket
