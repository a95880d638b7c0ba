// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

// Package chat keeps a bounded in-memory history of chat messages so
// joining clients can catch up on recent conversation.
package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/junctionlab/crossview/internal/models"
)

// History is a fixed-capacity ring of chat messages. When full, appending
// evicts the oldest message.
type History struct {
	mu       sync.RWMutex
	messages []models.ChatMessage
	start    int
	size     int
	now      func() time.Time
}

// NewHistory creates a ring holding up to capacity messages. A capacity
// below 1 is coerced to 1.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		messages: make([]models.ChatMessage, capacity),
		now:      time.Now,
	}
}

// Append stores a message, stamping its ID and timestamp, and returns the
// stored copy.
func (h *History) Append(sessionID, sender, text string) models.ChatMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := models.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Sender:    sender,
		Text:      text,
		SentAt:    h.now().UTC(),
	}

	pos := (h.start + h.size) % len(h.messages)
	h.messages[pos] = msg
	if h.size < len(h.messages) {
		h.size++
	} else {
		h.start = (h.start + 1) % len(h.messages)
	}
	return msg
}

// Recent returns up to limit messages in chronological order. A limit of
// zero or below returns the full retained history.
func (h *History) Recent(limit int) []models.ChatMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.size
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]models.ChatMessage, 0, n)
	// Skip the oldest entries when the caller asked for fewer than retained.
	offset := h.size - n
	for i := 0; i < n; i++ {
		out = append(out, h.messages[(h.start+offset+i)%len(h.messages)])
	}
	return out
}

// Len returns the number of retained messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}
