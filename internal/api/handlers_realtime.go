// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

package api

import (
	"net/http"
	"strconv"

	"github.com/junctionlab/crossview/internal/validation"
)

// Users returns the presence list of connected sessions.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.registry.Users())
}

// Locations returns the latest reported map positions.
func (h *Handler) Locations(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.registry.Locations())
}

// ChatHistory returns recent chat messages in chronological order.
// An optional ?limit= query caps the number of returned messages.
func (h *Handler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			rw.BadRequest("limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	rw.Success(h.history.Recent(limit))
}

// Assistant answers a free-text question about the live traffic state.
func (h *Handler) Assistant(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req AssistantRequest
	if err := decodeJSONBody(r, &req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}

	if verr := validation.ValidateStruct(req); verr != nil {
		rw.ValidationError("invalid assistant request", verr.ToAPIError())
		return
	}

	rw.Success(AssistantResponse{
		Question: req.Question,
		Answer:   h.assistant.Answer(req.Question),
	})
}
