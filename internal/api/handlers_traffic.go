// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

package api

import (
	"net/http"

	"github.com/junctionlab/crossview/internal/logging"
	"github.com/junctionlab/crossview/internal/models"
	"github.com/junctionlab/crossview/internal/simulation"
	"github.com/junctionlab/crossview/internal/validation"
)

// Traffic returns the current simulation snapshot.
func (h *Handler) Traffic(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.engine.Snapshot())
}

// GetParams returns the current simulation parameters.
func (h *Handler) GetParams(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.engine.Params())
}

// UpdateParams adjusts density and max speed at runtime. Changes take
// effect on the next tick and are reflected in the welcome message of
// newly connecting clients.
func (h *Handler) UpdateParams(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req UpdateParamsRequest
	if err := decodeJSONBody(r, &req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}

	if verr := validation.ValidateStruct(req); verr != nil {
		rw.ValidationError("invalid simulation parameters", verr.ToAPIError())
		return
	}

	params := models.SimulationParams{
		Density:     req.Density,
		MaxSpeedKPH: req.MaxSpeedKPH,
	}
	if err := h.engine.SetParams(params); err != nil {
		rw.BadRequest(err.Error())
		return
	}

	logging.Ctx(r.Context()).Info().
		Float64("density", params.Density).
		Float64("max_speed_kph", params.MaxSpeedKPH).
		Msg("simulation parameters updated")

	rw.Success(h.engine.Params())
}

// TriggerEmergency puts the intersection in an emergency hold and
// announces the event to all WebSocket clients.
func (h *Handler) TriggerEmergency(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req EmergencyRequest
	if r.ContentLength > 0 {
		if err := decodeJSONBody(r, &req); err != nil {
			rw.BadRequest("invalid request body")
			return
		}
		if verr := validation.ValidateStruct(req); verr != nil {
			rw.ValidationError("invalid emergency request", verr.ToAPIError())
			return
		}
	}

	event := h.engine.TriggerEmergency(req.Kind, req.Note, simulation.SourceAPI)
	if h.announce != nil {
		h.announce(event)
	}

	rw.Success(event)
}

// GetEmergency returns the most recent emergency event, if any.
func (h *Handler) GetEmergency(w http.ResponseWriter, r *http.Request) {
	event, active := h.engine.LastEmergency()
	if event == nil {
		NewResponseWriter(w, r).NotFound("no emergency has been reported")
		return
	}

	WriteSuccess(w, r, map[string]interface{}{
		"event":  event,
		"active": active,
	})
}
