// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

package api

// UpdateParamsRequest adjusts the simulation at runtime.
type UpdateParamsRequest struct {
	// Density scales how many vehicles spawn per group, in (0, 1].
	Density float64 `json:"density" validate:"required,gt=0,lte=1"`

	// MaxSpeedKPH caps group speed, in km/h.
	MaxSpeedKPH float64 `json:"max_speed_kph" validate:"required,gte=10,lte=130"`
}

// EmergencyRequest triggers an emergency hold via REST.
type EmergencyRequest struct {
	Kind string `json:"kind" validate:"max=64"`
	Note string `json:"note" validate:"max=500"`
}

// AssistantRequest asks the traffic assistant a question.
type AssistantRequest struct {
	Question string `json:"question" validate:"required,max=500"`
}

// AssistantResponse carries the assistant's answer.
type AssistantResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
