// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

// Package models defines the core data structures shared across Crossview:
// traffic simulation snapshots, user sessions, chat messages, and emergency
// events. These types are the JSON payloads of both the REST API and the
// WebSocket protocol.
package models

import "time"

// Direction identifies one of the four approaches to the intersection.
type Direction string

const (
	DirectionNorth Direction = "north"
	DirectionEast  Direction = "east"
	DirectionSouth Direction = "south"
	DirectionWest  Direction = "west"
)

// Directions returns the four approaches in fixed order. The order is part
// of the wire contract: snapshots always list directions this way.
func Directions() []Direction {
	return []Direction{DirectionNorth, DirectionEast, DirectionSouth, DirectionWest}
}

// GroupSlot distinguishes the two vehicle groups on one approach.
type GroupSlot string

const (
	SlotLead  GroupSlot = "lead"
	SlotTrail GroupSlot = "trail"
)

// CongestionLevel is the qualitative rating derived from a direction's
// vehicle count and mean speed.
type CongestionLevel string

const (
	CongestionFree     CongestionLevel = "free"
	CongestionModerate CongestionLevel = "moderate"
	CongestionHeavy    CongestionLevel = "heavy"
)

// VehicleGroup is the state of one vehicle group on one approach.
type VehicleGroup struct {
	Direction Direction `json:"direction"`
	Slot      GroupSlot `json:"slot"`
	Count     int       `json:"count"`
	SpeedKPH  float64   `json:"speed_kph"`
	DistanceM float64   `json:"distance_m"`
}

// DirectionStatus aggregates the two groups of one approach.
type DirectionStatus struct {
	Direction    Direction       `json:"direction"`
	Groups       []VehicleGroup  `json:"groups"`
	VehicleCount int             `json:"vehicle_count"`
	MeanSpeedKPH float64         `json:"mean_speed_kph"`
	Congestion   CongestionLevel `json:"congestion"`
}

// TrafficSnapshot is the point-in-time status of the whole intersection.
// One snapshot is broadcast per simulation tick.
type TrafficSnapshot struct {
	Seq             uint64            `json:"seq"`
	Timestamp       time.Time         `json:"timestamp"`
	Directions      []DirectionStatus `json:"directions"`
	TotalVehicles   int               `json:"total_vehicles"`
	MeanSpeedKPH    float64           `json:"mean_speed_kph"`
	EmergencyActive bool              `json:"emergency_active"`
}

// SimulationParams are the runtime-adjustable simulation parameters.
type SimulationParams struct {
	// Density scales how many vehicles recycled groups spawn with.
	Density float64 `json:"density"`

	// MaxSpeedKPH caps every group's speed.
	MaxSpeedKPH float64 `json:"max_speed_kph"`
}

// EmergencyEvent records an emergency trigger: vehicles brake and hold
// until ExpiresAt.
type EmergencyEvent struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Note        string    `json:"note,omitempty"`
	Source      string    `json:"source"`
	TriggeredAt time.Time `json:"triggered_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
