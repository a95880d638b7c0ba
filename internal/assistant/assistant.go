// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

// Package assistant answers plain-text questions about the live traffic
// state using keyword rules over the current simulation snapshot. There is
// no model behind it; unrecognized questions get a general summary.
package assistant

import (
	"fmt"
	"sort"
	"strings"

	"github.com/junctionlab/crossview/internal/models"
)

// TrafficSource is the slice of the simulation the assistant reads from.
type TrafficSource interface {
	Snapshot() models.TrafficSnapshot
	Params() models.SimulationParams
	LastEmergency() (*models.EmergencyEvent, bool)
}

// Assistant turns questions into answers about the intersection.
type Assistant struct {
	source TrafficSource
}

// New creates an assistant backed by the given traffic source.
func New(source TrafficSource) *Assistant {
	return &Assistant{source: source}
}

// Answer responds to a free-text question. The first matching rule wins;
// with no match the answer is a general summary of the intersection.
func (a *Assistant) Answer(question string) string {
	q := strings.ToLower(strings.TrimSpace(question))
	snap := a.source.Snapshot()

	switch {
	case containsAny(q, "busiest", "busy", "congestion", "congested", "traffic jam", "jammed"):
		return a.busiest(snap)
	case containsAny(q, "speed", "fast", "slow", "kph", "km/h"):
		return a.speeds(snap)
	case containsAny(q, "emergency", "accident", "ambulance", "incident"):
		return a.emergency(snap)
	case containsAny(q, "how many", "count", "vehicles", "cars"):
		return a.counts(snap)
	case containsAny(q, "density", "parameter", "setting", "config"):
		return a.parameters()
	default:
		return a.summary(snap)
	}
}

func (a *Assistant) busiest(snap models.TrafficSnapshot) string {
	if len(snap.Directions) == 0 {
		return "No traffic data is available yet."
	}

	dirs := make([]models.DirectionStatus, len(snap.Directions))
	copy(dirs, snap.Directions)
	sort.Slice(dirs, func(i, j int) bool {
		if dirs[i].VehicleCount == dirs[j].VehicleCount {
			return dirs[i].MeanSpeedKPH < dirs[j].MeanSpeedKPH
		}
		return dirs[i].VehicleCount > dirs[j].VehicleCount
	})

	top := dirs[0]
	return fmt.Sprintf("The %s approach is busiest right now with %d vehicles (mean speed %.1f km/h, congestion %s).",
		top.Direction, top.VehicleCount, top.MeanSpeedKPH, top.Congestion)
}

func (a *Assistant) speeds(snap models.TrafficSnapshot) string {
	parts := make([]string, 0, len(snap.Directions))
	for _, d := range snap.Directions {
		parts = append(parts, fmt.Sprintf("%s %.1f km/h", d.Direction, d.MeanSpeedKPH))
	}
	return fmt.Sprintf("Mean speed across the intersection is %.1f km/h (%s).",
		snap.MeanSpeedKPH, strings.Join(parts, ", "))
}

func (a *Assistant) emergency(snap models.TrafficSnapshot) string {
	event, active := a.source.LastEmergency()
	if active && event != nil {
		msg := fmt.Sprintf("An emergency is active: %s, triggered at %s. Traffic is being held.",
			event.Kind, event.TriggeredAt.Format("15:04:05"))
		if event.Note != "" {
			msg += " Note: " + event.Note + "."
		}
		return msg
	}
	if event != nil {
		return fmt.Sprintf("No emergency is active. The last one (%s) expired at %s.",
			event.Kind, event.ExpiresAt.Format("15:04:05"))
	}
	if snap.EmergencyActive {
		return "An emergency hold is active; traffic is being stopped."
	}
	return "No emergency has been reported."
}

func (a *Assistant) counts(snap models.TrafficSnapshot) string {
	parts := make([]string, 0, len(snap.Directions))
	for _, d := range snap.Directions {
		parts = append(parts, fmt.Sprintf("%d from the %s", d.VehicleCount, d.Direction))
	}
	return fmt.Sprintf("There are %d vehicles approaching the intersection: %s.",
		snap.TotalVehicles, strings.Join(parts, ", "))
}

func (a *Assistant) parameters() string {
	p := a.source.Params()
	return fmt.Sprintf("The simulation is running with density %.2f and a speed limit of %.0f km/h.",
		p.Density, p.MaxSpeedKPH)
}

func (a *Assistant) summary(snap models.TrafficSnapshot) string {
	worst := models.CongestionFree
	for _, d := range snap.Directions {
		if rank(d.Congestion) > rank(worst) {
			worst = d.Congestion
		}
	}
	msg := fmt.Sprintf("%d vehicles are moving through the intersection at a mean %.1f km/h; overall congestion is %s.",
		snap.TotalVehicles, snap.MeanSpeedKPH, worst)
	if snap.EmergencyActive {
		msg += " An emergency hold is currently active."
	}
	return msg
}

func rank(c models.CongestionLevel) int {
	switch c {
	case models.CongestionHeavy:
		return 2
	case models.CongestionModerate:
		return 1
	default:
		return 0
	}
}

func containsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
