// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

// Package simulation holds the in-memory traffic model: two vehicle groups
// per approach direction, advanced by a fixed-step update once per tick.
//
// The model is deliberately physics-lite. Groups accelerate toward a target
// speed, brake near the stop line, and are recycled at the spawn distance
// once they cross the intersection. An emergency hold brakes every group
// toward zero until the hold expires.
package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/junctionlab/crossview/internal/config"
	"github.com/junctionlab/crossview/internal/logging"
	"github.com/junctionlab/crossview/internal/metrics"
	"github.com/junctionlab/crossview/internal/models"
)

// Tuning constants for the speed model, in km/h and km/h per second.
const (
	accelKPHPerSec          = 6.0
	brakeKPHPerSec          = 12.0
	emergencyBrakeKPHPerSec = 25.0

	// Groups inside the brake zone slow to the approach speed.
	brakeZoneM       = 60.0
	approachSpeedKPH = 15.0
)

// Publisher receives one snapshot per tick. Implemented by the realtime
// gateway, which fans snapshots out over the WebSocket hub.
type Publisher interface {
	PublishSnapshot(snap models.TrafficSnapshot)
}

// group is the mutable state of one vehicle group.
type group struct {
	count     int
	speedKPH  float64
	distanceM float64
}

// Engine is the traffic simulation for one four-way intersection.
//
// Advance runs on a single goroutine (the tick loop); Snapshot, Params,
// SetParams, and TriggerEmergency may be called concurrently from handlers.
type Engine struct {
	mu sync.RWMutex

	cfg    config.SimulationConfig
	params models.SimulationParams

	// Two groups per direction. Order within the pair is not significant;
	// snapshots report the group closer to the stop line as the lead.
	groups map[models.Direction][]*group

	seq            uint64
	emergencyUntil time.Time
	lastEmergency  *models.EmergencyEvent

	rng *rand.Rand
	now func() time.Time
}

// NewEngine creates an engine with groups seeded from the configuration.
func NewEngine(cfg config.SimulationConfig) *Engine {
	e := &Engine{
		cfg: cfg,
		params: models.SimulationParams{
			Density:     cfg.Density,
			MaxSpeedKPH: cfg.MaxSpeedKPH,
		},
		groups: make(map[models.Direction][]*group, 4),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}

	for _, dir := range models.Directions() {
		// Stagger the pair over the approach so traffic does not arrive
		// in lockstep across directions.
		near := e.spawnGroup()
		near.distanceM = cfg.SpawnDistanceM * (0.2 + 0.3*e.rng.Float64())
		far := e.spawnGroup()
		far.distanceM = math.Max(near.distanceM+cfg.MinHeadwayM, cfg.SpawnDistanceM*(0.6+0.4*e.rng.Float64()))
		e.groups[dir] = []*group{near, far}
	}

	return e
}

// spawnGroup creates a fresh group at the spawn distance with a count drawn
// from the current density and a starting speed below the cap.
func (e *Engine) spawnGroup() *group {
	maxCount := float64(e.cfg.MaxGroupSize) * e.params.Density
	count := 1 + e.rng.Intn(int(math.Max(1, maxCount)))
	speed := e.params.MaxSpeedKPH * (0.5 + 0.4*e.rng.Float64())
	return &group{
		count:     count,
		speedKPH:  speed,
		distanceM: e.cfg.SpawnDistanceM,
	}
}

// Advance moves the simulation forward by dt. dt <= 0 is a no-op.
func (e *Engine) Advance(dt time.Duration) {
	if dt <= 0 {
		return
	}
	seconds := dt.Seconds()

	e.mu.Lock()
	defer e.mu.Unlock()

	emergency := e.now().Before(e.emergencyUntil)

	for _, dir := range e.groups {
		for _, g := range dir {
			e.step(g, seconds, emergency)
		}
		enforceHeadway(dir, e.cfg.MinHeadwayM)
	}

	e.seq++
}

// step updates one group's speed toward its target and moves it.
func (e *Engine) step(g *group, seconds float64, emergency bool) {
	target := e.params.MaxSpeedKPH
	brakeRate := brakeKPHPerSec

	switch {
	case emergency:
		target = 0
		brakeRate = emergencyBrakeKPHPerSec
	case g.distanceM < brakeZoneM:
		target = math.Min(approachSpeedKPH, e.params.MaxSpeedKPH)
	}

	if g.speedKPH < target {
		g.speedKPH = math.Min(target, g.speedKPH+accelKPHPerSec*seconds)
	} else if g.speedKPH > target {
		g.speedKPH = math.Max(target, g.speedKPH-brakeRate*seconds)
	}

	g.distanceM -= g.speedKPH / 3.6 * seconds
	if g.distanceM <= 0 {
		// Crossed the stop line: recycle at the spawn distance.
		fresh := e.spawnGroup()
		g.count = fresh.count
		g.speedKPH = fresh.speedKPH
		g.distanceM = fresh.distanceM
	}
}

// enforceHeadway keeps the farther group at least minHeadway behind the
// closer one, matching its speed when it would otherwise overrun.
func enforceHeadway(pair []*group, minHeadwayM float64) {
	near, far := pair[0], pair[1]
	if far.distanceM < near.distanceM {
		near, far = far, near
	}
	if far.distanceM < near.distanceM+minHeadwayM {
		far.distanceM = near.distanceM + minHeadwayM
		far.speedKPH = math.Min(far.speedKPH, near.speedKPH)
	}
}

// Snapshot returns a consistent point-in-time copy of the simulation state.
func (e *Engine) Snapshot() models.TrafficSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := models.TrafficSnapshot{
		Seq:             e.seq,
		Timestamp:       e.now().UTC(),
		Directions:      make([]models.DirectionStatus, 0, 4),
		EmergencyActive: e.now().Before(e.emergencyUntil),
	}

	var totalSpeedWeighted float64
	for _, dir := range models.Directions() {
		near, far := e.groups[dir][0], e.groups[dir][1]
		if far.distanceM < near.distanceM {
			near, far = far, near
		}

		status := models.DirectionStatus{
			Direction: dir,
			Groups: []models.VehicleGroup{
				{Direction: dir, Slot: models.SlotLead, Count: near.count, SpeedKPH: round1(near.speedKPH), DistanceM: round1(near.distanceM)},
				{Direction: dir, Slot: models.SlotTrail, Count: far.count, SpeedKPH: round1(far.speedKPH), DistanceM: round1(far.distanceM)},
			},
			VehicleCount: near.count + far.count,
		}
		meanSpeed := (near.speedKPH*float64(near.count) + far.speedKPH*float64(far.count)) / float64(status.VehicleCount)
		status.MeanSpeedKPH = round1(meanSpeed)
		status.Congestion = e.congestion(status.VehicleCount, meanSpeed)

		snap.Directions = append(snap.Directions, status)
		snap.TotalVehicles += status.VehicleCount
		totalSpeedWeighted += meanSpeed * float64(status.VehicleCount)
	}

	if snap.TotalVehicles > 0 {
		snap.MeanSpeedKPH = round1(totalSpeedWeighted / float64(snap.TotalVehicles))
	}
	return snap
}

// congestion rates one approach from its vehicle count and mean speed.
func (e *Engine) congestion(count int, meanSpeedKPH float64) models.CongestionLevel {
	speedRatio := meanSpeedKPH / e.params.MaxSpeedKPH
	switch {
	case count > e.cfg.MaxGroupSize && speedRatio < 0.4:
		return models.CongestionHeavy
	case count > e.cfg.MaxGroupSize/2 || speedRatio < 0.6:
		return models.CongestionModerate
	default:
		return models.CongestionFree
	}
}

// Params returns the current runtime parameters.
func (e *Engine) Params() models.SimulationParams {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.params
}

// SetParams adjusts density and max speed. Density changes apply to newly
// spawned groups; a lowered max speed clamps existing groups immediately.
func (e *Engine) SetParams(p models.SimulationParams) error {
	if p.Density <= 0 || p.Density > 1 {
		return fmt.Errorf("density must be in (0, 1], got %g", p.Density)
	}
	if p.MaxSpeedKPH < 10 || p.MaxSpeedKPH > 130 {
		return fmt.Errorf("max speed must be in [10, 130] km/h, got %g", p.MaxSpeedKPH)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.params = p
	for _, dir := range e.groups {
		for _, g := range dir {
			g.speedKPH = math.Min(g.speedKPH, p.MaxSpeedKPH)
		}
	}
	return nil
}

// Emergency sources. A fixed set so the emergency metric's source label
// stays bounded; who exactly triggered an event belongs in log lines.
const (
	SourceWebSocket = "websocket"
	SourceAPI       = "api"
)

const maxEmergencyKindLen = 64

// TriggerEmergency puts the intersection in an emergency hold. Retriggering
// while a hold is active extends it. Source must be SourceWebSocket or
// SourceAPI; anything else is recorded as "unknown".
func (e *Engine) TriggerEmergency(kind, note, source string) models.EmergencyEvent {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = "unspecified"
	}
	if runes := []rune(kind); len(runes) > maxEmergencyKindLen {
		kind = string(runes[:maxEmergencyKindLen])
	}
	if source != SourceWebSocket && source != SourceAPI {
		source = "unknown"
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	event := models.EmergencyEvent{
		ID:          uuid.New().String(),
		Kind:        kind,
		Note:        note,
		Source:      source,
		TriggeredAt: now.UTC(),
		ExpiresAt:   now.Add(e.cfg.EmergencyHold).UTC(),
	}
	e.emergencyUntil = now.Add(e.cfg.EmergencyHold)
	e.lastEmergency = &event

	metrics.RecordEmergency(kind, source)
	return event
}

// LastEmergency returns the most recent emergency event and whether its
// hold is still active.
func (e *Engine) LastEmergency() (*models.EmergencyEvent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lastEmergency == nil {
		return nil, false
	}
	event := *e.lastEmergency
	return &event, e.now().Before(e.emergencyUntil)
}

// RunWithContext ticks the simulation until the context is canceled,
// publishing one snapshot per tick. Designed for suture supervision.
func (e *Engine) RunWithContext(ctx context.Context, publisher Publisher) error {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	logging.Info().
		Str("component", "simulation").
		Dur("tick_interval", e.cfg.TickInterval).
		Msg("simulation started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "simulation").Msg("simulation stopped")
			return ctx.Err()

		case <-ticker.C:
			start := time.Now()
			e.Advance(e.cfg.TickInterval)
			snap := e.Snapshot()
			metrics.ObserveTick(time.Since(start))

			for _, status := range snap.Directions {
				metrics.SetDirectionVehicles(string(status.Direction), status.VehicleCount)
			}
			metrics.SetMeanSpeed(snap.MeanSpeedKPH)

			if publisher != nil {
				publisher.PublishSnapshot(snap)
			}
		}
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
