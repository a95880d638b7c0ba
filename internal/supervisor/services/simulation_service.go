// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

package services

import (
	"context"

	"github.com/junctionlab/crossview/internal/simulation"
)

// TickingEngine matches *simulation.Engine's RunWithContext method.
type TickingEngine interface {
	RunWithContext(ctx context.Context, publisher simulation.Publisher) error
}

// SimulationService wraps the traffic simulation tick loop as a supervised
// service. If the loop panics or returns an error, suture restarts it;
// engine state survives restarts because it lives on the engine, not in
// the loop.
type SimulationService struct {
	engine    TickingEngine
	publisher simulation.Publisher
	name      string
}

// NewSimulationService creates a new simulation service wrapper.
func NewSimulationService(engine TickingEngine, publisher simulation.Publisher) *SimulationService {
	return &SimulationService{
		engine:    engine,
		publisher: publisher,
		name:      "traffic-simulation",
	}
}

// Serve implements suture.Service. Returns ctx.Err() on normal shutdown.
func (s *SimulationService) Serve(ctx context.Context) error {
	return s.engine.RunWithContext(ctx, s.publisher)
}

// String implements fmt.Stringer for logging.
func (s *SimulationService) String() string {
	return s.name
}
