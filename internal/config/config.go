// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

// Package config loads and validates the Crossview configuration using
// Koanf v2 with layered sources: built-in defaults, an optional YAML file,
// and environment variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Crossview server.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Simulation SimulationConfig `koanf:"simulation"`
	Chat       ChatConfig       `koanf:"chat"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// SimulationConfig holds the traffic simulation parameters.
type SimulationConfig struct {
	// TickInterval is the fixed simulation step. One traffic snapshot is
	// broadcast per tick.
	TickInterval time.Duration `koanf:"tick_interval"`

	// Density scales vehicle counts of newly spawned groups, in (0, 1].
	Density float64 `koanf:"density"`

	// MaxSpeedKPH caps every vehicle group's speed.
	MaxSpeedKPH float64 `koanf:"max_speed_kph"`

	// SpawnDistanceM is where recycled groups re-enter the approach.
	SpawnDistanceM float64 `koanf:"spawn_distance_m"`

	// MinHeadwayM is the minimum gap the trail group keeps to its lead.
	MinHeadwayM float64 `koanf:"min_headway_m"`

	// MaxGroupSize bounds the vehicle count of a single group.
	MaxGroupSize int `koanf:"max_group_size"`

	// EmergencyHold is how long an emergency keeps the intersection braked.
	EmergencyHold time.Duration `koanf:"emergency_hold"`
}

// ChatConfig holds chat relay settings.
type ChatConfig struct {
	// HistorySize is the capacity of the in-memory chat ring replayed to
	// newly connected clients.
	HistorySize int `koanf:"history_size"`

	// MaxMessageLen caps chat message text length in runes.
	MaxMessageLen int `koanf:"max_message_len"`

	// RatePerSecond and Burst configure the per-client chat flood limiter.
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`
}

// SecurityConfig holds CORS and HTTP rate limiting settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.Simulation.TickInterval < 100*time.Millisecond {
		return fmt.Errorf("simulation.tick_interval must be at least 100ms, got %s", c.Simulation.TickInterval)
	}
	if c.Simulation.Density <= 0 || c.Simulation.Density > 1 {
		return fmt.Errorf("simulation.density must be in (0, 1], got %g", c.Simulation.Density)
	}
	if c.Simulation.MaxSpeedKPH < 10 || c.Simulation.MaxSpeedKPH > 130 {
		return fmt.Errorf("simulation.max_speed_kph must be in [10, 130], got %g", c.Simulation.MaxSpeedKPH)
	}
	if c.Simulation.SpawnDistanceM <= 0 {
		return fmt.Errorf("simulation.spawn_distance_m must be positive, got %g", c.Simulation.SpawnDistanceM)
	}
	if c.Simulation.MinHeadwayM < 0 || c.Simulation.MinHeadwayM >= c.Simulation.SpawnDistanceM {
		return fmt.Errorf("simulation.min_headway_m must be in [0, spawn_distance_m), got %g", c.Simulation.MinHeadwayM)
	}
	if c.Simulation.MaxGroupSize < 1 {
		return fmt.Errorf("simulation.max_group_size must be at least 1, got %d", c.Simulation.MaxGroupSize)
	}
	if c.Simulation.EmergencyHold <= 0 {
		return fmt.Errorf("simulation.emergency_hold must be positive, got %s", c.Simulation.EmergencyHold)
	}
	if c.Chat.HistorySize < 1 {
		return fmt.Errorf("chat.history_size must be at least 1, got %d", c.Chat.HistorySize)
	}
	if c.Chat.MaxMessageLen < 1 {
		return fmt.Errorf("chat.max_message_len must be at least 1, got %d", c.Chat.MaxMessageLen)
	}
	if c.Chat.RatePerSecond <= 0 {
		return fmt.Errorf("chat.rate_per_second must be positive, got %g", c.Chat.RatePerSecond)
	}
	if c.Chat.Burst < 1 {
		return fmt.Errorf("chat.burst must be at least 1, got %d", c.Chat.Burst)
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("security.rate_limit_reqs must be at least 1, got %d", c.Security.RateLimitReqs)
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("security.rate_limit_window must be positive, got %s", c.Security.RateLimitWindow)
		}
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
