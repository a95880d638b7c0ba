// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8470 {
		t.Errorf("Server.Port = %d, want 8470", cfg.Server.Port)
	}
	if cfg.Simulation.TickInterval != time.Second {
		t.Errorf("Simulation.TickInterval = %s, want 1s", cfg.Simulation.TickInterval)
	}
	if cfg.Simulation.Density != 0.5 {
		t.Errorf("Simulation.Density = %g, want 0.5", cfg.Simulation.Density)
	}
	if cfg.Chat.HistorySize != 50 {
		t.Errorf("Chat.HistorySize = %d, want 50", cfg.Chat.HistorySize)
	}
	if len(cfg.Security.CORSOrigins) != 1 || cfg.Security.CORSOrigins[0] != "*" {
		t.Errorf("Security.CORSOrigins = %v, want [*]", cfg.Security.CORSOrigins)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CROSSVIEW_HTTP_PORT", "9321")
	t.Setenv("CROSSVIEW_SIM_DENSITY", "0.8")
	t.Setenv("CROSSVIEW_SIM_MAX_SPEED_KPH", "45")
	t.Setenv("CROSSVIEW_HTTP_TIMEOUT", "45s")
	t.Setenv("CROSSVIEW_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9321 {
		t.Errorf("Server.Port = %d, want 9321", cfg.Server.Port)
	}
	if cfg.Simulation.Density != 0.8 {
		t.Errorf("Simulation.Density = %g, want 0.8", cfg.Simulation.Density)
	}
	if cfg.Simulation.MaxSpeedKPH != 45 {
		t.Errorf("Simulation.MaxSpeedKPH = %g, want 45", cfg.Simulation.MaxSpeedKPH)
	}
	if cfg.Server.Timeout != 45*time.Second {
		t.Errorf("Server.Timeout = %s, want 45s", cfg.Server.Timeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadIgnoresUnprefixedEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9998")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8470 {
		t.Errorf("Server.Port = %d, want default 8470 (unprefixed vars must be ignored)", cfg.Server.Port)
	}
}

func TestLoadIgnoresUnmappedPrefixedEnv(t *testing.T) {
	t.Setenv("CROSSVIEW_NO_SUCH_SETTING", "42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8470 {
		t.Errorf("Server.Port = %d, want default 8470", cfg.Server.Port)
	}
}

func TestLoadCORSOriginsSplitOnCommas(t *testing.T) {
	t.Setenv("CROSSVIEW_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Security.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
	for i, origin := range want {
		if cfg.Security.CORSOrigins[i] != origin {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Security.CORSOrigins[i], origin)
		}
	}
}

func TestLoadRejectsInvalidEnvValue(t *testing.T) {
	t.Setenv("CROSSVIEW_SIM_DENSITY", "5")

	if _, err := Load(); err == nil {
		t.Fatal("Load() with density 5 should fail validation")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"CROSSVIEW_HTTP_PORT", "server.port"},
		{"CROSSVIEW_SIM_MAX_SPEED_KPH", "simulation.max_speed_kph"},
		{"CROSSVIEW_CHAT_HISTORY_SIZE", "chat.history_size"},
		{"CROSSVIEW_CORS_ORIGINS", "security.cors_origins"},
		{"CROSSVIEW_UNKNOWN", ""},
		{"PATH", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.key); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"tick too small", func(c *Config) { c.Simulation.TickInterval = time.Millisecond }, "tick_interval"},
		{"density zero", func(c *Config) { c.Simulation.Density = 0 }, "density"},
		{"speed too high", func(c *Config) { c.Simulation.MaxSpeedKPH = 200 }, "max_speed_kph"},
		{"headway beyond spawn", func(c *Config) { c.Simulation.MinHeadwayM = 1000 }, "min_headway_m"},
		{"history zero", func(c *Config) { c.Chat.HistorySize = 0 }, "history_size"},
		{"rate limit zero reqs", func(c *Config) { c.Security.RateLimitReqs = 0 }, "rate_limit_reqs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestValidateSkipsRateLimitWhenDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.RateLimitDisabled = true
	cfg.Security.RateLimitReqs = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil when rate limiting disabled", err)
	}
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8470}
	if got := s.Addr(); got != "127.0.0.1:8470" {
		t.Errorf("Addr() = %q, want 127.0.0.1:8470", got)
	}
}
