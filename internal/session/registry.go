// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

// Package session tracks connected users and their last reported map
// positions. All state is in memory and scoped to the process lifetime.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/junctionlab/crossview/internal/models"
)

// Registry is a thread-safe map of session ID to user state.
type Registry struct {
	mu        sync.RWMutex
	users     map[string]*models.User
	locations map[string]*models.UserLocation
	now       func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		users:     make(map[string]*models.User),
		locations: make(map[string]*models.UserLocation),
		now:       time.Now,
	}
}

// Add registers a session. An empty name gets a guest placeholder derived
// from the session ID. Re-adding an existing session refreshes its
// last-seen timestamp without losing the stored name.
func (r *Registry) Add(sessionID, name string) models.User {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	if existing, ok := r.users[sessionID]; ok {
		existing.LastSeenAt = now
		return *existing
	}

	if name == "" {
		name = guestName(sessionID)
	}
	user := &models.User{
		SessionID:   sessionID,
		Name:        name,
		ConnectedAt: now,
		LastSeenAt:  now,
	}
	r.users[sessionID] = user
	return *user
}

// Remove drops a session and its location. Returns the removed user and
// whether it existed.
func (r *Registry) Remove(sessionID string) (models.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[sessionID]
	if !ok {
		return models.User{}, false
	}
	delete(r.users, sessionID)
	delete(r.locations, sessionID)
	return *user, true
}

// SetName renames a session. The new name also propagates to the stored
// location so the map labels stay consistent.
func (r *Registry) SetName(sessionID, name string) (models.User, error) {
	if name == "" {
		return models.User{}, fmt.Errorf("name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[sessionID]
	if !ok {
		return models.User{}, fmt.Errorf("unknown session %q", sessionID)
	}
	user.Name = name
	user.LastSeenAt = r.now().UTC()
	if loc, ok := r.locations[sessionID]; ok {
		loc.Name = name
	}
	return *user, nil
}

// SetLocation stores the latest reported position for a session.
func (r *Registry) SetLocation(sessionID string, lat, lng float64) (models.UserLocation, error) {
	if lat < -90 || lat > 90 {
		return models.UserLocation{}, fmt.Errorf("latitude must be in [-90, 90], got %g", lat)
	}
	if lng < -180 || lng > 180 {
		return models.UserLocation{}, fmt.Errorf("longitude must be in [-180, 180], got %g", lng)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[sessionID]
	if !ok {
		return models.UserLocation{}, fmt.Errorf("unknown session %q", sessionID)
	}
	user.LastSeenAt = r.now().UTC()

	loc := &models.UserLocation{
		SessionID:  sessionID,
		Name:       user.Name,
		Latitude:   lat,
		Longitude:  lng,
		ReportedAt: r.now().UTC(),
	}
	r.locations[sessionID] = loc
	return *loc, nil
}

// Get returns the user for a session, if present.
func (r *Registry) Get(sessionID string) (models.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[sessionID]
	if !ok {
		return models.User{}, false
	}
	return *user, true
}

// Users returns all connected users ordered by connection time, then
// session ID for a stable order between equal timestamps.
func (r *Registry) Users() []models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// Locations returns the latest reported positions ordered by session ID.
func (r *Registry) Locations() []models.UserLocation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.UserLocation, 0, len(r.locations))
	for _, l := range r.locations {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

// Count returns the number of connected sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// guestName derives a stable placeholder name from a session ID.
func guestName(sessionID string) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return "guest-" + short
}
