// Crossview - Real-Time Intersection Traffic Visualization and Chat
// Copyright 2026 Junction Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/junctionlab/crossview

// Package api provides HTTP routing using the Chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/junctionlab/crossview/internal/middleware"
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler, allowing the middleware package to
// work with Chi's r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Router wires handlers and middleware into the HTTP route tree.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router from a handler and middleware factories.
func NewRouter(handler *Handler, chiMW *ChiMiddleware) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: chiMW,
	}
}

// SetupChi configures all HTTP routes using the Chi router.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware stack, applied to all routes in order.
	r.Use(RequestIDWithLogging())      // X-Request-ID header plus logging context
	r.Use(chimiddleware.RealIP)        // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer)     // Recover from panics
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight

	// Health endpoints get permissive rate limiting so monitoring tools
	// can poll frequently.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Core API endpoints.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		// Traffic state and simulation control.
		r.Get("/traffic", router.handler.Traffic)
		r.Get("/traffic/params", router.handler.GetParams)
		r.With(router.chiMiddleware.RateLimitWrite()).
			Put("/traffic/params", router.handler.UpdateParams)
		r.Get("/traffic/emergency", router.handler.GetEmergency)
		r.With(router.chiMiddleware.RateLimitWrite()).
			Post("/traffic/emergency", router.handler.TriggerEmergency)

		// Presence, locations, and chat history.
		r.Get("/users", router.handler.Users)
		r.Get("/locations", router.handler.Locations)
		r.Get("/chat/history", router.handler.ChatHistory)

		// Traffic assistant.
		r.With(router.chiMiddleware.RateLimitAssistant()).
			Post("/assistant", router.handler.Assistant)

		// WebSocket upgrade. The limit applies to the upgrade rate only;
		// per-message flood control lives in the gateway.
		r.With(router.chiMiddleware.RateLimitWebSocket()).
			Get("/ws", router.handler.WebSocket)
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", promhttp.Handler())

	return r
}
