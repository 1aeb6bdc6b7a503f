// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jukewire/jukewire/internal/middleware"
)

// Routes assembles the full HTTP surface.
//
// Session creation and joining are the only unauthenticated application
// endpoints: they mint the tokens everything else requires. All other
// session routes demand a bearer token bound to the session in the URL.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)

		// Health endpoints get a permissive limit so monitoring can poll.
		r.Route("/health", func(r chi.Router) {
			r.Use(httprate.LimitByIP(1000, h.cfg.Security.RateLimitWindow))
			r.Get("/", h.Health)
			r.Get("/live", h.HealthLive)
			r.Get("/ready", h.HealthReady)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Use(httprate.LimitByIP(h.cfg.Security.RateLimitReqs, h.cfg.Security.RateLimitWindow))

			// Token-minting endpoints; no auth yet.
			r.Post("/", h.CreateSession)
			r.Post("/{sessionID}/join", h.JoinSession)

			// Everything else is bound to a session token.
			r.Group(func(r chi.Router) {
				r.Use(h.tokens.Middleware)

				r.Get("/{sessionID}", h.GetSession)
				r.Delete("/{sessionID}", h.EndSession)
				r.Put("/{sessionID}/zone", h.SetZone)
				r.Get("/{sessionID}/credits", h.Balance)

				r.Get("/{sessionID}/queue", h.GetQueue)
				r.Post("/{sessionID}/queue", h.AddTrack)
				r.Post("/{sessionID}/queue/{itemID}/vote", h.Vote)
				r.Delete("/{sessionID}/queue/{itemID}", h.RemoveTrack)

				r.Post("/{sessionID}/playback/{action}", h.Playback)

				r.Get("/{sessionID}/ws", h.WebSocket)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
