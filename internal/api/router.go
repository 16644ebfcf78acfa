// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/fairlens/internal/auth"
	"github.com/tomtom215/fairlens/internal/middleware"
)

// Router wires handlers and middleware into the HTTP route tree.
type Router struct {
	handler *Handler
	chi     *ChiMiddleware
	auth    *auth.Middleware
}

// NewRouter creates a router. authMW may be a "none"-mode middleware when
// the API runs unauthenticated.
func NewRouter(handler *Handler, mw *ChiMiddleware, authMW *auth.Middleware) *Router {
	return &Router{handler: handler, chi: mw, auth: authMW}
}

// Setup builds the route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chi.CORS())

	// Health and observability. Permissive rate limits so monitoring
	// probes never starve.
	r.Group(func(r chi.Router) {
		r.Use(router.chi.RateLimitHealth())
		r.Get("/health", router.handler.Health)
		r.Handle("/metrics", promhttp.Handler())
	})

	// Recommendation API.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chi.RateLimit())
		r.Use(SecurityHeaders())
		r.Use(router.auth.Authenticate)

		r.With(middleware.Prometheus("/api/v1/recommend")).
			Post("/recommend", router.handler.Recommend)
		r.With(middleware.Prometheus("/api/v1/recommend/status")).
			Get("/recommend/status", router.handler.Status)
		r.With(middleware.Prometheus("/api/v1/favorites")).
			Get("/favorites/{userID}", router.handler.Favorites)
	})

	return r
}
