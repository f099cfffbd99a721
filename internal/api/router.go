// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

// Package api exposes the trainer's control plane over HTTP: health and
// status probes, manual train and retirement triggers, and Prometheus
// metrics.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/itemforge/itemforge/internal/config"
)

// Router assembles the control-plane HTTP handler.
type Router struct {
	handler *Handler
	cfg     config.ServerConfig
	logger  zerolog.Logger
}

// NewRouter creates a router around the handler set.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRouter(handler *Handler, cfg config.ServerConfig, logger zerolog.Logger) *Router {
	return &Router{
		handler: handler,
		cfg:     cfg,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// Setup wires middleware and routes and returns the root handler.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogging(rt.logger))
	r.Use(chimiddleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rt.cfg.RateLimitReqs, rt.cfg.RateLimitWindow))

		r.Get("/health/live", rt.handler.HealthLive)
		r.Get("/health/ready", rt.handler.HealthReady)
		r.Get("/status", rt.handler.Status)
		r.Post("/train", rt.handler.Train)
		r.Post("/retire", rt.handler.Retire)
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}
