// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/itemforge/itemforge/internal/config"
)

// Server runs the control-plane HTTP server as a supervised service.
type Server struct {
	srv      *http.Server
	shutdown time.Duration
	logger   zerolog.Logger
}

// NewServer binds the router to the configured address.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewServer(handler http.Handler, cfg config.ServerConfig, logger zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
			IdleTimeout:  2 * cfg.Timeout,
		},
		shutdown: cfg.ShutdownTimeout,
		logger:   logger.With().Str("component", "http_server").Logger(),
	}
}

// Serve implements suture.Service: it blocks until the listener fails or
// the context is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("http server listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Warn().Err(err).Msg("http server shutdown incomplete")
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (s *Server) String() string {
	return "http-server"
}
