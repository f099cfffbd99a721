// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package api

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// requestLogging logs each request with its chi request ID, method, path,
// status, and latency.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func requestLogging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info().
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(start)).
				Msg("request")
		})
	}
}
