// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// slogBridge implements slog.Handler on top of zerolog so libraries that
// require *slog.Logger (sutureslog) share the process logger.
type slogBridge struct {
	logger zerolog.Logger
	attrs  []slog.Attr
}

// NewSlogLogger returns a *slog.Logger backed by the global zerolog logger.
func NewSlogLogger() *slog.Logger {
	return slog.New(&slogBridge{logger: Logger()})
}

// Enabled reports whether records at the given level are handled.
func (h *slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.GetLevel() <= slogToZerolog(level)
}

// Handle forwards the record to zerolog.
//
//nolint:gocritic // slog.Record is passed by value per slog.Handler
func (h *slogBridge) Handle(_ context.Context, record slog.Record) error {
	event := h.logger.WithLevel(slogToZerolog(record.Level))
	for _, attr := range h.attrs {
		event = event.Interface(attr.Key, attr.Value.Any())
	}
	record.Attrs(func(attr slog.Attr) bool {
		event = event.Interface(attr.Key, attr.Value.Any())
		return true
	})
	event.Msg(record.Message)
	return nil
}

// WithAttrs returns a handler that always emits the given attributes.
func (h *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &slogBridge{logger: h.logger, attrs: merged}
}

// WithGroup returns the handler unchanged; grouped attributes are flattened.
func (h *slogBridge) WithGroup(string) slog.Handler { return h }

func slogToZerolog(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
