// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run("level_"+tt.level, func(t *testing.T) {
			if got := parseLevel(tt.level); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})
	defer Init(Config{Level: "info", Format: "json"})

	Info().Str("component", "test").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"component":"test"`) {
		t.Errorf("output missing structured field: %s", out)
	}
	if !strings.Contains(out, `"message":"hello"`) {
		t.Errorf("output missing message: %s", out)
	}
}

func TestSlogBridge(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(Config{Level: "info", Format: "json"})

	slogger := NewSlogLogger()
	slogger.Info("supervisor event", "service", "trainer")

	out := buf.String()
	if !strings.Contains(out, "supervisor event") {
		t.Errorf("slog bridge output missing message: %s", out)
	}
	if !strings.Contains(out, `"service":"trainer"`) {
		t.Errorf("slog bridge output missing attribute: %s", out)
	}
}
