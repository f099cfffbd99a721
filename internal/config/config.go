// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

// Package config defines the trainer configuration and loads it from
// layered sources: built-in defaults, an optional YAML file, and
// environment variables, in increasing priority.
package config

import (
	"time"
)

// Config is the root configuration.
type Config struct {
	App     AppConfig     `koanf:"app"`
	Events  EventsConfig  `koanf:"events"`
	Store   StoreConfig   `koanf:"store"`
	Index   IndexConfig   `koanf:"index"`
	Model   ModelConfig   `koanf:"model"`
	Train   TrainConfig   `koanf:"train"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// AppConfig names the deployment.
type AppConfig struct {
	Name string `koanf:"name" validate:"required"`
}

// EventsConfig declares which behavioral actions the pipeline consumes.
// Every action with events gets a co-occurrence correlator; the primary
// versus secondary split fixes the precedence order fusion applies when
// field names collide, primary first.
type EventsConfig struct {
	Primary   []string      `koanf:"primary" validate:"required,min=1,dive,required"`
	Secondary []string      `koanf:"secondary" validate:"dive,required"`
	Window    time.Duration `koanf:"window" validate:"min=0"`
}

// Actions returns primary and secondary action names combined, primary
// first, order preserved.
func (e EventsConfig) Actions() []string {
	out := make([]string, 0, len(e.Primary)+len(e.Secondary))
	out = append(out, e.Primary...)
	out = append(out, e.Secondary...)
	return out
}

// StoreConfig configures the embedded event store.
type StoreConfig struct {
	// Path is the DuckDB database file. Empty means in-memory.
	Path string `koanf:"path"`
}

// Backend modes for the index.
const (
	BackendHTTP   = "http"
	BackendBadger = "badger"
)

// IndexConfig configures the index backend and the serving alias.
type IndexConfig struct {
	Alias   string        `koanf:"alias" validate:"required"`
	Backend string        `koanf:"backend" validate:"required,oneof=http badger"`
	URL     string        `koanf:"url" validate:"omitempty,url"`
	Path    string        `koanf:"path"`
	Timeout time.Duration `koanf:"timeout" validate:"min=0"`

	Bulk    BulkConfig    `koanf:"bulk"`
	Breaker BreakerConfig `koanf:"breaker"`
}

// BulkConfig throttles bulk writes to the backend.
type BulkConfig struct {
	BatchSize  int     `koanf:"batch_size" validate:"min=1"`
	RatePerSec float64 `koanf:"rate_per_sec" validate:"min=0"`
}

// BreakerConfig tunes the backend circuit breaker.
type BreakerConfig struct {
	FailureThreshold uint32 `koanf:"failure_threshold" validate:"min=1"`
}

// Model modes select which correlators feed fusion.
const (
	ModeAll          = "all"
	ModeCooccurrence = "cooccurrence"
	ModeRankings     = "rankings"
)

// ModelConfig shapes the trained model.
type ModelConfig struct {
	Mode           string          `koanf:"mode" validate:"required,oneof=all cooccurrence rankings"`
	DateFields     []string        `koanf:"date_fields" validate:"dive,required"`
	BackfillFields []string        `koanf:"backfill_fields" validate:"dive,required"`
	MaxPerItem     int             `koanf:"max_per_item" validate:"min=1"`
	MinCooccur     int             `koanf:"min_cooccurrence" validate:"min=1"`
	Rankings       []RankingConfig `koanf:"rankings" validate:"dive"`
}

// RankingConfig declares one time-decayed ranking field. Reference pins the
// "now" the window counts back from; zero means the latest event timestamp,
// a fixed date makes runs over a frozen event set reproducible.
type RankingConfig struct {
	Name      string        `koanf:"name" validate:"required"`
	Kind      string        `koanf:"kind" validate:"required,oneof=popular trending hot"`
	Events    []string      `koanf:"events" validate:"required,min=1,dive,required"`
	Window    time.Duration `koanf:"window" validate:"required,min=1m"`
	Reference time.Time     `koanf:"reference"`
}

// TrainConfig schedules training runs in service mode.
type TrainConfig struct {
	Interval  time.Duration `koanf:"interval" validate:"min=1m"`
	OnStartup bool          `koanf:"on_startup"`
}

// ServerConfig configures the control-plane HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=1s"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"min=1s"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"required,oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"required,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, applied before the config
// file and environment layers.
func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name: "itemforge",
		},
		Events: EventsConfig{
			Primary:   []string{"purchase"},
			Secondary: []string{"detailView"},
			Window:    0, // all history
		},
		Store: StoreConfig{
			Path: "/data/itemforge.duckdb",
		},
		Index: IndexConfig{
			Alias:   "items",
			Backend: BackendBadger,
			URL:     "",
			Path:    "/data/index",
			Timeout: 30 * time.Second,
			Bulk: BulkConfig{
				BatchSize:  500,
				RatePerSec: 0, // unthrottled
			},
			Breaker: BreakerConfig{
				FailureThreshold: 5,
			},
		},
		Model: ModelConfig{
			Mode:           ModeAll,
			DateFields:     []string{},
			BackfillFields: []string{},
			MaxPerItem:     50,
			MinCooccur:     1,
			Rankings:       []RankingConfig{},
		},
		Train: TrainConfig{
			Interval:  24 * time.Hour,
			OnStartup: true,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3861,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
