// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

// Package main is the entry point for the Itemforge trainer.
//
// Itemforge turns raw behavioral events (purchases, cart additions, detail
// views) and item property updates into a fused, per-item search index for
// recommendation serving. Each training run partitions events per action,
// computes co-occurrence correlators and popularity rankings, merges them
// with curated item properties, and publishes the result behind a serving
// alias with an atomic swap.
//
// # Modes
//
// Batch mode (-once) runs a single training pass and exits, for cron-style
// scheduling. Service mode (default) runs the trainer periodically under a
// supervision tree alongside the control-plane HTTP server.
//
// # Configuration
//
// Configuration loads via Koanf v2 with layered sources (highest priority
// wins): ITEMFORGE_* environment variables, a YAML config file (CONFIG_PATH
// or ./config.yaml), built-in defaults.
//
// # Signal Handling
//
// Service mode shuts down gracefully on SIGINT and SIGTERM: the trainer
// finishes or aborts its current run, the HTTP server drains in-flight
// requests, and the stores close cleanly.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/itemforge/itemforge/internal/api"
	"github.com/itemforge/itemforge/internal/config"
	"github.com/itemforge/itemforge/internal/eventstore"
	"github.com/itemforge/itemforge/internal/index"
	"github.com/itemforge/itemforge/internal/logging"
	"github.com/itemforge/itemforge/internal/publish"
	"github.com/itemforge/itemforge/internal/supervisor"
	"github.com/itemforge/itemforge/internal/trainer"
)

func main() {
	once := flag.Bool("once", false, "run a single training pass and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("alias", cfg.Index.Alias).
		Str("backend", cfg.Index.Backend).
		Strs("primary_actions", cfg.Events.Primary).
		Str("mode", cfg.Model.Mode).
		Msg("Configuration loaded")

	store, err := eventstore.OpenDuckDB(cfg.Store.Path, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open event store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event store")
		}
	}()

	backend, cleanup, err := newBackend(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize index backend")
	}
	defer cleanup()

	publisher := publish.New(backend, cfg.Index.Alias, logging.Logger())
	tr := trainer.New(cfg, store, publisher, logging.Logger())

	if *once {
		runOnce(tr)
		return
	}
	runService(cfg, tr, publisher)
}

// newBackend selects the index backend from configuration. The returned
// cleanup closes whatever the backend owns.
func newBackend(cfg *config.Config) (index.Backend, func(), error) {
	switch cfg.Index.Backend {
	case config.BackendHTTP:
		b := index.NewHTTPBackend(index.HTTPConfig{
			BaseURL:                 cfg.Index.URL,
			Timeout:                 cfg.Index.Timeout,
			BulkBatchSize:           cfg.Index.Bulk.BatchSize,
			BulkRatePerSec:          cfg.Index.Bulk.RatePerSec,
			BreakerFailureThreshold: cfg.Index.Breaker.FailureThreshold,
		}, logging.Logger())
		return b, func() {}, nil
	case config.BackendBadger:
		db, err := index.OpenBadger(cfg.Index.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger at %q: %w", cfg.Index.Path, err)
		}
		cleanup := func() {
			if err := db.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing index store")
			}
		}
		return index.NewBadgerBackend(db, logging.Logger()), cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}

// runOnce executes a single training pass for cron-style batch scheduling.
func runOnce(tr *trainer.Trainer) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run, err := tr.Train(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Training run failed")
		os.Exit(1)
	}
	logging.Info().
		Int("events", run.Events).
		Int("records", run.Records).
		Str("index", run.Index).
		Dur("took", run.Duration).
		Msg("Training run complete")
}

// runService supervises the periodic trainer and the control-plane HTTP
// server until a shutdown signal arrives.
func runService(cfg *config.Config, tr *trainer.Trainer, publisher *publish.Publisher) {
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	trainSvc := trainer.NewService(tr, cfg.Train.Interval, cfg.Train.OnStartup, logging.Logger())
	tree.AddPipelineService(trainSvc)

	handler := api.NewHandler(tr, publisher, logging.Logger())
	router := api.NewRouter(handler, cfg.Server, logging.Logger())
	tree.AddAPIService(api.NewServer(router.Setup(), cfg.Server, logging.Logger()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Starting Itemforge with supervisor tree")
	err := tree.Serve(ctx)
	if err != nil && !isShutdown(err) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
		os.Exit(1)
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service missed shutdown timeout")
		}
	}
	logging.Info().Msg("Shutdown complete")
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
