// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

// Package trainer orchestrates a full training run: snapshot the event
// store, partition events per action, compute correlators and rankings,
// coerce item properties, fuse everything into one record per item, and
// publish the result as the live index.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/itemforge/itemforge/internal/config"
	"github.com/itemforge/itemforge/internal/correlate"
	"github.com/itemforge/itemforge/internal/eventstore"
	"github.com/itemforge/itemforge/internal/fusion"
	"github.com/itemforge/itemforge/internal/metrics"
	"github.com/itemforge/itemforge/internal/models"
	"github.com/itemforge/itemforge/internal/partition"
	"github.com/itemforge/itemforge/internal/publish"
)

// ErrTrainInProgress is returned when a run is requested while another is
// still executing. Runs never overlap.
var ErrTrainInProgress = errors.New("training run already in progress")

// Publisher is the publish side the trainer hands finished models to.
type Publisher interface {
	Publish(ctx context.Context, model *models.Model) (*publish.Report, error)
}

// Run summarizes one completed training run.
type Run struct {
	StartedAt time.Time
	Duration  time.Duration
	Events    int
	Records   int
	Index     string
}

// Trainer drives the pipeline end to end.
type Trainer struct {
	cfg       *config.Config
	store     eventstore.Store
	publisher Publisher
	logger    zerolog.Logger

	runMu sync.Mutex // held for the duration of a run

	mu      sync.Mutex
	lastRun *Run
	lastErr error
}

// New creates a trainer.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(cfg *config.Config, store eventstore.Store, publisher Publisher, logger zerolog.Logger) *Trainer {
	return &Trainer{
		cfg:       cfg,
		store:     store,
		publisher: publisher,
		logger:    logger.With().Str("component", "trainer").Logger(),
	}
}

// LastRun returns the most recent completed run and its error, if any.
// Nil before the first run finishes.
func (t *Trainer) LastRun() (*Run, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun, t.lastErr
}

// Running reports whether a run is currently executing.
func (t *Trainer) Running() bool {
	if t.runMu.TryLock() {
		t.runMu.Unlock()
		return false
	}
	return true
}

// Train executes one full run. Only one run executes at a time; a second
// caller gets ErrTrainInProgress instead of queueing.
func (t *Trainer) Train(ctx context.Context) (*Run, error) {
	if !t.runMu.TryLock() {
		return nil, ErrTrainInProgress
	}
	defer t.runMu.Unlock()

	start := time.Now()
	run, err := t.train(ctx, start)

	t.mu.Lock()
	t.lastRun = run
	t.lastErr = err
	t.mu.Unlock()

	metrics.TrainDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TrainRuns.WithLabelValues("failure").Inc()
		t.logger.Error().Err(err).Dur("took", time.Since(start)).Msg("training run failed")
		return nil, err
	}
	metrics.TrainRuns.WithLabelValues("success").Inc()
	metrics.LastTrainSuccess.SetToCurrentTime()
	t.logger.Info().
		Int("events", run.Events).
		Int("records", run.Records).
		Str("index", run.Index).
		Dur("took", run.Duration).
		Msg("training run complete")
	return run, nil
}

func (t *Trainer) train(ctx context.Context, start time.Time) (*Run, error) {
	events, err := t.snapshot(ctx, start)
	if err != nil {
		return nil, err
	}

	datasets, err := t.partition(ctx, events)
	if err != nil {
		return nil, err
	}

	sources, err := t.correlatorSources(ctx, datasets, events)
	if err != nil {
		return nil, err
	}

	propSource, err := t.propertySource(ctx)
	if err != nil {
		return nil, err
	}
	if propSource != nil {
		// Properties come last so a curated field wins over a computed
		// one under the same name.
		sources = append(sources, *propSource)
	}

	result, err := fusion.Fuse(ctx, sources, t.logger)
	if err != nil {
		return nil, err
	}

	model := models.NewModel(result.FusedRecords(), result.FieldUniverse)
	report, err := t.publisher.Publish(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("publish model: %w", err)
	}

	return &Run{
		StartedAt: start,
		Duration:  time.Since(start),
		Events:    len(events),
		Records:   report.Records,
		Index:     report.Index,
	}, nil
}

func (t *Trainer) snapshot(ctx context.Context, now time.Time) ([]models.Event, error) {
	stageStart := time.Now()
	var window *eventstore.Window
	if t.cfg.Events.Window > 0 {
		window = &eventstore.Window{Since: now.Add(-t.cfg.Events.Window)}
	}

	events, err := t.store.Find(ctx, t.cfg.Events.Actions(), window)
	if err != nil {
		return nil, fmt.Errorf("snapshot events: %w", err)
	}
	t.logger.Debug().Int("events", len(events)).Dur("took", time.Since(stageStart)).Msg("snapshot stage done")
	return events, nil
}

func (t *Trainer) partition(ctx context.Context, events []models.Event) ([]partition.ActionDataset, error) {
	stageStart := time.Now()
	p := partition.New(t.cfg.Events.Actions(), t.logger)
	datasets, err := p.Partition(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("partition events: %w", err)
	}
	t.logger.Debug().Int("datasets", len(datasets)).Dur("took", time.Since(stageStart)).Msg("partition stage done")
	return datasets, nil
}

// correlatorSources builds the computed fusion sources permitted by the
// model mode: one cooccurrence map per surviving action dataset, ranking
// fields from the configured definitions.
func (t *Trainer) correlatorSources(ctx context.Context, datasets []partition.ActionDataset, events []models.Event) ([]fusion.Source, error) {
	stageStart := time.Now()
	var sources []fusion.Source

	if t.cfg.Model.Mode != config.ModeRankings {
		co := correlate.NewCooccurrence(correlate.CooccurrenceConfig{
			MaxPerItem:      t.cfg.Model.MaxPerItem,
			MinCooccurrence: t.cfg.Model.MinCooccur,
		}, t.logger)

		for _, ds := range datasets {
			fields, err := co.Compute(ctx, ds)
			if err != nil {
				return nil, fmt.Errorf("cooccurrence for action %q: %w", ds.Name, err)
			}
			sources = append(sources, fusion.Source{Name: ds.Name, Fields: fields})
		}
	}

	if t.cfg.Model.Mode != config.ModeCooccurrence {
		ranker := correlate.NewRanker(t.logger)
		for _, rc := range t.cfg.Model.Rankings {
			def := correlate.RankingDef{
				Name:       rc.Name,
				Kind:       correlate.RankingKind(rc.Kind),
				EventNames: rc.Events,
				Window:     rc.Window,
				Reference:  rc.Reference,
			}
			fields, err := ranker.Compute(ctx, def, events)
			if err != nil {
				return nil, fmt.Errorf("ranking %q: %w", rc.Name, err)
			}
			sources = append(sources, fusion.Source{Name: rc.Name, Fields: fields})
		}
	}

	t.logger.Debug().Int("sources", len(sources)).Dur("took", time.Since(stageStart)).Msg("correlator stage done")
	return sources, nil
}

func (t *Trainer) propertySource(ctx context.Context) (*fusion.Source, error) {
	stageStart := time.Now()
	props, err := t.store.AggregateProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot properties: %w", err)
	}
	if len(props) == 0 {
		return nil, nil
	}

	coercer := fusion.NewCoercer(t.cfg.Model.DateFields, t.cfg.Model.BackfillFields, t.logger)
	fields, err := coercer.Coerce(props)
	if err != nil {
		return nil, fmt.Errorf("coerce properties: %w", err)
	}
	t.logger.Debug().Int("items", fields.Len()).Dur("took", time.Since(stageStart)).Msg("property stage done")
	return &fusion.Source{Name: "properties", Fields: fields}, nil
}
