// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

// Package publish moves a trained model into the live index without readers
// ever observing a partial dataset. Each publish builds a fresh uniquely
// named index, bulk loads it, then atomically swaps the serving alias over
// and retires the previous index.
package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/itemforge/itemforge/internal/index"
	"github.com/itemforge/itemforge/internal/metrics"
	"github.com/itemforge/itemforge/internal/models"
)

// ErrPlaceholderModel is returned when a publish is attempted with a model
// that was never materialized by a training run.
var ErrPlaceholderModel = errors.New("model is a placeholder, nothing to publish")

// Phase names the publisher's position in the swap cycle.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseBuilding Phase = "building"
	PhaseIndexed  Phase = "indexed"
	PhaseSwapped  Phase = "swapped"
	PhaseRetired  Phase = "old_retired"
)

// Report summarizes a completed publish.
type Report struct {
	// Index is the newly live index name.
	Index string

	// Records is the number of documents written.
	Records int

	// Stale is the previous index name when its retirement failed. Empty
	// when there was no previous index or it was removed cleanly. A
	// non-empty Stale does not fail the publish; RetireStale retries it.
	Stale string
}

// Publisher owns the serving alias and drives the build/swap/retire cycle
// against an index backend.
type Publisher struct {
	backend index.Backend
	alias   string
	logger  zerolog.Logger

	mu    sync.Mutex
	phase Phase
	stale []string
	live  string
	last  time.Time
}

// New creates a publisher for the given serving alias.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(backend index.Backend, alias string, logger zerolog.Logger) *Publisher {
	return &Publisher{
		backend: backend,
		alias:   alias,
		phase:   PhaseIdle,
		logger:  logger.With().Str("component", "publisher").Str("alias", alias).Logger(),
	}
}

// Status reports the current phase, the live index, and the indexes whose
// retirement is still pending. Retirement failures accumulate across
// publishes until RetireStale removes them.
func (p *Publisher) Status() (Phase, string, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	stale := make([]string, len(p.stale))
	copy(stale, p.stale)
	return p.phase, p.live, stale
}

// LastPublished returns when the alias last swapped. Zero before the first
// publish.
func (p *Publisher) LastPublished() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Publish writes the model into a fresh index and swaps the alias to it.
//
// Any failure before the swap leaves the alias untouched; the half-built
// index is deleted and the previous dataset keeps serving. A failure after
// the swap only affects retirement of the old index, which is remembered
// and retried.
func (p *Publisher) Publish(ctx context.Context, model *models.Model) (*Report, error) {
	if !model.Materialized() {
		return nil, ErrPlaceholderModel
	}

	records := model.Records()
	if len(records) == 0 {
		// Nothing fused this run. Keep whatever is live rather than
		// swapping in an empty dataset.
		p.logger.Warn().Msg("model has no records, keeping current index")
		return &Report{}, nil
	}

	p.mu.Lock()
	if p.phase != PhaseIdle && p.phase != PhaseRetired && p.phase != PhaseSwapped {
		p.mu.Unlock()
		return nil, fmt.Errorf("publish already in progress (phase %s)", p.phase)
	}
	p.phase = PhaseBuilding
	p.mu.Unlock()

	name := fmt.Sprintf("%s-%s", p.alias, uuid.New().String()[:8])
	log := p.logger.With().Str("index", name).Logger()

	if err := p.build(ctx, name, model, log); err != nil {
		p.setPhase(PhaseIdle)
		return nil, err
	}
	p.setPhase(PhaseIndexed)

	previous, err := p.swap(ctx, name, log)
	if err != nil {
		p.abort(ctx, name, log)
		p.setPhase(PhaseIdle)
		return nil, err
	}

	p.mu.Lock()
	p.phase = PhaseSwapped
	p.live = name
	p.last = time.Now()
	p.mu.Unlock()

	metrics.PublishRecords.Add(float64(len(records)))
	report := &Report{Index: name, Records: len(records)}

	if previous != "" {
		if err := p.retire(ctx, previous, log); err != nil {
			// The new dataset is already live; losing the old index
			// delete only costs storage. Remember it for retries.
			metrics.PublishFailures.WithLabelValues(string(PhaseRetired)).Inc()
			log.Warn().Err(err).Str("stale", previous).Msg("old index retirement failed, will retry")
			p.mu.Lock()
			p.stale = append(p.stale, previous)
			p.mu.Unlock()
			report.Stale = previous
			return report, nil
		}
	}

	// Stale indexes left behind by earlier publishes stay pending; a clean
	// retirement of this run's predecessor does not settle theirs.
	p.setPhase(PhaseRetired)
	log.Info().Int("records", len(records)).Msg("publish complete")
	return report, nil
}

// RetireStale retries deletion of every index left behind by a publish whose
// retirement step failed. Indexes that still fail to delete stay pending for
// the next retry. No-op when nothing is pending.
func (p *Publisher) RetireStale(ctx context.Context) error {
	p.mu.Lock()
	pending := make([]string, len(p.stale))
	copy(pending, p.stale)
	p.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	metrics.RetirementRetries.Inc()
	retired := make(map[string]struct{}, len(pending))
	var firstErr error
	for _, name := range pending {
		err := p.backend.DeleteIndex(ctx, name)
		if err != nil && !errors.Is(err, index.ErrIndexNotFound) {
			if firstErr == nil {
				firstErr = fmt.Errorf("retire stale index %q: %w", name, err)
			}
			continue
		}
		retired[name] = struct{}{}
		p.logger.Info().Str("index", name).Msg("stale index retired")
	}

	p.mu.Lock()
	remaining := p.stale[:0]
	for _, name := range p.stale {
		if _, ok := retired[name]; !ok {
			remaining = append(remaining, name)
		}
	}
	p.stale = remaining
	if len(p.stale) == 0 && p.phase == PhaseSwapped {
		p.phase = PhaseRetired
	}
	p.mu.Unlock()
	return firstErr
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (p *Publisher) build(ctx context.Context, name string, model *models.Model, log zerolog.Logger) error {
	start := time.Now()
	fields := fieldTypes(model)

	if err := p.backend.CreateIndex(ctx, name, fields); err != nil {
		metrics.PublishFailures.WithLabelValues(string(PhaseBuilding)).Inc()
		return fmt.Errorf("create index: %w", err)
	}
	if err := p.backend.BulkWrite(ctx, name, model.Records()); err != nil {
		metrics.PublishFailures.WithLabelValues(string(PhaseBuilding)).Inc()
		p.abort(ctx, name, log)
		return fmt.Errorf("bulk write: %w", err)
	}

	metrics.PublishPhaseDuration.WithLabelValues(string(PhaseBuilding)).Observe(time.Since(start).Seconds())
	log.Debug().Int("records", len(model.Records())).Dur("took", time.Since(start)).Msg("index built")
	return nil
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (p *Publisher) swap(ctx context.Context, name string, log zerolog.Logger) (string, error) {
	start := time.Now()

	previous, err := p.backend.AliasTarget(ctx, p.alias)
	if err != nil {
		metrics.PublishFailures.WithLabelValues(string(PhaseSwapped)).Inc()
		return "", fmt.Errorf("resolve alias: %w", err)
	}
	if err := p.backend.SwapAlias(ctx, p.alias, previous, name); err != nil {
		metrics.PublishFailures.WithLabelValues(string(PhaseSwapped)).Inc()
		return "", fmt.Errorf("swap alias: %w", err)
	}

	metrics.PublishPhaseDuration.WithLabelValues(string(PhaseSwapped)).Observe(time.Since(start).Seconds())
	log.Info().Str("previous", previous).Msg("alias now serves new index")
	return previous, nil
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (p *Publisher) retire(ctx context.Context, previous string, log zerolog.Logger) error {
	start := time.Now()
	if err := p.backend.DeleteIndex(ctx, previous); err != nil && !errors.Is(err, index.ErrIndexNotFound) {
		return err
	}
	metrics.PublishPhaseDuration.WithLabelValues(string(PhaseRetired)).Observe(time.Since(start).Seconds())
	log.Debug().Str("previous", previous).Msg("old index retired")
	return nil
}

// abort removes a half-built index after a pre-swap failure. The alias was
// never touched, so failure to clean up only leaks storage.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (p *Publisher) abort(ctx context.Context, name string, log zerolog.Logger) {
	if err := p.backend.DeleteIndex(ctx, name); err != nil && !errors.Is(err, index.ErrIndexNotFound) {
		log.Warn().Err(err).Msg("cleanup of aborted index failed")
	}
}

func (p *Publisher) setPhase(phase Phase) {
	p.mu.Lock()
	p.phase = phase
	p.mu.Unlock()
}

// fieldTypes derives the per-field index typing from the model. Observed
// value kinds decide the type; universe fields never observed in any record
// default to keyword. A field seen with conflicting kinds falls back to
// keyword, the least surprising exact-match type.
func fieldTypes(model *models.Model) map[string]index.FieldType {
	out := make(map[string]index.FieldType, len(model.FieldUniverse()))
	for _, field := range model.FieldUniverse() {
		out[field] = index.FieldKeyword
	}

	seen := make(map[string]models.Kind)
	conflicted := make(map[string]struct{})
	for _, rec := range model.Records() {
		for field, value := range rec.Fields {
			kind := value.Kind()
			if kind == models.KindIgnored {
				continue
			}
			if _, bad := conflicted[field]; bad {
				continue
			}
			if prior, ok := seen[field]; ok && prior != kind {
				conflicted[field] = struct{}{}
				out[field] = index.FieldKeyword
				continue
			}
			seen[field] = kind
			out[field] = typeFor(kind)
		}
	}
	out[models.IDField] = index.FieldKeyword
	return out
}

func typeFor(kind models.Kind) index.FieldType {
	switch kind {
	case models.KindTermList:
		return index.FieldKeywordList
	case models.KindNumber:
		return index.FieldDouble
	case models.KindDate:
		return index.FieldDate
	default:
		return index.FieldKeyword
	}
}
