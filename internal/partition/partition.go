// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

// Package partition splits the combined event stream into one dataset per
// configured action name.
//
// Validation policy: an event with an unconfigured action name fails the
// whole run, because it means the store query and the action configuration
// disagree and every downstream correlator would be built from the wrong
// universe. An event missing its actor or target identity is fatal only to
// that single record; it is counted, logged, and skipped. Actions that end up
// with zero events are not an error; they are dropped and excluded from all
// downstream processing.
package partition

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/itemforge/itemforge/internal/metrics"
	"github.com/itemforge/itemforge/internal/models"
)

// Pair is one (actor, target) interaction retained for correlator training.
type Pair struct {
	ActorID  string
	TargetID string
}

// ActionDataset is the named collection of pairs for a single action.
// It is immutable once produced and discarded after correlator computation.
type ActionDataset struct {
	Name  string
	Pairs []Pair
}

// Empty reports whether the dataset holds no pairs.
func (d *ActionDataset) Empty() bool { return len(d.Pairs) == 0 }

// Partitioner splits events by action name.
type Partitioner struct {
	actions []string
	allowed map[string]struct{}
	logger  zerolog.Logger
}

// New creates a partitioner for the configured action names. Order is
// preserved: the resulting datasets follow the configured order, which is also
// the precedence order downstream fusion relies on.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(actions []string, logger zerolog.Logger) *Partitioner {
	allowed := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		allowed[a] = struct{}{}
	}
	return &Partitioner{
		actions: actions,
		allowed: allowed,
		logger:  logger.With().Str("component", "partition").Logger(),
	}
}

// Partition validates every event and buckets its (actor, target) pair under
// the event's action. An event whose action name is not configured aborts the
// run with its *models.InvalidEventError context; an event with a missing
// actor or target is rejected and skipped without failing the batch. Actions
// left empty after filtering are dropped from the result.
func (p *Partitioner) Partition(ctx context.Context, events []models.Event) ([]ActionDataset, error) {
	buckets := make(map[string][]Pair, len(p.actions))

	for i := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev := &events[i]
		if _, ok := p.allowed[ev.ActionName]; !ok {
			return nil, &models.InvalidEventError{
				Reason:     "action name not configured",
				ActionName: ev.ActionName,
				ActorID:    ev.ActorID,
			}
		}
		if err := ev.ValidateIdentity(); err != nil {
			metrics.EventsRejected.WithLabelValues(ev.ActionName).Inc()
			p.logger.Warn().Err(err).Str("action", ev.ActionName).Msg("rejecting event with incomplete identity")
			continue
		}
		buckets[ev.ActionName] = append(buckets[ev.ActionName], Pair{
			ActorID:  ev.ActorID,
			TargetID: ev.TargetID,
		})
	}

	out := make([]ActionDataset, 0, len(p.actions))
	for _, name := range p.actions {
		pairs := buckets[name]
		if len(pairs) == 0 {
			metrics.EmptyActionsDropped.Inc()
			p.logger.Info().Str("action", name).Msg("no events for action, excluding from training")
			continue
		}
		metrics.EventsPartitioned.WithLabelValues(name).Add(float64(len(pairs)))
		p.logger.Debug().Str("action", name).Int("pairs", len(pairs)).Msg("action dataset built")
		out = append(out, ActionDataset{Name: name, Pairs: pairs})
	}

	return out, nil
}
