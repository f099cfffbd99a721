// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package correlate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/itemforge/itemforge/internal/dataset"
	"github.com/itemforge/itemforge/internal/models"
)

// RankingKind selects the popularity formula for a ranking definition.
type RankingKind string

const (
	// RankingPopular counts interactions inside the window.
	RankingPopular RankingKind = "popular"
	// RankingTrending scores by interaction velocity: the count delta
	// between the recent and earlier half of the window.
	RankingTrending RankingKind = "trending"
	// RankingHot applies exponential time decay with the window as
	// half-life, favoring the most recent interactions.
	RankingHot RankingKind = "hot"
)

// Valid reports whether the kind is one of the supported formulas.
func (k RankingKind) Valid() bool {
	switch k {
	case RankingPopular, RankingTrending, RankingHot:
		return true
	default:
		return false
	}
}

// RankingDef configures one backfill ranking.
type RankingDef struct {
	// Name is the output field name carrying the score.
	Name string

	// Kind selects the formula.
	Kind RankingKind

	// EventNames is the action subset the ranking draws from. Empty means
	// all actions.
	EventNames []string

	// Window bounds how far back interactions count.
	Window time.Duration

	// Reference pins "now" for reproducible runs. Zero means the latest
	// event timestamp in the input.
	Reference time.Time
}

// Ranker computes numeric backfill fields from raw events.
type Ranker struct {
	logger zerolog.Logger
}

// NewRanker creates a ranker.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRanker(logger zerolog.Logger) *Ranker {
	return &Ranker{logger: logger.With().Str("component", "ranking").Logger()}
}

// Compute evaluates one ranking definition over the event snapshot and
// returns item → {def.Name: score}. Items with no qualifying interactions are
// absent, not zero.
func (r *Ranker) Compute(ctx context.Context, def RankingDef, events []models.Event) (*dataset.Keyed[models.FieldMap], error) {
	if !def.Kind.Valid() {
		return nil, fmt.Errorf("ranking %q: unsupported kind %q", def.Name, def.Kind)
	}
	window := def.Window
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}

	subset := eventSubset(events, def.EventNames)
	if len(subset) == 0 {
		r.logger.Info().Str("ranking", def.Name).Msg("no qualifying events, ranking empty")
		return dataset.New[models.FieldMap](dataset.DefaultShards), nil
	}

	reference := def.Reference
	if reference.IsZero() {
		for i := range subset {
			if subset[i].Timestamp.After(reference) {
				reference = subset[i].Timestamp
			}
		}
	}
	cutoff := reference.Add(-window)

	scores := make(map[string]float64)
	for i := range subset {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev := &subset[i]
		if ev.Timestamp.Before(cutoff) || ev.Timestamp.After(reference) {
			continue
		}

		switch def.Kind {
		case RankingPopular:
			scores[ev.TargetID]++
		case RankingTrending:
			// Recent half adds, earlier half subtracts: positive score
			// means accelerating interest.
			if ev.Timestamp.After(reference.Add(-window / 2)) {
				scores[ev.TargetID]++
			} else {
				scores[ev.TargetID]--
			}
		case RankingHot:
			age := reference.Sub(ev.Timestamp)
			scores[ev.TargetID] += math.Exp2(-age.Hours() / window.Hours())
		}
	}

	out := make(map[string]models.FieldMap, len(scores))
	for item, score := range scores {
		out[item] = models.FieldMap{def.Name: models.Number(score)}
	}

	r.logger.Debug().
		Str("ranking", def.Name).
		Str("kind", string(def.Kind)).
		Int("items", len(out)).
		Msg("ranking computed")
	return dataset.FromMap(out), nil
}

func eventSubset(events []models.Event, names []string) []models.Event {
	if len(names) == 0 {
		return events
	}
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}
	subset := make([]models.Event, 0, len(events))
	for i := range events {
		if _, ok := allowed[events[i].ActionName]; ok {
			subset = append(subset, events[i])
		}
	}
	return subset
}
