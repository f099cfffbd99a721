// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package correlate

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/itemforge/itemforge/internal/dataset"
	"github.com/itemforge/itemforge/internal/models"
	"github.com/itemforge/itemforge/internal/partition"
)

// Provider computes the correlator map for one action dataset. It is pure:
// the same dataset always yields the same mapping.
type Provider interface {
	// Compute returns, for each item in the dataset, a field map carrying
	// the action name mapped to the ranked related-item list.
	Compute(ctx context.Context, ds partition.ActionDataset) (*dataset.Keyed[models.FieldMap], error)
}

// CooccurrenceConfig tunes the cooccurrence correlator.
type CooccurrenceConfig struct {
	// MaxPerItem caps the related-item list per item.
	MaxPerItem int

	// MinCooccurrence is the minimum shared-actor count for a pair to be
	// considered related at all.
	MinCooccurrence int
}

// Cooccurrence scores item pairs by shared-actor overlap.
//
// For each pair of items interacted with by the same actor, the raw
// cooccurrence count is normalized by the union of the two items' actor
// counts, so ubiquitously popular items do not dominate every related list.
type Cooccurrence struct {
	maxPerItem int
	minCo      int
	logger     zerolog.Logger
}

// NewCooccurrence creates a cooccurrence correlator.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewCooccurrence(cfg CooccurrenceConfig, logger zerolog.Logger) *Cooccurrence {
	if cfg.MaxPerItem < 1 {
		cfg.MaxPerItem = 50
	}
	if cfg.MinCooccurrence < 1 {
		cfg.MinCooccurrence = 1
	}
	return &Cooccurrence{
		maxPerItem: cfg.MaxPerItem,
		minCo:      cfg.MinCooccurrence,
		logger:     logger.With().Str("component", "cooccurrence").Logger(),
	}
}

// Compute builds the correlator map for one action.
func (c *Cooccurrence) Compute(ctx context.Context, ds partition.ActionDataset) (*dataset.Keyed[models.FieldMap], error) {
	// Group targets by actor, deduplicated.
	actorItems := make(map[string][]string)
	itemActors := make(map[string]int)
	seen := make(map[partition.Pair]struct{}, len(ds.Pairs))

	for _, pair := range ds.Pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}
		actorItems[pair.ActorID] = append(actorItems[pair.ActorID], pair.TargetID)
		itemActors[pair.TargetID]++
	}

	// Count cooccurrences within each actor's item set.
	counts := make(map[string]map[string]int)
	for _, items := range actorItems {
		sort.Strings(items)
		for i := 0; i < len(items); i++ {
			for j := 0; j < len(items); j++ {
				if i == j {
					continue
				}
				if counts[items[i]] == nil {
					counts[items[i]] = make(map[string]int)
				}
				counts[items[i]][items[j]]++
			}
		}
	}

	out := make(map[string]models.FieldMap, len(itemActors))
	for item, related := range counts {
		ranked := c.rank(item, related, itemActors)
		if len(ranked) == 0 {
			continue
		}
		out[item] = models.FieldMap{ds.Name: models.Terms(ranked)}
	}

	c.logger.Debug().
		Str("action", ds.Name).
		Int("items", len(out)).
		Msg("correlator map computed")
	return dataset.FromMap(out), nil
}

type scoredItem struct {
	id    string
	score float64
}

// rank orders related items by normalized cooccurrence strength, breaking
// score ties by item identity for determinism.
func (c *Cooccurrence) rank(item string, related map[string]int, itemActors map[string]int) []string {
	scored := make([]scoredItem, 0, len(related))
	for other, co := range related {
		if co < c.minCo {
			continue
		}
		union := itemActors[item] + itemActors[other] - co
		var score float64
		if union > 0 {
			score = float64(co) / float64(union)
		}
		scored = append(scored, scoredItem{id: other, score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].id < scored[j].id
	})

	if len(scored) > c.maxPerItem {
		scored = scored[:c.maxPerItem]
	}
	ids := make([]string, len(scored))
	for i, s := range scored {
		ids[i] = s.id
	}
	return ids
}
