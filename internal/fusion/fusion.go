// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

// Package fusion merges the per-item field mappings of every signal source
// into one fused record per item.
//
// The merge is an explicit left fold over the ordered source list using one
// associative cogroup operation with right-hand field precedence: when two
// sources set the same field for the same item, the later source wins.
// Callers order correlator sources first and the property source last, so
// item metadata can override a same-named computed field. Precedence is a
// property of the source order handed to Fuse, never of worker scheduling.
package fusion

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/itemforge/itemforge/internal/dataset"
	"github.com/itemforge/itemforge/internal/metrics"
	"github.com/itemforge/itemforge/internal/models"
)

// Source is one named per-item field mapping entering the fusion.
type Source struct {
	// Name identifies the source in logs (action name or "properties").
	Name string

	// Fields maps item identity to that source's fields for the item.
	Fields *dataset.Keyed[models.FieldMap]
}

// Result is the fusion output: the fused per-item records and the field
// universe the index must declare before any record is written.
type Result struct {
	Records *dataset.Keyed[models.FieldMap]

	// FieldUniverse is the sorted set of distinct field names across all
	// sources, including the reserved identity field.
	FieldUniverse []string
}

// Empty reports whether fusion produced no records.
func (r *Result) Empty() bool {
	return r.Records == nil || r.Records.Empty()
}

// FusedRecords materializes the result as a record slice in key order,
// injecting the identity field into every record.
func (r *Result) FusedRecords() []models.FusedRecord {
	if r.Records == nil {
		return nil
	}
	keys := r.Records.Keys()
	out := make([]models.FusedRecord, 0, len(keys))
	for _, id := range keys {
		fields, _ := r.Records.Get(id)
		merged := fields.Clone()
		merged[models.IDField] = models.Text(id)
		out = append(out, models.FusedRecord{ID: id, Fields: merged})
	}
	return out
}

// Fuse folds the ordered sources into one field map per item. Sources with no
// entries contribute nothing; zero usable sources yield an empty result, not
// an error — the publisher treats that as "nothing to publish".
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Fuse(ctx context.Context, sources []Source, logger zerolog.Logger) (*Result, error) {
	log := logger.With().Str("component", "fusion").Logger()
	start := time.Now()

	var merged *dataset.Keyed[models.FieldMap]

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if src.Fields == nil || src.Fields.Empty() {
			log.Debug().Str("source", src.Name).Msg("source empty, skipped")
			continue
		}

		if merged == nil {
			merged = src.Fields
			log.Debug().Str("source", src.Name).Int("items", src.Fields.Len()).Msg("fusion seeded")
			continue
		}
		merged = dataset.CoGroup(merged, src.Fields, mergeFields)
		log.Debug().Str("source", src.Name).Int("items", merged.Len()).Msg("source merged")
	}

	if merged == nil {
		log.Info().Msg("no usable sources, fusion output empty")
		return &Result{Records: dataset.New[models.FieldMap](dataset.DefaultShards), FieldUniverse: nil}, nil
	}

	// Every fused record carries the union of its sources' fields, so one
	// concurrent pass over the merged dataset sees the whole universe.
	var (
		universeMu sync.Mutex
		universe   = map[string]struct{}{models.IDField: {}}
	)
	err := merged.Walk(ctx, func(_ string, fields models.FieldMap) error {
		universeMu.Lock()
		for name := range fields {
			universe[name] = struct{}{}
		}
		universeMu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(universe))
	for n := range universe {
		names = append(names, n)
	}
	sort.Strings(names)

	metrics.FusionRecords.Set(float64(merged.Len()))
	metrics.FusionDuration.Observe(time.Since(start).Seconds())
	log.Info().
		Int("records", merged.Len()).
		Int("fields", len(names)).
		Dur("elapsed", time.Since(start)).
		Msg("fusion complete")

	return &Result{Records: merged, FieldUniverse: names}, nil
}

// mergeFields combines two per-item field maps with right-hand precedence.
func mergeFields(left, right models.FieldMap) models.FieldMap {
	out := left.Clone()
	for name, value := range right {
		out[name] = value
	}
	return out
}
