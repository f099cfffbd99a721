// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package models

import "time"

// Model is the trained artifact handed to the publisher: the full fused
// record set plus the declared field universe. A Model is either materialized
// or a placeholder; only materialized models may be published.
type Model struct {
	materialized bool
	records      []FusedRecord
	universe     []string
	trainedAt    time.Time
}

// NewModel creates a materialized model from fused records and the declared
// field universe.
func NewModel(records []FusedRecord, universe []string) *Model {
	return &Model{
		materialized: true,
		records:      records,
		universe:     universe,
		trainedAt:    time.Now(),
	}
}

// PlaceholderModel creates a non-materialized stand-in. It satisfies reload
// contracts that require a model instance before the first training run; any
// attempt to publish it fails fast.
func PlaceholderModel() *Model {
	return &Model{}
}

// Materialized reports whether the model carries real training output.
func (m *Model) Materialized() bool { return m.materialized }

// Records returns the fused record set. Empty for placeholders.
func (m *Model) Records() []FusedRecord { return m.records }

// FieldUniverse returns the distinct field names across all sources, sorted.
// The publisher needs this before index creation to declare per-field index
// settings up front.
func (m *Model) FieldUniverse() []string { return m.universe }

// TrainedAt returns when the model was materialized. Zero for placeholders.
func (m *Model) TrainedAt() time.Time { return m.trainedAt }
