// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

// Package models defines the core data types shared across the training
// pipeline: interaction events, typed field values, fused records, and the
// trained model container.
//
// # Field Values
//
// Fused fields are represented as a closed tagged variant (FieldValue) rather
// than interface{} payloads. Every consumer switches exhaustively on the
// variant kind, so a value of an unexpected shape can never silently reach the
// index as an empty string. Shapes the coercion layer cannot classify are
// carried as the explicit Ignored variant and surfaced through logs and
// metrics instead.
//
// # Model Lifecycle
//
// A Model is either materialized (carries fused records and the declared field
// universe) or a placeholder. Placeholders exist only to satisfy reload
// contracts in callers that require a model instance before the first training
// run completes; publishing one is a contract violation detected by the
// publisher before any index is touched.
package models
