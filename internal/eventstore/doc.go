// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

// Package eventstore persists behavioral events and item property updates
// and hands the trainer point-in-time snapshots of both.
//
// Events are append-only actor/item interactions. Property updates are an
// append-only log of $set and $unset operations per item and field; a
// snapshot collapses the log latest-wins, so the trainer always sees each
// item's current property state without the store ever mutating rows.
package eventstore
