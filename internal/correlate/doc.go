// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

// Package correlate computes per-item behavioral signals from action
// datasets.
//
// Two signal families are produced:
//
//   - Correlators: for each action, the items most related to each item by
//     shared-actor overlap, emitted as a ranked term list under the action
//     name. This is the per-action cooccurrence signal fusion joins with item
//     properties.
//
//   - Rankings: numeric popularity scores (popular, trending, hot) over a
//     configured event subset and time window, emitted as backfill fields
//     used when behavioral correlators are insufficient. Each ranking can pin
//     a reference date so test runs reproduce exactly.
//
// Both are pure computations over their inputs: same dataset in, same
// mapping out.
package correlate
