// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package fusion

import "fmt"

// DateParseError reports a declared date field whose value is not a parseable
// timestamp. Coercion errors are fatal to the run: silently coercing would
// corrupt downstream ranking data.
type DateParseError struct {
	ItemID string
	Field  string
	Value  string
}

// Error implements the error interface.
func (e *DateParseError) Error() string {
	return fmt.Sprintf("item %q field %q: cannot parse %q as date", e.ItemID, e.Field, e.Value)
}

// NumberParseError reports a declared backfill field whose value is not a
// parseable number.
type NumberParseError struct {
	ItemID string
	Field  string
	Value  string
}

// Error implements the error interface.
func (e *NumberParseError) Error() string {
	return fmt.Sprintf("item %q field %q: cannot parse %q as number", e.ItemID, e.Field, e.Value)
}
