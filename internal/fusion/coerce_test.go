// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package fusion

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/itemforge/itemforge/internal/models"
)

func TestCoerceShapes(t *testing.T) {
	c := NewCoercer([]string{"offsetDate"}, []string{"popRank"}, zerolog.Nop())

	props := map[string]map[string]any{
		"item1": {
			"category":   []string{"shoes"},
			"tags":       []any{"red", "sale"},
			"title":      "runner",
			"offsetDate": "2016-01-19T11:55:07Z",
			"popRank":    "3.5",
			"stock":      7,
			"rating":     4.5,
		},
	}

	ds, err := c.Coerce(props)
	if err != nil {
		t.Fatalf("Coerce() error = %v", err)
	}

	fields, ok := ds.Get("item1")
	if !ok {
		t.Fatal("item1 missing from coerced output")
	}

	wantDate := time.Date(2016, 1, 19, 11, 55, 7, 0, time.UTC)
	tests := []struct {
		field string
		want  models.FieldValue
	}{
		{"category", models.Terms([]string{"shoes"})},
		{"tags", models.Terms([]string{"red", "sale"})},
		{"title", models.Text("runner")},
		{"offsetDate", models.Date(wantDate)},
		{"popRank", models.Number(3.5)},
		{"stock", models.Number(7)},
		{"rating", models.Number(4.5)},
	}
	for _, tt := range tests {
		if got := fields[tt.field]; !got.Equal(tt.want) {
			t.Errorf("field %q = %v, want %v", tt.field, got, tt.want)
		}
	}
}

func TestCoerceInvalidDateFatal(t *testing.T) {
	c := NewCoercer([]string{"offsetDate"}, nil, zerolog.Nop())

	_, err := c.Coerce(map[string]map[string]any{
		"item1": {"offsetDate": "not-a-date"},
	})

	var dateErr *DateParseError
	if !errors.As(err, &dateErr) {
		t.Fatalf("Coerce() error = %v, want *DateParseError", err)
	}
	if dateErr.Field != "offsetDate" || dateErr.ItemID != "item1" {
		t.Errorf("error context = %+v, want offsetDate/item1", dateErr)
	}
}

func TestCoerceInvalidBackfillNumberFatal(t *testing.T) {
	c := NewCoercer(nil, []string{"popRank"}, zerolog.Nop())

	_, err := c.Coerce(map[string]map[string]any{
		"item1": {"popRank": "many"},
	})

	var numErr *NumberParseError
	if !errors.As(err, &numErr) {
		t.Fatalf("Coerce() error = %v, want *NumberParseError", err)
	}
	if numErr.Field != "popRank" || numErr.ItemID != "item1" {
		t.Errorf("error context = %+v, want popRank/item1", numErr)
	}
}

func TestCoerceUnknownShapeIgnored(t *testing.T) {
	c := NewCoercer(nil, nil, zerolog.Nop())

	ds, err := c.Coerce(map[string]map[string]any{
		"item1": {"weird": map[string]any{"nested": true}},
	})
	if err != nil {
		t.Fatalf("Coerce() error = %v, unknown shapes must not be fatal", err)
	}

	fields, _ := ds.Get("item1")
	if got := fields["weird"].Kind(); got != models.KindIgnored {
		t.Errorf("weird kind = %v, want KindIgnored", got)
	}
}

func TestCoerceDateOnlyLayout(t *testing.T) {
	c := NewCoercer([]string{"released"}, nil, zerolog.Nop())

	ds, err := c.Coerce(map[string]map[string]any{
		"item1": {"released": "2020-06-01"},
	})
	if err != nil {
		t.Fatalf("Coerce() error = %v", err)
	}

	fields, _ := ds.Get("item1")
	want := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := fields["released"]; !got.Equal(models.Date(want)) {
		t.Errorf("released = %v, want %v", got, want)
	}
}

func TestCoerceMixedListIgnored(t *testing.T) {
	c := NewCoercer(nil, nil, zerolog.Nop())

	ds, err := c.Coerce(map[string]map[string]any{
		"item1": {"mixed": []any{"ok", 42}},
	})
	if err != nil {
		t.Fatalf("Coerce() error = %v", err)
	}

	fields, _ := ds.Get("item1")
	if got := fields["mixed"].Kind(); got != models.KindIgnored {
		t.Errorf("mixed kind = %v, want KindIgnored", got)
	}
}
