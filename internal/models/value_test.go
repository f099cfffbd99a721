// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package models

import (
	"testing"
	"time"
)

func TestFieldValueMarshalJSON(t *testing.T) {
	instant := time.Date(2016, 1, 19, 11, 55, 7, 0, time.UTC)

	tests := []struct {
		name  string
		value FieldValue
		want  string
	}{
		{name: "text", value: Text("shoes"), want: `"shoes"`},
		{name: "terms", value: Terms([]string{"item2", "item3"}), want: `["item2","item3"]`},
		{name: "empty terms", value: Terms(nil), want: `[]`},
		{name: "number", value: Number(3.5), want: `3.5`},
		{name: "integral number", value: Number(7), want: `7`},
		{name: "date", value: Date(instant), want: `"2016-01-19T11:55:07Z"`},
		{name: "ignored", value: Ignored(), want: `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.value.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("MarshalJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFieldValueEqual(t *testing.T) {
	instant := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b FieldValue
		want bool
	}{
		{name: "equal text", a: Text("a"), b: Text("a"), want: true},
		{name: "different text", a: Text("a"), b: Text("b"), want: false},
		{name: "kind mismatch", a: Text("1"), b: Number(1), want: false},
		{name: "equal terms", a: Terms([]string{"x", "y"}), b: Terms([]string{"x", "y"}), want: true},
		{name: "term order matters", a: Terms([]string{"x", "y"}), b: Terms([]string{"y", "x"}), want: false},
		{name: "equal dates", a: Date(instant), b: Date(instant.In(time.FixedZone("E", 3600))), want: true},
		{name: "ignored equals ignored", a: Ignored(), b: Ignored(), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestModelMaterialization(t *testing.T) {
	placeholder := PlaceholderModel()
	if placeholder.Materialized() {
		t.Error("PlaceholderModel() reported materialized")
	}
	if len(placeholder.Records()) != 0 {
		t.Error("placeholder carries records")
	}

	records := []FusedRecord{{ID: "item1", Fields: FieldMap{IDField: Text("item1")}}}
	model := NewModel(records, []string{"category", IDField})
	if !model.Materialized() {
		t.Error("NewModel() not materialized")
	}
	if got := len(model.Records()); got != 1 {
		t.Errorf("Records() len = %d, want 1", got)
	}
	if model.TrainedAt().IsZero() {
		t.Error("TrainedAt() is zero for materialized model")
	}
}

func TestFieldMapClone(t *testing.T) {
	original := FieldMap{"category": Terms([]string{"shoes"})}
	clone := original.Clone()

	clone["category"] = Text("mutated")
	if !original["category"].Equal(Terms([]string{"shoes"})) {
		t.Error("Clone() shares state with original")
	}
}
