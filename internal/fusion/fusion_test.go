// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package fusion

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/itemforge/itemforge/internal/dataset"
	"github.com/itemforge/itemforge/internal/models"
)

func source(name string, fields map[string]models.FieldMap) Source {
	return Source{Name: name, Fields: dataset.FromMap(fields)}
}

func TestFuseCorrelatorWithProperties(t *testing.T) {
	// Scenario: item1 has a category property and a "view" correlator entry.
	correlator := source("view", map[string]models.FieldMap{
		"item1": {"view": models.Terms([]string{"item2"})},
	})
	properties := source("properties", map[string]models.FieldMap{
		"item1": {"category": models.Terms([]string{"shoes"})},
	})

	result, err := Fuse(context.Background(), []Source{correlator, properties}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}

	records := result.FusedRecords()
	if len(records) != 1 {
		t.Fatalf("FusedRecords() len = %d, want 1", len(records))
	}

	rec := records[0]
	if rec.ID != "item1" {
		t.Errorf("ID = %q, want item1", rec.ID)
	}
	if got := rec.Fields[models.IDField]; !got.Equal(models.Text("item1")) {
		t.Errorf("id field = %v, want item1", got)
	}
	if got := rec.Fields["category"]; !got.Equal(models.Terms([]string{"shoes"})) {
		t.Errorf("category = %v, want [shoes]", got)
	}
	if got := rec.Fields["view"]; !got.Equal(models.Terms([]string{"item2"})) {
		t.Errorf("view = %v, want [item2]", got)
	}
}

func TestFuseRightHandPrecedence(t *testing.T) {
	// trendRank is set by both a correlator source and the property source;
	// the property source is processed last and must win.
	correlator := source("view", map[string]models.FieldMap{
		"item1": {"trendRank": models.Number(0.25)},
	})
	properties := source("properties", map[string]models.FieldMap{
		"item1": {"trendRank": models.Number(9)},
	})

	result, err := Fuse(context.Background(), []Source{correlator, properties}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}

	fields, ok := result.Records.Get("item1")
	if !ok {
		t.Fatal("item1 missing from fusion output")
	}
	if got := fields["trendRank"]; !got.Equal(models.Number(9)) {
		t.Errorf("trendRank = %v, want property source value 9", got)
	}
}

func TestFuseIdentityUnionStableUnderSourceOrder(t *testing.T) {
	a := map[string]models.FieldMap{
		"item1": {"a": models.Text("1")},
		"item2": {"a": models.Text("2")},
	}
	b := map[string]models.FieldMap{
		"item2": {"b": models.Text("3")},
		"item3": {"b": models.Text("4")},
	}

	forward, err := Fuse(context.Background(), []Source{source("a", a), source("b", b)}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	reversed, err := Fuse(context.Background(), []Source{source("b", b), source("a", a)}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}

	// The identity set is order-independent even though collision outcomes
	// are not.
	fk, rk := forward.Records.Keys(), reversed.Records.Keys()
	if len(fk) != 3 || len(rk) != 3 {
		t.Fatalf("key counts = %d/%d, want 3/3", len(fk), len(rk))
	}
	for i := range fk {
		if fk[i] != rk[i] {
			t.Errorf("key[%d] = %q vs %q, identity union differs by order", i, fk[i], rk[i])
		}
	}
}

func TestFuseAbsentSourcesContributeNothing(t *testing.T) {
	onlyA := source("a", map[string]models.FieldMap{
		"item1": {"a": models.Text("x")},
	})
	onlyB := source("b", map[string]models.FieldMap{
		"item2": {"b": models.Text("y")},
	})

	result, err := Fuse(context.Background(), []Source{onlyA, onlyB}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}

	fields, _ := result.Records.Get("item1")
	if _, present := fields["b"]; present {
		t.Error("item1 carries field from a source it never appeared in")
	}
	fields, _ = result.Records.Get("item2")
	if _, present := fields["a"]; present {
		t.Error("item2 carries field from a source it never appeared in")
	}
}

func TestFuseZeroSources(t *testing.T) {
	result, err := Fuse(context.Background(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("Fuse() error = %v, zero sources must not be an error", err)
	}
	if !result.Empty() {
		t.Error("zero sources produced records")
	}
	if len(result.FusedRecords()) != 0 {
		t.Error("FusedRecords() non-empty for zero sources")
	}
}

func TestFuseSkipsEmptySources(t *testing.T) {
	empty := Source{Name: "purchase", Fields: dataset.New[models.FieldMap](4)}
	populated := source("view", map[string]models.FieldMap{
		"item1": {"view": models.Terms([]string{"item2"})},
	})

	result, err := Fuse(context.Background(), []Source{empty, populated}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if result.Records.Len() != 1 {
		t.Errorf("records = %d, want 1", result.Records.Len())
	}
}

func TestFieldUniverse(t *testing.T) {
	// item2 only appears in the second source; its fields must still enter
	// the universe through the merged dataset.
	result, err := Fuse(context.Background(), []Source{
		source("view", map[string]models.FieldMap{"item1": {"view": models.Terms(nil)}}),
		source("properties", map[string]models.FieldMap{
			"item1": {"category": models.Terms(nil)},
			"item2": {"released": models.Date(time.Date(2016, 1, 19, 11, 55, 7, 0, time.UTC))},
		}),
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}

	want := []string{"category", "id", "released", "view"}
	if len(result.FieldUniverse) != len(want) {
		t.Fatalf("FieldUniverse = %v, want %v", result.FieldUniverse, want)
	}
	for i := range want {
		if result.FieldUniverse[i] != want[i] {
			t.Errorf("FieldUniverse[%d] = %q, want %q", i, result.FieldUniverse[i], want[i])
		}
	}
}
