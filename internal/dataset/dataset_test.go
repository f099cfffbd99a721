// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package dataset

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestFromMapRoundTrip(t *testing.T) {
	src := map[string]int{"a": 1, "b": 2, "c": 3}
	d := FromMap(src)

	if got := d.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	for k, want := range src {
		got, ok := d.Get(k)
		if !ok || got != want {
			t.Errorf("Get(%q) = %d,%v want %d,true", k, got, ok, want)
		}
	}
	if _, ok := d.Get("missing"); ok {
		t.Error("Get(missing) reported present")
	}
}

func TestEmpty(t *testing.T) {
	if !New[int](4).Empty() {
		t.Error("New dataset not empty")
	}
	if FromMap(map[string]int{"a": 1}).Empty() {
		t.Error("populated dataset reported empty")
	}
}

func TestKeysSorted(t *testing.T) {
	d := FromMap(map[string]string{"zebra": "", "apple": "", "mango": ""})
	keys := d.Keys()
	want := []string{"apple", "mango", "zebra"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() len = %d, want %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestWalkVisitsAll(t *testing.T) {
	src := map[string]int{}
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		src[k] = 1
	}
	d := FromMap(src)

	var (
		mu   sync.Mutex
		seen = map[string]bool{}
	)
	err := d.Walk(context.Background(), func(k string, v int) error {
		mu.Lock()
		seen[k] = true
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(seen) != len(src) {
		t.Errorf("Walk visited %d keys, want %d", len(seen), len(src))
	}
}

func TestWalkPropagatesError(t *testing.T) {
	d := FromMap(map[string]int{"a": 1, "b": 2})
	sentinel := errors.New("boom")

	err := d.Walk(context.Background(), func(k string, v int) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("Walk() error = %v, want %v", err, sentinel)
	}
}

func TestWalkHonorsCancellation(t *testing.T) {
	d := FromMap(map[string]int{"a": 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Walk(ctx, func(k string, v int) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Walk() error = %v, want context.Canceled", err)
	}
}

func TestCoGroupUnionAndPrecedence(t *testing.T) {
	left := FromMap(map[string]string{"shared": "left", "onlyLeft": "l"})
	right := FromMap(map[string]string{"shared": "right", "onlyRight": "r"})

	// Right-hand precedence merge.
	out := CoGroup(left, right, func(l, r string) string { return r })

	tests := []struct {
		key  string
		want string
	}{
		{"shared", "right"},
		{"onlyLeft", "l"},
		{"onlyRight", "r"},
	}
	for _, tt := range tests {
		got, ok := out.Get(tt.key)
		if !ok || got != tt.want {
			t.Errorf("Get(%q) = %q,%v want %q,true", tt.key, got, ok, tt.want)
		}
	}
	if got := out.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
}

func TestCoGroupNilOperands(t *testing.T) {
	only := FromMap(map[string]int{"a": 1})

	if got := CoGroup[int](nil, only, func(l, r int) int { return r }).Len(); got != 1 {
		t.Errorf("CoGroup(nil, d) Len = %d, want 1", got)
	}
	if got := CoGroup[int](only, nil, func(l, r int) int { return r }).Len(); got != 1 {
		t.Errorf("CoGroup(d, nil) Len = %d, want 1", got)
	}
	if got := CoGroup[int](nil, nil, func(l, r int) int { return r }).Len(); got != 0 {
		t.Errorf("CoGroup(nil, nil) Len = %d, want 0", got)
	}
}
