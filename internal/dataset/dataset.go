// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

// Package dataset provides a partitioned, immutable, keyed dataset
// abstraction for the batch pipeline.
//
// A Keyed[V] is a fixed set of shards, each an independent map keyed by item
// identity. Stages process shards concurrently and join at materialization
// points (Len, Walk); merge operations combine datasets by logical argument
// order, never by shard completion order, so merge precedence stays
// deterministic regardless of scheduling.
package dataset

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
)

// DefaultShards is the shard count used when none is specified.
const DefaultShards = 16

// Keyed is a sharded mapping from item identity to V. It is immutable after
// construction; all combining operations return new datasets.
type Keyed[V any] struct {
	shards []map[string]V
}

// New creates an empty dataset with the given shard count.
func New[V any](shards int) *Keyed[V] {
	if shards < 1 {
		shards = DefaultShards
	}
	parts := make([]map[string]V, shards)
	for i := range parts {
		parts[i] = make(map[string]V)
	}
	return &Keyed[V]{shards: parts}
}

// FromMap builds a dataset from a plain map using DefaultShards.
func FromMap[V any](m map[string]V) *Keyed[V] {
	d := New[V](DefaultShards)
	for k, v := range m {
		d.shards[d.shardFor(k)][k] = v
	}
	return d
}

func (d *Keyed[V]) shardFor(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.shards)))
}

// put is used by builders inside this package only; datasets are immutable to
// callers.
func (d *Keyed[V]) put(key string, v V) {
	d.shards[d.shardFor(key)][key] = v
}

// Get returns the value for key and whether it is present.
func (d *Keyed[V]) Get(key string) (V, bool) {
	v, ok := d.shards[d.shardFor(key)][key]
	return v, ok
}

// Len counts all entries. This is a materialization point: it visits every
// shard before returning.
func (d *Keyed[V]) Len() int {
	n := 0
	for _, shard := range d.shards {
		n += len(shard)
	}
	return n
}

// Empty reports whether the dataset holds no entries.
func (d *Keyed[V]) Empty() bool {
	for _, shard := range d.shards {
		if len(shard) > 0 {
			return false
		}
	}
	return true
}

// Keys returns all keys in sorted order. Sorting keeps downstream output
// deterministic across shard layouts.
func (d *Keyed[V]) Keys() []string {
	keys := make([]string, 0, d.Len())
	for _, shard := range d.shards {
		for k := range shard {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Each invokes fn for every entry sequentially. Iteration order is
// unspecified.
func (d *Keyed[V]) Each(fn func(key string, v V)) {
	for _, shard := range d.shards {
		for k, v := range shard {
			fn(k, v)
		}
	}
}

// Walk processes shards concurrently, one worker per shard, and blocks until
// every shard is done — the pipeline's synchronization point. fn must be safe
// for concurrent invocation across shards. The first error encountered wins;
// a canceled context stops scheduling further shards.
func (d *Keyed[V]) Walk(ctx context.Context, fn func(key string, v V) error) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, shard := range d.shards {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(part map[string]V) {
			defer wg.Done()
			for k, v := range part {
				if ctx.Err() != nil {
					return
				}
				if err := fn(k, v); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					return
				}
			}
		}(shard)
	}

	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// CoGroup merges two datasets over the union of their keys. For keys present
// in both, merge(left, right) decides the combined value; the argument order
// is the logical source order, so right-hand precedence is the merge
// function's choice, not a scheduling accident. Keys present in only one
// dataset contribute their value unchanged (absence, not null).
func CoGroup[V any](left, right *Keyed[V], merge func(l, r V) V) *Keyed[V] {
	shards := DefaultShards
	if left != nil {
		shards = len(left.shards)
	}
	out := New[V](shards)

	if left != nil {
		left.Each(func(k string, lv V) {
			if right != nil {
				if rv, ok := right.Get(k); ok {
					out.put(k, merge(lv, rv))
					return
				}
			}
			out.put(k, lv)
		})
	}
	if right != nil {
		right.Each(func(k string, rv V) {
			if left != nil {
				if _, ok := left.Get(k); ok {
					return // already merged above
				}
			}
			out.put(k, rv)
		})
	}
	return out
}
