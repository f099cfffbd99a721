// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

// Package index abstracts the search/index backend the publisher writes to.
//
// Two implementations are provided: an HTTP client for an
// Elasticsearch-compatible remote backend, and an embedded BadgerDB backend
// for local mode and tests. Both honor the same contract: index creation
// declares per-field typing up front (exact match, no analysis, no norms),
// alias swaps are a single atomic operation, and deletes reclaim the whole
// index.
package index

import (
	"context"
	"errors"

	"github.com/goccy/go-json"

	"github.com/itemforge/itemforge/internal/models"
)

// FieldType declares how a field is indexed. All types are exact-match:
// identifiers and tags must never be analyzed or normalized.
type FieldType string

const (
	// FieldKeyword is a single exact-match term.
	FieldKeyword FieldType = "keyword"
	// FieldKeywordList is a list of exact-match terms.
	FieldKeywordList FieldType = "keyword_list"
	// FieldDouble is a floating-point value.
	FieldDouble FieldType = "double"
	// FieldDate is an instant.
	FieldDate FieldType = "date"
)

// Sentinel errors shared by backend implementations.
var (
	// ErrIndexExists is returned when creating an index that already exists.
	ErrIndexExists = errors.New("index already exists")

	// ErrIndexNotFound is returned for operations on a missing index.
	ErrIndexNotFound = errors.New("index not found")

	// ErrAliasConflict is returned when a swap's expected current target
	// does not match the alias state.
	ErrAliasConflict = errors.New("alias does not point at expected index")
)

// Backend is the index service contract the publisher depends on.
type Backend interface {
	// CreateIndex creates a fresh index with the given per-field type
	// declarations. Fails with ErrIndexExists if the name is taken.
	CreateIndex(ctx context.Context, name string, fields map[string]FieldType) error

	// BulkWrite writes records into the named index. No partial result is
	// visible under any alias while writing.
	BulkWrite(ctx context.Context, name string, records []models.FusedRecord) error

	// SwapAlias atomically re-points alias from the index `from` to `to`.
	// An empty `from` means the alias is being established for the first
	// time. Readers observe either the old or the new index, never a mix.
	SwapAlias(ctx context.Context, alias, from, to string) error

	// DeleteIndex removes the named index and its records.
	DeleteIndex(ctx context.Context, name string) error

	// AliasTarget resolves the index an alias currently points at.
	// Returns "" with no error when the alias is unset.
	AliasTarget(ctx context.Context, alias string) (string, error)
}

// encodeRecord serializes a fused record for storage, skipping ignored
// fields so they never reach the index.
func encodeRecord(rec *models.FusedRecord) ([]byte, error) {
	doc := make(map[string]models.FieldValue, len(rec.Fields))
	for name, value := range rec.Fields {
		if value.Kind() == models.KindIgnored {
			continue
		}
		doc[name] = value
	}
	return json.Marshal(doc)
}
