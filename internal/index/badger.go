// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package index

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/itemforge/itemforge/internal/metrics"
	"github.com/itemforge/itemforge/internal/models"
)

// Key layout for the embedded backend.
const (
	metaKeyPrefix  = "idxmeta:"
	docKeyPrefix   = "idx:"
	aliasKeyPrefix = "alias:"
)

// BadgerBackend implements Backend on an embedded BadgerDB. It serves local
// mode deployments and the test suite; alias swaps are a single badger
// transaction, giving the same atomicity the remote backend promises.
type BadgerBackend struct {
	db     *badger.DB
	logger zerolog.Logger
}

// NewBadgerBackend wraps an open badger database.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBadgerBackend(db *badger.DB, logger zerolog.Logger) *BadgerBackend {
	return &BadgerBackend{
		db:     db,
		logger: logger.With().Str("component", "index_badger").Logger(),
	}
}

// OpenBadger opens (or creates) a badger database at path. An empty path
// opens an in-memory instance.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	return badger.Open(opts)
}

func metaKey(name string) []byte  { return []byte(metaKeyPrefix + name) }
func aliasKey(name string) []byte { return []byte(aliasKeyPrefix + name) }
func docKey(index, id string) []byte {
	return []byte(docKeyPrefix + index + ":" + id)
}

// CreateIndex stores the field declarations under the index meta key.
func (b *BadgerBackend) CreateIndex(ctx context.Context, name string, fields map[string]FieldType) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	meta, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal field declarations: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(metaKey(name)); err == nil {
			return ErrIndexExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(metaKey(name), meta)
	})
	if err != nil {
		return err
	}

	b.logger.Debug().Str("index", name).Int("fields", len(fields)).Msg("index created")
	return nil
}

// BulkWrite stores every record under the index's key prefix.
func (b *BadgerBackend) BulkWrite(ctx context.Context, name string, records []models.FusedRecord) error {
	if err := b.requireIndex(name); err != nil {
		return err
	}

	metrics.BulkBatchSize.Observe(float64(len(records)))

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for i := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := encodeRecord(&records[i])
		if err != nil {
			return fmt.Errorf("encode record %q: %w", records[i].ID, err)
		}
		if err := wb.Set(docKey(name, records[i].ID), doc); err != nil {
			return fmt.Errorf("write record %q: %w", records[i].ID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush bulk write: %w", err)
	}

	b.logger.Debug().Str("index", name).Int("records", len(records)).Msg("bulk write complete")
	return nil
}

// SwapAlias re-points the alias in one transaction, verifying the expected
// current target first.
func (b *BadgerBackend) SwapAlias(ctx context.Context, alias, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.requireIndex(to); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		current := ""
		item, err := txn.Get(aliasKey(alias))
		switch err {
		case nil:
			if err := item.Value(func(val []byte) error {
				current = string(val)
				return nil
			}); err != nil {
				return err
			}
		case badger.ErrKeyNotFound:
			// first publish, alias unset
		default:
			return err
		}

		if current != from {
			return fmt.Errorf("%w: alias %q points at %q, expected %q",
				ErrAliasConflict, alias, current, from)
		}
		return txn.Set(aliasKey(alias), []byte(to))
	})
	if err != nil {
		return err
	}

	b.logger.Info().Str("alias", alias).Str("from", from).Str("to", to).Msg("alias swapped")
	return nil
}

// DeleteIndex removes the meta key and every record under the index prefix.
func (b *BadgerBackend) DeleteIndex(ctx context.Context, name string) error {
	if err := b.requireIndex(name); err != nil {
		return err
	}

	// Collect doc keys first; deleting while iterating invalidates the
	// iterator.
	var keys [][]byte
	prefix := []byte(docKeyPrefix + name + ":")
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	if err := wb.Delete(metaKey(name)); err != nil {
		return err
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush index delete: %w", err)
	}

	b.logger.Info().Str("index", name).Int("records", len(keys)).Msg("index deleted")
	return nil
}

// AliasTarget resolves the alias. Unset aliases return "" with no error.
func (b *BadgerBackend) AliasTarget(ctx context.Context, alias string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target := ""
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(aliasKey(alias))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			target = string(val)
			return nil
		})
	})
	return target, err
}

// Lookup reads one record from the index an alias points at, resolving the
// alias first so callers always see the live dataset.
func (b *BadgerBackend) Lookup(ctx context.Context, alias, id string) (map[string]any, error) {
	target, err := b.AliasTarget(ctx, alias)
	if err != nil {
		return nil, err
	}
	if target == "" {
		return nil, ErrIndexNotFound
	}

	var doc map[string]any
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(target, id))
		if err == badger.ErrKeyNotFound {
			return ErrIndexNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (b *BadgerBackend) requireIndex(name string) error {
	return b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(metaKey(name))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %s", ErrIndexNotFound, name)
		}
		return err
	})
}
