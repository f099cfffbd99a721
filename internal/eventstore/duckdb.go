// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/itemforge/itemforge/internal/models"
)

// Window bounds a snapshot of events. A nil *Window means all history.
type Window struct {
	// Since is inclusive.
	Since time.Time
	// Until is exclusive. Zero means unbounded.
	Until time.Time
}

// Property operation markers in the update log.
const (
	OpSet   = "$set"
	OpUnset = "$unset"
)

// PropertyUpdate is one entry in an item's property log.
type PropertyUpdate struct {
	ItemID    string
	Op        string
	Field     string
	Value     any
	Timestamp time.Time
}

// Store is the snapshot source the trainer reads from.
type Store interface {
	// Find returns events for the named actions within the window, oldest
	// first. A nil window means all history.
	Find(ctx context.Context, actionNames []string, window *Window) ([]models.Event, error)

	// AggregateProperties collapses each item's property log latest-wins
	// and returns the current field map per item. Fields whose latest
	// operation is $unset are absent.
	AggregateProperties(ctx context.Context) (map[string]map[string]any, error)
}

// DuckDB is the embedded analytical store backing Store, plus the ingest
// side the service mode uses to append events and property updates.
type DuckDB struct {
	conn   *sql.DB
	logger zerolog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	actor_id   VARCHAR NOT NULL,
	target_id  VARCHAR NOT NULL,
	action     VARCHAR NOT NULL,
	ts         TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS property_events (
	item_id    VARCHAR NOT NULL,
	op         VARCHAR NOT NULL,
	field      VARCHAR NOT NULL,
	value      VARCHAR,
	ts         TIMESTAMP NOT NULL
);
`

// OpenDuckDB opens (or creates) the store at path and bootstraps the schema.
// An empty path opens an in-memory instance.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func OpenDuckDB(path string, logger zerolog.Logger) (*DuckDB, error) {
	if path == "" {
		path = ":memory:"
	}
	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb at %q: %w", path, err)
	}

	// The embedded engine is single-process; one writer connection keeps
	// appends ordered.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	log := logger.With().Str("component", "eventstore").Logger()
	log.Info().Str("path", path).Msg("event store opened")
	return &DuckDB{conn: conn, logger: log}, nil
}

// Close releases the database handle.
func (s *DuckDB) Close() error {
	return s.conn.Close()
}

// AppendEvents inserts a batch of events in one transaction.
func (s *DuckDB) AppendEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (actor_id, target_id, action, ts) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx, ev.ActorID, ev.TargetID, ev.ActionName, ev.Timestamp); err != nil {
			return fmt.Errorf("insert event %s/%s: %w", ev.ActionName, ev.ActorID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event append: %w", err)
	}

	s.logger.Debug().Int("events", len(events)).Msg("events appended")
	return nil
}

// AppendPropertyUpdates inserts property log entries in one transaction.
// Values are stored as JSON so lists and numbers round-trip.
func (s *DuckDB) AppendPropertyUpdates(ctx context.Context, updates []PropertyUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin property append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO property_events (item_id, op, field, value, ts) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare property insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if u.Op != OpSet && u.Op != OpUnset {
			return fmt.Errorf("property update for %q field %q: unknown op %q", u.ItemID, u.Field, u.Op)
		}
		var value sql.NullString
		if u.Op == OpSet {
			encoded, err := json.Marshal(u.Value)
			if err != nil {
				return fmt.Errorf("encode property %q.%q: %w", u.ItemID, u.Field, err)
			}
			value = sql.NullString{String: string(encoded), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, u.ItemID, u.Op, u.Field, value, u.Timestamp); err != nil {
			return fmt.Errorf("insert property %q.%q: %w", u.ItemID, u.Field, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit property append: %w", err)
	}

	s.logger.Debug().Int("updates", len(updates)).Msg("property updates appended")
	return nil
}

// Find returns events for the named actions, oldest first.
func (s *DuckDB) Find(ctx context.Context, actionNames []string, window *Window) ([]models.Event, error) {
	if len(actionNames) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString(`SELECT actor_id, target_id, action, ts FROM events WHERE action IN (`)
	args := make([]any, 0, len(actionNames)+2)
	for i, name := range actionNames {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("?")
		args = append(args, name)
	}
	sb.WriteString(")")

	if window != nil {
		if !window.Since.IsZero() {
			sb.WriteString(" AND ts >= ?")
			args = append(args, window.Since)
		}
		if !window.Until.IsZero() {
			sb.WriteString(" AND ts < ?")
			args = append(args, window.Until)
		}
	}
	sb.WriteString(" ORDER BY ts, actor_id, target_id")

	rows, err := s.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ActorID, &ev.TargetID, &ev.ActionName, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	s.logger.Debug().Int("events", len(events)).Strs("actions", actionNames).Msg("event snapshot read")
	return events, nil
}

// AggregateProperties collapses the property log latest-wins per item and
// field. The window function keeps only each field's newest entry; fields
// whose newest entry is $unset drop out of the result.
func (s *DuckDB) AggregateProperties(ctx context.Context) (map[string]map[string]any, error) {
	const query = `
SELECT item_id, field, value FROM (
	SELECT item_id, field, op, value,
		row_number() OVER (PARTITION BY item_id, field ORDER BY ts DESC) AS rn
	FROM property_events
) WHERE rn = 1 AND op = '$set'`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query property snapshot: %w", err)
	}
	defer rows.Close()

	props := make(map[string]map[string]any)
	for rows.Next() {
		var itemID, field string
		var raw sql.NullString
		if err := rows.Scan(&itemID, &field, &raw); err != nil {
			return nil, fmt.Errorf("scan property row: %w", err)
		}

		var value any
		if raw.Valid {
			if err := json.Unmarshal([]byte(raw.String), &value); err != nil {
				return nil, fmt.Errorf("decode property %q.%q: %w", itemID, field, err)
			}
		}

		fields, ok := props[itemID]
		if !ok {
			fields = make(map[string]any)
			props[itemID] = fields
		}
		fields[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate property snapshot: %w", err)
	}

	s.logger.Debug().Int("items", len(props)).Msg("property snapshot read")
	return props, nil
}
