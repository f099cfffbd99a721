// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package fusion

import (
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/itemforge/itemforge/internal/dataset"
	"github.com/itemforge/itemforge/internal/metrics"
	"github.com/itemforge/itemforge/internal/models"
)

// Coercer converts raw property maps into typed field maps ahead of fusion.
// Field typing is by declaration, not inference: a bare string is a date only
// if its field name is declared a date field, a number only if the field is in
// the reserved backfill set.
type Coercer struct {
	dateFields     map[string]struct{}
	backfillFields map[string]struct{}
	logger         zerolog.Logger
}

// NewCoercer creates a coercer for the declared date and backfill field sets.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewCoercer(dateFields, backfillFields []string, logger zerolog.Logger) *Coercer {
	return &Coercer{
		dateFields:     toSet(dateFields),
		backfillFields: toSet(backfillFields),
		logger:         logger.With().Str("component", "coerce").Logger(),
	}
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Coerce converts each item's raw property values to typed field values.
// The first unparseable date or number aborts the run with a typed error
// naming the item and field. Unclassifiable shapes become the explicit
// Ignored variant, logged and counted but never an error.
func (c *Coercer) Coerce(props map[string]map[string]any) (*dataset.Keyed[models.FieldMap], error) {
	out := make(map[string]models.FieldMap, len(props))

	for itemID, raw := range props {
		fields := make(models.FieldMap, len(raw))
		for name, value := range raw {
			fv, err := c.coerceValue(itemID, name, value)
			if err != nil {
				return nil, err
			}
			fields[name] = fv
		}
		out[itemID] = fields
	}

	return dataset.FromMap(out), nil
}

func (c *Coercer) coerceValue(itemID, field string, value any) (models.FieldValue, error) {
	switch v := value.(type) {
	case []string:
		return models.Terms(v), nil
	case []any:
		// Bulk loaders hand string lists through as []any.
		terms := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return c.ignore(itemID, field, value), nil
			}
			terms = append(terms, s)
		}
		return models.Terms(terms), nil
	case string:
		return c.coerceString(itemID, field, v)
	case float64:
		return models.Number(v), nil
	case float32:
		return models.Number(float64(v)), nil
	case int:
		return models.Number(float64(v)), nil
	case int32:
		return models.Number(float64(v)), nil
	case int64:
		return models.Number(float64(v)), nil
	case time.Time:
		return models.Date(v), nil
	default:
		return c.ignore(itemID, field, value), nil
	}
}

func (c *Coercer) coerceString(itemID, field, v string) (models.FieldValue, error) {
	if _, ok := c.dateFields[field]; ok {
		t, err := parseTimestamp(v)
		if err != nil {
			return models.FieldValue{}, &DateParseError{ItemID: itemID, Field: field, Value: v}
		}
		return models.Date(t), nil
	}
	if _, ok := c.backfillFields[field]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return models.FieldValue{}, &NumberParseError{ItemID: itemID, Field: field, Value: v}
		}
		return models.Number(f), nil
	}
	return models.Text(v), nil
}

func (c *Coercer) ignore(itemID, field string, value any) models.FieldValue {
	metrics.CoercionIgnoredValues.Inc()
	c.logger.Warn().
		Str("item", itemID).
		Str("field", field).
		Type("shape", value).
		Msg("unclassifiable property value ignored")
	return models.Ignored()
}

// timestampLayouts are accepted date-field encodings, most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

func parseTimestamp(v string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
