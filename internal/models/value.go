// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Kind identifies the variant carried by a FieldValue.
type Kind int

const (
	// KindText is a verbatim string value.
	KindText Kind = iota
	// KindTermList is a list of exact-match terms.
	KindTermList
	// KindNumber is a floating-point value (integers pass through here too).
	KindNumber
	// KindDate is an instant in time.
	KindDate
	// KindIgnored marks a source value whose shape could not be classified.
	// Ignored values are never written to the index.
	KindIgnored
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindTermList:
		return "terms"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// FieldValue is a closed tagged variant holding one typed field of a fused
// record. The zero value is an empty Text.
type FieldValue struct {
	kind   Kind
	text   string
	terms  []string
	number float64
	date   time.Time
}

// Text returns a text-valued field.
func Text(s string) FieldValue {
	return FieldValue{kind: KindText, text: s}
}

// Terms returns a term-list field.
func Terms(ts []string) FieldValue {
	return FieldValue{kind: KindTermList, terms: ts}
}

// Number returns a numeric field.
func Number(f float64) FieldValue {
	return FieldValue{kind: KindNumber, number: f}
}

// Date returns a date field.
func Date(t time.Time) FieldValue {
	return FieldValue{kind: KindDate, date: t}
}

// Ignored returns the explicit ignored variant.
func Ignored() FieldValue {
	return FieldValue{kind: KindIgnored}
}

// Kind returns the variant kind.
func (v FieldValue) Kind() Kind { return v.kind }

// Text returns the text payload. Valid only for KindText.
func (v FieldValue) Text() string { return v.text }

// Terms returns the term-list payload. Valid only for KindTermList.
func (v FieldValue) Terms() []string { return v.terms }

// Number returns the numeric payload. Valid only for KindNumber.
func (v FieldValue) Number() float64 { return v.number }

// Date returns the date payload. Valid only for KindDate.
func (v FieldValue) Date() time.Time { return v.date }

// Equal reports whether two field values carry the same variant and payload.
func (v FieldValue) Equal(o FieldValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindTermList:
		if len(v.terms) != len(o.terms) {
			return false
		}
		for i := range v.terms {
			if v.terms[i] != o.terms[i] {
				return false
			}
		}
		return true
	case KindNumber:
		return v.number == o.number
	case KindDate:
		return v.date.Equal(o.date)
	case KindIgnored:
		return true
	default:
		return false
	}
}

// MarshalJSON emits the natural wire shape of the variant: string, []string,
// float64, RFC3339 string, or null for ignored values.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindTermList:
		if v.terms == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(v.terms)
	case KindNumber:
		return json.Marshal(v.number)
	case KindDate:
		return json.Marshal(v.date.UTC().Format(time.RFC3339))
	case KindIgnored:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("unknown field value kind %d", v.kind)
	}
}

// String renders the value for logs and error messages.
func (v FieldValue) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindTermList:
		return fmt.Sprintf("%v", v.terms)
	case KindNumber:
		return fmt.Sprintf("%g", v.number)
	case KindDate:
		return v.date.UTC().Format(time.RFC3339)
	case KindIgnored:
		return "<ignored>"
	default:
		return "<unknown>"
	}
}

// FieldMap maps field names to typed values for a single item.
type FieldMap map[string]FieldValue

// Clone returns a shallow copy of the field map. Values are immutable so a
// shallow copy is sufficient.
func (m FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IDField is the reserved field name carrying the item identity in every
// fused record.
const IDField = "id"

// FusedRecord is one fully merged record per item: the union of all source
// fields for that item plus its identity under IDField.
type FusedRecord struct {
	ID     string   `json:"id"`
	Fields FieldMap `json:"fields"`
}
