// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package models

import (
	"fmt"
	"time"
)

// Event represents a single user-item interaction record as read from the
// event store. Events are point-in-time snapshots; the pipeline never mutates
// or re-emits them.
type Event struct {
	// ActorID identifies the user who performed the action.
	ActorID string `json:"actorId"`

	// TargetID identifies the item the action was performed on.
	TargetID string `json:"targetId"`

	// ActionName is the interaction category (e.g. "purchase", "view").
	ActionName string `json:"actionName"`

	// Timestamp is when the interaction occurred.
	Timestamp time.Time `json:"timestamp"`
}

// InvalidEventError describes an event that failed shape validation.
// It carries enough context to diagnose the offending record without
// re-running the batch.
type InvalidEventError struct {
	// Reason is a short machine-stable description of the violation.
	Reason string

	// ActionName is the action carried by the offending event, if any.
	ActionName string

	// ActorID is the actor carried by the offending event, if any.
	ActorID string
}

// Error implements the error interface.
func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid event (action=%q actor=%q): %s", e.ActionName, e.ActorID, e.Reason)
}

// ValidateIdentity checks that the event carries a non-empty actor and
// target. A violation returns an *InvalidEventError describing the single
// offending record; it is fatal to that record, not to the batch.
func (ev *Event) ValidateIdentity() error {
	if ev.ActorID == "" {
		return &InvalidEventError{Reason: "empty actorId", ActionName: ev.ActionName}
	}
	if ev.TargetID == "" {
		return &InvalidEventError{Reason: "missing targetId", ActionName: ev.ActionName, ActorID: ev.ActorID}
	}
	return nil
}
