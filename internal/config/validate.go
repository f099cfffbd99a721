// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags plus the cross-field rules the tags cannot
// express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	// Action names must be unique across primary and secondary lists; a
	// duplicate would double-count events in partitioning.
	seen := make(map[string]struct{})
	for _, name := range c.Events.Actions() {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate action name %q", name)
		}
		seen[name] = struct{}{}
	}

	// Ranking names become index fields, so they must not collide with
	// each other or with action names.
	rankNames := make(map[string]struct{})
	for _, r := range c.Model.Rankings {
		if _, dup := rankNames[r.Name]; dup {
			return fmt.Errorf("duplicate ranking name %q", r.Name)
		}
		rankNames[r.Name] = struct{}{}
		if _, clash := seen[r.Name]; clash {
			return fmt.Errorf("ranking name %q collides with an action name", r.Name)
		}
		for _, ev := range r.Events {
			if _, ok := seen[ev]; !ok {
				return fmt.Errorf("ranking %q references unknown action %q", r.Name, ev)
			}
		}
	}

	switch c.Index.Backend {
	case BackendHTTP:
		if c.Index.URL == "" {
			return fmt.Errorf("index backend %q requires index.url", BackendHTTP)
		}
	case BackendBadger:
		// Path may be empty, which means in-memory.
	}

	if c.Model.Mode == ModeRankings && len(c.Model.Rankings) == 0 {
		return fmt.Errorf("model mode %q requires at least one ranking", ModeRankings)
	}

	return nil
}
