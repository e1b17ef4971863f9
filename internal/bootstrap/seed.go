// Package bootstrap installs the built-in system triggers into an empty
// trigger table.
package bootstrap

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/titanous/json5"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

//go:embed defaults/triggers.json5
var defaultsFS embed.FS

type triggerDef struct {
	Phrase      string            `json:"phrase"`
	PatternType store.PatternType `json:"pattern_type"`
	ActionType  store.ActionType  `json:"action_type"`
	Priority    int               `json:"priority"`
}

// DefaultTriggers returns the embedded system trigger set.
func DefaultTriggers() ([]store.Trigger, error) {
	data, err := defaultsFS.ReadFile("defaults/triggers.json5")
	if err != nil {
		return nil, err
	}
	var defs []triggerDef
	if err := json5.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse default triggers: %w", err)
	}
	out := make([]store.Trigger, 0, len(defs))
	for _, d := range defs {
		out = append(out, store.Trigger{
			Phrase:      d.Phrase,
			PatternType: d.PatternType,
			ActionType:  d.ActionType,
			Priority:    d.Priority,
			IsActive:    true,
			Scope:       store.TriggerScopeSystem,
		})
	}
	return out, nil
}

// SeedTriggers writes the default system triggers when the table holds none.
// Existing triggers are never overwritten. Returns the number written.
func SeedTriggers(ctx context.Context, ts store.TriggerStore) (int, error) {
	existing, err := ts.ListForGroup(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list system triggers: %w", err)
	}
	for _, t := range existing {
		if t.Scope == store.TriggerScopeSystem {
			return 0, nil
		}
	}

	defs, err := DefaultTriggers()
	if err != nil {
		return 0, err
	}
	for i := range defs {
		if err := ts.Upsert(ctx, &defs[i]); err != nil {
			return i, fmt.Errorf("seed trigger %q: %w", defs[i].Phrase, err)
		}
	}
	slog.Info("bootstrap: seeded system triggers", "count", len(defs))
	return len(defs), nil
}
