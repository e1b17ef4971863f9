// Package groups keeps the in-memory view of group modes and control flags
// the router reads on every message, synchronized from the groups table.
package groups

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// Directory implements routing.GroupModes and routing.GroupSettings.
// Mode and IsControl never touch the database; Refresh and Run keep the
// cache current.
type Directory struct {
	groups      store.GroupStore
	settings    store.GroupSettingsStore
	defaultMode store.GroupMode
	control     map[string]bool // from config
	logger      *slog.Logger

	mu   sync.RWMutex
	byID map[string]store.Group
}

// Options configures a Directory.
type Options struct {
	DefaultMode   store.GroupMode // mode for groups not in the table; defaults to learning
	ControlGroups []string        // always treated as control groups
	Logger        *slog.Logger
}

// NewDirectory creates a directory. Call Refresh before routing.
func NewDirectory(groups store.GroupStore, settings store.GroupSettingsStore, opts Options) *Directory {
	if !opts.DefaultMode.Valid() {
		opts.DefaultMode = store.GroupModeLearning
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	control := make(map[string]bool, len(opts.ControlGroups))
	for _, id := range opts.ControlGroups {
		control[id] = true
	}
	return &Directory{
		groups:      groups,
		settings:    settings,
		defaultMode: opts.DefaultMode,
		control:     control,
		logger:      opts.Logger,
		byID:        make(map[string]store.Group),
	}
}

// Mode returns the cached mode for groupID, or the default mode when the
// group is unknown.
func (d *Directory) Mode(groupID string) store.GroupMode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if g, ok := d.byID[groupID]; ok {
		return g.Mode
	}
	return d.defaultMode
}

// IsControl reports whether groupID is a control group, either by config or
// by its is_control flag.
func (d *Directory) IsControl(groupID string) bool {
	if d.control[groupID] {
		return true
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.byID[groupID].IsControl
}

// Known reports whether groupID has been loaded from the table.
func (d *Directory) Known(groupID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.byID[groupID]
	return ok
}

// List returns the cached groups.
func (d *Directory) List() []store.Group {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]store.Group, 0, len(d.byID))
	for _, g := range d.byID {
		out = append(out, g)
	}
	return out
}

// Refresh reloads every group. On error the previous cache is kept.
func (d *Directory) Refresh(ctx context.Context) error {
	list, err := d.groups.List(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	byID := make(map[string]store.Group, len(list))
	for _, g := range list {
		byID[g.ID] = g
	}
	d.mu.Lock()
	d.byID = byID
	d.mu.Unlock()
	d.logger.Debug("groups.refreshed", "count", len(list))
	return nil
}

// Run refreshes the cache every interval until ctx is done.
func (d *Directory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Refresh(ctx); err != nil {
				d.logger.Warn("groups.refresh_failed", "error", err)
			}
		}
	}
}

// Invalidate reloads one group, or all groups when groupID is empty.
func (d *Directory) Invalidate(ctx context.Context, groupID string) error {
	if groupID == "" {
		return d.Refresh(ctx)
	}
	g, err := d.groups.Get(ctx, groupID)
	if errors.Is(err, store.ErrNotFound) {
		d.mu.Lock()
		delete(d.byID, groupID)
		d.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("get group %s: %w", groupID, err)
	}
	d.put(*g)
	return nil
}

// Ensure registers a group seen for the first time with the default mode.
// Known groups are left alone.
func (d *Directory) Ensure(ctx context.Context, groupID, name string) error {
	if d.Known(groupID) {
		return nil
	}
	if err := d.groups.Ensure(ctx, groupID, name, d.defaultMode); err != nil {
		return fmt.Errorf("ensure group %s: %w", groupID, err)
	}
	d.logger.Info("groups.registered", "group_id", groupID, "group_name", name, "mode", d.defaultMode)
	return d.Invalidate(ctx, groupID)
}

// SetMode persists a new mode and updates the cache.
func (d *Directory) SetMode(ctx context.Context, groupID string, mode store.GroupMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid group mode %q", mode)
	}
	if err := d.groups.SetMode(ctx, groupID, mode); err != nil {
		return fmt.Errorf("set mode for %s: %w", groupID, err)
	}
	d.mu.Lock()
	if g, ok := d.byID[groupID]; ok {
		g.Mode = mode
		d.byID[groupID] = g
	}
	d.mu.Unlock()
	return nil
}

// DealFlowMode returns the group's deal-flow mode. Groups without a settings
// row run the classic flow.
func (d *Directory) DealFlowMode(ctx context.Context, groupID string) (store.DealFlowMode, error) {
	s, err := d.settings.Get(ctx, groupID)
	if errors.Is(err, store.ErrNotFound) {
		return store.DealFlowClassic, nil
	}
	if err != nil {
		return "", fmt.Errorf("get settings for %s: %w", groupID, err)
	}
	if s.DealFlowMode == "" {
		return store.DealFlowClassic, nil
	}
	return s.DealFlowMode, nil
}

func (d *Directory) put(g store.Group) {
	d.mu.Lock()
	d.byID[g.ID] = g
	d.mu.Unlock()
}
