// Package keywords serves the operator-editable keyword lists the router uses
// to recognize lock, cancellation and rejection messages.
//
// Lists come from three layers, later layers replacing earlier ones per key:
// built-in defaults, a JSON5 file (hot-reloaded), and the system_patterns table.
package keywords

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/titanous/json5"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// Defaults are used for keys neither the file nor the database define.
var Defaults = map[string][]string{
	"price_lock":        {"trava", "travar", "lock", "travado", "pode travar"},
	"deal_cancellation": {"cancela", "cancelar", "cancel", "desisto"},
	"deal_rejection":    {"off"},
	"price_request":     {"cotação", "cotacao", "preço", "preco", "price", "tx"},
	"deal_confirmation": {"fechado", "confirmo", "confirmado", "pode mandar"},
}

// Directory implements routing.KeywordSource.
type Directory struct {
	path     string
	patterns store.PatternStore
	logger   *slog.Logger

	mu     sync.RWMutex
	file   map[string][]string
	db     map[string][]string
	merged map[string][]string
}

// NewDirectory creates a directory. path and patterns are optional.
func NewDirectory(path string, patterns store.PatternStore, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Directory{path: path, patterns: patterns, logger: logger}
	d.rebuildLocked()
	return d
}

// Keywords returns a copy of the current list for key.
func (d *Directory) Keywords(key string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.merged[key]...)
}

// Snapshot returns all current lists.
func (d *Directory) Snapshot() map[string][]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string][]string, len(d.merged))
	for k, v := range d.merged {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Keys returns the pattern keys known to the directory, sorted.
func (d *Directory) Keys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]string, 0, len(d.merged))
	for k := range d.merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadFile reads the keyword file. A missing file clears the file layer.
func (d *Directory) LoadFile() error {
	if d.path == "" {
		return nil
	}
	data, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			d.set(func() { d.file = nil })
			return nil
		}
		return fmt.Errorf("read keywords file: %w", err)
	}

	var lists map[string][]string
	if err := json5.Unmarshal(data, &lists); err != nil {
		return fmt.Errorf("parse keywords file: %w", err)
	}
	d.set(func() { d.file = lists })
	d.logger.Info("keywords.file_loaded", "path", d.path, "keys", len(lists))
	return nil
}

// Refresh reloads the database layer.
func (d *Directory) Refresh(ctx context.Context) error {
	if d.patterns == nil {
		return nil
	}
	lists, err := d.patterns.ListPatterns(ctx)
	if err != nil {
		return fmt.Errorf("list patterns: %w", err)
	}
	d.set(func() { d.db = lists })
	return nil
}

// Invalidate satisfies the cache invalidation registry; keyword lists are
// small so every invalidation reloads all layers.
func (d *Directory) Invalidate(ctx context.Context, _ string) error {
	if err := d.LoadFile(); err != nil {
		return err
	}
	return d.Refresh(ctx)
}

// Watch reloads the file whenever it changes, until ctx is done.
// The parent directory is watched so editors that replace the file are seen.
func (d *Directory) Watch(ctx context.Context) error {
	if d.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	target := filepath.Clean(d.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := d.LoadFile(); err != nil {
				d.logger.Warn("keywords.reload_failed", "path", d.path, "error", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			d.logger.Warn("keywords.watch_error", "error", err)
		}
	}
}

func (d *Directory) set(update func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	update()
	d.rebuildLocked()
}

func (d *Directory) rebuildLocked() {
	merged := make(map[string][]string, len(Defaults))
	for _, layer := range []map[string][]string{Defaults, d.file, d.db} {
		for k, v := range layer {
			merged[k] = v
		}
	}
	d.merged = merged
}
