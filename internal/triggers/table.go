// Package triggers provides routing.TriggerMatcher strategies: the table
// matcher over the triggers table, a keyword-rules matcher, and a shadow
// matcher that runs a candidate next to the primary for comparison.
package triggers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// DefaultCacheTTL bounds how stale a group's cached trigger list may get
// when no invalidation arrives.
const DefaultCacheTTL = 30 * time.Second

type cacheEntry struct {
	triggers []store.Trigger
	loadedAt time.Time
}

// TableMatcher matches messages against the triggers table. Each group's
// trigger list (own + system triggers) is cached and kept sorted by
// precedence.
type TableMatcher struct {
	store  store.TriggerStore
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
	re    regexCache
}

// NewTableMatcher creates a table matcher. ttl <= 0 uses DefaultCacheTTL.
func NewTableMatcher(ts store.TriggerStore, ttl time.Duration, logger *slog.Logger) *TableMatcher {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TableMatcher{
		store:  ts,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		cache:  make(map[string]cacheEntry),
	}
}

// Match returns the highest-precedence active trigger matching text, or nil.
// control_command triggers are only visible to control groups.
func (m *TableMatcher) Match(ctx context.Context, text, groupID string, isControl bool) (*store.Trigger, error) {
	list, err := m.triggersFor(ctx, groupID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		t := &list[i]
		if !t.IsActive {
			continue
		}
		if t.ActionType == store.ActionControlCommand && !isControl {
			continue
		}
		if m.re.matches(t, text) {
			found := *t
			return &found, nil
		}
	}
	return nil, nil
}

// Invalidate drops the cached list for groupID, or every list when groupID
// is empty. System triggers are shared, so callers pass "" after editing one.
func (m *TableMatcher) Invalidate(groupID string) {
	m.mu.Lock()
	if groupID == "" {
		m.cache = make(map[string]cacheEntry)
	} else {
		delete(m.cache, groupID)
	}
	m.mu.Unlock()
	if groupID == "" {
		m.re.reset()
	}
	m.logger.Debug("triggers.cache_invalidated", "group_id", groupID)
}

func (m *TableMatcher) triggersFor(ctx context.Context, groupID string) ([]store.Trigger, error) {
	now := m.now()

	m.mu.RLock()
	entry, ok := m.cache[groupID]
	m.mu.RUnlock()
	if ok && now.Sub(entry.loadedAt) < m.ttl {
		return entry.triggers, nil
	}

	list, err := m.store.ListForGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list triggers for %s: %w", groupID, err)
	}
	SortByPrecedence(list)

	m.mu.Lock()
	m.cache[groupID] = cacheEntry{triggers: list, loadedAt: now}
	m.mu.Unlock()
	return list, nil
}

// SortByPrecedence orders triggers the way they are tried: lower priority
// first, group-owned before system, longer phrase before shorter.
func SortByPrecedence(list []store.Trigger) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		aSys, bSys := a.Scope == store.TriggerScopeSystem, b.Scope == store.TriggerScopeSystem
		if aSys != bSys {
			return !aSys
		}
		return utf8.RuneCountInString(a.Phrase) > utf8.RuneCountInString(b.Phrase)
	})
}
