// Package invalidate fans cache invalidation signals out to the caches that
// registered for them, locally and across gateway instances over Redis.
package invalidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nextlevelbuilder/otcdesk/internal/bus"
	"github.com/nextlevelbuilder/otcdesk/pkg/protocol"
)

// Func evicts cached state for key. An empty key means everything.
type Func func(ctx context.Context, key string) error

// Registry maps cache kinds (bus.CacheKind*) to eviction functions.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	funcs map[string][]Func
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger, funcs: make(map[string][]Func)}
}

// Register adds fn for kind.
func (r *Registry) Register(kind string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[kind] = append(r.funcs[kind], fn)
}

// Kinds returns the registered kinds.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs))
	for k := range r.funcs {
		out = append(out, k)
	}
	return out
}

// Apply runs every function registered for p.Kind.
func (r *Registry) Apply(ctx context.Context, p bus.CacheInvalidatePayload) error {
	r.mu.RLock()
	fns := r.funcs[p.Kind]
	r.mu.RUnlock()

	if len(fns) == 0 {
		return fmt.Errorf("unknown cache kind %q", p.Kind)
	}
	var errs []error
	for _, fn := range fns {
		if err := fn(ctx, p.Key); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalidate %s: %w", p.Kind, err)
	}
	r.logger.Debug("cache.invalidated", "kind", p.Kind, "key", p.Key)
	return nil
}

// Subscribe applies protocol.EventCacheInvalidate events broadcast on pub.
func (r *Registry) Subscribe(ctx context.Context, pub bus.EventPublisher) {
	pub.Subscribe("cache-invalidate", func(ev bus.Event) {
		if ev.Name != protocol.EventCacheInvalidate {
			return
		}
		p, ok := ev.Payload.(bus.CacheInvalidatePayload)
		if !ok {
			return
		}
		if err := r.Apply(ctx, p); err != nil {
			r.logger.Warn("cache.invalidate_failed", "kind", p.Kind, "key", p.Key, "error", err)
		}
	})
}
