package invalidate

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/otcdesk/internal/bus"
)

// Publisher sends invalidations to other instances.
type Publisher interface {
	Publish(ctx context.Context, p bus.CacheInvalidatePayload) error
}

// Invalidator applies an invalidation locally and forwards it to the other
// instances when a Publisher is configured.
type Invalidator struct {
	registry *Registry
	remote   Publisher
	logger   *slog.Logger
}

// NewInvalidator creates an invalidator. remote may be nil.
func NewInvalidator(registry *Registry, remote Publisher, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{registry: registry, remote: remote, logger: logger}
}

// Invalidate evicts kind/key. A failed remote publish is logged; the local
// eviction result is returned.
func (i *Invalidator) Invalidate(ctx context.Context, kind, key string) error {
	p := bus.CacheInvalidatePayload{Kind: kind, Key: key}
	if err := i.registry.Apply(ctx, p); err != nil {
		return err
	}
	if i.remote != nil {
		if err := i.remote.Publish(ctx, p); err != nil {
			i.logger.Warn("cache.publish_failed", "kind", kind, "key", key, "error", err)
		}
	}
	return nil
}

// Kinds returns the kinds that can be invalidated.
func (i *Invalidator) Kinds() []string { return i.registry.Kinds() }
