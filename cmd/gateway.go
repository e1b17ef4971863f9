package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/otcdesk/internal/bootstrap"
	"github.com/nextlevelbuilder/otcdesk/internal/bus"
	"github.com/nextlevelbuilder/otcdesk/internal/channels"
	"github.com/nextlevelbuilder/otcdesk/internal/channels/whatsapp"
	"github.com/nextlevelbuilder/otcdesk/internal/config"
	"github.com/nextlevelbuilder/otcdesk/internal/dispatch"
	"github.com/nextlevelbuilder/otcdesk/internal/gateway"
	"github.com/nextlevelbuilder/otcdesk/internal/gateway/methods"
	httpapi "github.com/nextlevelbuilder/otcdesk/internal/http"
	"github.com/nextlevelbuilder/otcdesk/internal/invalidate"
	"github.com/nextlevelbuilder/otcdesk/internal/routing"
	"github.com/nextlevelbuilder/otcdesk/internal/store"
	"github.com/nextlevelbuilder/otcdesk/internal/tracing"
	"github.com/nextlevelbuilder/otcdesk/pkg/protocol"
)

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the routing gateway (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway(cmd.Context())
		},
	}
}

func runGateway(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := slog.Default()

	shutdownTracing, err := tracing.Init(ctx, cfg.Telemetry, Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing.shutdown_failed", "error", err)
		}
	}()

	c, err := buildCore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	// Standalone databases start empty; managed ones are seeded explicitly.
	if !cfg.IsManagedMode() {
		if _, err := bootstrap.SeedTriggers(ctx, c.stores.Triggers); err != nil {
			slog.Warn("bootstrap: trigger seeding failed", "error", err)
		}
	}

	msgBus := bus.New()

	// Quote lifecycle changes reach downstream workers over /ws.
	c.book.SetNotifier(func(q store.Quote) {
		msgBus.Broadcast(bus.Event{Name: protocol.EventQuoteUpdated, Payload: q})
	})

	// --- Cache invalidation: local registry, optional Redis fan-out ---
	registry := invalidate.NewRegistry(logger)
	registry.Register(bus.CacheKindTriggers, func(_ context.Context, key string) error {
		c.table.Invalidate(key)
		return nil
	})
	registry.Register(bus.CacheKindGroups, c.groups.Invalidate)
	registry.Register(bus.CacheKindKeywords, c.keywords.Invalidate)
	registry.Subscribe(ctx, msgBus)

	var remote invalidate.Publisher
	var redisBus *invalidate.RedisBus
	if cfg.Redis.Addr != "" {
		redisBus, err = invalidate.NewRedisBus(ctx, cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisBus.Close()
		remote = redisBus
	}
	inv := invalidate.NewInvalidator(registry, remote, logger)

	// --- Dispatch ---
	dispatcher := dispatch.NewDispatcher(logger)
	dispatcher.Register(routing.DestObserveOnly, dispatch.NewObserveRecorder(c.stores.MessageLog))
	dispatcher.RegisterAll(dispatch.NewEventForwarder(msgBus))

	router := routing.New(c.deps)
	preview := routing.NewPreview(c.deps)

	// --- Channels ---
	channelMgr := channels.NewManager(msgBus)
	if cfg.Channels.WhatsApp.Enabled {
		wa, err := whatsapp.New(cfg.Channels.WhatsApp, msgBus)
		if err != nil {
			return fmt.Errorf("whatsapp channel: %w", err)
		}
		channelMgr.RegisterChannel(wa.Name(), wa)
	}

	// --- Gateway server: REST handlers + WS methods ---
	server := gateway.NewServer(cfg, msgBus)
	token := cfg.Gateway.Token
	server.AddHandler(httpapi.NewRoutingHandler(preview, c.groups.IsControl, token))
	server.AddHandler(httpapi.NewQuotesHandler(c.book, token))
	server.AddHandler(httpapi.NewGroupsHandler(c.groups, c.stores.MessageLog, token))
	server.AddHandler(httpapi.NewCacheHandler(inv, token))

	methods.NewRoutingMethods(preview, c.groups.IsControl).Register(server.Router())
	methods.NewQuotesMethods(c.book).Register(server.Router())
	methods.NewAdminMethods(c.groups, channelMgr, inv).Register(server.Router())

	server.SetStatusFunc(func() map[string]interface{} {
		return map[string]interface{}{
			"version":          Version,
			"mode":             cfg.Database.Mode,
			"trigger_strategy": cfg.Routing.TriggerStrategy,
			"groups":           len(c.groups.List()),
			"rules":            router.Rules(),
			"channels":         channelMgr.GetStatus(),
		}
	})

	consumer := newConsumer(msgBus, router, dispatcher, c.groups, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.keywords.Watch(gctx); err != nil {
			slog.Warn("keywords.watch_disabled", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		c.book.Run(gctx, cfg.Quotes.SweepDuration())
		return nil
	})
	g.Go(func() error {
		c.groups.Run(gctx, cfg.Routing.ModeCacheDuration())
		return nil
	})
	if redisBus != nil {
		g.Go(func() error {
			return redisBus.Start(gctx, func(ctx context.Context, p bus.CacheInvalidatePayload) {
				if err := registry.Apply(ctx, p); err != nil {
					slog.Warn("cache.remote_invalidate_failed", "kind", p.Kind, "key", p.Key, "error", err)
				}
			})
		})
	}
	g.Go(func() error {
		consumer.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := channelMgr.StartAll(gctx); err != nil {
			return fmt.Errorf("start channels: %w", err)
		}
		<-gctx.Done()
		server.BroadcastEvent(*protocol.NewEvent(protocol.EventShutdown, nil))
		return channelMgr.StopAll(context.Background())
	})
	g.Go(func() error {
		return server.Start(gctx)
	})

	slog.Info("otcdesk gateway starting",
		"version", Version,
		"protocol", protocol.ProtocolVersion,
		"mode", cfg.Database.Mode,
		"trigger_strategy", cfg.Routing.TriggerStrategy,
		"rules", router.Rules(),
		"redis", cfg.Redis.Addr != "",
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("graceful shutdown complete")
	return nil
}
