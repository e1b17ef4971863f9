package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/nextlevelbuilder/otcdesk/internal/amount"
	"github.com/nextlevelbuilder/otcdesk/internal/config"
	"github.com/nextlevelbuilder/otcdesk/internal/groups"
	"github.com/nextlevelbuilder/otcdesk/internal/keywords"
	"github.com/nextlevelbuilder/otcdesk/internal/quotes"
	"github.com/nextlevelbuilder/otcdesk/internal/routing"
	"github.com/nextlevelbuilder/otcdesk/internal/store"
	"github.com/nextlevelbuilder/otcdesk/internal/store/pg"
	"github.com/nextlevelbuilder/otcdesk/internal/store/sqlite"
	"github.com/nextlevelbuilder/otcdesk/internal/triggers"
)

// core holds the routing collaborators shared by the gateway and the
// offline route command.
type core struct {
	stores   *store.Stores
	keywords *keywords.Directory
	groups   *groups.Directory
	table    *triggers.TableMatcher
	book     *quotes.Book
	deps     routing.Deps
}

// openStores picks Postgres in managed mode and SQLite otherwise.
func openStores(ctx context.Context, cfg *config.Config) (*store.Stores, error) {
	if cfg.IsManagedMode() {
		stores, err := pg.NewPGStores(store.StoreConfig{PostgresDSN: cfg.Database.PostgresDSN})
		if err != nil {
			return nil, err
		}
		status, err := pg.CheckSchema(ctx, stores.DB)
		if err == nil {
			err = status.Err()
		}
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("schema compatibility check: %w", err)
		}
		return stores, nil
	}
	path := cfg.SQLitePath()
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return sqlite.NewStores(ctx, path)
}

func buildCore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*core, error) {
	directMin, err := decimal.NewFromString(cfg.Routing.DirectAmountMin)
	if err != nil {
		return nil, fmt.Errorf("routing.direct_amount_min: %w", err)
	}

	stores, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	kw := keywords.NewDirectory(config.ExpandHome(cfg.Routing.KeywordsFile), stores.Patterns, logger)
	if err := kw.LoadFile(); err != nil {
		logger.Warn("keywords.file_load_failed", "path", cfg.Routing.KeywordsFile, "error", err)
	}
	if err := kw.Refresh(ctx); err != nil {
		logger.Warn("keywords.refresh_failed", "error", err)
	}

	dir := groups.NewDirectory(stores.Groups, stores.GroupSettings, groups.Options{
		DefaultMode:   store.GroupMode(cfg.Routing.DefaultGroupMode),
		ControlGroups: cfg.Channels.WhatsApp.ControlGroups,
		Logger:        logger,
	})
	if err := dir.Refresh(ctx); err != nil {
		stores.Close()
		return nil, err
	}

	table := triggers.NewTableMatcher(stores.Triggers, cfg.Routing.TriggerCacheDuration(), logger)
	var matcher routing.TriggerMatcher = table
	if cfg.Routing.TriggerStrategy == config.TriggerStrategyShadow {
		matcher = triggers.NewShadowMatcher(table, triggers.NewKeywordRuleMatcher(kw, nil), logger)
		logger.Info("triggers.shadow_enabled")
	}

	book := quotes.NewBook(cfg.Quotes.TTLDuration(), logger)

	return &core{
		stores:   stores,
		keywords: kw,
		groups:   dir,
		table:    table,
		book:     book,
		deps: routing.Deps{
			Modes:           dir,
			Triggers:        matcher,
			Deals:           stores.Deals,
			Settings:        dir,
			Keywords:        kw,
			Amounts:         amount.Parser{},
			Quotes:          book,
			Logger:          logger,
			DirectAmountMin: directMin,
		},
	}, nil
}

func (c *core) Close() error { return c.stores.Close() }
