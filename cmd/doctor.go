package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/otcdesk/internal/config"
	"github.com/nextlevelbuilder/otcdesk/internal/invalidate"
	"github.com/nextlevelbuilder/otcdesk/internal/store/pg"
	"github.com/nextlevelbuilder/otcdesk/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, database, Redis and bridge reachability",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(cmd.Context())
		},
	}
}

func runDoctor(ctx context.Context) {
	fmt.Println("otcdesk doctor")
	fmt.Printf("  Version:  %s (protocol %d)\n", Version, protocol.ProtocolVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Database
	fmt.Println()
	fmt.Println("  Database:")
	if cfg.IsManagedMode() {
		fmt.Printf("    %-12s managed (postgres)\n", "Mode:")
	} else {
		fmt.Printf("    %-12s standalone (%s)\n", "Mode:", cfg.SQLitePath())
	}
	if cfg.IsManagedMode() {
		checkSchema(ctx, cfg.Database.PostgresDSN)
	}
	stores, err := openStores(ctx, cfg)
	if err != nil {
		fmt.Printf("    %-12s CONNECT FAILED (%s)\n", "Status:", err)
	} else {
		defer stores.Close()
		if err := stores.DB.PingContext(ctx); err != nil {
			fmt.Printf("    %-12s CONNECT FAILED (%s)\n", "Status:", err)
		} else if list, err := stores.Groups.List(ctx); err != nil {
			fmt.Printf("    %-12s QUERY FAILED (%s)\n", "Status:", err)
		} else {
			fmt.Printf("    %-12s OK (%d groups)\n", "Status:", len(list))
		}
	}

	// Redis
	fmt.Println()
	fmt.Println("  Redis:")
	if cfg.Redis.Addr == "" {
		fmt.Printf("    %-12s (not configured, invalidation is local only)\n", "Status:")
	} else {
		quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		rb, err := invalidate.NewRedisBus(ctx, cfg.Redis, quiet)
		if err != nil {
			fmt.Printf("    %-12s %s FAILED (%s)\n", "Status:", cfg.Redis.Addr, err)
		} else {
			fmt.Printf("    %-12s %s OK\n", "Status:", cfg.Redis.Addr)
			rb.Close()
		}
	}

	// WhatsApp bridge
	fmt.Println()
	fmt.Println("  Channels:")
	wa := cfg.Channels.WhatsApp
	switch {
	case !wa.Enabled:
		fmt.Printf("    %-12s disabled\n", "WhatsApp:")
	case wa.BridgeURL == "":
		fmt.Printf("    %-12s enabled (missing bridge_url)\n", "WhatsApp:")
	default:
		dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
		conn, _, err := dialer.DialContext(ctx, wa.BridgeURL, nil)
		if err != nil {
			fmt.Printf("    %-12s %s UNREACHABLE (%s)\n", "WhatsApp:", wa.BridgeURL, err)
		} else {
			conn.Close()
			fmt.Printf("    %-12s %s OK\n", "WhatsApp:", wa.BridgeURL)
		}
	}
	fmt.Printf("    %-12s %d\n", "Control:", len(wa.ControlGroups))

	// Routing
	fmt.Println()
	fmt.Println("  Routing:")
	fmt.Printf("    %-12s %s\n", "Triggers:", cfg.Routing.TriggerStrategy)
	fmt.Printf("    %-12s %s\n", "Default:", cfg.Routing.DefaultGroupMode)
	if cfg.Routing.KeywordsFile != "" {
		path := config.ExpandHome(cfg.Routing.KeywordsFile)
		if _, err := os.Stat(path); err != nil {
			fmt.Printf("    %-12s %s (NOT FOUND)\n", "Keywords:", path)
		} else {
			fmt.Printf("    %-12s %s (OK)\n", "Keywords:", path)
		}
	}

	// Telemetry
	fmt.Println()
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint != "" {
		fmt.Printf("  Telemetry: %s (%s)\n", cfg.Telemetry.Endpoint, cfg.Telemetry.Protocol)
	} else {
		fmt.Println("  Telemetry: disabled")
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkSchema(ctx context.Context, dsn string) {
	db, err := pg.OpenDB(dsn)
	if err != nil {
		fmt.Printf("    %-12s CHECK FAILED (%s)\n", "Schema:", err)
		return
	}
	defer db.Close()
	s, err := pg.CheckSchema(ctx, db)
	switch {
	case err != nil:
		fmt.Printf("    %-12s CHECK FAILED (%s)\n", "Schema:", err)
	case s.Err() != nil:
		fmt.Printf("    %-12s %s\n", "Schema:", s.Err())
	default:
		fmt.Printf("    %-12s v%d (up to date)\n", "Schema:", s.Version)
	}
}
