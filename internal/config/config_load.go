package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18800,
		},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{
				GroupPolicy: "open",
			},
		},
		Routing: RoutingConfig{
			TriggerStrategy:  TriggerStrategyTable,
			DefaultGroupMode: "learning",
			DirectAmountMin:  "100",
			TriggerCacheTTL:  "30s",
			ModeCacheTTL:     "15s",
		},
		Quotes: QuotesConfig{
			TTL:           "3m",
			SweepInterval: "30s",
		},
		Database: DatabaseConfig{
			Mode:       "standalone",
			SQLitePath: "~/.otcdesk/otcdesk.db",
		},
		Redis: RedisConfig{
			Channel: "otcdesk:cache",
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "otcdesk-gateway",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file yields the defaults plus env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("OTCDESK_GATEWAY_TOKEN", &c.Gateway.Token)
	envStr("OTCDESK_GATEWAY_HOST", &c.Gateway.Host)
	if v := os.Getenv("OTCDESK_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Gateway.Port = port
		}
	}

	envStr("OTCDESK_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("OTCDESK_DATABASE_MODE", &c.Database.Mode)
	envStr("OTCDESK_SQLITE_PATH", &c.Database.SQLitePath)

	envStr("OTCDESK_REDIS_ADDR", &c.Redis.Addr)
	envStr("OTCDESK_REDIS_PASSWORD", &c.Redis.Password)

	envStr("OTCDESK_WHATSAPP_BRIDGE_URL", &c.Channels.WhatsApp.BridgeURL)
	if v := os.Getenv("OTCDESK_CONTROL_GROUPS"); v != "" {
		c.Channels.WhatsApp.ControlGroups = splitList(v)
	}

	envStr("OTCDESK_TRIGGER_STRATEGY", &c.Routing.TriggerStrategy)
	envStr("OTCDESK_KEYWORDS_FILE", &c.Routing.KeywordsFile)

	envStr("OTCDESK_OTEL_ENDPOINT", &c.Telemetry.Endpoint)
	if c.Telemetry.Endpoint != "" && os.Getenv("OTCDESK_OTEL_ENDPOINT") != "" {
		c.Telemetry.Enabled = true
	}

	// Auto-enable the bridge if its URL is provided via env
	if c.Channels.WhatsApp.BridgeURL != "" && os.Getenv("OTCDESK_WHATSAPP_BRIDGE_URL") != "" {
		c.Channels.WhatsApp.Enabled = true
	}
	// A DSN in the environment implies the shared database.
	if c.Database.PostgresDSN != "" && os.Getenv("OTCDESK_DATABASE_MODE") == "" {
		c.Database.Mode = "managed"
	}
}

// ApplyEnvOverrides re-applies environment variable overrides onto the config.
func (c *Config) ApplyEnvOverrides() {
	c.applyEnvOverrides()
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Save writes the config to a JSON file. Secrets are never persisted
// because their fields are excluded from JSON.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Hash returns a SHA-256 hash of the config for change detection.
func (c *Config) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, _ := json.Marshal(c)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

// SQLitePath returns the expanded standalone database path.
func (c *Config) SQLitePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ExpandHome(c.Database.SQLitePath)
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
