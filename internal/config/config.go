package config

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
// WhatsApp ids are often written as bare phone numbers.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the otcdesk gateway.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Channels  ChannelsConfig  `json:"channels"`
	Routing   RoutingConfig   `json:"routing"`
	Quotes    QuotesConfig    `json:"quotes"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Redis     RedisConfig     `json:"redis,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	mu        sync.RWMutex
}

// GatewayConfig configures the HTTP + WebSocket listener.
type GatewayConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	Token          string   `json:"-"`                         // from env OTCDESK_GATEWAY_TOKEN only
	AllowedOrigins []string `json:"allowed_origins,omitempty"` // WebSocket CORS whitelist; empty = allow all
	RateLimitRPM   int      `json:"rate_limit_rpm,omitempty"`  // per WS client RPC rate; 0 = unlimited
}

// Trigger matching strategies.
const (
	TriggerStrategyTable  = "table"
	TriggerStrategyShadow = "shadow"
)

// RoutingConfig tunes the message router and the caches in front of it.
type RoutingConfig struct {
	TriggerStrategy  string `json:"trigger_strategy,omitempty"`   // "table" (default) or "shadow"
	DefaultGroupMode string `json:"default_group_mode,omitempty"` // mode for unseen groups (default "learning")
	DirectAmountMin  string `json:"direct_amount_min,omitempty"`  // decimal string (default "100")
	KeywordsFile     string `json:"keywords_file,omitempty"`      // JSON5 keyword lists, hot-reloaded
	TriggerCacheTTL  string `json:"trigger_cache_ttl,omitempty"`  // Go duration (default "30s")
	ModeCacheTTL     string `json:"mode_cache_ttl,omitempty"`     // Go duration (default "15s")
}

// QuotesConfig configures the active-quote book.
type QuotesConfig struct {
	TTL           string `json:"ttl,omitempty"`            // Go duration (default "3m")
	SweepInterval string `json:"sweep_interval,omitempty"` // Go duration (default "30s")
}

// DatabaseConfig selects the store backend.
// PostgresDSN is NEVER read from config.json (secret), only from env OTCDESK_POSTGRES_DSN.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`
	Mode        string `json:"mode,omitempty"`        // "standalone" (default, SQLite) or "managed" (Postgres)
	SQLitePath  string `json:"sqlite_path,omitempty"` // standalone database file
}

// IsManagedMode returns true if the gateway reads from the shared Postgres database.
func (c *Config) IsManagedMode() bool {
	return c.Database.Mode == "managed" && c.Database.PostgresDSN != ""
}

// RedisConfig enables cross-instance cache invalidation. Empty Addr disables it.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty"`
	Channel  string `json:"channel,omitempty"` // pub/sub channel (default "otcdesk:cache")
	Password string `json:"-"`                 // from env OTCDESK_REDIS_PASSWORD only
	DB       int    `json:"db,omitempty"`
}

// TelemetryConfig configures OpenTelemetry export for routing spans.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`     // OTLP endpoint (e.g. "localhost:4317")
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // plaintext, for local collectors
	ServiceName string            `json:"service_name,omitempty"` // default "otcdesk-gateway"
	Headers     map[string]string `json:"headers,omitempty"`
}

// ReplaceFrom copies all data fields from src into c, preserving c's mutex.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Gateway = src.Gateway
	c.Channels = src.Channels
	c.Routing = src.Routing
	c.Quotes = src.Quotes
	c.Database = src.Database
	c.Redis = src.Redis
	c.Telemetry = src.Telemetry
}

// parseDuration returns def when s is empty or invalid.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func (r RoutingConfig) TriggerCacheDuration() time.Duration {
	return parseDuration(r.TriggerCacheTTL, 30*time.Second)
}

func (r RoutingConfig) ModeCacheDuration() time.Duration {
	return parseDuration(r.ModeCacheTTL, 15*time.Second)
}

func (q QuotesConfig) TTLDuration() time.Duration {
	return parseDuration(q.TTL, 3*time.Minute)
}

func (q QuotesConfig) SweepDuration() time.Duration {
	return parseDuration(q.SweepInterval, 30*time.Second)
}
