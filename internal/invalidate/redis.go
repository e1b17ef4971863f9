package invalidate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nextlevelbuilder/otcdesk/internal/bus"
	"github.com/nextlevelbuilder/otcdesk/internal/config"
)

const defaultChannel = "otcdesk:cache"

// envelope is the wire format on the Redis channel. Origin lets an instance
// skip its own messages.
type envelope struct {
	Origin string `json:"origin"`
	Kind   string `json:"kind"`
	Key    string `json:"key,omitempty"`
}

// RedisBus carries invalidation signals between gateway instances.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	origin  string
	logger  *slog.Logger
}

// NewRedisBus connects to Redis and verifies the connection.
func NewRedisBus(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*RedisBus, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	if logger == nil {
		logger = slog.Default()
	}
	channel := cfg.Channel
	if channel == "" {
		channel = defaultChannel
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger.With("component", "invalidate.redis"),
	}, nil
}

// Publish sends p to the other instances.
func (b *RedisBus) Publish(ctx context.Context, p bus.CacheInvalidatePayload) error {
	raw, err := json.Marshal(envelope{Origin: b.origin, Kind: p.Kind, Key: p.Key})
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Start subscribes to the channel and calls onMsg for every signal published
// by another instance until ctx is done.
func (b *RedisBus) Start(ctx context.Context, onMsg func(ctx context.Context, p bus.CacheInvalidatePayload)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)

	// Wait for the subscription to be confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				p, own, err := b.decode(m.Payload)
				if err != nil {
					b.logger.Warn("bad invalidation payload", "error", err)
					continue
				}
				if own {
					continue
				}
				onMsg(ctx, p)
			}
		}
	}()

	b.logger.Info("invalidation subscriber started", "channel", b.channel)
	return nil
}

func (b *RedisBus) decode(raw string) (bus.CacheInvalidatePayload, bool, error) {
	var e envelope
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return bus.CacheInvalidatePayload{}, false, err
	}
	if e.Kind == "" {
		return bus.CacheInvalidatePayload{}, false, fmt.Errorf("missing kind")
	}
	return bus.CacheInvalidatePayload{Kind: e.Kind, Key: e.Key}, e.Origin == b.origin, nil
}

// Ping checks the connection.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Close releases the client.
func (b *RedisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
