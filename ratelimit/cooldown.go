// Package ratelimit holds per-key cooldowns for endpoints that trigger
// outbound email.
package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cooldown:"

// Cooldown admits one call per key per window.
type Cooldown interface {
	// Acquire reports whether key was free and starts its window if so.
	Acquire(ctx context.Context, key string) (bool, error)
	// Release ends the window for key early.
	Release(ctx context.Context, key string) error
}

// RedisCooldown keeps windows in Redis so they hold across instances.
type RedisCooldown struct {
	client *redis.Client
	window time.Duration
	scope  string
}

func NewRedisCooldown(client *redis.Client, scope string, window time.Duration) *RedisCooldown {
	return &RedisCooldown{client: client, scope: scope, window: window}
}

func (c *RedisCooldown) Acquire(ctx context.Context, key string) (bool, error) {
	return c.client.SetNX(ctx, c.key(key), 1, c.window).Result()
}

func (c *RedisCooldown) Release(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

func (c *RedisCooldown) key(key string) string {
	return keyPrefix + c.scope + ":" + strings.ToLower(strings.TrimSpace(key))
}

// Unlimited admits every call. Used when no Redis address is configured.
type Unlimited struct{}

func (Unlimited) Acquire(context.Context, string) (bool, error) { return true, nil }

func (Unlimited) Release(context.Context, string) error { return nil }
