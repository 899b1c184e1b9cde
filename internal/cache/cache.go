// Package cache stores JSON payloads in Redis with a fixed TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// JSON wraps Redis helpers for JSON payloads. A nil client or a non-positive
// TTL disables caching.
type JSON struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// New constructs a cache helper whose keys start with prefix.
func New(client *redis.Client, prefix string, ttl time.Duration) *JSON {
	return &JSON{client: client, ttl: ttl, prefix: prefix}
}

func (c *JSON) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Key joins parts under the cache prefix.
func (c *JSON) Key(parts ...any) string {
	formatted := make([]string, 0, len(parts)+1)
	if c != nil && c.prefix != "" {
		formatted = append(formatted, c.prefix)
	}
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// Get unmarshals a cached payload into dst. It reports whether the key existed.
func (c *JSON) Get(ctx context.Context, key string, dst any) (bool, error) {
	if !c.enabled() || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Set serialises v and stores it with the configured TTL.
func (c *JSON) Set(ctx context.Context, key string, v any) error {
	if !c.enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}
