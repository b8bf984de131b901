package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dev-emon1/shoppers-link/internal/repository"
)

// SessionCache implements repository.SessionCache using Redis. TTLs get up to
// maxJitter added so keys written together do not expire together.
type SessionCache struct {
	client    *redis.Client
	maxJitter time.Duration
}

// NewSessionCache creates a Redis-backed session cache.
func NewSessionCache(client *redis.Client, maxJitter time.Duration) *SessionCache {
	return &SessionCache{
		client:    client,
		maxJitter: maxJitter,
	}
}

// Get reads key and decodes it into dst.
func (c *SessionCache) Get(ctx context.Context, key string, dst any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return repository.ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

// Set stores v as JSON under key.
func (c *SessionCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	if c.maxJitter > 0 {
		ttl += rand.N(c.maxJitter)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
