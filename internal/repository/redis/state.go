package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dev-emon1/shoppers-link/internal/domain"
	"github.com/dev-emon1/shoppers-link/internal/repository"
)

// maxUpdateAttempts bounds optimistic retries when another writer touches
// the key between WATCH and EXEC.
const maxUpdateAttempts = 10

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// StateRepository implements repository.StateRepository using Redis.
// Every save refreshes the key's TTL, so idle guest collections expire.
type StateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStateRepository creates a new Redis-backed collection repository.
func NewStateRepository(client *redis.Client, ttl time.Duration) *StateRepository {
	return &StateRepository{
		client: client,
		ttl:    ttl,
	}
}

// Load reads an owner's collection from Redis.
func (r *StateRepository) Load(ctx context.Context, kind domain.Kind, ownerID string) (domain.Collection, error) {
	key := repository.StateKey(kind, ownerID)

	return r.read(ctx, r.client, kind, key)
}

func (r *StateRepository) read(ctx context.Context, cmd getter, kind domain.Kind, key string) (domain.Collection, error) {
	data, err := cmd.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Collection{}, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", kind.StateKey(), err)
	}

	var c domain.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w: %w", kind.StateKey(), repository.ErrCorruptState, err)
	}
	if c == nil {
		c = domain.Collection{}
	}
	c.Compact()

	return c, nil
}

// Save writes the full collection to Redis with the configured TTL.
func (r *StateRepository) Save(ctx context.Context, kind domain.Kind, ownerID string, c domain.Collection) error {
	key := repository.StateKey(kind, ownerID)

	if len(c) == 0 {
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis del %s: %w", kind.StateKey(), err)
		}
		return nil
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind.StateKey(), err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", kind.StateKey(), err)
	}

	return nil
}

// Update runs fn inside a WATCH/MULTI transaction on the owner's key and
// retries when the key changed underneath it.
func (r *StateRepository) Update(ctx context.Context, kind domain.Kind, ownerID string, fn repository.UpdateFunc) (domain.Collection, bool, error) {
	key := repository.StateKey(kind, ownerID)

	var (
		out     domain.Collection
		changed bool
	)
	txf := func(tx *redis.Tx) error {
		c, err := r.read(ctx, tx, kind, key)
		if errors.Is(err, repository.ErrCorruptState) {
			c = domain.Collection{}
		} else if err != nil {
			return err
		}

		if !fn(c) {
			out, changed = c, false
			return nil
		}
		c.Compact()

		var data []byte
		if len(c) > 0 {
			if data, err = json.Marshal(c); err != nil {
				return fmt.Errorf("marshal %s: %w", kind.StateKey(), err)
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if data == nil {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, data, r.ttl)
			}
			return nil
		})
		if err != nil {
			return err
		}
		out, changed = c, true
		return nil
	}

	for range maxUpdateAttempts {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("update %s: %w", kind.StateKey(), err)
		}
		return out, changed, nil
	}
	return nil, false, fmt.Errorf("update %s: %w", kind.StateKey(), repository.ErrConflict)
}
