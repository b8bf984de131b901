// Package memory provides in-process repositories for local development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dev-emon1/shoppers-link/internal/domain"
	"github.com/dev-emon1/shoppers-link/internal/repository"
)

// StateRepository keeps collections in a map. Values are stored encoded so
// callers never share memory with the repository.
type StateRepository struct {
	mu     sync.RWMutex
	states map[string][]byte
}

// NewStateRepository creates an empty in-memory collection repository.
func NewStateRepository() *StateRepository {
	return &StateRepository{states: make(map[string][]byte)}
}

func (r *StateRepository) Load(_ context.Context, kind domain.Kind, ownerID string) (domain.Collection, error) {
	r.mu.RLock()
	data, ok := r.states[repository.StateKey(kind, ownerID)]
	r.mu.RUnlock()
	if !ok {
		return domain.Collection{}, nil
	}

	var c domain.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w: %w", kind.StateKey(), repository.ErrCorruptState, err)
	}
	return c, nil
}

func (r *StateRepository) Save(_ context.Context, kind domain.Kind, ownerID string, c domain.Collection) error {
	key := repository.StateKey(kind, ownerID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(c) == 0 {
		delete(r.states, key)
		return nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind.StateKey(), err)
	}
	r.states[key] = data
	return nil
}

// Update applies fn under the repository lock.
func (r *StateRepository) Update(_ context.Context, kind domain.Kind, ownerID string, fn repository.UpdateFunc) (domain.Collection, bool, error) {
	key := repository.StateKey(kind, ownerID)

	r.mu.Lock()
	defer r.mu.Unlock()

	c := domain.Collection{}
	if data, ok := r.states[key]; ok {
		if err := json.Unmarshal(data, &c); err != nil || c == nil {
			c = domain.Collection{}
		}
	}
	if !fn(c) {
		return c, false, nil
	}
	c.Compact()

	if len(c) == 0 {
		delete(r.states, key)
		return c, true, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, false, fmt.Errorf("marshal %s: %w", kind.StateKey(), err)
	}
	r.states[key] = data
	return c, true, nil
}

// Len returns the number of stored collections.
func (r *StateRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// SessionCache is an expiring in-memory key/value cache.
type SessionCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	nowFunc func() time.Time
}

// NewSessionCache creates an empty in-memory session cache.
func NewSessionCache() *SessionCache {
	return &SessionCache{
		entries: make(map[string]cacheEntry),
		nowFunc: time.Now,
	}
}

func (c *SessionCache) Get(_ context.Context, key string, dst any) error {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && !c.nowFunc().Before(e.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return repository.ErrCacheMiss
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

func (c *SessionCache) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{data: data, expiresAt: c.nowFunc().Add(ttl)}
	c.mu.Unlock()
	return nil
}
