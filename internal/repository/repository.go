package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dev-emon1/shoppers-link/internal/domain"
)

var (
	// ErrCacheMiss is returned by SessionCache.Get when the key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
	// ErrCorruptState is returned by StateRepository.Load when the stored
	// collection cannot be decoded.
	ErrCorruptState = errors.New("corrupt collection state")
	// ErrConflict is returned by StateRepository.Update when concurrent
	// writers kept winning the race for the same collection.
	ErrConflict = errors.New("concurrent collection update")
)

// UpdateFunc edits the stored collection in place and reports whether it
// changed. It may run more than once, always on a freshly loaded collection.
type UpdateFunc func(c domain.Collection) bool

// StateRepository persists a shopper's cart or wishlist.
type StateRepository interface {
	// Load returns the stored collection, or an empty one when nothing is stored.
	Load(ctx context.Context, kind domain.Kind, ownerID string) (domain.Collection, error)

	// Save replaces the stored collection. Saving an empty collection removes it.
	Save(ctx context.Context, kind domain.Kind, ownerID string, c domain.Collection) error

	// Update applies fn to the stored collection and saves the result as one
	// atomic step, so writers holding different copies never overwrite each
	// other. Unreadable state is handed to fn as an empty collection. It
	// returns the collection as stored afterwards and whether fn changed it.
	Update(ctx context.Context, kind domain.Kind, ownerID string, fn UpdateFunc) (domain.Collection, bool, error)
}

// SessionCache is short-lived JSON storage for content that can be refetched.
type SessionCache interface {
	// Get decodes the value stored under key into dst.
	Get(ctx context.Context, key string, dst any) error

	// Set stores v under key for ttl.
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

// StateKey is the storage key of an owner's collection.
func StateKey(kind domain.Kind, ownerID string) string {
	return kind.StateKey() + ":" + ownerID
}
