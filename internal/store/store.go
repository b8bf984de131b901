// Package store holds a shopper's cart or wishlist in memory and writes every
// change through to a repository.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dev-emon1/shoppers-link/internal/domain"
	"github.com/dev-emon1/shoppers-link/internal/event"
	"github.com/dev-emon1/shoppers-link/internal/repository"
)

// View is a read-only snapshot of a collection with its derived totals.
type View struct {
	Kind       domain.Kind       `json:"kind"`
	Vendors    domain.Collection `json:"vendors"`
	TotalItems int               `json:"total_items"`
	TotalPrice decimal.Decimal   `json:"total_price"`
}

// Store is one owner's collection. All methods are safe for concurrent use;
// mutations are applied one at a time.
type Store struct {
	kind      domain.Kind
	ownerID   string
	policy    domain.MergePolicy
	repo      repository.StateRepository
	publisher event.Publisher
	logger    *slog.Logger

	mu    sync.Mutex
	items domain.Collection
}

// Open loads the owner's collection from repo. A stored collection that can
// no longer be decoded is discarded and the store starts empty.
func Open(ctx context.Context, kind domain.Kind, ownerID string, repo repository.StateRepository, publisher event.Publisher, logger *slog.Logger) (*Store, error) {
	items, err := repo.Load(ctx, kind, ownerID)
	if err != nil {
		if !errors.Is(err, repository.ErrCorruptState) {
			return nil, fmt.Errorf("load %s: %w", kind, err)
		}
		logger.WarnContext(ctx, "discarding unreadable collection state",
			slog.String("kind", string(kind)),
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		items = domain.Collection{}
	}
	if items == nil {
		items = domain.Collection{}
	}
	items.Compact()

	return &Store{
		kind:      kind,
		ownerID:   ownerID,
		policy:    kind.Policy(),
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		items:     items,
	}, nil
}

// Kind returns the collection kind.
func (s *Store) Kind() domain.Kind { return s.kind }

// OwnerID returns the owner of the collection.
func (s *Store) OwnerID() string { return s.ownerID }

// View returns a deep copy of the collection with fresh totals.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		Kind:       s.kind,
		Vendors:    s.items.Clone(),
		TotalItems: s.items.TotalItems(),
		TotalPrice: s.items.TotalPrice(),
	}
}

// Find returns a copy of the line with the given key.
func (s *Store) Find(key domain.ItemKey) (domain.LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items.Find(key)
	if !ok {
		return domain.LineItem{}, false
	}
	return *item, true
}

// VariantIDs lists the variants of a product already held from a vendor.
func (s *Store) VariantIDs(vendorID, productID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.VariantIDs(vendorID, productID)
}

// TotalItems is the sum of quantities across the collection.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.TotalItems()
}

// TotalPrice is the sum of price times quantity across the collection.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.TotalPrice()
}

// Add puts item into its vendor's partition. An item without a vendor or
// product id is ignored. When the line already exists the cart adds the
// quantities together and the wishlist leaves it untouched. Quantities below
// 1 are stored as 1.
func (s *Store) Add(ctx context.Context, item *domain.LineItem) error {
	if item == nil || item.VendorID == "" || item.ID == "" {
		return nil
	}

	qty := max(item.Quantity, 1)
	if s.policy == domain.MergeIgnoreDuplicate {
		qty = 1
	}

	return s.mutate(ctx, "add", func(next domain.Collection) bool {
		part, ok := next[item.VendorID]
		if !ok {
			part = &domain.VendorPartition{VendorName: item.VendorName}
			next[item.VendorID] = part
		}
		if part.VendorName == "" {
			part.VendorName = item.VendorName
		}

		for i := range part.Items {
			if !part.Items[i].Matches(item.ID, item.VariantID) {
				continue
			}
			if s.policy == domain.MergeIgnoreDuplicate {
				return false
			}
			part.Items[i].Quantity += qty
			return true
		}

		line := *item
		line.Quantity = qty
		line.Images = append([]string{}, item.Images...)
		part.Items = append(part.Items, line)
		return true
	})
}

// Remove deletes the line with the given key, dropping the vendor partition
// when it becomes empty. Removing a missing line does nothing.
func (s *Store) Remove(ctx context.Context, key domain.ItemKey) error {
	return s.mutate(ctx, "remove", func(next domain.Collection) bool {
		part, ok := next[key.VendorID]
		if !ok {
			return false
		}
		kept := part.Items[:0]
		removed := false
		for _, it := range part.Items {
			if it.Matches(key.ProductID, key.VariantID) {
				removed = true
				continue
			}
			kept = append(kept, it)
		}
		if !removed {
			return false
		}
		part.Items = kept
		if len(part.Items) == 0 {
			delete(next, key.VendorID)
		}
		return true
	})
}

// UpdateQuantity sets the quantity of a line, never below 1. Wishlist lines
// always hold 1.
func (s *Store) UpdateQuantity(ctx context.Context, key domain.ItemKey, quantity int) error {
	qty := max(quantity, 1)
	if s.policy == domain.MergeIgnoreDuplicate {
		qty = 1
	}

	return s.mutate(ctx, "update_quantity", func(next domain.Collection) bool {
		item, ok := next.Find(key)
		if !ok || item.Quantity == qty {
			return false
		}
		item.Quantity = qty
		return true
	})
}

// Clear empties the collection.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed, err := s.repo.Update(ctx, s.kind, s.ownerID, func(c domain.Collection) bool {
		if len(c) == 0 {
			return false
		}
		clear(c)
		return true
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", s.kind, err)
	}
	s.items = next
	if !changed {
		return nil
	}
	collectionMutations.WithLabelValues(string(s.kind), "clear").Inc()

	if err := s.publisher.PublishCleared(ctx, s.kind, s.ownerID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish collection cleared event",
			slog.String("kind", string(s.kind)),
			slog.String("owner_id", s.ownerID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// mutate applies fn to the latest stored collection and saves it in one
// repository update, then adopts the stored result as the current state.
// Other Store values for the same owner, in this process or another, cannot
// overwrite the change.
func (s *Store) mutate(ctx context.Context, op string, fn func(next domain.Collection) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed, err := s.repo.Update(ctx, s.kind, s.ownerID, fn)
	if err != nil {
		return fmt.Errorf("save %s: %w", s.kind, err)
	}
	s.items = next
	if !changed {
		return nil
	}
	collectionMutations.WithLabelValues(string(s.kind), op).Inc()

	if err := s.publisher.PublishUpdated(ctx, s.kind, s.ownerID, next.Clone()); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish collection updated event",
			slog.String("kind", string(s.kind)),
			slog.String("owner_id", s.ownerID),
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
