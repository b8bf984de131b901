// Package service implements the cart and wishlist use cases on top of the
// per-owner stores.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dev-emon1/shoppers-link/internal/domain"
	"github.com/dev-emon1/shoppers-link/internal/store"
	apperrors "github.com/dev-emon1/shoppers-link/pkg/errors"
)

// MaxQuantityPerItem bounds a single line's quantity when no stock figure is
// known.
const MaxQuantityPerItem = 100

// AddItemInput adds a product the client already holds. Product is the
// backend product payload as the client received it.
type AddItemInput struct {
	Product    json.RawMessage `json:"product" validate:"required"`
	VariantID  string          `json:"variant_id"`
	Quantity   any             `json:"quantity"`
	VendorID   string          `json:"vendor_id"`
	VendorName string          `json:"vendor_name"`
}

// QuickAddInput adds a product without the shopper choosing a variant.
type QuickAddInput struct {
	Product            json.RawMessage `json:"product" validate:"required"`
	PreferredVariantID string          `json:"preferred_variant_id"`
	Quantity           int             `json:"quantity" validate:"gte=0,lte=100"`
	VendorID           string          `json:"vendor_id"`
	VendorName         string          `json:"vendor_name"`
}

// MoveResult is the state of both collections after a move.
type MoveResult struct {
	Cart     store.View `json:"cart"`
	Wishlist store.View `json:"wishlist"`
}

// CollectionService implements cart and wishlist operations.
type CollectionService struct {
	stores    *store.Registry
	mediaBase string
	logger    *slog.Logger
}

// NewCollectionService creates a collection service. mediaBase resolves
// relative image paths in product payloads.
func NewCollectionService(stores *store.Registry, mediaBase string, logger *slog.Logger) *CollectionService {
	return &CollectionService{
		stores:    stores,
		mediaBase: mediaBase,
		logger:    logger,
	}
}

func (s *CollectionService) open(ctx context.Context, kind domain.Kind, ownerID string) (*store.Store, error) {
	if !kind.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown collection %q", kind))
	}
	if ownerID == "" {
		return nil, apperrors.InvalidInput("owner id is required")
	}
	st, err := s.stores.Open(ctx, kind, ownerID)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", kind, err)
	}
	return st, nil
}

func (s *CollectionService) decodeProduct(raw json.RawMessage) (*domain.Product, error) {
	if len(raw) == 0 {
		return nil, apperrors.InvalidInput("product is required")
	}
	p, err := domain.DecodeProduct(raw, s.mediaBase)
	if err != nil {
		return nil, apperrors.InvalidInput("product payload is not valid: " + err.Error())
	}
	return &p, nil
}

// Get returns the owner's collection.
func (s *CollectionService) Get(ctx context.Context, kind domain.Kind, ownerID string) (store.View, error) {
	st, err := s.open(ctx, kind, ownerID)
	if err != nil {
		return store.View{}, err
	}
	return st.View(), nil
}

// AddItem builds a line from the product payload and adds it to the
// collection. A named variant must belong to the product. When stock is
// known the quantity is clamped to what is left after the units already held.
func (s *CollectionService) AddItem(ctx context.Context, kind domain.Kind, ownerID string, input AddItemInput) (store.View, error) {
	product, err := s.decodeProduct(input.Product)
	if err != nil {
		return store.View{}, err
	}
	if input.VariantID != "" {
		if _, ok := product.FindVariant(input.VariantID); !ok {
			return store.View{}, apperrors.NotFound("variant", input.VariantID)
		}
	}

	item := domain.BuildItem(domain.BuildItemInput{
		Product:    product,
		VariantID:  input.VariantID,
		Quantity:   input.Quantity,
		VendorID:   input.VendorID,
		VendorName: input.VendorName,
	})
	if item.VendorID == "" {
		return store.View{}, apperrors.InvalidInput("vendor id is required")
	}
	if item.Quantity > MaxQuantityPerItem {
		return store.View{}, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}

	st, err := s.open(ctx, kind, ownerID)
	if err != nil {
		return store.View{}, err
	}
	qty, err := clampToStock(st, item.Key(), item.Quantity, item.Stock)
	if err != nil {
		return store.View{}, err
	}
	item.Quantity = qty
	if err := st.Add(ctx, item); err != nil {
		return store.View{}, fmt.Errorf("add %s item: %w", kind, err)
	}

	s.logger.InfoContext(ctx, "item added",
		slog.String("kind", string(kind)),
		slog.String("owner_id", ownerID),
		slog.String("vendor_id", item.VendorID),
		slog.String("product_id", item.ID),
		slog.String("variant_id", item.VariantID),
		slog.Int("quantity", item.Quantity),
	)
	return st.View(), nil
}

// QuickAdd adds a product, picking the variant itself. Variants the owner
// already holds are passed over so repeated quick adds rotate through the
// sellable variants. When stock is known the quantity is clamped to what is
// left after the units already held.
func (s *CollectionService) QuickAdd(ctx context.Context, kind domain.Kind, ownerID string, input QuickAddInput) (store.View, error) {
	product, err := s.decodeProduct(input.Product)
	if err != nil {
		return store.View{}, err
	}
	vendorID := input.VendorID
	if vendorID == "" {
		vendorID = product.Vendor.ID
	}
	if vendorID == "" {
		return store.View{}, apperrors.InvalidInput("vendor id is required")
	}

	st, err := s.open(ctx, kind, ownerID)
	if err != nil {
		return store.View{}, err
	}

	var variantID string
	stock := product.Stock
	if len(product.Variants) > 0 {
		v := domain.SelectNextSellableVariant(domain.SelectVariantInput{
			Variants:           product.Variants,
			PreferredVariantID: input.PreferredVariantID,
			UsedVariantIDs:     st.VariantIDs(vendorID, product.ID),
		})
		if v == nil {
			return store.View{}, apperrors.Unprocessable("no variant of this product is in stock")
		}
		variantID = v.ID
		stock = v.Stock
	}

	qty, err := clampToStock(st, domain.ItemKey{VendorID: vendorID, ProductID: product.ID, VariantID: variantID}, max(input.Quantity, 1), stock)
	if err != nil {
		return store.View{}, err
	}

	item := domain.BuildItem(domain.BuildItemInput{
		Product:    product,
		VariantID:  variantID,
		Quantity:   qty,
		VendorID:   vendorID,
		VendorName: input.VendorName,
	})
	if err := st.Add(ctx, item); err != nil {
		return store.View{}, fmt.Errorf("quick add %s item: %w", kind, err)
	}

	s.logger.InfoContext(ctx, "item quick added",
		slog.String("kind", string(kind)),
		slog.String("owner_id", ownerID),
		slog.String("vendor_id", vendorID),
		slog.String("product_id", product.ID),
		slog.String("variant_id", variantID),
		slog.Int("quantity", qty),
	)
	return st.View(), nil
}

// clampToStock limits qty so the cart never holds more than stock units of
// the line. Unknown stock (0) is not limited. Wishlist lines hold no units.
func clampToStock(st *store.Store, key domain.ItemKey, qty, stock int) (int, error) {
	if stock <= 0 {
		return qty, nil
	}
	held := 0
	if existing, ok := st.Find(key); ok && st.Kind() == domain.KindCart {
		held = existing.Quantity
	}
	if held >= stock {
		return 0, apperrors.Unprocessable(fmt.Sprintf("only %d in stock", stock))
	}
	return min(qty, stock-held), nil
}

// UpdateQuantity sets the quantity of an existing line, clamped to 1 and to
// the line's stock when stock is known.
func (s *CollectionService) UpdateQuantity(ctx context.Context, kind domain.Kind, ownerID string, key domain.ItemKey, quantity int) (store.View, error) {
	if quantity > MaxQuantityPerItem {
		return store.View{}, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}

	st, err := s.open(ctx, kind, ownerID)
	if err != nil {
		return store.View{}, err
	}
	item, ok := st.Find(key)
	if !ok {
		return store.View{}, apperrors.NotFound(string(kind)+" item", key.ProductID)
	}
	if item.Stock > 0 {
		quantity = min(quantity, item.Stock)
	}
	if err := st.UpdateQuantity(ctx, key, quantity); err != nil {
		return store.View{}, fmt.Errorf("update %s quantity: %w", kind, err)
	}

	s.logger.InfoContext(ctx, "item quantity updated",
		slog.String("kind", string(kind)),
		slog.String("owner_id", ownerID),
		slog.String("product_id", key.ProductID),
		slog.String("variant_id", key.VariantID),
		slog.Int("quantity", quantity),
	)
	return st.View(), nil
}

// Remove deletes a line. Removing a missing line is not an error.
func (s *CollectionService) Remove(ctx context.Context, kind domain.Kind, ownerID string, key domain.ItemKey) (store.View, error) {
	st, err := s.open(ctx, kind, ownerID)
	if err != nil {
		return store.View{}, err
	}
	if err := st.Remove(ctx, key); err != nil {
		return store.View{}, fmt.Errorf("remove %s item: %w", kind, err)
	}

	s.logger.InfoContext(ctx, "item removed",
		slog.String("kind", string(kind)),
		slog.String("owner_id", ownerID),
		slog.String("product_id", key.ProductID),
		slog.String("variant_id", key.VariantID),
	)
	return st.View(), nil
}

// Clear empties the collection.
func (s *CollectionService) Clear(ctx context.Context, kind domain.Kind, ownerID string) (store.View, error) {
	st, err := s.open(ctx, kind, ownerID)
	if err != nil {
		return store.View{}, err
	}
	if err := st.Clear(ctx); err != nil {
		return store.View{}, fmt.Errorf("clear %s: %w", kind, err)
	}

	s.logger.InfoContext(ctx, "collection cleared",
		slog.String("kind", string(kind)),
		slog.String("owner_id", ownerID),
	)
	return st.View(), nil
}

// MoveToCart moves a wishlist line into the cart with quantity 1 and removes
// it from the wishlist. The cart merges it with a matching line. A line whose
// stock the cart already holds stays in the wishlist.
func (s *CollectionService) MoveToCart(ctx context.Context, ownerID string, key domain.ItemKey) (MoveResult, error) {
	wishlist, err := s.open(ctx, domain.KindWishlist, ownerID)
	if err != nil {
		return MoveResult{}, err
	}
	item, ok := wishlist.Find(key)
	if !ok {
		return MoveResult{}, apperrors.NotFound("wishlist item", key.ProductID)
	}

	cart, err := s.open(ctx, domain.KindCart, ownerID)
	if err != nil {
		return MoveResult{}, err
	}
	if item.Quantity, err = clampToStock(cart, key, 1, item.Stock); err != nil {
		return MoveResult{}, err
	}
	if err := cart.Add(ctx, &item); err != nil {
		return MoveResult{}, fmt.Errorf("add moved item to cart: %w", err)
	}
	if err := wishlist.Remove(ctx, key); err != nil {
		return MoveResult{}, fmt.Errorf("remove moved item from wishlist: %w", err)
	}

	s.logger.InfoContext(ctx, "wishlist item moved to cart",
		slog.String("owner_id", ownerID),
		slog.String("vendor_id", key.VendorID),
		slog.String("product_id", key.ProductID),
		slog.String("variant_id", key.VariantID),
	)
	return MoveResult{Cart: cart.View(), Wishlist: wishlist.View()}, nil
}
