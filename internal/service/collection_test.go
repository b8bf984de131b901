package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-emon1/shoppers-link/internal/domain"
	"github.com/dev-emon1/shoppers-link/internal/event"
	"github.com/dev-emon1/shoppers-link/internal/repository/memory"
	"github.com/dev-emon1/shoppers-link/internal/store"
	apperrors "github.com/dev-emon1/shoppers-link/pkg/errors"
)

const owner = "user:42"

const shirtJSON = `{
	"id": 10,
	"name": "Cotton Shirt",
	"price": "120.00",
	"stock": 9,
	"images": ["products/shirt.jpg"],
	"vendor": {"id": 7, "shop_name": "Dhaka Threads"},
	"variants": [
		{"id": 101, "sku": "CS-M", "price": "110", "stock": 2},
		{"id": 102, "sku": "CS-L", "price": "115", "stock": 0},
		{"id": 103, "sku": "CS-XL", "price": "118", "stock": 3}
	]
}`

const mugJSON = `{"id": "mug", "name": "Mug", "price": 8.5, "stock": 2, "vendor_id": "v2"}`

func newTestService() (*CollectionService, *memory.StateRepository) {
	repo := memory.NewStateRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := store.NewRegistry(repo, event.NopPublisher{}, logger)
	return NewCollectionService(reg, "http://media.test", logger), repo
}

func TestAddItem_BuildsAndMerges(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	in := AddItemInput{Product: json.RawMessage(shirtJSON), VariantID: "101", Quantity: "1"}

	view, err := svc.AddItem(ctx, domain.KindCart, owner, in)
	require.NoError(t, err)
	require.Contains(t, view.Vendors, "7")
	part := view.Vendors["7"]
	assert.Equal(t, "Dhaka Threads", part.VendorName)
	require.Len(t, part.Items, 1)
	line := part.Items[0]
	assert.Equal(t, "10", line.ID)
	assert.Equal(t, "101", line.VariantID)
	assert.Equal(t, "CS-M", line.SKU)
	assert.True(t, decimal.RequireFromString("110").Equal(line.Price))
	assert.Equal(t, []string{"http://media.test/storage/products/shirt.jpg"}, line.Images)

	view, err = svc.AddItem(ctx, domain.KindCart, owner, in)
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalItems)
	assert.True(t, decimal.RequireFromString("220").Equal(view.TotalPrice))
}

func TestAddItem_ClampsToStock(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	in := AddItemInput{Product: json.RawMessage(shirtJSON), VariantID: "101", Quantity: 50}

	view, err := svc.AddItem(ctx, domain.KindCart, owner, in)
	require.NoError(t, err)
	assert.Equal(t, 2, quantityOf(view, "7", "101"))

	_, err = svc.AddItem(ctx, domain.KindCart, owner, in)
	assert.ErrorIs(t, err, apperrors.ErrUnprocessable)

	view, err = svc.Get(ctx, domain.KindCart, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalItems)

	// A product-level stock applies when no variant is named.
	view, err = svc.AddItem(ctx, domain.KindCart, owner, AddItemInput{Product: json.RawMessage(mugJSON), Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, quantityOf(view, "v2", "mug"))
}

func TestAddItem_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   AddItemInput
		want error
	}{
		{"missing product", AddItemInput{}, apperrors.ErrInvalidInput},
		{"malformed product", AddItemInput{Product: json.RawMessage(`{"name":"x"}`)}, apperrors.ErrInvalidInput},
		{"unknown variant", AddItemInput{Product: json.RawMessage(shirtJSON), VariantID: "999"}, apperrors.ErrNotFound},
		{"no vendor", AddItemInput{Product: json.RawMessage(`{"id":1,"price":1}`)}, apperrors.ErrInvalidInput},
		{"too many", AddItemInput{Product: json.RawMessage(mugJSON), Quantity: 101}, apperrors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()
			_, err := svc.AddItem(context.Background(), domain.KindCart, owner, tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 0, repo.Len())
		})
	}
}

func TestAddItem_UnknownKind(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.AddItem(context.Background(), domain.Kind("basket"), owner, AddItemInput{Product: json.RawMessage(mugJSON)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAddItem_WishlistIgnoresDuplicates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	in := AddItemInput{Product: json.RawMessage(mugJSON), Quantity: 3}

	_, err := svc.AddItem(ctx, domain.KindWishlist, owner, in)
	require.NoError(t, err)
	view, err := svc.AddItem(ctx, domain.KindWishlist, owner, in)
	require.NoError(t, err)
	assert.Equal(t, 1, view.TotalItems)
}

func TestQuickAdd_RotatesThroughSellableVariants(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	in := QuickAddInput{Product: json.RawMessage(shirtJSON)}

	view, err := svc.QuickAdd(ctx, domain.KindCart, owner, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"101"}, variantIDs(view, "7"))

	view, err = svc.QuickAdd(ctx, domain.KindCart, owner, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"101", "103"}, variantIDs(view, "7"), "out of stock 102 is skipped")

	view, err = svc.QuickAdd(ctx, domain.KindCart, owner, in)
	require.NoError(t, err)
	assert.Equal(t, 3, view.TotalItems)
	assert.Equal(t, 2, quantityOf(view, "7", "101"), "rotation restarts at the first variant")
}

func TestQuickAdd_PreferredVariant(t *testing.T) {
	svc, _ := newTestService()

	view, err := svc.QuickAdd(context.Background(), domain.KindCart, owner, QuickAddInput{
		Product:            json.RawMessage(shirtJSON),
		PreferredVariantID: "103",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"103"}, variantIDs(view, "7"))
}

func TestQuickAdd_ClampsToStock(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	view, err := svc.QuickAdd(ctx, domain.KindCart, owner, QuickAddInput{Product: json.RawMessage(mugJSON), Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, quantityOf(view, "v2", "mug"))

	_, err = svc.QuickAdd(ctx, domain.KindCart, owner, QuickAddInput{Product: json.RawMessage(mugJSON)})
	assert.ErrorIs(t, err, apperrors.ErrUnprocessable)
}

func TestQuickAdd_NothingInStock(t *testing.T) {
	svc, _ := newTestService()
	product := `{"id":1,"vendor_id":"v","variants":[{"id":1,"stock":0},{"id":2,"stock":"0"}]}`

	_, err := svc.QuickAdd(context.Background(), domain.KindCart, owner, QuickAddInput{Product: json.RawMessage(product)})
	assert.ErrorIs(t, err, apperrors.ErrUnprocessable)
}

func TestUpdateQuantity(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.AddItem(ctx, domain.KindCart, owner, AddItemInput{Product: json.RawMessage(shirtJSON), VariantID: "103"})
	require.NoError(t, err)
	key := domain.ItemKey{VendorID: "7", ProductID: "10", VariantID: "103"}

	view, err := svc.UpdateQuantity(ctx, domain.KindCart, owner, key, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalItems)

	view, err = svc.UpdateQuantity(ctx, domain.KindCart, owner, key, 50)
	require.NoError(t, err)
	assert.Equal(t, 3, view.TotalItems, "clamped to stock")

	view, err = svc.UpdateQuantity(ctx, domain.KindCart, owner, key, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, view.TotalItems, "never below one")

	_, err = svc.UpdateQuantity(ctx, domain.KindCart, owner, domain.ItemKey{VendorID: "7", ProductID: "10"}, 2)
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "variantless key is a different line")

	_, err = svc.UpdateQuantity(ctx, domain.KindCart, owner, key, 101)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRemoveAndClear(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	_, err := svc.AddItem(ctx, domain.KindCart, owner, AddItemInput{Product: json.RawMessage(shirtJSON), VariantID: "101"})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, domain.KindCart, owner, AddItemInput{Product: json.RawMessage(mugJSON)})
	require.NoError(t, err)

	view, err := svc.Remove(ctx, domain.KindCart, owner, domain.ItemKey{VendorID: "v2", ProductID: "mug"})
	require.NoError(t, err)
	assert.NotContains(t, view.Vendors, "v2")

	_, err = svc.Remove(ctx, domain.KindCart, owner, domain.ItemKey{VendorID: "v2", ProductID: "mug"})
	require.NoError(t, err, "removing twice is a no-op")

	view, err = svc.Clear(ctx, domain.KindCart, owner)
	require.NoError(t, err)
	assert.Empty(t, view.Vendors)
	assert.Equal(t, 0, repo.Len())
}

func TestMoveToCart(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.AddItem(ctx, domain.KindWishlist, owner, AddItemInput{Product: json.RawMessage(shirtJSON), VariantID: "101"})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, domain.KindCart, owner, AddItemInput{Product: json.RawMessage(shirtJSON), VariantID: "101"})
	require.NoError(t, err)

	key := domain.ItemKey{VendorID: "7", ProductID: "10", VariantID: "101"}
	res, err := svc.MoveToCart(ctx, owner, key)
	require.NoError(t, err)
	assert.Equal(t, 2, quantityOf(res.Cart, "7", "101"))
	assert.Empty(t, res.Wishlist.Vendors)

	_, err = svc.MoveToCart(ctx, owner, key)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMoveToCart_StockExhausted(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.AddItem(ctx, domain.KindWishlist, owner, AddItemInput{Product: json.RawMessage(shirtJSON), VariantID: "101"})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, domain.KindCart, owner, AddItemInput{Product: json.RawMessage(shirtJSON), VariantID: "101", Quantity: 2})
	require.NoError(t, err)

	_, err = svc.MoveToCart(ctx, owner, domain.ItemKey{VendorID: "7", ProductID: "10", VariantID: "101"})
	assert.ErrorIs(t, err, apperrors.ErrUnprocessable)

	wishlist, err := svc.Get(ctx, domain.KindWishlist, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, wishlist.TotalItems)
}

func TestGet_EmptyOwner(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Get(context.Background(), domain.KindCart, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	view, err := svc.Get(context.Background(), domain.KindWishlist, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.KindWishlist, view.Kind)
	assert.Empty(t, view.Vendors)
}

func variantIDs(v store.View, vendorID string) []string {
	part, ok := v.Vendors[vendorID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(part.Items))
	for _, it := range part.Items {
		ids = append(ids, it.VariantID)
	}
	return ids
}

// quantityOf finds a line by variant id, or by product id for variantless lines.
func quantityOf(v store.View, vendorID, id string) int {
	part, ok := v.Vendors[vendorID]
	if !ok {
		return 0
	}
	for _, it := range part.Items {
		if it.VariantID == id || (it.VariantID == "" && it.ID == id) {
			return it.Quantity
		}
	}
	return 0
}
