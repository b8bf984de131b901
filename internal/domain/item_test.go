package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCollection() Collection {
	return Collection{
		"v2": {VendorName: "Gadget Hub", Items: []LineItem{
			{ID: "p9", Price: dec("10.25"), Quantity: 4, VendorID: "v2"},
		}},
		"v1": {VendorName: "Dhaka Threads", Items: []LineItem{
			{ID: "p1", Price: dec("100"), Quantity: 2, VendorID: "v1"},
			{ID: "p1", VariantID: "m", Price: dec("110"), Quantity: 1, VendorID: "v1", Images: []string{"a"}},
		}},
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, "cart_state", KindCart.StateKey())
	assert.Equal(t, "wishlist_state", KindWishlist.StateKey())
	assert.Equal(t, MergeAccumulate, KindCart.Policy())
	assert.Equal(t, MergeIgnoreDuplicate, KindWishlist.Policy())
	assert.False(t, Kind("orders").Valid())
}

func TestCollection_Find_DistinguishesVariant(t *testing.T) {
	c := sampleCollection()

	item, ok := c.Find(ItemKey{VendorID: "v1", ProductID: "p1"})
	require.True(t, ok)
	assert.Equal(t, "", item.VariantID)

	item, ok = c.Find(ItemKey{VendorID: "v1", ProductID: "p1", VariantID: "m"})
	require.True(t, ok)
	assert.Equal(t, "m", item.VariantID)

	_, ok = c.Find(ItemKey{VendorID: "v1", ProductID: "p1", VariantID: "xl"})
	assert.False(t, ok)
	_, ok = c.Find(ItemKey{VendorID: "v3", ProductID: "p1"})
	assert.False(t, ok)
}

func TestCollection_Totals(t *testing.T) {
	c := sampleCollection()
	assert.Equal(t, 7, c.TotalItems())
	assert.True(t, dec("351").Equal(c.TotalPrice()), "got %s", c.TotalPrice())

	assert.Equal(t, 0, Collection{}.TotalItems())
	assert.True(t, Collection{}.TotalPrice().IsZero())
}

func TestCollection_VendorIDsSorted(t *testing.T) {
	assert.Equal(t, []string{"v1", "v2"}, sampleCollection().VendorIDs())
}

func TestCollection_VariantIDs(t *testing.T) {
	c := sampleCollection()
	assert.Equal(t, []string{"m"}, c.VariantIDs("v1", "p1"))
	assert.Nil(t, c.VariantIDs("v3", "p1"))
}

func TestCollection_CloneIsDeep(t *testing.T) {
	c := sampleCollection()
	clone := c.Clone()

	clone["v1"].Items[1].Quantity = 50
	clone["v1"].Items[1].Images[0] = "changed"
	delete(clone, "v2")

	assert.Equal(t, 1, c["v1"].Items[1].Quantity)
	assert.Equal(t, "a", c["v1"].Items[1].Images[0])
	assert.Contains(t, c, "v2")
}

func TestCollection_Compact(t *testing.T) {
	c := Collection{"v1": {Items: nil}, "v2": nil, "v3": {Items: []LineItem{{ID: "p"}}}}
	c.Compact()
	assert.Equal(t, []string{"v3"}, c.VendorIDs())
}

func TestLineItem_Subtotal(t *testing.T) {
	item := LineItem{Price: dec("19.99"), Quantity: 3}
	assert.True(t, dec("59.97").Equal(item.Subtotal()))
}
