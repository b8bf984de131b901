package domain

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// Kind names a shopper collection.
type Kind string

const (
	KindCart     Kind = "cart"
	KindWishlist Kind = "wishlist"
)

// Valid reports whether k is a known collection kind.
func (k Kind) Valid() bool {
	return k == KindCart || k == KindWishlist
}

// StateKey is the storage key the collection is persisted under.
func (k Kind) StateKey() string {
	return string(k) + "_state"
}

// MergePolicy decides what adding an item that is already present does.
type MergePolicy int

const (
	// MergeAccumulate adds the incoming quantity to the existing line.
	MergeAccumulate MergePolicy = iota
	// MergeIgnoreDuplicate keeps the existing line and fixes quantity at 1.
	MergeIgnoreDuplicate
)

// Policy returns the merge policy for the collection kind.
func (k Kind) Policy() MergePolicy {
	if k == KindWishlist {
		return MergeIgnoreDuplicate
	}
	return MergeAccumulate
}

// ItemKey identifies a line within a collection. An empty VariantID means the
// line has no variant.
type ItemKey struct {
	VendorID  string `json:"vendor_id"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
}

// LineItem is one product (and optional variant) in a cart or wishlist.
type LineItem struct {
	ID         string          `json:"id"`
	VariantID  string          `json:"variant_id,omitempty"`
	Name       string          `json:"name"`
	SKU        string          `json:"sku,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
	Stock      int             `json:"stock"`
	Images     []string        `json:"images"`
	VendorID   string          `json:"vendor_id"`
	VendorName string          `json:"vendor_name"`
	RawProduct json.RawMessage `json:"raw_product,omitempty"`
}

// Key returns the identity of the line.
func (i *LineItem) Key() ItemKey {
	return ItemKey{VendorID: i.VendorID, ProductID: i.ID, VariantID: i.VariantID}
}

// Matches reports whether the line has the given product and variant.
func (i *LineItem) Matches(productID, variantID string) bool {
	return i.ID == productID && i.VariantID == variantID
}

// Subtotal is price times quantity.
func (i *LineItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// VendorPartition groups the lines sold by one vendor.
type VendorPartition struct {
	VendorName string     `json:"vendor_name"`
	Items      []LineItem `json:"items"`
}

// Collection maps vendor id to that vendor's lines. A partition with no
// items is never kept.
type Collection map[string]*VendorPartition

// Find returns the line with the given key.
func (c Collection) Find(key ItemKey) (*LineItem, bool) {
	p, ok := c[key.VendorID]
	if !ok {
		return nil, false
	}
	for i := range p.Items {
		if p.Items[i].Matches(key.ProductID, key.VariantID) {
			return &p.Items[i], true
		}
	}
	return nil, false
}

// TotalItems sums quantity over every line.
func (c Collection) TotalItems() int {
	total := 0
	for _, p := range c {
		for _, item := range p.Items {
			total += item.Quantity
		}
	}
	return total
}

// TotalPrice sums price times quantity over every line.
func (c Collection) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, p := range c {
		for i := range p.Items {
			total = total.Add(p.Items[i].Subtotal())
		}
	}
	return total
}

// VendorIDs returns the vendor ids in sorted order.
func (c Collection) VendorIDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// VariantIDs lists the variant ids already held for a product of a vendor.
func (c Collection) VariantIDs(vendorID, productID string) []string {
	p, ok := c[vendorID]
	if !ok {
		return nil
	}
	var ids []string
	for _, item := range p.Items {
		if item.ID == productID && item.VariantID != "" {
			ids = append(ids, item.VariantID)
		}
	}
	return ids
}

// Clone returns a deep copy of the collection.
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for id, p := range c {
		items := make([]LineItem, len(p.Items))
		for i, item := range p.Items {
			item.Images = append([]string(nil), item.Images...)
			item.RawProduct = append(json.RawMessage(nil), item.RawProduct...)
			items[i] = item
		}
		out[id] = &VendorPartition{VendorName: p.VendorName, Items: items}
	}
	return out
}

// Compact drops empty partitions and nil entries.
func (c Collection) Compact() {
	for id, p := range c {
		if p == nil || len(p.Items) == 0 {
			delete(c, id)
		}
	}
}
