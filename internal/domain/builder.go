package domain

import (
	"github.com/shopspring/decimal"

	"github.com/dev-emon1/shoppers-link/internal/normalize"
)

// BuildItemInput holds the parameters for BuildItem.
type BuildItemInput struct {
	Product   *Product
	VariantID string
	// Quantity is coerced with normalize.ToNumber; nil means 1.
	Quantity   any
	VendorID   string
	VendorName string
}

// BuildItem turns a product and an optional variant choice into a line item.
// It returns nil when no product is given. The quantity is passed through as
// coerced; flooring it is the store's job.
func BuildItem(in BuildItemInput) *LineItem {
	p := in.Product
	if p == nil {
		return nil
	}

	variant, _ := p.FindVariant(in.VariantID)

	item := &LineItem{
		ID:         p.ID,
		VariantID:  in.VariantID,
		Name:       p.Name,
		SKU:        p.SKU,
		Price:      resolvePrice(p, variant),
		Quantity:   1,
		Stock:      p.Stock,
		Images:     append([]string{}, p.Images...),
		VendorID:   in.VendorID,
		VendorName: in.VendorName,
		RawProduct: p.Raw,
	}
	if in.Quantity != nil {
		item.Quantity = normalize.ToInt(in.Quantity)
	}
	if variant != nil {
		item.Stock = variant.Stock
		if variant.SKU != "" {
			item.SKU = variant.SKU
		}
	}
	if item.VendorID == "" {
		item.VendorID = p.Vendor.ID
	}
	if item.VendorName == "" {
		item.VendorName = p.Vendor.Name
	}

	return item
}

// resolvePrice walks variant price, variant base price, product price and
// product base price, taking the first positive one.
func resolvePrice(p *Product, v *Variant) decimal.Decimal {
	candidates := make([]decimal.Decimal, 0, 4)
	if v != nil {
		candidates = append(candidates, v.Price, v.BasePrice)
	}
	candidates = append(candidates, p.Price, p.BasePrice)

	for _, c := range candidates {
		if c.IsPositive() {
			return c
		}
	}
	return decimal.Zero
}
