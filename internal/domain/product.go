package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dev-emon1/shoppers-link/internal/normalize"
)

// Vendor identifies the shop that sells a product.
type Vendor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Variant is a sellable configuration of a product.
type Variant struct {
	ID        string          `json:"id"`
	SKU       string          `json:"sku,omitempty"`
	Name      string          `json:"name,omitempty"`
	Price     decimal.Decimal `json:"price"`
	BasePrice decimal.Decimal `json:"base_price"`
	Stock     int             `json:"stock"`
	Image     string          `json:"image,omitempty"`
}

// InStock reports whether the variant can be sold.
func (v Variant) InStock() bool {
	return v.Stock > 0
}

// Product is the normalized form of a backend product payload. All image
// paths are absolute and all numbers are canonical.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug,omitempty"`
	SKU       string          `json:"sku,omitempty"`
	Price     decimal.Decimal `json:"price"`
	BasePrice decimal.Decimal `json:"base_price"`
	Stock     int             `json:"stock"`
	Rating    float64         `json:"rating"`
	Images    []string        `json:"images"`
	Vendor    Vendor          `json:"vendor"`
	Variants  []Variant       `json:"variants,omitempty"`

	// Raw holds the payload the product was decoded from.
	Raw json.RawMessage `json:"-"`
}

// FindVariant returns the variant with the given id.
func (p *Product) FindVariant(id string) (*Variant, bool) {
	if id == "" {
		return nil, false
	}
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

type rawVendor struct {
	ID       any `json:"id"`
	ShopName any `json:"shop_name"`
	Name     any `json:"name"`
}

type rawVariant struct {
	ID        any `json:"id"`
	SKU       any `json:"sku"`
	Name      any `json:"name"`
	Price     any `json:"price"`
	BasePrice any `json:"base_price"`
	Stock     any `json:"stock"`
	Image     any `json:"image"`
}

type rawProduct struct {
	ID           any          `json:"id"`
	Name         any          `json:"name"`
	Slug         any          `json:"slug"`
	SKU          any          `json:"sku"`
	Price        any          `json:"price"`
	BasePrice    any          `json:"base_price"`
	Stock        any          `json:"stock"`
	Rating       any          `json:"rating"`
	AvgRating    any          `json:"avg_rating"`
	Images       any          `json:"images"`
	PrimaryImage any          `json:"primary_image"`
	Image        any          `json:"image"`
	Vendor       *rawVendor   `json:"vendor"`
	VendorID     any          `json:"vendor_id"`
	Variants     []rawVariant `json:"variants"`
}

// DecodeProduct normalizes a backend product payload. It is the only place
// that deals with the alternative field spellings the backend emits.
func DecodeProduct(data []byte, mediaBase string) (Product, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw rawProduct
	if err := dec.Decode(&raw); err != nil {
		return Product{}, fmt.Errorf("decode product: %w", err)
	}

	p := Product{
		ID:        normalize.ID(raw.ID),
		Name:      normalize.String(raw.Name),
		Slug:      normalize.String(raw.Slug),
		SKU:       normalize.ID(raw.SKU),
		Price:     normalize.Price(raw.Price),
		BasePrice: normalize.Price(raw.BasePrice),
		Stock:     stock(raw.Stock),
		Rating:    normalize.ToNumber(raw.Rating),
		Images:    productImages(raw, mediaBase),
		Raw:       append(json.RawMessage(nil), data...),
	}
	if p.ID == "" {
		return Product{}, fmt.Errorf("decode product: missing id")
	}
	if p.Rating == 0 {
		p.Rating = normalize.ToNumber(raw.AvgRating)
	}

	if raw.Vendor != nil {
		p.Vendor.ID = normalize.ID(raw.Vendor.ID)
		p.Vendor.Name = normalize.String(raw.Vendor.ShopName)
		if p.Vendor.Name == "" {
			p.Vendor.Name = normalize.String(raw.Vendor.Name)
		}
	}
	if p.Vendor.ID == "" {
		p.Vendor.ID = normalize.ID(raw.VendorID)
	}

	for _, rv := range raw.Variants {
		id := normalize.ID(rv.ID)
		if id == "" {
			continue
		}
		v := Variant{
			ID:        id,
			SKU:       normalize.ID(rv.SKU),
			Name:      normalize.String(rv.Name),
			Price:     normalize.Price(rv.Price),
			BasePrice: normalize.Price(rv.BasePrice),
			Stock:     stock(rv.Stock),
		}
		if img, ok := normalize.Image(rv.Image, mediaBase); ok {
			v.Image = img
		}
		p.Variants = append(p.Variants, v)
	}

	return p, nil
}

// DecodeProducts normalizes a list of product payloads, failing on the first
// malformed entry.
func DecodeProducts(items []json.RawMessage, mediaBase string) ([]Product, error) {
	products := make([]Product, 0, len(items))
	for i, item := range items {
		p, err := DecodeProduct(item, mediaBase)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		products = append(products, p)
	}
	return products, nil
}

func productImages(raw rawProduct, mediaBase string) []string {
	switch imgs := raw.Images.(type) {
	case []any:
		if len(imgs) > 0 {
			return normalize.Images(imgs, mediaBase)
		}
	case string, map[string]any:
		return normalize.Images([]any{imgs}, mediaBase)
	}

	for _, candidate := range []any{raw.PrimaryImage, raw.Image} {
		if u, ok := normalize.Image(candidate, mediaBase); ok {
			return []string{u}
		}
	}
	return []string{}
}

func stock(v any) int {
	n := normalize.ToInt(v)
	if n < 0 {
		return 0
	}
	return n
}
