package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dev-emon1/shoppers-link/internal/normalize"
)

// Banner is a home-page promotional slide.
type Banner struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Image string `json:"image"`
	Link  string `json:"link,omitempty"`
}

// Shop is a vendor storefront listed on the home page.
type Shop struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Slug          string  `json:"slug,omitempty"`
	Logo          string  `json:"logo,omitempty"`
	Banner        string  `json:"banner,omitempty"`
	Rating        float64 `json:"rating"`
	ProductsCount int     `json:"products_count"`
}

// Review is a customer's rating of a product.
type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Author    string    `json:"author,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	Images    []string  `json:"images"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Order is the slice of a customer order needed to decide review eligibility.
type Order struct {
	ID         string   `json:"id"`
	Status     string   `json:"status"`
	ProductIDs []string `json:"product_ids"`
}

func decodeObject(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(dst)
}

// DecodeBanner normalizes a backend banner payload.
func DecodeBanner(data []byte, mediaBase string) (Banner, error) {
	var raw struct {
		ID        any `json:"id"`
		Title     any `json:"title"`
		Image     any `json:"image"`
		ImagePath any `json:"image_path"`
		Link      any `json:"link"`
		URL       any `json:"url"`
	}
	if err := decodeObject(data, &raw); err != nil {
		return Banner{}, fmt.Errorf("decode banner: %w", err)
	}

	b := Banner{
		ID:    normalize.ID(raw.ID),
		Title: normalize.String(raw.Title),
		Link:  normalize.String(raw.Link),
	}
	if b.Link == "" {
		b.Link = normalize.String(raw.URL)
	}
	img, ok := normalize.Image(raw.Image, mediaBase)
	if !ok {
		img, _ = normalize.Image(raw.ImagePath, mediaBase)
	}
	b.Image = img
	return b, nil
}

// DecodeShop normalizes a backend vendor shop payload.
func DecodeShop(data []byte, mediaBase string) (Shop, error) {
	var raw struct {
		ID            any `json:"id"`
		ShopName      any `json:"shop_name"`
		Name          any `json:"name"`
		Slug          any `json:"slug"`
		Logo          any `json:"logo"`
		Banner        any `json:"banner"`
		Rating        any `json:"rating"`
		ProductsCount any `json:"products_count"`
	}
	if err := decodeObject(data, &raw); err != nil {
		return Shop{}, fmt.Errorf("decode shop: %w", err)
	}

	s := Shop{
		ID:            normalize.ID(raw.ID),
		Name:          normalize.String(raw.ShopName),
		Slug:          normalize.String(raw.Slug),
		Rating:        normalize.ToNumber(raw.Rating),
		ProductsCount: normalize.ToInt(raw.ProductsCount),
	}
	if s.ID == "" {
		return Shop{}, fmt.Errorf("decode shop: missing id")
	}
	if s.Name == "" {
		s.Name = normalize.String(raw.Name)
	}
	s.Logo, _ = normalize.Image(raw.Logo, mediaBase)
	s.Banner, _ = normalize.Image(raw.Banner, mediaBase)
	return s, nil
}

// DecodeReview normalizes a backend review payload.
func DecodeReview(data []byte, mediaBase string) (Review, error) {
	var raw struct {
		ID        any    `json:"id"`
		ProductID any    `json:"product_id"`
		Rating    any    `json:"rating"`
		Comment   any    `json:"comment"`
		Review    any    `json:"review"`
		Images    []any  `json:"images"`
		CreatedAt string `json:"created_at"`
		User      *struct {
			Name any `json:"name"`
		} `json:"user"`
		CustomerName any `json:"customer_name"`
	}
	if err := decodeObject(data, &raw); err != nil {
		return Review{}, fmt.Errorf("decode review: %w", err)
	}

	r := Review{
		ID:        normalize.ID(raw.ID),
		ProductID: normalize.ID(raw.ProductID),
		Rating:    normalize.ToInt(raw.Rating),
		Comment:   normalize.String(raw.Comment),
		Images:    normalize.Images(raw.Images, mediaBase),
		Author:    normalize.String(raw.CustomerName),
	}
	if r.Comment == "" {
		r.Comment = normalize.String(raw.Review)
	}
	if r.Author == "" && raw.User != nil {
		r.Author = normalize.String(raw.User.Name)
	}
	if raw.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, raw.CreatedAt); err == nil {
			r.CreatedAt = t.UTC()
		}
	}
	return r, nil
}

// DecodeOrder normalizes a customer order payload, keeping only the product
// ids of its lines.
func DecodeOrder(data []byte) (Order, error) {
	var raw struct {
		ID     any    `json:"id"`
		Status any    `json:"status"`
		Items  []struct {
			ProductID any `json:"product_id"`
			Product   *struct {
				ID any `json:"id"`
			} `json:"product"`
		} `json:"items"`
	}
	if err := decodeObject(data, &raw); err != nil {
		return Order{}, fmt.Errorf("decode order: %w", err)
	}

	o := Order{
		ID:         normalize.ID(raw.ID),
		Status:     normalize.String(raw.Status),
		ProductIDs: make([]string, 0, len(raw.Items)),
	}
	for _, item := range raw.Items {
		id := normalize.ID(item.ProductID)
		if id == "" && item.Product != nil {
			id = normalize.ID(item.Product.ID)
		}
		if id != "" {
			o.ProductIDs = append(o.ProductIDs, id)
		}
	}
	return o, nil
}

// Contains reports whether the order includes the product.
func (o Order) Contains(productID string) bool {
	for _, id := range o.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}
