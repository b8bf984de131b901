package backend

import (
	"context"
	"strconv"
	"strings"

	"github.com/dev-emon1/shoppers-link/internal/domain"
	"github.com/dev-emon1/shoppers-link/pkg/pagination"
)

// ActiveBanners fetches GET /active/banners.
func (c *Client) ActiveBanners(ctx context.Context) ([]domain.Banner, error) {
	body, err := c.get(ctx, "active_banners", "/active/banners", nil, "")
	if err != nil {
		return nil, err
	}
	items, _, err := listBody(body, false)
	if err != nil {
		return nil, err
	}

	banners := make([]domain.Banner, 0, len(items))
	for _, raw := range items {
		b, err := domain.DecodeBanner(raw, c.mediaBase)
		if err != nil {
			return nil, err
		}
		banners = append(banners, b)
	}
	return banners, nil
}

func (c *Client) productPage(ctx context.Context, op, path string, page int) (Page[domain.Product], error) {
	body, err := c.get(ctx, op, path, pageQuery(page), "")
	if err != nil {
		return Page[domain.Product]{}, err
	}
	return decodePage(body, max(page, 1), c.product)
}

// FeaturedProducts fetches GET /featured-products?page=N.
func (c *Client) FeaturedProducts(ctx context.Context, page int) (Page[domain.Product], error) {
	return c.productPage(ctx, "featured_products", "/featured-products", page)
}

// NewArrivals fetches GET /new/arrivals?page=N.
func (c *Client) NewArrivals(ctx context.Context, page int) (Page[domain.Product], error) {
	return c.productPage(ctx, "new_arrivals", "/new/arrivals", page)
}

// TopSelling fetches GET /top/selling?page=N.
func (c *Client) TopSelling(ctx context.Context, page int) (Page[domain.Product], error) {
	return c.productPage(ctx, "top_selling", "/top/selling", page)
}

// TopRated fetches GET /top/ratting?page=N. The path spelling is the backend's.
func (c *Client) TopRated(ctx context.Context, page int) (Page[domain.Product], error) {
	return c.productPage(ctx, "top_rated", "/top/ratting", page)
}

// VendorShops fetches GET /vendor/shops?page=N.
func (c *Client) VendorShops(ctx context.Context, page int) (Page[domain.Shop], error) {
	body, err := c.get(ctx, "vendor_shops", "/vendor/shops", pageQuery(page), "")
	if err != nil {
		return Page[domain.Shop]{}, err
	}
	return decodePage(body, max(page, 1), c.shop)
}

// SearchParams are the filters of GET /allProducts.
type SearchParams struct {
	Query      string
	CategoryID string
	// Limit caps the result set; zero means no cap.
	Limit      int
	Pagination pagination.Params
}

// SearchProducts fetches GET /allProducts. Meta is optional here: limited
// result sets come back without it, in which case the result is treated as
// a single page.
func (c *Client) SearchProducts(ctx context.Context, p SearchParams) (Page[domain.Product], error) {
	pg := p.Pagination
	pg.Page = max(pg.Page, 1)
	q := pageQuery(pg.Page)
	if pg.PerPage > 0 {
		pg.Encode(q)
	}
	if s := strings.TrimSpace(p.Query); s != "" {
		q.Set("search", s)
	}
	if p.CategoryID != "" {
		q.Set("category_id", p.CategoryID)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}

	body, err := c.get(ctx, "search_products", "/allProducts", q, "")
	if err != nil {
		return Page[domain.Product]{}, err
	}

	items, meta, err := listBody(body, false)
	if err != nil {
		return Page[domain.Product]{}, err
	}
	products, err := domain.DecodeProducts(items, c.mediaBase)
	if err != nil {
		return Page[domain.Product]{}, err
	}

	out := Page[domain.Product]{Items: products}
	if meta != nil {
		out.Meta = *meta
	} else {
		out.Meta = pagination.Meta{CurrentPage: 1, LastPage: 1, Total: len(products)}
	}
	return out, nil
}
