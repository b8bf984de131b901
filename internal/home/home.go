// Package home serves the storefront home page: banners, product rails, and
// vendor shops, each held in a TTL-guarded fetch cache.
package home

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dev-emon1/shoppers-link/internal/backend"
	"github.com/dev-emon1/shoppers-link/internal/domain"
	"github.com/dev-emon1/shoppers-link/internal/fetchcache"
	"github.com/dev-emon1/shoppers-link/internal/repository"
	apperrors "github.com/dev-emon1/shoppers-link/pkg/errors"
	"github.com/dev-emon1/shoppers-link/pkg/pagination"
)

// Resource names.
const (
	Banners     = "banners"
	Featured    = "featured"
	NewArrivals = "new-arrivals"
	TopSelling  = "top-selling"
	TopRating   = "top-rating"
	VendorShops = "vendor-shops"
)

// BannerCacheKey is the session cache key banners are stored under. Bump the
// version when the banner shape changes.
const BannerCacheKey = "sl:banners:v1"

// Catalog is the part of the backend client the home page reads.
type Catalog interface {
	ActiveBanners(ctx context.Context) ([]domain.Banner, error)
	FeaturedProducts(ctx context.Context, page int) (backend.Page[domain.Product], error)
	NewArrivals(ctx context.Context, page int) (backend.Page[domain.Product], error)
	TopSelling(ctx context.Context, page int) (backend.Page[domain.Product], error)
	TopRated(ctx context.Context, page int) (backend.Page[domain.Product], error)
	VendorShops(ctx context.Context, page int) (backend.Page[domain.Shop], error)
}

// Config holds the cache lifetimes.
type Config struct {
	TTL            time.Duration
	BannerTTL      time.Duration
	BannerCacheTTL time.Duration
	FetchTimeout   time.Duration
}

// Snapshot is every home resource at one point in time.
type Snapshot struct {
	Banners     fetchcache.Entry[domain.Banner]  `json:"banners"`
	Featured    fetchcache.Entry[domain.Product] `json:"featured"`
	NewArrivals fetchcache.Entry[domain.Product] `json:"new_arrivals"`
	TopSelling  fetchcache.Entry[domain.Product] `json:"top_selling"`
	TopRating   fetchcache.Entry[domain.Product] `json:"top_rating"`
	VendorShops fetchcache.Entry[domain.Shop]    `json:"vendor_shops"`
}

// resource is the type-erased view of a fetchcache.Resource used for lookups
// by name.
type resource interface {
	ensure(ctx context.Context) (any, error)
	loadMore(ctx context.Context) (any, error)
}

type erased[T any] struct {
	r *fetchcache.Resource[T]
}

func (e erased[T]) ensure(ctx context.Context) (any, error)   { return e.r.Ensure(ctx) }
func (e erased[T]) loadMore(ctx context.Context) (any, error) { return e.r.LoadMore(ctx) }

// Service owns the six home resources.
type Service struct {
	cache  repository.SessionCache
	cfg    Config
	logger *slog.Logger

	banners     *fetchcache.Resource[domain.Banner]
	featured    *fetchcache.Resource[domain.Product]
	newArrivals *fetchcache.Resource[domain.Product]
	topSelling  *fetchcache.Resource[domain.Product]
	topRating   *fetchcache.Resource[domain.Product]
	vendorShops *fetchcache.Resource[domain.Shop]

	byName map[string]resource
}

// NewService creates the home resources over catalog. cache may be nil, in
// which case banners always come from the network.
func NewService(catalog Catalog, cache repository.SessionCache, cfg Config, logger *slog.Logger) *Service {
	s := &Service{cache: cache, cfg: cfg, logger: logger}

	paged := fetchcache.Options{TTL: cfg.TTL, Paginated: true, FetchTimeout: cfg.FetchTimeout, Logger: logger}
	s.banners = fetchcache.NewResource(Banners, s.fetchBanners(catalog), fetchcache.Options{
		TTL:          cfg.BannerTTL,
		FetchTimeout: cfg.FetchTimeout,
		Logger:       logger,
	})
	s.featured = fetchcache.NewResource(Featured, pageFetcher(catalog.FeaturedProducts), paged)
	s.newArrivals = fetchcache.NewResource(NewArrivals, pageFetcher(catalog.NewArrivals), paged)
	s.topSelling = fetchcache.NewResource(TopSelling, pageFetcher(catalog.TopSelling), paged)
	s.topRating = fetchcache.NewResource(TopRating, pageFetcher(catalog.TopRated), paged)
	s.vendorShops = fetchcache.NewResource(VendorShops, pageFetcher(catalog.VendorShops), paged)

	s.byName = map[string]resource{
		Banners:     erased[domain.Banner]{s.banners},
		Featured:    erased[domain.Product]{s.featured},
		NewArrivals: erased[domain.Product]{s.newArrivals},
		TopSelling:  erased[domain.Product]{s.topSelling},
		TopRating:   erased[domain.Product]{s.topRating},
		VendorShops: erased[domain.Shop]{s.vendorShops},
	}
	return s
}

func pageFetcher[T any](fetch func(context.Context, int) (backend.Page[T], error)) fetchcache.Fetcher[T] {
	return func(ctx context.Context, page int) ([]T, pagination.Meta, error) {
		p, err := fetch(ctx, page)
		if err != nil {
			return nil, pagination.Meta{}, err
		}
		return p.Items, p.Meta, nil
	}
}

// fetchBanners reads the session cache before the network and fills it after
// a network fetch. Cache failures only cost a network round trip.
func (s *Service) fetchBanners(catalog Catalog) fetchcache.Fetcher[domain.Banner] {
	return func(ctx context.Context, _ int) ([]domain.Banner, pagination.Meta, error) {
		if s.cache != nil {
			var cached []domain.Banner
			err := s.cache.Get(ctx, BannerCacheKey, &cached)
			if err == nil {
				return cached, pagination.Meta{}, nil
			}
			if !errors.Is(err, repository.ErrCacheMiss) {
				s.logger.WarnContext(ctx, "banner cache read failed", slog.String("error", err.Error()))
			}
		}

		banners, err := catalog.ActiveBanners(ctx)
		if err != nil {
			return nil, pagination.Meta{}, err
		}

		if s.cache != nil {
			if err := s.cache.Set(ctx, BannerCacheKey, banners, s.cfg.BannerCacheTTL); err != nil {
				s.logger.WarnContext(ctx, "banner cache write failed", slog.String("error", err.Error()))
			}
		}
		return banners, pagination.Meta{}, nil
	}
}

func (s *Service) lookup(name string) (resource, error) {
	r, ok := s.byName[name]
	if !ok {
		return nil, apperrors.NotFound("home resource", name)
	}
	return r, nil
}

// Ensure refreshes the named resource if stale and returns its entry.
func (s *Service) Ensure(ctx context.Context, name string) (any, error) {
	r, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return r.ensure(ctx)
}

// LoadMore fetches the next page of the named resource.
func (s *Service) LoadMore(ctx context.Context, name string) (any, error) {
	r, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return r.loadMore(ctx)
}

// Snapshot ensures all resources concurrently. A failing resource shows up
// in its own entry; the error is only set when ctx ends first.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(ensureInto(gctx, s.banners, &snap.Banners))
	g.Go(ensureInto(gctx, s.featured, &snap.Featured))
	g.Go(ensureInto(gctx, s.newArrivals, &snap.NewArrivals))
	g.Go(ensureInto(gctx, s.topSelling, &snap.TopSelling))
	g.Go(ensureInto(gctx, s.topRating, &snap.TopRating))
	g.Go(ensureInto(gctx, s.vendorShops, &snap.VendorShops))

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func ensureInto[T any](ctx context.Context, r *fetchcache.Resource[T], dst *fetchcache.Entry[T]) func() error {
	return func() error {
		e, err := r.Ensure(ctx)
		*dst = e
		return err
	}
}
