package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dev-emon1/shoppers-link/internal/domain"
	"github.com/dev-emon1/shoppers-link/internal/home"
	"github.com/dev-emon1/shoppers-link/internal/review"
	"github.com/dev-emon1/shoppers-link/internal/search"
	"github.com/dev-emon1/shoppers-link/internal/service"
	"github.com/dev-emon1/shoppers-link/pkg/health"
	"github.com/dev-emon1/shoppers-link/pkg/middleware"
)

const serviceName = "storefront"

// Services are the use cases the router exposes.
type Services struct {
	Collections *service.CollectionService
	Home        *home.Service
	Search      *search.Sessions
	Reviews     *review.Service
}

// RouterConfig holds the HTTP-level settings.
type RouterConfig struct {
	JWTSecret      string
	PprofCIDRs     []string
	CORS           middleware.CORSConfig
	HomeMaxAge     time.Duration
	RequestTimeout time.Duration
	// SearchLimiter throttles /search per owner. Nil disables it.
	SearchLimiter *middleware.RateLimiter
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	svcs Services,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	cart := NewCollectionHandler(domain.KindCart, svcs.Collections, logger)
	wishlist := NewCollectionHandler(domain.KindWishlist, svcs.Collections, logger)
	homeHandler := NewHomeHandler(svcs.Home, logger)
	searchHandler := NewSearchHandler(svcs.Search, logger)
	reviewHandler := NewReviewHandler(svcs.Reviews, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identify(cfg.JWTSecret, logger))
		r.Use(middleware.RequestLogger(logger))

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.RequireOwner)
			r.Use(ContentTypeJSON)
			mountCollection(r, cart)
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Use(middleware.RequireOwner)
			r.Use(ContentTypeJSON)
			mountCollection(r, wishlist)
			r.Post("/items/{vendorId}/{productId}/move-to-cart", wishlist.MoveToCart)
		})

		r.Route("/home", func(r chi.Router) {
			r.Use(middleware.CacheControl(cfg.HomeMaxAge))
			r.Get("/", homeHandler.Snapshot)
			r.Get("/{resource}", homeHandler.Resource)
			r.Post("/{resource}/more", homeHandler.LoadMore)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOwner)
			if cfg.SearchLimiter != nil {
				r.Use(cfg.SearchLimiter.Handler)
			}
			r.Get("/search", searchHandler.Search)
		})

		r.Route("/products/{productId}/reviews", func(r chi.Router) {
			r.Get("/", reviewHandler.List)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireUser)
				r.Get("/eligibility", reviewHandler.Eligibility)
				r.With(RequireContentType("application/json", "multipart/form-data")).Post("/", reviewHandler.Submit)
			})
		})
	})

	return r
}

func mountCollection(r chi.Router, h *CollectionHandler) {
	r.Get("/", h.Get)
	r.Delete("/", h.Clear)
	r.Post("/items", h.AddItem)
	r.Post("/quick-add", h.QuickAdd)
	r.Put("/items/{vendorId}/{productId}", h.UpdateQuantity)
	r.Delete("/items/{vendorId}/{productId}", h.RemoveItem)
}
