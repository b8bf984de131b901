package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/dev-emon1/shoppers-link/internal/backend"
	"github.com/dev-emon1/shoppers-link/internal/config"
	"github.com/dev-emon1/shoppers-link/internal/event"
	handler "github.com/dev-emon1/shoppers-link/internal/handler/http"
	"github.com/dev-emon1/shoppers-link/internal/home"
	"github.com/dev-emon1/shoppers-link/internal/repository"
	"github.com/dev-emon1/shoppers-link/internal/repository/memory"
	redisrepo "github.com/dev-emon1/shoppers-link/internal/repository/redis"
	"github.com/dev-emon1/shoppers-link/internal/review"
	"github.com/dev-emon1/shoppers-link/internal/search"
	"github.com/dev-emon1/shoppers-link/internal/service"
	"github.com/dev-emon1/shoppers-link/internal/store"
	"github.com/dev-emon1/shoppers-link/pkg/database"
	"github.com/dev-emon1/shoppers-link/pkg/health"
	"github.com/dev-emon1/shoppers-link/pkg/httpclient"
	pkgkafka "github.com/dev-emon1/shoppers-link/pkg/kafka"
	"github.com/dev-emon1/shoppers-link/pkg/middleware"
	"github.com/dev-emon1/shoppers-link/pkg/tracing"
)

const serviceName = "storefront"

// App is the top-level application container that holds all dependencies.
type App struct {
	config         *config.Config
	logger         *slog.Logger
	rdb            *goredis.Client
	producer       *pkgkafka.Producer
	limiter        *middleware.RateLimiter
	limiterDone    chan struct{}
	tracerShutdown func(context.Context) error
	server         *http.Server
}

// NewApp creates a new application instance, wiring all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{config: cfg, logger: logger}

	// Tracing
	tcfg := tracing.DefaultConfig(serviceName)
	tcfg.Environment = cfg.Environment
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	tcfg.Enabled = cfg.OTELEnabled
	shutdown, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = shutdown

	healthHandler := health.NewHandler()

	// State repository and session caches
	var (
		stateRepo   repository.StateRepository
		bannerCache repository.SessionCache
		searchCache repository.SessionCache
	)
	switch cfg.StateStore {
	case config.StateStoreRedis:
		rcfg := database.DefaultRedisConfig()
		rcfg.Host = cfg.RedisHost
		rcfg.Port = cfg.RedisPort
		rcfg.Password = cfg.RedisPass
		rcfg.DB = cfg.RedisDB
		rdb, err := database.NewRedisClient(ctx, rcfg, logger)
		if err != nil {
			a.closeOnError()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.rdb = rdb
		logger.Info("connected to redis", slog.String("addr", rcfg.Addr()))

		stateRepo = redisrepo.NewStateRepository(rdb, cfg.StateTTL)
		// Search results keep their exact TTL; only banners are jittered.
		bannerCache = redisrepo.NewSessionCache(rdb, cfg.SessionCacheJitter)
		searchCache = redisrepo.NewSessionCache(rdb, 0)
		healthHandler.Register("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	default:
		logger.Warn("using in-memory state store; carts do not survive restarts")
		stateRepo = memory.NewStateRepository()
		bannerCache = memory.NewSessionCache()
		searchCache = bannerCache
	}

	// Events
	var publisher event.Publisher = event.NopPublisher{}
	if cfg.EventsEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = event.NewProducer(a.producer, logger)
		healthHandler.RegisterOptional("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Backend collaborator
	hcfg := httpclient.DefaultConfig()
	hcfg.Timeout = cfg.HTTPClientTimeout
	hcfg.MaxRetries = cfg.HTTPClientMaxRetries
	breaker := httpclient.NewCircuitBreakerClient(httpclient.New(hcfg), httpclient.CircuitBreakerConfig{
		Name:         "backend",
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}, logger)
	api := backend.New(cfg.BackendBaseURL, cfg.MediaBase, breaker, logger)
	healthHandler.RegisterOptional("backend", func(context.Context) error {
		if breaker.State() == gobreaker.StateOpen {
			return errors.New("circuit breaker open")
		}
		return nil
	})

	// Services
	registry := store.NewRegistry(stateRepo, publisher, logger)
	sessions, err := search.NewSessions(api, searchCache, search.Config{
		Debounce: cfg.SearchDebounce,
		CacheTTL: cfg.SearchCacheTTL,
	}, cfg.SearchSessions, logger)
	if err != nil {
		a.closeOnError()
		return nil, fmt.Errorf("create search sessions: %w", err)
	}

	svcs := handler.Services{
		Collections: service.NewCollectionService(registry, cfg.MediaBase, logger),
		Home: home.NewService(api, bannerCache, home.Config{
			TTL:            cfg.HomeTTL,
			BannerTTL:      cfg.BannerTTL,
			BannerCacheTTL: cfg.BannerCacheTTL,
			FetchTimeout:   cfg.HomeFetchTimeout,
		}, logger),
		Search:  sessions,
		Reviews: review.NewService(api, logger),
	}

	a.limiter = middleware.NewRateLimiter(cfg.SearchRateLimitRPS, cfg.SearchRateBurst, logger)
	a.limiterDone = make(chan struct{})
	go a.limiter.Run(a.limiterDone)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSOrigins

	router := handler.NewRouter(svcs, healthHandler, handler.RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		CORS:           cors,
		HomeMaxAge:     cfg.HomeCacheMaxAge,
		RequestTimeout: cfg.RequestTimeout,
		SearchLimiter:  a.limiter,
	}, logger)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("HTTP server starting", slog.Int("port", a.config.HTTPPort))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.Shutdown()
		return err
	}

	a.Shutdown()
	return nil
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
	}
	if a.limiterDone != nil {
		close(a.limiterDone)
		a.limiterDone = nil
	}
	a.closeClients(ctx)
	a.logger.Info("application shutdown complete")
}

func (a *App) closeClients(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}

// closeOnError releases what NewApp acquired before failing.
func (a *App) closeOnError() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.closeClients(ctx)
}
