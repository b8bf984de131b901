package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/dev-emon1/shoppers-link/pkg/config"
)

// State store backends.
const (
	StateStoreRedis  = "redis"
	StateStoreMemory = "memory"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort       int           `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	JWTSecret      string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	CORSOrigins    []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Backend collaborator
	BackendBaseURL string `env:"BACKEND_BASE_URL" envDefault:"http://localhost:8000/api"`
	MediaBase      string `env:"NEXT_PUBLIC_MEDIA_BASE" envDefault:"http://localhost:8000"`

	// Outbound HTTP
	HTTPClientTimeout    time.Duration `env:"BACKEND_TIMEOUT" envDefault:"15s"`
	HTTPClientMaxRetries int           `env:"BACKEND_MAX_RETRIES" envDefault:"2"`

	// Circuit breaker
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Cart and wishlist state
	StateStore string        `env:"STATE_STORE" envDefault:"redis"`
	StateTTL   time.Duration `env:"STATE_TTL" envDefault:"720h"`

	// Redis
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Home page resources
	HomeTTL            time.Duration `env:"HOME_TTL" envDefault:"5m"`
	BannerTTL          time.Duration `env:"BANNER_TTL" envDefault:"5m"`
	BannerCacheTTL     time.Duration `env:"BANNER_CACHE_TTL" envDefault:"10m"`
	HomeFetchTimeout   time.Duration `env:"HOME_FETCH_TIMEOUT" envDefault:"15s"`
	HomeCacheMaxAge    time.Duration `env:"HOME_CACHE_MAX_AGE" envDefault:"30s"`
	SessionCacheJitter time.Duration `env:"SESSION_CACHE_JITTER" envDefault:"10s"`

	// Search
	SearchDebounce     time.Duration `env:"SEARCH_DEBOUNCE" envDefault:"300ms"`
	SearchCacheTTL     time.Duration `env:"SEARCH_CACHE_TTL" envDefault:"2m"`
	SearchSessions     int           `env:"SEARCH_SESSIONS" envDefault:"5000"`
	SearchRateLimitRPS float64       `env:"SEARCH_RATE_LIMIT_RPS" envDefault:"20"`
	SearchRateBurst    int           `env:"SEARCH_RATE_LIMIT_BURST" envDefault:"40"`

	// Kafka
	EventsEnabled bool     `env:"EVENTS_ENABLED" envDefault:"false"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if _, err := url.ParseRequestURI(c.BackendBaseURL); err != nil {
		return fmt.Errorf("invalid BACKEND_BASE_URL %q: %w", c.BackendBaseURL, err)
	}
	if _, err := url.ParseRequestURI(c.MediaBase); err != nil {
		return fmt.Errorf("invalid NEXT_PUBLIC_MEDIA_BASE %q: %w", c.MediaBase, err)
	}
	if c.StateStore != StateStoreRedis && c.StateStore != StateStoreMemory {
		return fmt.Errorf("STATE_STORE must be %q or %q, got %q", StateStoreRedis, StateStoreMemory, c.StateStore)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %f", c.CBFailureRatio)
	}
	if c.HomeTTL <= 0 || c.BannerTTL <= 0 || c.SearchCacheTTL <= 0 {
		return errors.New("cache TTLs must be positive")
	}
	if c.SearchDebounce < 0 {
		return fmt.Errorf("SEARCH_DEBOUNCE must not be negative, got %s", c.SearchDebounce)
	}
	if c.SearchSessions < 1 {
		return errors.New("SEARCH_SESSIONS must be at least 1")
	}
	if c.EventsEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when EVENTS_ENABLED is set")
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
