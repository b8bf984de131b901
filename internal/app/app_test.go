package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-emon1/shoppers-link/internal/config"
	"github.com/dev-emon1/shoppers-link/pkg/middleware"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("STATE_STORE", config.StateStoreMemory)
	t.Setenv("STOREFRONT_HTTP_PORT", "18080")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewApp_MemoryStore(t *testing.T) {
	a, err := NewApp(testConfig(t), testLogger())
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(middleware.SessionHeader, "session-app-test")
	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"cart"`)
}

func TestNewApp_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.StateStore = config.StateStoreRedis
	cfg.RedisHost = mr.Host()
	cfg.RedisPort = mustPort(t, mr.Port())

	a, err := NewApp(cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis"`)
}

func TestNewApp_SearchCacheKeepsExactTTL(t *testing.T) {
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	t.Cleanup(backendSrv.Close)

	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.StateStore = config.StateStoreRedis
	cfg.RedisHost = mr.Host()
	cfg.RedisPort = mustPort(t, mr.Port())
	cfg.BackendBaseURL = backendSrv.URL
	cfg.SearchDebounce = 0
	cfg.SearchCacheTTL = 2 * time.Minute
	cfg.SessionCacheJitter = 10 * time.Second

	a, err := NewApp(cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=shoe", nil)
	req.Header.Set(middleware.SessionHeader, "session-search-ttl")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var keys []string
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "shopperslink:search:") {
			keys = append(keys, k)
		}
	}
	require.Len(t, keys, 1)
	assert.Equal(t, 2*time.Minute, mr.TTL(keys[0]))
}

func TestNewApp_RedisUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.StateStore = config.StateStoreRedis
	cfg.RedisHost = "127.0.0.1"
	cfg.RedisPort = 1

	_, err := NewApp(cfg, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect redis")
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := NewApp(testConfig(t), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func mustPort(t *testing.T, s string) int {
	t.Helper()
	p, err := strconv.Atoi(s)
	require.NoError(t, err)
	return p
}
