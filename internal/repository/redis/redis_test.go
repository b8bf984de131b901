package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-emon1/shoppers-link/internal/domain"
	"github.com/dev-emon1/shoppers-link/internal/repository"
)

func setupTestRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func sampleCollection() domain.Collection {
	return domain.Collection{
		"v1": {VendorName: "Dhaka Threads", Items: []domain.LineItem{
			{ID: "p1", VariantID: "m", Name: "Shirt", Price: decimal.RequireFromString("19.90"), Quantity: 2, VendorID: "v1", Images: []string{}},
		}},
	}
}

// ---------------------------------------------------------------------------
// StateRepository
// ---------------------------------------------------------------------------

func TestStateRepository_SaveAndLoad(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewStateRepository(client, 24*time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, domain.KindCart, "user:1", sampleCollection()))
	assert.True(t, mr.Exists("cart_state:user:1"))
	assert.Equal(t, 24*time.Hour, mr.TTL("cart_state:user:1"))

	got, err := repo.Load(ctx, domain.KindCart, "user:1")
	require.NoError(t, err)
	require.Contains(t, got, "v1")
	item := got["v1"].Items[0]
	assert.Equal(t, "m", item.VariantID)
	assert.Equal(t, 2, item.Quantity)
	assert.True(t, decimal.RequireFromString("19.90").Equal(item.Price))
}

func TestStateRepository_KindsAreSeparate(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewStateRepository(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, domain.KindWishlist, "guest:abc", sampleCollection()))

	cart, err := repo.Load(ctx, domain.KindCart, "guest:abc")
	require.NoError(t, err)
	assert.Empty(t, cart)

	wl, err := repo.Load(ctx, domain.KindWishlist, "guest:abc")
	require.NoError(t, err)
	assert.Len(t, wl, 1)
}

func TestStateRepository_LoadMissingIsEmpty(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewStateRepository(client, time.Hour)

	got, err := repo.Load(context.Background(), domain.KindCart, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStateRepository_SaveEmptyDeletesKey(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewStateRepository(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, domain.KindCart, "u", sampleCollection()))
	require.NoError(t, repo.Save(ctx, domain.KindCart, "u", domain.Collection{}))
	assert.False(t, mr.Exists("cart_state:u"))
}

func TestStateRepository_LoadCorrupt(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewStateRepository(client, time.Hour)
	require.NoError(t, mr.Set("cart_state:u", "{not json"))

	_, err := repo.Load(context.Background(), domain.KindCart, "u")
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrCorruptState)
}

func TestStateRepository_LoadDropsEmptyPartitions(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewStateRepository(client, time.Hour)
	require.NoError(t, mr.Set("cart_state:u", `{"v1":{"vendor_name":"x","items":[]},"v2":null}`))

	got, err := repo.Load(context.Background(), domain.KindCart, "u")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStateRepository_ConnectionError(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewStateRepository(client, time.Hour)
	mr.Close()

	_, err := repo.Load(context.Background(), domain.KindCart, "u")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrCorruptState)

	err = repo.Save(context.Background(), domain.KindCart, "u", sampleCollection())
	assert.Error(t, err)
}

func addLine(id string) repository.UpdateFunc {
	return func(c domain.Collection) bool {
		p := c["v1"]
		if p == nil {
			p = &domain.VendorPartition{VendorName: "Dhaka Threads"}
			c["v1"] = p
		}
		p.Items = append(p.Items, domain.LineItem{ID: id, Quantity: 1, VendorID: "v1", Price: decimal.NewFromInt(5), Images: []string{}})
		return true
	}
}

func TestStateRepository_UpdateMergesWithStoredState(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewStateRepository(client, time.Hour)
	ctx := context.Background()

	_, changed, err := repo.Update(ctx, domain.KindCart, "u", addLine("p1"))
	require.NoError(t, err)
	assert.True(t, changed)
	_, _, err = repo.Update(ctx, domain.KindCart, "u", addLine("p2"))
	require.NoError(t, err)

	got, err := repo.Load(ctx, domain.KindCart, "u")
	require.NoError(t, err)
	require.Contains(t, got, "v1")
	assert.Len(t, got["v1"].Items, 2)
	assert.Equal(t, time.Hour, mr.TTL("cart_state:u"))
}

func TestStateRepository_ConcurrentUpdatesAllLand(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewStateRepository(client, time.Hour)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.Update(ctx, domain.KindCart, "u", addLine(fmt.Sprintf("p%d", i)))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := repo.Load(ctx, domain.KindCart, "u")
	require.NoError(t, err)
	assert.Len(t, got["v1"].Items, writers)
}

func TestStateRepository_UpdateNoChangeWritesNothing(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewStateRepository(client, time.Hour)

	got, changed, err := repo.Update(context.Background(), domain.KindCart, "u", func(domain.Collection) bool { return false })
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, got)
	assert.False(t, mr.Exists("cart_state:u"))
}

func TestStateRepository_UpdateEmptyingDeletesKey(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewStateRepository(client, time.Hour)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, domain.KindWishlist, "u", sampleCollection()))

	got, changed, err := repo.Update(ctx, domain.KindWishlist, "u", func(c domain.Collection) bool {
		c["v1"].Items = nil
		return true
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, got)
	assert.False(t, mr.Exists("wishlist_state:u"))
}

func TestStateRepository_UpdateReplacesCorruptState(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewStateRepository(client, time.Hour)
	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "cart_state:u", "{not json", 0).Err())

	got, changed, err := repo.Update(ctx, domain.KindCart, "u", addLine("p1"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, got["v1"].Items, 1)

	loaded, err := repo.Load(ctx, domain.KindCart, "u")
	require.NoError(t, err)
	assert.Len(t, loaded["v1"].Items, 1)
}

// ---------------------------------------------------------------------------
// SessionCache
// ---------------------------------------------------------------------------

func TestSessionCache_RoundTrip(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewSessionCache(client, 0)
	ctx := context.Background()

	banners := []domain.Banner{{ID: "1", Image: "http://cdn/storage/b.jpg"}}
	require.NoError(t, cache.Set(ctx, "sl:banners:v1", banners, 5*time.Minute))
	assert.Equal(t, 5*time.Minute, mr.TTL("sl:banners:v1"))

	var got []domain.Banner
	require.NoError(t, cache.Get(ctx, "sl:banners:v1", &got))
	assert.Equal(t, banners, got)
}

func TestSessionCache_MissAndExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewSessionCache(client, 0)
	ctx := context.Background()

	var dst []string
	assert.ErrorIs(t, cache.Get(ctx, "missing", &dst), repository.ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "k", []string{"a"}, time.Minute))
	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, cache.Get(ctx, "k", &dst), repository.ErrCacheMiss)
}

func TestSessionCache_JitterExtendsTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewSessionCache(client, time.Minute)

	require.NoError(t, cache.Set(context.Background(), "k", 1, 2*time.Minute))
	ttl := mr.TTL("k")
	assert.GreaterOrEqual(t, ttl, 2*time.Minute)
	assert.Less(t, ttl, 3*time.Minute)
}
