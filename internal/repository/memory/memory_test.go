package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-emon1/shoppers-link/internal/domain"
	"github.com/dev-emon1/shoppers-link/internal/repository"
)

func TestStateRepository_DoesNotAlias(t *testing.T) {
	repo := NewStateRepository()
	ctx := context.Background()

	c := domain.Collection{"v1": {VendorName: "A", Items: []domain.LineItem{{ID: "p1", Quantity: 1, VendorID: "v1"}}}}
	require.NoError(t, repo.Save(ctx, domain.KindCart, "u", c))
	c["v1"].Items[0].Quantity = 99

	got, err := repo.Load(ctx, domain.KindCart, "u")
	require.NoError(t, err)
	assert.Equal(t, 1, got["v1"].Items[0].Quantity)
	assert.Equal(t, 1, repo.Len())

	require.NoError(t, repo.Save(ctx, domain.KindCart, "u", domain.Collection{}))
	assert.Equal(t, 0, repo.Len())

	empty, err := repo.Load(ctx, domain.KindCart, "u")
	require.NoError(t, err)
	assert.NotNil(t, empty)
}

func TestStateRepository_Update(t *testing.T) {
	repo := NewStateRepository()
	ctx := context.Background()

	add := func(id string) repository.UpdateFunc {
		return func(c domain.Collection) bool {
			if c["v1"] == nil {
				c["v1"] = &domain.VendorPartition{VendorName: "A"}
			}
			c["v1"].Items = append(c["v1"].Items, domain.LineItem{ID: id, Quantity: 1, VendorID: "v1"})
			return true
		}
	}
	_, _, err := repo.Update(ctx, domain.KindCart, "u", add("p1"))
	require.NoError(t, err)
	got, changed, err := repo.Update(ctx, domain.KindCart, "u", add("p2"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, got["v1"].Items, 2)

	_, changed, err = repo.Update(ctx, domain.KindCart, "u", func(domain.Collection) bool { return false })
	require.NoError(t, err)
	assert.False(t, changed)

	_, _, err = repo.Update(ctx, domain.KindCart, "u", func(c domain.Collection) bool {
		clear(c)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 0, repo.Len())
}

func TestSessionCache_Expiry(t *testing.T) {
	cache := NewSessionCache()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.nowFunc = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))

	var got map[string]int
	require.NoError(t, cache.Get(ctx, "k", &got))
	assert.Equal(t, 1, got["a"])

	now = now.Add(time.Minute)
	assert.ErrorIs(t, cache.Get(ctx, "k", &got), repository.ErrCacheMiss)
}
