package fetchcache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-emon1/shoppers-link/pkg/pagination"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResource[T any](t *testing.T, fetch Fetcher[T], paginated bool) (*Resource[T], *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	r := NewResource("test", fetch, Options{
		TTL:          5 * time.Minute,
		Paginated:    paginated,
		FetchTimeout: time.Second,
		Logger:       testLogger(),
	})
	r.nowFunc = clock.Now
	return r, clock
}

// pagedFetcher serves pages of two strings out of total.
func pagedFetcher(calls *atomic.Int32, total int) Fetcher[string] {
	const perPage = 2
	lastPage := (total + perPage - 1) / perPage
	return func(_ context.Context, page int) ([]string, pagination.Meta, error) {
		calls.Add(1)
		var items []string
		for i := (page - 1) * perPage; i < min(page*perPage, total); i++ {
			items = append(items, string(rune('a'+i)))
		}
		return items, pagination.Meta{CurrentPage: page, LastPage: lastPage, Total: total}, nil
	}
}

func TestNewResource_StartsIdle(t *testing.T) {
	r, _ := newTestResource(t, pagedFetcher(new(atomic.Int32), 2), true)

	e := r.Entry()
	assert.Equal(t, StatusIdle, e.Status)
	assert.Nil(t, e.LastFetched)
	assert.Empty(t, e.Data)
	assert.Equal(t, "test", r.Name())
}

func TestEnsure_NoRefetchWithinTTL(t *testing.T) {
	var calls atomic.Int32
	r, clock := newTestResource(t, pagedFetcher(&calls, 4), true)
	ctx := context.Background()

	e, err := r.Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, e.Status)
	assert.Equal(t, []string{"a", "b"}, e.Data)
	require.NotNil(t, e.LastFetched)

	clock.Advance(4 * time.Minute)
	_, err = r.Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEnsure_RefetchesAfterTTL(t *testing.T) {
	var calls atomic.Int32
	r, clock := newTestResource(t, pagedFetcher(&calls, 4), true)
	ctx := context.Background()

	_, err := r.Ensure(ctx)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	e, err := r.Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, clock.Now(), *e.LastFetched)
}

func TestEnsure_ErrorKeepsPriorData(t *testing.T) {
	var fail atomic.Bool
	fetch := func(_ context.Context, page int) ([]string, pagination.Meta, error) {
		if fail.Load() {
			return nil, pagination.Meta{}, errors.New("backend down")
		}
		return []string{"a", "b"}, pagination.Meta{CurrentPage: 1, LastPage: 1, Total: 2}, nil
	}
	r, clock := newTestResource(t, fetch, true)
	ctx := context.Background()

	first, err := r.Ensure(ctx)
	require.NoError(t, err)

	fail.Store(true)
	clock.Advance(10 * time.Minute)
	e, err := r.Ensure(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusError, e.Status)
	assert.Equal(t, "backend down", e.Error)
	assert.Equal(t, []string{"a", "b"}, e.Data)
	assert.Equal(t, *first.LastFetched, *e.LastFetched)

	// Still stale, so the next Ensure retries and recovers.
	fail.Store(false)
	e, err = r.Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, e.Status)
	assert.Empty(t, e.Error)
}

func TestLoadMore_AppendsThenReplacesOnPageOne(t *testing.T) {
	var calls atomic.Int32
	r, clock := newTestResource(t, pagedFetcher(&calls, 4), true)
	ctx := context.Background()

	e, err := r.Ensure(ctx)
	require.NoError(t, err)
	assert.True(t, e.HasMore)
	assert.Equal(t, 1, e.Page)
	assert.Equal(t, 2, e.LastPage)

	e, err = r.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, e.Data)
	assert.Equal(t, 2, e.Page)
	assert.False(t, e.HasMore)

	e, err = r.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "no next page, no fetch")
	assert.Len(t, e.Data, 4)

	clock.Advance(time.Hour)
	e, err = r.Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, e.Data, "page one replaces, never duplicates")
	assert.Equal(t, 1, e.Page)
}

func TestLoadMore_BeforeFirstLoadEnsures(t *testing.T) {
	var calls atomic.Int32
	r, _ := newTestResource(t, pagedFetcher(&calls, 4), true)

	e, err := r.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, e.Page)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEnsure_NonPaginated(t *testing.T) {
	fetch := func(context.Context, int) ([]int, pagination.Meta, error) {
		return []int{1, 2, 3}, pagination.Meta{}, nil
	}
	r, _ := newTestResource(t, fetch, false)

	e, err := r.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, e.Data)
	assert.Equal(t, 1, e.Page)
	assert.Equal(t, 1, e.LastPage)
	assert.False(t, e.HasMore)

	e, err = r.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Len(t, e.Data, 3)
}

func TestEnsure_ConcurrentCallersShareOneFetch(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(context.Context, int) ([]string, pagination.Meta, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return []string{"x"}, pagination.Meta{CurrentPage: 1, LastPage: 1, Total: 1}, nil
	}
	r, _ := newTestResource(t, fetch, true)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = r.Ensure(context.Background())
	}()
	<-started
	assert.Equal(t, StatusLoading, r.Entry().Status)

	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := r.Ensure(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, []string{"x"}, e.Data)
		}()
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestEnsure_CallerCancelDoesNotAbortFetch(t *testing.T) {
	release := make(chan struct{})
	fetch := func(ctx context.Context, _ int) ([]string, pagination.Meta, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, pagination.Meta{}, ctx.Err()
		}
		return []string{"x"}, pagination.Meta{CurrentPage: 1, LastPage: 1, Total: 1}, nil
	}
	r, _ := newTestResource(t, fetch, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Ensure(ctx)
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		return r.Entry().Status == StatusSuccess
	}, time.Second, 5*time.Millisecond)
}

func TestEntry_MarshalJSON(t *testing.T) {
	e := Entry[string]{Status: StatusIdle, TTL: 2 * time.Minute}

	b, err := json.Marshal(e)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, []any{}, out["data"])
	assert.Equal(t, "idle", out["status"])
	assert.Equal(t, float64(120000), out["ttl_ms"])
	assert.Nil(t, out["last_fetched"])
	assert.NotContains(t, out, "error")
}
