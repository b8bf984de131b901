package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dev-emon1/shoppers-link/internal/backend"
	"github.com/dev-emon1/shoppers-link/internal/domain"
	"github.com/dev-emon1/shoppers-link/internal/repository/memory"
	"github.com/dev-emon1/shoppers-link/pkg/pagination"
)

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) SearchProducts(ctx context.Context, p backend.SearchParams) (backend.Page[domain.Product], error) {
	args := m.Called(ctx, p)
	return args.Get(0).(backend.Page[domain.Product]), args.Error(1)
}

// blockingSearcher records queries and blocks until ctx ends or release closes.
type blockingSearcher struct {
	mu      sync.Mutex
	queries []string
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSearcher) SearchProducts(ctx context.Context, p backend.SearchParams) (backend.Page[domain.Product], error) {
	b.mu.Lock()
	b.queries = append(b.queries, p.Query)
	b.mu.Unlock()
	b.entered <- struct{}{}
	select {
	case <-ctx.Done():
		return backend.Page[domain.Product]{}, ctx.Err()
	case <-b.release:
		return pageOf(p.Query), nil
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pageOf(ids ...string) backend.Page[domain.Product] {
	items := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		items = append(items, domain.Product{ID: id, Name: "Product " + id})
	}
	return backend.Page[domain.Product]{
		Items: items,
		Meta:  pagination.Meta{CurrentPage: 1, LastPage: 1, Total: len(items)},
	}
}

func fastConfig() Config {
	return Config{Debounce: 20 * time.Millisecond, CacheTTL: 2 * time.Minute}
}

func currentSeq(p *Pipeline) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

func TestSubmit_DebounceKeepsLastKeystroke(t *testing.T) {
	searcher := new(mockSearcher)
	searcher.On("SearchProducts", mock.Anything, backend.SearchParams{Query: "ab"}).
		Return(pageOf("p1"), nil).Once()

	p := NewPipeline(searcher, nil, Config{Debounce: 100 * time.Millisecond}, testLogger())

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), Query{Text: "a"})
		errCh <- err
	}()
	require.Eventually(t, func() bool { return currentSeq(p) == 1 }, time.Second, time.Millisecond)

	state, err := p.Submit(context.Background(), Query{Text: "ab"})
	require.NoError(t, err)
	assert.ErrorIs(t, <-errCh, ErrSuperseded)

	require.Len(t, state.Products, 1)
	assert.Equal(t, "p1", state.Products[0].ID)
	assert.Equal(t, "ab", state.Query.Text)
	searcher.AssertNumberOfCalls(t, "SearchProducts", 1)
}

func TestSubmit_CancelsInFlightRequest(t *testing.T) {
	searcher := &blockingSearcher{entered: make(chan struct{}, 2), release: make(chan struct{})}
	p := NewPipeline(searcher, nil, Config{}, testLogger())

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), Query{Text: "shoe"})
		errCh <- err
	}()
	<-searcher.entered

	done := make(chan State, 1)
	go func() {
		s, err := p.Submit(context.Background(), Query{Text: "shoes"})
		assert.NoError(t, err)
		done <- s
	}()

	assert.ErrorIs(t, <-errCh, ErrSuperseded)
	<-searcher.entered
	close(searcher.release)

	state := <-done
	require.Len(t, state.Products, 1)
	assert.Equal(t, "shoes", state.Products[0].ID)
	assert.Empty(t, state.Error)
}

func TestSubmit_EmptyQueryShortCircuits(t *testing.T) {
	searcher := new(mockSearcher)
	p := NewPipeline(searcher, nil, Config{}, testLogger())

	state, err := p.Submit(context.Background(), Query{Text: "   "})
	require.NoError(t, err)
	assert.NotNil(t, state.Products)
	assert.Empty(t, state.Products)
	searcher.AssertNotCalled(t, "SearchProducts", mock.Anything, mock.Anything)
}

func TestSubmit_CategoryOnly(t *testing.T) {
	searcher := new(mockSearcher)
	searcher.On("SearchProducts", mock.Anything, backend.SearchParams{CategoryID: "7"}).
		Return(pageOf("p1", "p2"), nil).Once()
	p := NewPipeline(searcher, nil, Config{}, testLogger())

	state, err := p.Submit(context.Background(), Query{CategoryID: "7"})
	require.NoError(t, err)
	assert.Len(t, state.Products, 2)
	searcher.AssertExpectations(t)
}

func TestSubmit_UsesSessionCache(t *testing.T) {
	searcher := new(mockSearcher)
	searcher.On("SearchProducts", mock.Anything, backend.SearchParams{Query: "bag", CategoryID: "3"}).
		Return(pageOf("p9"), nil).Once()
	cache := memory.NewSessionCache()
	p := NewPipeline(searcher, cache, Config{CacheTTL: time.Minute}, testLogger())
	ctx := context.Background()

	first, err := p.Submit(ctx, Query{Text: "bag", CategoryID: "3"})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	var stored cachedResult
	require.NoError(t, cache.Get(ctx, "shopperslink:search:bag:3", &stored))
	assert.Len(t, stored.Products, 1)

	second, err := p.Submit(ctx, Query{Text: "bag", CategoryID: "3"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "p9", second.Products[0].ID)
	searcher.AssertNumberOfCalls(t, "SearchProducts", 1)
}

func TestSubmit_LimitedResultsAreNotCached(t *testing.T) {
	searcher := new(mockSearcher)
	searcher.On("SearchProducts", mock.Anything, backend.SearchParams{Query: "bag", Limit: 5}).
		Return(pageOf("p1"), nil).Twice()
	cache := memory.NewSessionCache()
	p := NewPipeline(searcher, cache, Config{CacheTTL: time.Minute}, testLogger())
	ctx := context.Background()

	_, err := p.Submit(ctx, Query{Text: "bag", Limit: 5})
	require.NoError(t, err)
	_, err = p.Submit(ctx, Query{Text: "bag", Limit: 5})
	require.NoError(t, err)

	var stored cachedResult
	assert.Error(t, cache.Get(ctx, Query{Text: "bag"}.CacheKey(), &stored))
	searcher.AssertNumberOfCalls(t, "SearchProducts", 2)
}

func TestSubmit_FailureKeepsPreviousResults(t *testing.T) {
	searcher := new(mockSearcher)
	searcher.On("SearchProducts", mock.Anything, backend.SearchParams{Query: "lamp"}).
		Return(pageOf("p1"), nil).Once()
	searcher.On("SearchProducts", mock.Anything, backend.SearchParams{Query: "desk"}).
		Return(backend.Page[domain.Product]{}, errors.New("backend unavailable")).Once()
	p := NewPipeline(searcher, nil, Config{}, testLogger())
	ctx := context.Background()

	_, err := p.Submit(ctx, Query{Text: "lamp"})
	require.NoError(t, err)

	state, err := p.Submit(ctx, Query{Text: "desk"})
	require.NoError(t, err)
	assert.Equal(t, "backend unavailable", state.Error)
	require.Len(t, state.Products, 1)
	assert.Equal(t, "p1", state.Products[0].ID)
	assert.Equal(t, state, p.State())
}

func TestSubmit_CallerCancellation(t *testing.T) {
	searcher := new(mockSearcher)
	p := NewPipeline(searcher, nil, fastConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Submit(ctx, Query{Text: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	searcher.AssertNotCalled(t, "SearchProducts", mock.Anything, mock.Anything)
}

func TestQuery_CacheKey(t *testing.T) {
	assert.Equal(t, "shopperslink:search:red shoes:12", Query{Text: "red shoes", CategoryID: "12"}.CacheKey())
	assert.Equal(t, "shopperslink:search:red:", Query{Text: "red"}.CacheKey())
}

func TestSessions_OnePipelinePerSession(t *testing.T) {
	s, err := NewSessions(new(mockSearcher), nil, fastConfig(), 2, testLogger())
	require.NoError(t, err)

	a := s.Pipeline("a")
	assert.Same(t, a, s.Pipeline("a"))
	assert.NotSame(t, a, s.Pipeline("b"))
	assert.Equal(t, 2, s.Len())

	s.Pipeline("c")
	assert.Equal(t, 2, s.Len())
	assert.NotSame(t, a, s.Pipeline("a"), "least recently used session was evicted")
}
