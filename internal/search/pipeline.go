// Package search runs product searches for a client session. Submissions are
// debounced, and a newer submission cancels the one before it.
package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dev-emon1/shoppers-link/internal/backend"
	"github.com/dev-emon1/shoppers-link/internal/domain"
	"github.com/dev-emon1/shoppers-link/internal/repository"
	"github.com/dev-emon1/shoppers-link/pkg/pagination"
)

// ErrSuperseded is returned by Submit when a newer submission replaced it.
var ErrSuperseded = errors.New("search superseded by a newer query")

const cacheKeyPrefix = "shopperslink:search:"

// Searcher runs a product search against the backend.
type Searcher interface {
	SearchProducts(ctx context.Context, p backend.SearchParams) (backend.Page[domain.Product], error)
}

// Query is one search request.
type Query struct {
	Text       string `json:"q"`
	CategoryID string `json:"category_id,omitempty"`
	// Limit caps the result set. Limited results are never cached.
	Limit int `json:"limit,omitempty"`
}

func (q Query) normalized() Query {
	q.Text = strings.TrimSpace(q.Text)
	q.CategoryID = strings.TrimSpace(q.CategoryID)
	q.Limit = max(q.Limit, 0)
	return q
}

// Empty reports whether the query has neither text nor category.
func (q Query) Empty() bool {
	return q.Text == "" && q.CategoryID == ""
}

// CacheKey is the session cache key of the query's results.
func (q Query) CacheKey() string {
	return cacheKeyPrefix + q.Text + ":" + q.CategoryID
}

// State is the latest result of a pipeline.
type State struct {
	Query    Query            `json:"query"`
	Products []domain.Product `json:"products"`
	Meta     pagination.Meta  `json:"meta"`
	Cached   bool             `json:"cached"`
	// Error holds the message of the last failed search. Products then still
	// hold the previous results.
	Error string `json:"error,omitempty"`
}

func (s State) clone() State {
	out := s
	out.Products = make([]domain.Product, len(s.Products))
	copy(out.Products, s.Products)
	return out
}

// cachedResult is what goes into the session cache.
type cachedResult struct {
	Products []domain.Product `json:"products"`
	Meta     pagination.Meta  `json:"meta"`
}

// Config tunes a pipeline.
type Config struct {
	Debounce time.Duration
	CacheTTL time.Duration
}

// DefaultConfig returns a 300ms debounce and a two minute result cache.
func DefaultConfig() Config {
	return Config{Debounce: 300 * time.Millisecond, CacheTTL: 2 * time.Minute}
}

// Pipeline is the search state of one client session.
type Pipeline struct {
	searcher Searcher
	cache    repository.SessionCache
	cfg      Config
	logger   *slog.Logger

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelCauseFunc
	state  State
}

// NewPipeline creates a pipeline. cache may be nil.
func NewPipeline(searcher Searcher, cache repository.SessionCache, cfg Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		searcher: searcher,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
		state:    State{Products: []domain.Product{}},
	}
}

// State returns the latest committed state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.clone()
}

// Submit waits out the debounce delay and then searches for q, replacing the
// current results on success. A later Submit cancels this one, which then
// returns ErrSuperseded and leaves the state untouched. A backend failure is
// not returned: it is recorded in State.Error and the previous results stay.
func (p *Pipeline) Submit(ctx context.Context, q Query) (State, error) {
	q = q.normalized()
	ctx, cancel := context.WithCancelCause(ctx)

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel(ErrSuperseded)
	}
	p.seq++
	seq := p.seq
	p.cancel = cancel
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.seq == seq {
			p.cancel = nil
		}
		p.mu.Unlock()
		cancel(nil)
	}()

	timer := time.NewTimer(p.cfg.Debounce)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return p.abandoned(ctx)
	case <-timer.C:
	}

	if q.Empty() {
		submissions.WithLabelValues("empty").Inc()
		return p.commit(seq, State{Query: q, Products: []domain.Product{}})
	}

	if q.Limit == 0 && p.cache != nil {
		var hit cachedResult
		err := p.cache.Get(ctx, q.CacheKey(), &hit)
		switch {
		case err == nil:
			submissions.WithLabelValues("cache_hit").Inc()
			return p.commit(seq, State{Query: q, Products: hit.Products, Meta: hit.Meta, Cached: true})
		case ctx.Err() != nil:
			return p.abandoned(ctx)
		case !errors.Is(err, repository.ErrCacheMiss):
			p.logger.WarnContext(ctx, "search cache read failed",
				slog.String("key", q.CacheKey()),
				slog.String("error", err.Error()),
			)
		}
	}

	start := time.Now()
	page, err := p.searcher.SearchProducts(ctx, backend.SearchParams{
		Query:      q.Text,
		CategoryID: q.CategoryID,
		Limit:      q.Limit,
	})
	searchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return p.abandoned(ctx)
		}
		submissions.WithLabelValues("failed").Inc()
		p.logger.WarnContext(ctx, "search failed",
			slog.String("query", q.Text),
			slog.String("category_id", q.CategoryID),
			slog.String("error", err.Error()),
		)
		return p.fail(seq, err)
	}
	submissions.WithLabelValues("fetched").Inc()

	products := page.Items
	if products == nil {
		products = []domain.Product{}
	}
	if q.Limit == 0 && p.cache != nil {
		if err := p.cache.Set(ctx, q.CacheKey(), cachedResult{Products: products, Meta: page.Meta}, p.cfg.CacheTTL); err != nil {
			p.logger.WarnContext(ctx, "search cache write failed",
				slog.String("key", q.CacheKey()),
				slog.String("error", err.Error()),
			)
		}
	}
	return p.commit(seq, State{Query: q, Products: products, Meta: page.Meta})
}

// abandoned reports why ctx ended: ErrSuperseded when a newer submission
// cancelled it, the caller's own context error otherwise.
func (p *Pipeline) abandoned(ctx context.Context) (State, error) {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrSuperseded) {
		submissions.WithLabelValues("superseded").Inc()
		return p.State(), ErrSuperseded
	}
	submissions.WithLabelValues("cancelled").Inc()
	return p.State(), ctx.Err()
}

func (p *Pipeline) commit(seq uint64, s State) (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seq != seq {
		submissions.WithLabelValues("superseded").Inc()
		return p.state.clone(), ErrSuperseded
	}
	p.state = s
	return p.state.clone(), nil
}

func (p *Pipeline) fail(seq uint64, err error) (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seq != seq {
		return p.state.clone(), ErrSuperseded
	}
	p.state.Error = err.Error()
	return p.state.clone(), nil
}
