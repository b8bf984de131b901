// Package fetchcache wraps a remote listing with a TTL guard so repeated
// reads within the TTL are served from memory.
package fetchcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dev-emon1/shoppers-link/pkg/pagination"
)

// Status is the lifecycle state of a resource.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Entry is a snapshot of a cached resource.
type Entry[T any] struct {
	Data        []T
	Status      Status
	Error       string
	LastFetched *time.Time
	TTL         time.Duration
	Page        int
	LastPage    int
	HasMore     bool
}

// MarshalJSON renders the TTL in milliseconds.
func (e Entry[T]) MarshalJSON() ([]byte, error) {
	data := e.Data
	if data == nil {
		data = []T{}
	}
	return json.Marshal(struct {
		Data        []T        `json:"data"`
		Status      Status     `json:"status"`
		Error       string     `json:"error,omitempty"`
		LastFetched *time.Time `json:"last_fetched"`
		TTLMillis   int64      `json:"ttl_ms"`
		Page        int        `json:"page"`
		LastPage    int        `json:"last_page"`
		HasMore     bool       `json:"has_more"`
	}{data, e.Status, e.Error, e.LastFetched, e.TTL.Milliseconds(), e.Page, e.LastPage, e.HasMore})
}

// Fetcher loads one page of a resource. Non-paginated fetchers ignore page
// and return a zero Meta.
type Fetcher[T any] func(ctx context.Context, page int) ([]T, pagination.Meta, error)

// Options configures a Resource.
type Options struct {
	TTL time.Duration
	// Paginated resources track page/last page and append on load-more.
	Paginated bool
	// FetchTimeout bounds a single fetch. Fetches are detached from the
	// caller's cancellation so one departing client cannot fail the others
	// waiting on the same flight.
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

// Resource is a named, TTL-guarded remote listing. At most one fetch runs at
// a time; callers arriving while it runs wait for it instead of starting
// another.
type Resource[T any] struct {
	name    string
	fetch   Fetcher[T]
	opts    Options
	logger  *slog.Logger
	nowFunc func() time.Time

	mu     sync.Mutex
	entry  Entry[T]
	flight chan struct{}
}

// NewResource creates an idle resource.
func NewResource[T any](name string, fetch Fetcher[T], opts Options) *Resource[T] {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	return &Resource[T]{
		name:    name,
		fetch:   fetch,
		opts:    opts,
		logger:  l,
		nowFunc: time.Now,
		entry:   Entry[T]{Status: StatusIdle, TTL: opts.TTL},
	}
}

// Name returns the resource name.
func (r *Resource[T]) Name() string {
	return r.name
}

// Entry returns the current snapshot without triggering a fetch.
func (r *Resource[T]) Entry() Entry[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Ensure fetches the first page when nothing is in flight and the data is
// absent or older than the TTL, then returns the resulting snapshot. Fetch
// failures are reported through the entry's Status and Error; the returned
// error is only set when ctx ends before the fetch does.
func (r *Resource[T]) Ensure(ctx context.Context) (Entry[T], error) {
	r.mu.Lock()
	if f := r.flight; f != nil {
		r.mu.Unlock()
		ensureTotal.WithLabelValues(r.name, "joined").Inc()
		return r.wait(ctx, f)
	}
	if !r.stale() {
		e := r.snapshot()
		r.mu.Unlock()
		ensureTotal.WithLabelValues(r.name, "fresh").Inc()
		return e, nil
	}
	f := r.dispatch(ctx, 1)
	r.mu.Unlock()

	ensureTotal.WithLabelValues(r.name, "dispatched").Inc()
	return r.wait(ctx, f)
}

// LoadMore fetches the page after the current one, regardless of TTL. It
// does nothing while a fetch is running or when there is no next page. A
// resource that has never loaded is loaded with Ensure instead.
func (r *Resource[T]) LoadMore(ctx context.Context) (Entry[T], error) {
	r.mu.Lock()
	if r.entry.LastFetched == nil && r.flight == nil {
		r.mu.Unlock()
		return r.Ensure(ctx)
	}
	if r.flight != nil || !r.opts.Paginated || !r.entry.HasMore {
		e := r.snapshot()
		r.mu.Unlock()
		return e, nil
	}
	f := r.dispatch(ctx, r.entry.Page+1)
	r.mu.Unlock()

	return r.wait(ctx, f)
}

// stale reports whether the data is absent or has outlived the TTL.
// Callers hold r.mu.
func (r *Resource[T]) stale() bool {
	if r.entry.LastFetched == nil {
		return true
	}
	return r.nowFunc().Sub(*r.entry.LastFetched) >= r.opts.TTL
}

// dispatch marks the resource loading and starts fetching page. Callers hold r.mu.
func (r *Resource[T]) dispatch(ctx context.Context, page int) chan struct{} {
	f := make(chan struct{})
	r.flight = f
	r.entry.Status = StatusLoading

	go r.run(context.WithoutCancel(ctx), page, f)
	return f
}

func (r *Resource[T]) run(ctx context.Context, page int, f chan struct{}) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.FetchTimeout)
	defer cancel()

	start := time.Now()
	items, meta, err := r.fetch(ctx, page)
	fetchDuration.WithLabelValues(r.name).Observe(time.Since(start).Seconds())

	r.mu.Lock()
	defer func() {
		r.flight = nil
		close(f)
		r.mu.Unlock()
	}()

	if err != nil {
		fetchTotal.WithLabelValues(r.name, "error").Inc()
		r.entry.Status = StatusError
		r.entry.Error = err.Error()
		r.logger.WarnContext(ctx, "resource fetch failed",
			slog.String("resource", r.name),
			slog.Int("page", page),
			slog.String("error", err.Error()),
		)
		return
	}
	fetchTotal.WithLabelValues(r.name, "success").Inc()

	if !r.opts.Paginated || meta.CurrentPage <= 1 {
		r.entry.Data = slices.Clone(items)
	} else {
		r.entry.Data = append(slices.Clone(r.entry.Data), items...)
	}
	if r.opts.Paginated {
		r.entry.Page = max(meta.CurrentPage, 1)
		r.entry.LastPage = max(meta.LastPage, r.entry.Page)
		r.entry.HasMore = meta.HasMore()
	} else {
		r.entry.Page, r.entry.LastPage, r.entry.HasMore = 1, 1, false
	}
	now := r.nowFunc()
	r.entry.LastFetched = &now
	r.entry.Status = StatusSuccess
	r.entry.Error = ""
}

func (r *Resource[T]) wait(ctx context.Context, f chan struct{}) (Entry[T], error) {
	select {
	case <-f:
		return r.Entry(), nil
	case <-ctx.Done():
		return r.Entry(), ctx.Err()
	}
}

// snapshot copies the entry. Callers hold r.mu.
func (r *Resource[T]) snapshot() Entry[T] {
	e := r.entry
	e.Data = slices.Clone(r.entry.Data)
	if r.entry.LastFetched != nil {
		t := *r.entry.LastFetched
		e.LastFetched = &t
	}
	return e
}
