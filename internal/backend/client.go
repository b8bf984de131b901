// Package backend is the typed client for the marketplace backend API.
// Every response is decoded against one envelope, {"data": ..., "meta": ...},
// and normalized into domain types before it leaves this package.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dev-emon1/shoppers-link/internal/domain"
	apperrors "github.com/dev-emon1/shoppers-link/pkg/errors"
	"github.com/dev-emon1/shoppers-link/pkg/httpclient"
	"github.com/dev-emon1/shoppers-link/pkg/logger"
	"github.com/dev-emon1/shoppers-link/pkg/middleware"
	"github.com/dev-emon1/shoppers-link/pkg/pagination"
	"github.com/dev-emon1/shoppers-link/pkg/tracing"
)

const upstreamName = "backend"

// maxBodyBytes bounds how much of a successful response is read.
const maxBodyBytes = 8 << 20

// ErrUnexpectedSchema is returned when a response body does not follow the
// backend envelope.
var ErrUnexpectedSchema = errors.New("unexpected response schema")

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items []T             `json:"items"`
	Meta  pagination.Meta `json:"meta"`
}

// Client calls the marketplace backend.
type Client struct {
	baseURL   string
	mediaBase string
	http      httpclient.Doer
	tracer    trace.Tracer
	logger    *slog.Logger
}

// New creates a backend client. mediaBase resolves relative image paths.
func New(baseURL, mediaBase string, doer httpclient.Doer, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		mediaBase: mediaBase,
		http:      doer,
		tracer:    tracing.Tracer("github.com/dev-emon1/shoppers-link/internal/backend"),
		logger:    logger,
	}
}

// MediaBase returns the base URL relative media paths resolve against.
func (c *Client) MediaBase() string {
	return c.mediaBase
}

type envelope struct {
	Data json.RawMessage  `json:"data"`
	Meta *pagination.Meta `json:"meta"`
}

// listBody splits a list envelope into its items. Meta is required when
// paginated is set.
func listBody(body []byte, paginated bool) ([]json.RawMessage, *pagination.Meta, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnexpectedSchema, err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || data[0] != '[' {
		return nil, nil, fmt.Errorf("%w: data must be an array", ErrUnexpectedSchema)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnexpectedSchema, err)
	}

	if env.Meta != nil {
		if err := env.Meta.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%w: meta: %w", ErrUnexpectedSchema, err)
		}
	} else if paginated {
		return nil, nil, fmt.Errorf("%w: missing meta", ErrUnexpectedSchema)
	}
	return items, env.Meta, nil
}

// objectBody returns the data object of a single-resource envelope.
func objectBody(body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedSchema, err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: data must be an object", ErrUnexpectedSchema)
	}
	return data, nil
}

func decodePage[T any](body []byte, page int, decode func([]byte) (T, error)) (Page[T], error) {
	items, meta, err := listBody(body, true)
	if err != nil {
		return Page[T]{}, err
	}
	out := Page[T]{Items: make([]T, 0, len(items)), Meta: *meta}
	for i, raw := range items {
		v, err := decode(raw)
		if err != nil {
			return Page[T]{}, fmt.Errorf("%w: item %d: %w", ErrUnexpectedSchema, i, err)
		}
		out.Items = append(out.Items, v)
	}
	if out.Meta.CurrentPage != page {
		return Page[T]{}, fmt.Errorf("%w: asked for page %d, got %d", ErrUnexpectedSchema, page, out.Meta.CurrentPage)
	}
	return out, nil
}

func (c *Client) product(raw []byte) (domain.Product, error) {
	return domain.DecodeProduct(raw, c.mediaBase)
}

func (c *Client) shop(raw []byte) (domain.Shop, error) {
	return domain.DecodeShop(raw, c.mediaBase)
}

func (c *Client) review(raw []byte) (domain.Review, error) {
	return domain.DecodeReview(raw, c.mediaBase)
}

func pageQuery(page int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(max(page, 1)))
	return q
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.CorrelationHeader, id)
	}
	return req, nil
}

// send performs req and returns the body of a 2xx response. Cancellation is
// returned as the bare context error.
func (c *Client) send(ctx context.Context, op string, req *http.Request) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "backend."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("url.path", req.URL.Path),
	)

	body, err := c.roundTrip(ctx, req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, httpclient.ErrCircuitOpen) {
			return nil, apperrors.Unavailable("marketplace backend is temporarily unavailable")
		}
		var serverErr *httpclient.ServerError
		if errors.As(err, &serverErr) && serverErr.Status == http.StatusServiceUnavailable {
			return nil, apperrors.Unavailable("marketplace backend is unavailable")
		}
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := httpclient.ParseResponseError(resp, upstreamName)
		c.logger.DebugContext(ctx, "backend request rejected",
			slog.String("path", req.URL.Path),
			slog.Int("status", resp.StatusCode),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("read %s body: %w", req.URL.Path, err)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, token string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, q, http.NoBody)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.send(ctx, op, req)
}
