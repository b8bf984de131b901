package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/dev-emon1/shoppers-link/internal/domain"
	"github.com/dev-emon1/shoppers-link/pkg/pagination"
)

// ReviewImage is a photo attached to a review.
type ReviewImage struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReviewSubmission is a new review for a product.
type ReviewSubmission struct {
	ProductID string
	Rating    int
	Comment   string
	Images    []ReviewImage
}

func reviewsPath(productID string) string {
	return "/products/" + url.PathEscape(productID) + "/reviews"
}

// ProductReviews fetches GET /products/:id/reviews.
func (c *Client) ProductReviews(ctx context.Context, productID string, page int) (Page[domain.Review], error) {
	body, err := c.get(ctx, "product_reviews", reviewsPath(productID), pageQuery(page), "")
	if err != nil {
		return Page[domain.Review]{}, err
	}

	items, meta, err := listBody(body, false)
	if err != nil {
		return Page[domain.Review]{}, err
	}
	out := Page[domain.Review]{Items: make([]domain.Review, 0, len(items))}
	for i, raw := range items {
		r, err := c.review(raw)
		if err != nil {
			return Page[domain.Review]{}, fmt.Errorf("%w: item %d: %w", ErrUnexpectedSchema, i, err)
		}
		if r.ProductID == "" {
			r.ProductID = productID
		}
		out.Items = append(out.Items, r)
	}
	if meta != nil {
		out.Meta = *meta
	} else {
		out.Meta = pagination.Meta{CurrentPage: 1, LastPage: 1, Total: len(out.Items)}
	}
	return out, nil
}

// SubmitReview posts a review as the customer owning token. Reviews with
// images are sent as multipart/form-data, others as JSON.
func (c *Client) SubmitReview(ctx context.Context, token string, s ReviewSubmission) (domain.Review, error) {
	var (
		body        bytes.Buffer
		contentType string
	)
	if len(s.Images) > 0 {
		ct, err := writeReviewForm(&body, s)
		if err != nil {
			return domain.Review{}, err
		}
		contentType = ct
	} else {
		payload := map[string]any{"rating": s.Rating, "comment": s.Comment}
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return domain.Review{}, fmt.Errorf("encode review: %w", err)
		}
		contentType = "application/json"
	}

	req, err := c.newRequest(ctx, http.MethodPost, reviewsPath(s.ProductID), nil, bytes.NewReader(body.Bytes()))
	if err != nil {
		return domain.Review{}, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.send(ctx, "submit_review", req)
	if err != nil {
		return domain.Review{}, err
	}
	data, err := objectBody(resp)
	if err != nil {
		return domain.Review{}, err
	}
	r, err := c.review(data)
	if err != nil {
		return domain.Review{}, fmt.Errorf("%w: %w", ErrUnexpectedSchema, err)
	}
	if r.ProductID == "" {
		r.ProductID = s.ProductID
	}
	return r, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeReviewForm(buf *bytes.Buffer, s ReviewSubmission) (string, error) {
	w := multipart.NewWriter(buf)
	if err := w.WriteField("rating", strconv.Itoa(s.Rating)); err != nil {
		return "", fmt.Errorf("write rating field: %w", err)
	}
	if err := w.WriteField("comment", s.Comment); err != nil {
		return "", fmt.Errorf("write comment field: %w", err)
	}
	for _, img := range s.Images {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images[]"; filename="%s"`, quoteEscaper.Replace(img.Filename)))
		ct := img.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return "", fmt.Errorf("create image part: %w", err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return "", fmt.Errorf("write image part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}
	return w.FormDataContentType(), nil
}

// CustomerOrders fetches GET /customer/order/list for the customer owning token.
func (c *Client) CustomerOrders(ctx context.Context, token string) ([]domain.Order, error) {
	body, err := c.get(ctx, "customer_orders", "/customer/order/list", nil, token)
	if err != nil {
		return nil, err
	}
	items, _, err := listBody(body, false)
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(items))
	for i, raw := range items {
		o, err := domain.DecodeOrder(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: order %d: %w", ErrUnexpectedSchema, i, err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}
