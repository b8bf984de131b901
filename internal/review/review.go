// Package review lists and submits product reviews and decides whether a
// customer may review a product.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dev-emon1/shoppers-link/internal/backend"
	"github.com/dev-emon1/shoppers-link/internal/domain"
	apperrors "github.com/dev-emon1/shoppers-link/pkg/errors"
)

// Review limits.
const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 2000
	MaxImages        = 5
	// MaxImageBytes caps a single attached photo.
	MaxImageBytes = 5 << 20
)

// StatusDelivered is the order status that unlocks reviews.
const StatusDelivered = "delivered"

// Backend is the part of the backend client reviews need.
type Backend interface {
	ProductReviews(ctx context.Context, productID string, page int) (backend.Page[domain.Review], error)
	SubmitReview(ctx context.Context, token string, s backend.ReviewSubmission) (domain.Review, error)
	CustomerOrders(ctx context.Context, token string) ([]domain.Order, error)
}

// Eligibility says whether a customer may review a product. It is a UI hint;
// the backend enforces its own rule on submission.
type Eligibility struct {
	ProductID string `json:"product_id"`
	Eligible  bool   `json:"eligible"`
	OrderID   string `json:"order_id,omitempty"`
}

// Service implements review operations.
type Service struct {
	backend Backend
	logger  *slog.Logger
}

// NewService creates a review service.
func NewService(b Backend, logger *slog.Logger) *Service {
	return &Service{backend: b, logger: logger}
}

// List returns one page of a product's reviews.
func (s *Service) List(ctx context.Context, productID string, page int) (backend.Page[domain.Review], error) {
	if strings.TrimSpace(productID) == "" {
		return backend.Page[domain.Review]{}, apperrors.InvalidInput("product id is required")
	}
	out, err := s.backend.ProductReviews(ctx, productID, max(page, 1))
	if err != nil {
		return backend.Page[domain.Review]{}, fmt.Errorf("list reviews: %w", err)
	}
	return out, nil
}

// Submit posts a review on behalf of the customer owning token.
func (s *Service) Submit(ctx context.Context, token string, in backend.ReviewSubmission) (domain.Review, error) {
	if token == "" {
		return domain.Review{}, apperrors.Unauthorized("sign in to review products")
	}
	in.Comment = strings.TrimSpace(in.Comment)
	if err := validateSubmission(in); err != nil {
		return domain.Review{}, err
	}

	r, err := s.backend.SubmitReview(ctx, token, in)
	if err != nil {
		return domain.Review{}, fmt.Errorf("submit review: %w", err)
	}

	s.logger.InfoContext(ctx, "review submitted",
		slog.String("product_id", in.ProductID),
		slog.Int("rating", in.Rating),
		slog.Int("images", len(in.Images)),
	)
	return r, nil
}

func validateSubmission(in backend.ReviewSubmission) error {
	if strings.TrimSpace(in.ProductID) == "" {
		return apperrors.InvalidInput("product id is required")
	}
	if in.Rating < MinRating || in.Rating > MaxRating {
		return apperrors.InvalidInput(fmt.Sprintf("rating must be between %d and %d", MinRating, MaxRating))
	}
	if len(in.Comment) > MaxCommentLength {
		return apperrors.InvalidInput(fmt.Sprintf("comment must not exceed %d characters", MaxCommentLength))
	}
	if len(in.Images) > MaxImages {
		return apperrors.InvalidInput(fmt.Sprintf("at most %d images may be attached", MaxImages))
	}
	for _, img := range in.Images {
		if len(img.Data) == 0 {
			return apperrors.InvalidInput("image " + img.Filename + " is empty")
		}
		if len(img.Data) > MaxImageBytes {
			return apperrors.InvalidInput("image " + img.Filename + " is too large")
		}
		if img.ContentType != "" && !strings.HasPrefix(img.ContentType, "image/") {
			return apperrors.InvalidInput("image " + img.Filename + " is not an image")
		}
	}
	return nil
}

// Eligibility reports whether one of the customer's delivered orders contains
// productID.
func (s *Service) Eligibility(ctx context.Context, token, productID string) (Eligibility, error) {
	if token == "" {
		return Eligibility{}, apperrors.Unauthorized("sign in to review products")
	}
	if strings.TrimSpace(productID) == "" {
		return Eligibility{}, apperrors.InvalidInput("product id is required")
	}

	orders, err := s.backend.CustomerOrders(ctx, token)
	if err != nil {
		return Eligibility{}, fmt.Errorf("list customer orders: %w", err)
	}

	out := Eligibility{ProductID: productID}
	for _, o := range orders {
		if strings.EqualFold(o.Status, StatusDelivered) && o.Contains(productID) {
			out.Eligible = true
			out.OrderID = o.ID
			break
		}
	}
	return out, nil
}
