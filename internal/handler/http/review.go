package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dev-emon1/shoppers-link/internal/backend"
	"github.com/dev-emon1/shoppers-link/internal/review"
	apperrors "github.com/dev-emon1/shoppers-link/pkg/errors"
	"github.com/dev-emon1/shoppers-link/pkg/httputil"
	"github.com/dev-emon1/shoppers-link/pkg/validator"
)

// maxReviewForm bounds an in-memory multipart review upload.
const maxReviewForm = review.MaxImages*review.MaxImageBytes + 1<<20

// ReviewHandler serves product reviews.
type ReviewHandler struct {
	service *review.Service
	logger  *slog.Logger
}

// NewReviewHandler creates a review handler.
func NewReviewHandler(svc *review.Service, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{service: svc, logger: logger}
}

// SubmitReviewRequest is the JSON body of a review without images.
type SubmitReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// List handles GET /api/v1/products/{productId}/reviews?page=
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 1 {
			httputil.WriteError(w, r, apperrors.InvalidInput("page must be a positive integer"), h.logger)
			return
		}
		page = p
	}

	reviews, err := h.service.List(r.Context(), chi.URLParam(r, "productId"), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: reviews.Items, Meta: reviews.Meta})
}

// Submit handles POST /api/v1/products/{productId}/reviews. The body is JSON,
// or multipart/form-data with rating, comment and images[] parts.
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sub := backend.ReviewSubmission{ProductID: chi.URLParam(r, "productId")}

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		if err := readReviewForm(w, r, &sub); err != nil {
			httputil.WriteValidationError(w, err)
			return
		}
	} else {
		var req SubmitReviewRequest
		if err := validator.DecodeAndValidate(r, &req); err != nil {
			httputil.WriteValidationError(w, err)
			return
		}
		sub.Rating, sub.Comment = req.Rating, req.Comment
	}

	created, err := h.service.Submit(r.Context(), owner(r).Token, sub)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, created)
}

func readReviewForm(w http.ResponseWriter, r *http.Request, sub *backend.ReviewSubmission) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxReviewForm)
	if err := r.ParseMultipartForm(maxReviewForm); err != nil {
		return fmt.Errorf("parse review form: %w", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	rating, err := strconv.Atoi(r.FormValue("rating"))
	if err != nil {
		return errors.New("rating must be an integer")
	}
	sub.Rating = rating
	sub.Comment = r.FormValue("comment")

	files := r.MultipartForm.File["images[]"]
	if len(files) == 0 {
		files = r.MultipartForm.File["images"]
	}
	if len(files) > review.MaxImages {
		return fmt.Errorf("at most %d images may be attached", review.MaxImages)
	}
	for _, fh := range files {
		img, err := readImage(fh)
		if err != nil {
			return err
		}
		sub.Images = append(sub.Images, img)
	}
	return nil
}

func readImage(fh *multipart.FileHeader) (backend.ReviewImage, error) {
	f, err := fh.Open()
	if err != nil {
		return backend.ReviewImage{}, fmt.Errorf("open image %s: %w", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, review.MaxImageBytes+1))
	if err != nil {
		return backend.ReviewImage{}, fmt.Errorf("read image %s: %w", fh.Filename, err)
	}
	return backend.ReviewImage{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// Eligibility handles GET /api/v1/products/{productId}/reviews/eligibility
func (h *ReviewHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Eligibility(r.Context(), owner(r).Token, chi.URLParam(r, "productId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, out)
}
