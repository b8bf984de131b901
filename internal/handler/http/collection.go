package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dev-emon1/shoppers-link/internal/domain"
	"github.com/dev-emon1/shoppers-link/internal/service"
	"github.com/dev-emon1/shoppers-link/pkg/httputil"
	"github.com/dev-emon1/shoppers-link/pkg/validator"
)

// CollectionHandler serves one collection kind (cart or wishlist).
type CollectionHandler struct {
	kind    domain.Kind
	service *service.CollectionService
	logger  *slog.Logger
}

// NewCollectionHandler creates a handler for kind.
func NewCollectionHandler(kind domain.Kind, svc *service.CollectionService, logger *slog.Logger) *CollectionHandler {
	return &CollectionHandler{
		kind:    kind,
		service: svc,
		logger:  logger,
	}
}

// UpdateQuantityRequest is the JSON body of PUT .../items/{vendorId}/{productId}.
type UpdateQuantityRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity" validate:"gte=0,lte=100"`
}

// MoveToCartRequest is the optional JSON body of the move-to-cart route.
type MoveToCartRequest struct {
	VariantID string `json:"variant_id"`
}

func itemKey(r *http.Request, variantID string) domain.ItemKey {
	return domain.ItemKey{
		VendorID:  chi.URLParam(r, "vendorId"),
		ProductID: chi.URLParam(r, "productId"),
		VariantID: variantID,
	}
}

// Get handles GET /api/v1/{kind}
func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(r.Context(), h.kind, owner(r).ID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// AddItem handles POST /api/v1/{kind}/items
func (h *CollectionHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req service.AddItemInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	view, err := h.service.AddItem(r.Context(), h.kind, owner(r).ID, req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// QuickAdd handles POST /api/v1/{kind}/quick-add
func (h *CollectionHandler) QuickAdd(w http.ResponseWriter, r *http.Request) {
	var req service.QuickAddInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	view, err := h.service.QuickAdd(r.Context(), h.kind, owner(r).ID, req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// UpdateQuantity handles PUT /api/v1/{kind}/items/{vendorId}/{productId}
func (h *CollectionHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	view, err := h.service.UpdateQuantity(r.Context(), h.kind, owner(r).ID, itemKey(r, req.VariantID), req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// RemoveItem handles DELETE /api/v1/{kind}/items/{vendorId}/{productId}?variant_id=
func (h *CollectionHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	key := itemKey(r, r.URL.Query().Get("variant_id"))

	view, err := h.service.Remove(r.Context(), h.kind, owner(r).ID, key)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// Clear handles DELETE /api/v1/{kind}?confirm=true. Without the confirmation
// flag nothing is removed.
func (h *CollectionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		httputil.WriteJSON(w, http.StatusConflict, httputil.Response{
			Error: &httputil.ErrorResponse{
				Code:    "CONFIRMATION_REQUIRED",
				Message: "clearing the " + string(h.kind) + " requires confirm=true",
			},
		})
		return
	}

	view, err := h.service.Clear(r.Context(), h.kind, owner(r).ID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// MoveToCart handles POST /api/v1/wishlist/items/{vendorId}/{productId}/move-to-cart.
// The variant comes from the variant_id query parameter or the JSON body.
func (h *CollectionHandler) MoveToCart(w http.ResponseWriter, r *http.Request) {
	variantID := r.URL.Query().Get("variant_id")
	if variantID == "" && r.ContentLength > 0 {
		var req MoveToCartRequest
		if err := validator.DecodeAndValidate(r, &req); err != nil {
			httputil.WriteValidationError(w, err)
			return
		}
		variantID = req.VariantID
	}

	res, err := h.service.MoveToCart(r.Context(), owner(r).ID, itemKey(r, variantID))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}
