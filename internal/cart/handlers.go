package cart

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/pricing"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc *Service
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity"`
	Delta    int  `json:"delta" validate:"oneof=-1 0 1"`
}

// Create handles POST /api/v1/carts.
func (h Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	c, err := h.Svc.Create(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": View{Cart: c, Totals: emptyTotals()}})
}

// Get handles GET /api/v1/carts/{id} and returns the repriced cart.
func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	view, err := h.Svc.View(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// AddItem handles POST /api/v1/carts/{id}/items.
func (h Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req addItemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	id := chi.URLParam(r, "id")
	if _, err := h.Svc.AddItem(r.Context(), id, req.ProductID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, r, id, http.StatusOK)
}

// UpdateItem handles PATCH /api/v1/carts/{id}/items/{productId}. The body carries either
// an absolute quantity or a delta of +1/-1.
func (h Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req updateItemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, err)
		return
	}
	id, productID := chi.URLParam(r, "id"), chi.URLParam(r, "productId")
	var err error
	switch {
	case req.Quantity != nil:
		_, err = h.Svc.SetQuantity(r.Context(), id, productID, *req.Quantity)
	case req.Delta > 0:
		_, err = h.Svc.Increment(r.Context(), id, productID)
	case req.Delta < 0:
		_, err = h.Svc.Decrement(r.Context(), id, productID)
	default:
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", "quantity or delta required", nil)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, r, id, http.StatusOK)
}

// RemoveItem handles DELETE /api/v1/carts/{id}/items/{productId}.
func (h Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := h.Svc.RemoveItem(r.Context(), id, chi.URLParam(r, "productId")); err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, r, id, http.StatusOK)
}

// Clear handles POST /api/v1/carts/{id}/clear.
func (h Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := h.Svc.Clear(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, r, id, http.StatusOK)
}

// Discard handles DELETE /api/v1/carts/{id}.
func (h Handler) Discard(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.Svc.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handler) respond(w http.ResponseWriter, r *http.Request, id string, status int) {
	view, err := h.Svc.View(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, status, map[string]any{"data": view})
}

func (h Handler) ready(w http.ResponseWriter) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case common.IsAppError(err):
		common.WriteError(w, err)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	case errors.Is(err, ErrNotInCart):
		common.JSONError(w, http.StatusNotFound, "NOT_IN_CART", "product not in cart", nil)
	case errors.Is(err, ErrInsufficientStock):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", "insufficient stock", nil)
	case errors.Is(err, ErrInvalidQuantity):
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}

func emptyTotals() pricing.Totals {
	return pricing.Totals{Items: []model.SaleItem{}}
}
