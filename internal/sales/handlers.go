package sales

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
)

// Handler exposes the sale history.
type Handler struct {
	Svc *Service
}

// List handles GET /api/v1/sales.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "sales service not configured", nil)
		return
	}
	from, to, err := common.ParseTimeRange(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	q := r.URL.Query()
	f := Filter{From: from, To: to, CustomerID: q.Get("customerId"), ProductID: q.Get("productId")}
	if raw := q.Get("paymentMethod"); raw != "" {
		m, ok := model.ParsePaymentMethod(raw)
		if !ok {
			common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", "unknown payment method", nil)
			return
		}
		f.PaymentMethod = m
	}
	rows, err := h.Svc.List(r.Context(), f)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	items, meta := common.Paginate(rows, page, perPage)
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": meta})
}

// Get handles GET /api/v1/sales/{id}.
func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "sales service not configured", nil)
		return
	}
	sale, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "sale not found", nil)
		return
	}
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sale})
}
