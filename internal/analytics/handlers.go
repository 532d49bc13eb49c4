package analytics

import (
	"net/http"
	"time"

	"github.com/noah-isme/backend-kasir/internal/common"
)

// Handler exposes analytics read endpoints.
type Handler struct {
	Svc *Service
}

// Sales returns the sales summary for ?from=&to= or, when absent, the last ?days= days.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	from, to, ok := h.period(w, r)
	if !ok {
		return
	}
	summary, err := h.Svc.SalesSummary(r.Context(), from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

// TopProducts returns the best selling products for the requested period.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	from, to, ok := h.period(w, r)
	if !ok {
		return
	}
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 10)
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	rows, err := h.Svc.TopProducts(r.Context(), from, to, limit)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Inventory returns the stock valuation.
func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	val, err := h.Svc.InventoryValuation(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": val})
}

// LowStock lists products at or below their minimum stock.
func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	products, err := h.Svc.LowStock(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": products})
}

func (h *Handler) period(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, to, err := common.ParseTimeRange(r)
	if err != nil {
		common.WriteError(w, err)
		return time.Time{}, time.Time{}, false
	}
	if from.IsZero() || to.IsZero() {
		defFrom, defTo := h.Svc.DefaultPeriod()
		if raw := r.URL.Query().Get("days"); raw != "" {
			if days := common.AtoiDefault(raw, 0); days > 0 {
				defFrom = defTo.AddDate(0, 0, -days)
			}
		}
		if from.IsZero() {
			from = defFrom
		}
		if to.IsZero() {
			to = defTo
		}
	}
	if !from.Before(to) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "from must be before to", nil)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return false
	}
	return true
}
