package ledger

import (
	"net/http"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
)

// Handler exposes the movement history.
type Handler struct {
	Svc *Service
}

// List handles GET /api/v1/movements.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "ledger service not configured", nil)
		return
	}
	from, to, err := common.ParseTimeRange(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	f := Filter{ProductID: r.URL.Query().Get("productId"), From: from, To: to}
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, ok := model.ParseMovementType(raw)
		if !ok {
			common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", "unknown movement type", nil)
			return
		}
		f.Type = t
	}
	rows, err := h.Svc.List(r.Context(), f)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	page, perPage := common.ParsePagination(r, 100)
	items, meta := common.Paginate(rows, page, perPage)
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": meta})
}
