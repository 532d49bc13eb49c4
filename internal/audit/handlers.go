package audit

import (
	"net/http"

	"github.com/noah-isme/backend-kasir/internal/common"
)

// Handler serves the audit trail to administrators.
type Handler struct {
	Store Store
}

// List handles GET /api/v1/admin/audit, newest entry first.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "AUDIT_DISABLED", "audit trail is not configured", nil)
		return
	}
	limit, offset := common.Window(r, 50, 200)
	entries, total, err := h.Store.List(r.Context(), limit, offset)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": entries,
		"meta": map[string]int{"limit": limit, "offset": offset, "total": total},
	})
}
