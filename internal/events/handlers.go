package events

import (
	"net/http"

	"github.com/noah-isme/backend-kasir/internal/common"
)

// Handler exposes the recent event feed to administrators.
type Handler struct {
	Store *KVStore
}

// Recent handles GET /api/v1/admin/events.
func (h Handler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "event store not configured", nil)
		return
	}
	limit, _ := common.Window(r, 50, 500)
	items, err := h.Store.Recent(r.Context(), r.URL.Query().Get("topic"), limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}
