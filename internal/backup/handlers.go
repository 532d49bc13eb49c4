package backup

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-kasir/internal/common"
)

// Handler exposes snapshot management to administrators.
type Handler struct {
	Svc *Service
}

type createRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}

// List handles GET /api/v1/backups.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	items, err := h.Svc.List(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// Create handles POST /api/v1/backups. The body is optional.
func (h Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req createRequest
	if r.ContentLength > 0 {
		if err := common.DecodeJSON(r, &req); err != nil {
			common.WriteError(w, err)
			return
		}
		if err := common.ValidateStruct(req); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	b, err := h.Svc.Create(r.Context(), false, strings.TrimSpace(req.Reason))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": b})
}

// Get handles GET /api/v1/backups/{id}.
func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	b, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": b})
}

// Download handles GET /api/v1/backups/{id}/download and returns the raw product snapshot.
func (h Handler) Download(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	b, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="products-`+b.Date.Format("20060102-150405")+`.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b.Products)
}

// Restore handles POST /api/v1/backups/{id}/restore.
func (h Handler) Restore(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	ok, err := h.Svc.Restore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
	}
	common.JSON(w, status, map[string]any{"data": map[string]bool{"restored": ok}})
}

// Delete handles DELETE /api/v1/backups/{id}.
func (h Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.Svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handler) ready(w http.ResponseWriter) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "backup service not configured", nil)
		return false
	}
	return true
}

func (h Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "backup not found", nil)
		return
	}
	common.WriteError(w, err)
}
