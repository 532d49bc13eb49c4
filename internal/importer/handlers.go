package importer

import (
	"io"
	"net/http"
	"strings"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/security"
)

// Handler exposes bulk import and clear-all.
type Handler struct {
	Svc *Service
}

// Import handles POST /api/v1/products/import. The body is JSON, CSV or XLSX,
// either raw or as the "file" field of a multipart form.
func (h Handler) Import(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "importer service not configured", nil)
		return
	}
	body, format, closeFn, err := payload(r)
	if err != nil {
		if security.TooLarge(err) {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "import file too large", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	defer closeFn()
	records, err := Parse(format, body)
	if err != nil {
		if security.TooLarge(err) {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "import file too large", nil)
			return
		}
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
		return
	}
	report, err := h.Svc.Import(r.Context(), records, common.ActorRef(r.Context()))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": report})
}

// Clear handles DELETE /api/v1/products.
func (h Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "importer service not configured", nil)
		return
	}
	report, err := h.Svc.ClearAll(r.Context(), common.ActorRef(r.Context()))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": report})
}

func payload(r *http.Request) (io.Reader, Format, func(), error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", nil, common.BadRequest("multipart field \"file\" required", err)
		}
		ct := header.Header.Get("Content-Type")
		return file, DetectFormat(ct, header.Filename), func() { _ = file.Close() }, nil
	}
	return r.Body, DetectFormat(contentType, r.URL.Query().Get("filename")), func() {}, nil
}
