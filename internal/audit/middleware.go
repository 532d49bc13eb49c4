package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/obs"
)

// HTTPRecorder appends an audit entry for every mutating request once the
// handler has answered, so the entry carries the final status.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
}

func (h HTTPRecorder) Mutations(next http.Handler) http.Handler {
	if h.Service == nil || !h.Service.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if readOnly(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		rec := obs.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)

		// chi fills the pattern and URL params while routing, after this middleware ran.
		ctx := r.Context()
		var resourceID string
		if rc := chi.RouteContext(ctx); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				ctx = obs.WithRoutePattern(ctx, pattern)
			}
			resourceID = rc.URLParam("id")
		}
		r = r.WithContext(ctx)
		err := h.Service.Record(ctx, common.ActorRef(ctx), "", "", resourceID, r, rec.Status(), nil)
		if err != nil && h.OnError != nil {
			h.OnError(err)
		}
	})
}

func readOnly(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
