package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/store"
)

type stubStore struct {
	last   Entry
	called bool
}

func (s *stubStore) Append(_ context.Context, entry Entry) error {
	s.called = true
	s.last = entry
	return nil
}

func (s *stubStore) List(context.Context, int, int) ([]Entry, int, error) {
	return nil, 0, nil
}

func TestServiceRecord(t *testing.T) {
	st := &stubStore{}
	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	svc := Service{Store: st, Enabled: true, SamplingRate: 1, Now: func() time.Time { return at }}

	req := httptest.NewRequest(http.MethodPost, "https://api.test/api/v1/admin/backups?reason=manual", nil)
	req.Header.Set("User-Agent", "tester")
	req.Header.Set("X-Request-ID", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/admin/backups"))

	actor := &model.Actor{UserID: "u-1", UserName: "Ana", Role: model.RoleAdmin}
	require.NoError(t, svc.Record(req.Context(), actor, "", "", "", req, http.StatusCreated, nil))
	require.True(t, st.called)

	got := st.last
	require.Equal(t, ActorKindUser, got.ActorKind)
	require.Equal(t, "u-1", got.UserID)
	require.Equal(t, "Ana", got.UserName)
	require.Equal(t, "POST /api/v1/admin/backups", got.Action)
	require.Equal(t, "admin.backups", got.ResourceType)
	require.Equal(t, "10.0.0.2", got.IP)
	require.Equal(t, "req-123", got.RequestID)
	require.Equal(t, http.StatusCreated, got.Status)
	require.Equal(t, at, got.At)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(got.Metadata, &meta))
	require.Equal(t, "reason=manual", meta["query"])
}

func TestServiceRecordDisabled(t *testing.T) {
	st := &stubStore{}
	svc := Service{Store: st, Enabled: false}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, svc.Record(req.Context(), nil, "", "", "", req, http.StatusOK, nil))
	require.False(t, st.called)
}

func TestMutationsMiddlewareSkipsReads(t *testing.T) {
	kv := store.NewMemoryKV()
	trail := NewKVStore(kv, 2)
	rec := HTTPRecorder{Service: &Service{Store: trail, Enabled: true}}

	r := chi.NewRouter()
	r.Use(rec.Mutations)
	r.Get("/api/v1/products", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Delete("/api/v1/products/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/"+id, nil)
		req = req.WithContext(common.WithActor(req.Context(), model.Actor{UserID: "admin-1"}))
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))

	entries, total, err := trail.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, entries, 2)
	require.Equal(t, "/api/v1/products/c", entries[0].Path)
	require.Equal(t, http.StatusNoContent, entries[0].Status)
	require.Equal(t, "admin-1", entries[0].UserID)
	require.Equal(t, "c", entries[0].ResourceID)
	require.Equal(t, "/api/v1/products/{id}", entries[0].Route)
	require.Equal(t, "DELETE /api/v1/products/{id}", entries[0].Action)

	page, _, err := trail.List(context.Background(), 10, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "/api/v1/products/b", page[0].Path)
}
