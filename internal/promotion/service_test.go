package promotion_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/pricing"
	"github.com/noah-isme/backend-kasir/internal/promotion"
	"github.com/noah-isme/backend-kasir/internal/store"
)

type products map[string]model.Product

func (p products) Get(_ context.Context, id string) (model.Product, error) {
	if prod, ok := p[id]; ok {
		return prod, nil
	}
	return model.Product{}, promotion.ErrNotFound
}

func newService() *promotion.Service {
	return promotion.NewService(store.NewMemoryKV(), products{"a": {ID: "a", Name: "Agua", Price: 1000}})
}

func TestCreateValidatesRules(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	cases := []struct {
		name  string
		in    promotion.Input
		field string
	}{
		{"mxn needs m", promotion.Input{Name: "3x2", Type: "M_X_N", TargetProductID: "a", M: 0, N: 2}, "m"},
		{"bulk needs min quantity", promotion.Input{Name: "bulk", Type: "BULK", TargetProductID: "a", Value: 800}, "minQuantity"},
		{"percentage capped", promotion.Input{Name: "pct", Type: "PERCENTAGE", TargetProductID: "a", Value: 120}, "value"},
		{"unknown type", promotion.Input{Name: "x", Type: "FREE", TargetProductID: "a"}, "type"},
		{"negative n", promotion.Input{Name: "x", Type: "M_X_N", TargetProductID: "a", M: 3, N: -1}, "n"},
		{"name required", promotion.Input{Type: "PERCENTAGE", TargetProductID: "a", Value: 10}, "name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.in)
			var appErr *common.AppError
			require.ErrorAs(t, err, &appErr)
			require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
			require.Contains(t, appErr.Details.(map[string]any)["fields"], tc.field)
		})
	}

	_, err := svc.Create(ctx, promotion.Input{Name: "x", Type: "PERCENTAGE", TargetProductID: "missing", Value: 10})
	require.ErrorIs(t, err, promotion.ErrUnknownProduct)
}

func TestListOrderIsPrecedence(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	first, err := svc.Create(ctx, promotion.Input{Name: "Ten off", Type: "percentage", TargetProductID: "a", Value: 10})
	require.NoError(t, err)
	require.True(t, first.Active)
	second, err := svc.Create(ctx, promotion.Input{Name: "Bulk", Type: "BULK", TargetProductID: "a", Value: 700, MinQuantity: 2})
	require.NoError(t, err)

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	totals := pricing.ComputeCartTotals([]model.SaleItem{{ProductID: "a", Quantity: 2}}, active, []model.Product{{ID: "a", Price: 1000}})
	require.Equal(t, 1400.0, totals.Total)

	_, err = svc.SetActive(ctx, second.ID, false)
	require.NoError(t, err)
	active, err = svc.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, first.ID, active[0].ID)

	updated, err := svc.Update(ctx, first.ID, promotion.Input{Name: "Twenty off", Type: "PERCENTAGE", TargetProductID: "a", Value: 20})
	require.NoError(t, err)
	require.True(t, updated.Active)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{first.ID, second.ID}, []string{all[0].ID, all[1].ID})
	require.Equal(t, 20.0, all[0].Value)

	require.NoError(t, svc.Delete(ctx, first.ID))
	require.ErrorIs(t, svc.Delete(ctx, first.ID), promotion.ErrNotFound)
}

func TestHandlerCreateAndToggle(t *testing.T) {
	svc := newService()
	h := promotion.Handler{Svc: svc}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promotions", strings.NewReader(`{"name":"3x2","type":"M_X_N","targetProductId":"a","m":3,"n":2}`))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	all, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", all[0].ID)
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/promotions/"+all[0].ID+"/active", strings.NewReader(`{"active":false}`))
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec = httptest.NewRecorder()
	h.SetActive(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"active":false`)

	rctx = chi.NewRouteContext()
	rctx.URLParams.Add("id", "nope")
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/promotions/nope", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec = httptest.NewRecorder()
	h.Delete(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
