package customer_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/customer"
	"github.com/noah-isme/backend-kasir/internal/store"
)

func TestChargeAndSettleBalance(t *testing.T) {
	ctx := context.Background()
	svc := customer.NewService(store.NewMemoryKV())

	c, err := svc.Create(ctx, customer.Input{Name: " Marta ", Phone: "1155550000"})
	require.NoError(t, err)
	require.Equal(t, "Marta", c.Name)

	c, err = svc.Charge(ctx, c.ID, 0.1)
	require.NoError(t, err)
	c, err = svc.Charge(ctx, c.ID, 0.2)
	require.NoError(t, err)
	require.Equal(t, 0.3, c.Balance)

	_, err = svc.Charge(ctx, c.ID, -5)
	require.ErrorIs(t, err, customer.ErrInvalidAmount)

	require.ErrorIs(t, svc.Delete(ctx, c.ID), customer.ErrOutstandingBalance)
	c, err = svc.Settle(ctx, c.ID, 0.3)
	require.NoError(t, err)
	require.Zero(t, c.Balance)
	require.NoError(t, svc.Delete(ctx, c.ID))

	_, err = svc.Get(ctx, c.ID)
	require.ErrorIs(t, err, customer.ErrNotFound)
}

func TestListFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	svc := customer.NewService(store.NewMemoryKV())
	for _, in := range []customer.Input{{Name: "zoe"}, {Name: "Ana", TaxID: "20-1234"}, {Name: "Bruno", Phone: "351"}} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"Ana", "Bruno", "zoe"}, []string{all[0].Name, all[1].Name, all[2].Name})

	hits, err := svc.List(ctx, "351")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "Bruno", hits[0].Name)
}

func TestCreateHandlerValidatesEmail(t *testing.T) {
	h := customer.Handler{Svc: customer.NewService(store.NewMemoryKV())}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/customers", strings.NewReader(`{"name":"X","email":"nope"}`))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"email":"email"`)
}
