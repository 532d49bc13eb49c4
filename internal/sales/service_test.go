package sales_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/sales"
	"github.com/noah-isme/backend-kasir/internal/store"
)

func TestAppendReturnsDetachedCopies(t *testing.T) {
	ctx := context.Background()
	svc := sales.NewService(store.NewMemoryKV())
	sale := model.Sale{
		ID:            "s1",
		Date:          time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
		Items:         []model.SaleItem{{ProductID: "1", Quantity: 2, Price: 100}},
		Total:         200,
		PaymentMethod: model.PaymentCash,
		FiscalType:    model.FiscalTicket,
	}
	require.NoError(t, svc.Append(ctx, sale))

	sale.Items[0].Quantity = 99
	got, err := svc.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 2, got.Items[0].Quantity)

	got.Items[0].Price = 1
	again, err := svc.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 100.0, again.Items[0].Price)
	require.Equal(t, 200.0, again.Total)

	require.ErrorIs(t, svc.Append(ctx, sale), sales.ErrDuplicate)
	_, err = svc.Get(ctx, "nope")
	require.ErrorIs(t, err, sales.ErrNotFound)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	svc := sales.NewService(store.NewMemoryKV())
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Append(ctx, model.Sale{ID: "a", Date: day.Add(time.Hour), PaymentMethod: model.PaymentCash, Items: []model.SaleItem{{ProductID: "p1", Quantity: 1}}}))
	require.NoError(t, svc.Append(ctx, model.Sale{ID: "b", Date: day.Add(25 * time.Hour), PaymentMethod: model.PaymentAccountCredit, CustomerID: "c1", Items: []model.SaleItem{{ProductID: "p2", Quantity: 1}}}))

	all, err := svc.List(ctx, sales.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "a", all[0].ID)

	firstDay, err := svc.List(ctx, sales.Filter{From: day, To: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, firstDay, 1)

	credit, err := svc.List(ctx, sales.Filter{PaymentMethod: model.PaymentAccountCredit, CustomerID: "c1"})
	require.NoError(t, err)
	require.Len(t, credit, 1)
	require.Equal(t, "b", credit[0].ID)

	withP1, err := svc.List(ctx, sales.Filter{ProductID: "p1"})
	require.NoError(t, err)
	require.Len(t, withP1, 1)
}
