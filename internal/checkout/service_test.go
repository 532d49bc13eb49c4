package checkout_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/checkout"
	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/customer"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/ledger"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/sales"
	"github.com/noah-isme/backend-kasir/internal/store"
)

type staticPromotions []model.Promotion

func (p staticPromotions) Active(context.Context) ([]model.Promotion, error) { return p, nil }

type fixture struct {
	svc       *checkout.Service
	catalog   *catalog.Service
	ledger    *ledger.Service
	sales     *sales.Service
	customers *customer.Service
	carts     *cart.Service
	events    []events.Event
	mu        sync.Mutex
}

func newFixture(t *testing.T, products ...model.Product) *fixture {
	t.Helper()
	return newFixtureOn(t, store.NewMemoryKV(), products...)
}

func newFixtureOn(t *testing.T, kv store.KV, products ...model.Product) *fixture {
	t.Helper()
	f := &fixture{
		ledger:    ledger.NewService(kv),
		sales:     sales.NewService(kv),
		customers: customer.NewService(kv),
	}
	f.catalog = catalog.NewService(kv, f.ledger)
	require.NoError(t, f.catalog.Import(context.Background(), products))
	bus := &events.Bus{Notifiers: []events.Notifier{events.NotifierFunc(func(_ context.Context, ev events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, ev)
		return nil
	})}}
	f.svc = &checkout.Service{
		Catalog:   f.catalog,
		Sales:     f.sales,
		Customers: f.customers,
		Events:    bus,
		Now:       func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) },
	}
	f.carts = &cart.Service{KV: kv, Catalog: f.catalog}
	return f
}

func TestConfirmSaleRecordsImmutableSale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.Product{ID: "1", Name: "Yerba", Price: 100, Cost: 60, Stock: 10, MinStock: 5})
	actor := &model.Actor{UserID: "u1", UserName: "Caja 1", Role: model.RoleCashier}

	sale, err := f.svc.ConfirmSale(ctx, checkout.Request{
		Items:         []model.SaleItem{{ProductID: "1", Quantity: 2, Price: 100}},
		PaymentMethod: model.PaymentCash,
	}, actor)
	require.NoError(t, err)
	require.Equal(t, 200.0, sale.Total)
	require.Equal(t, 80.0, sale.Profit)
	require.Equal(t, model.FiscalTicket, sale.FiscalType)
	require.Equal(t, "u1", sale.UserID)
	require.Len(t, sale.Items, 1)
	require.Equal(t, "Yerba", sale.Items[0].ProductName)
	require.Equal(t, 60.0, sale.Items[0].Cost)

	sale.Items[0].Quantity = 99
	sale.Total = 0
	stored, err := f.sales.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, 200.0, stored.Total)
	require.Equal(t, 2, stored.Items[0].Quantity)

	p, err := f.catalog.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, 8, p.Stock)

	movements, err := f.ledger.List(ctx, ledger.Filter{ProductID: "1"})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, model.MovementOut, movements[0].Type)
	require.Equal(t, -2, movements[0].Quantity)

	require.Len(t, f.events, 1)
	require.Equal(t, events.TopicSaleConfirmed, f.events[0].Topic)
}

func TestConfirmSaleAppliesPromotions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.Product{ID: "p", Name: "Gaseosa", Price: 300, Cost: 100, Stock: 10})
	f.svc.Promotions = staticPromotions{{ID: "mxn", Type: model.PromotionMxN, TargetProductID: "p", M: 3, N: 2, Active: true}}

	sale, err := f.svc.ConfirmSale(ctx, checkout.Request{
		Items:         []model.SaleItem{{ProductID: "p", Quantity: 3}},
		PaymentMethod: model.PaymentDebit,
	}, nil)
	require.NoError(t, err)
	require.InDelta(t, 600.0, sale.Total, 1e-9)
	require.InDelta(t, 300.0, sale.Profit, 1e-9)
	require.Equal(t, "3x2", sale.Items[0].AppliedPromotion)
}

func TestConfirmSaleValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.Product{ID: "1", Name: "A", Price: 10, Stock: 5})
	line := []model.SaleItem{{ProductID: "1", Quantity: 1}}

	_, err := f.svc.ConfirmSale(ctx, checkout.Request{Items: line, PaymentMethod: "BITCOIN"}, nil)
	require.ErrorIs(t, err, checkout.ErrInvalidPayment)

	_, err = f.svc.ConfirmSale(ctx, checkout.Request{Items: line, PaymentMethod: model.PaymentCash, FiscalType: "FACTURA_Z"}, nil)
	require.ErrorIs(t, err, checkout.ErrInvalidFiscalType)

	_, err = f.svc.ConfirmSale(ctx, checkout.Request{Items: nil, PaymentMethod: model.PaymentCash}, nil)
	require.ErrorIs(t, err, checkout.ErrEmptyCart)

	_, err = f.svc.ConfirmSale(ctx, checkout.Request{Items: line, PaymentMethod: model.PaymentAccountCredit}, nil)
	require.ErrorIs(t, err, checkout.ErrCustomerRequired)

	_, err = f.svc.ConfirmSale(ctx, checkout.Request{Items: line, PaymentMethod: model.PaymentAccountCredit, CustomerID: "ghost"}, nil)
	require.ErrorIs(t, err, customer.ErrNotFound)

	_, err = f.svc.ConfirmSale(ctx, checkout.Request{Items: []model.SaleItem{{ProductID: "nope", Quantity: 1}}, PaymentMethod: model.PaymentCash}, nil)
	require.ErrorIs(t, err, checkout.ErrUnknownProduct)

	all, err := f.sales.List(ctx, sales.Filter{})
	require.NoError(t, err)
	require.Empty(t, all)
	p, err := f.catalog.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, 5, p.Stock)
}

func TestConfirmSaleChargesAccountCredit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.Product{ID: "1", Name: "A", Price: 150, Stock: 5})
	c, err := f.customers.Create(ctx, customer.Input{Name: "Ana"})
	require.NoError(t, err)

	sale, err := f.svc.ConfirmSale(ctx, checkout.Request{
		Items:         []model.SaleItem{{ProductID: "1", Quantity: 2}},
		PaymentMethod: model.PaymentAccountCredit,
		CustomerID:    c.ID,
		FiscalType:    model.FiscalFacturaB,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, c.ID, sale.CustomerID)

	got, err := f.customers.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 300.0, got.Balance)
}

func TestConcurrentConfirmsKeepStockConsistent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.Product{ID: "1", Name: "A", Price: 10, Stock: 20})

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ConfirmSale(ctx, checkout.Request{
				Items:         []model.SaleItem{{ProductID: "1", Quantity: 1}},
				PaymentMethod: model.PaymentCash,
			}, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	p, err := f.catalog.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, 10, p.Stock)
	all, err := f.sales.List(ctx, sales.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 10)
	net, err := f.ledger.NetQuantity(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, -10, net)
}

func TestConfirmHandlerFromCartDiscardsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.Product{ID: "1", Name: "A", Price: 100, Stock: 5})
	c, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, c.ID, "1", 2)
	require.NoError(t, err)

	h := checkout.Handler{Svc: f.svc, Carts: f.carts}
	body := `{"cartId":"` + c.ID + `","paymentMethod":"EFECTIVO"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req = req.WithContext(common.WithActor(req.Context(), model.Actor{UserID: "u1", UserName: "Caja", Role: model.RoleCashier}))
	rec := httptest.NewRecorder()
	h.Confirm(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data model.Sale `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 200.0, resp.Data.Total)
	require.Equal(t, "u1", resp.Data.UserID)

	_, err = f.carts.Get(ctx, c.ID)
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestConfirmHandlerErrors(t *testing.T) {
	f := newFixture(t, model.Product{ID: "1", Name: "A", Price: 100, Stock: 5})
	h := checkout.Handler{Svc: f.svc}

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"empty", `{"items":[],"paymentMethod":"EFECTIVO"}`, http.StatusBadRequest, "EMPTY_CART"},
		{"payment", `{"items":[{"productId":"1","quantity":1}],"paymentMethod":"TRUEQUE"}`, http.StatusBadRequest, "INVALID_PAYMENT"},
		{"credit without customer", `{"items":[{"productId":"1","quantity":1}],"paymentMethod":"CUENTA_CORRIENTE"}`, http.StatusBadRequest, "CUSTOMER_REQUIRED"},
		{"unknown product", `{"items":[{"productId":"x","quantity":1}],"paymentMethod":"EFECTIVO"}`, http.StatusUnprocessableEntity, "UNKNOWN_PRODUCT"},
		{"cart without store", `{"cartId":"abc","paymentMethod":"EFECTIVO"}`, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.Confirm(rec, req)
			require.Equal(t, tc.status, rec.Code)
			var resp struct {
				Error common.ErrorBody `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestQuoteHandler(t *testing.T) {
	f := newFixture(t, model.Product{ID: "1", Name: "A", Price: 1000, Stock: 5})
	f.svc.Promotions = staticPromotions{{ID: "pct", Type: model.PromotionPercentage, TargetProductID: "1", Value: 10, Active: true}}
	h := checkout.Handler{Svc: f.svc}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/quote", strings.NewReader(`{"items":[{"productId":"1","quantity":2}]}`))
	rec := httptest.NewRecorder()
	h.Quote(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":1800`)
	require.Contains(t, rec.Body.String(), `"discount":200`)
}

// flakyKV fails every Set on the keys listed in failing, and every Delete when
// failDeletes is set.
type flakyKV struct {
	store.KV
	mu          sync.Mutex
	failing     map[string]bool
	failDeletes bool
}

func (k *flakyKV) Delete(ctx context.Context, key string) error {
	if k.failDeletes {
		return errors.New("read-only replica")
	}
	return k.KV.Delete(ctx, key)
}

func (k *flakyKV) failOn(keys ...string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.failing = make(map[string]bool, len(keys))
	for _, key := range keys {
		k.failing[key] = true
	}
}

func (k *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	k.mu.Lock()
	fail := k.failing[key]
	k.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return k.KV.Set(ctx, key, value)
}

func TestConfirmSaleIsAllOrNothing(t *testing.T) {
	for _, key := range []string{store.KeyProducts, store.KeyMovements, store.KeySales, store.KeyCustomers} {
		t.Run(key, func(t *testing.T) {
			ctx := context.Background()
			kv := &flakyKV{KV: store.NewMemoryKV()}
			f := newFixtureOn(t, kv, model.Product{ID: "1", Name: "Yerba", Price: 100, Cost: 60, Stock: 10})
			c, err := f.customers.Create(ctx, customer.Input{Name: "Ana"})
			require.NoError(t, err)

			kv.failOn(key)
			_, err = f.svc.ConfirmSale(ctx, checkout.Request{
				Items:         []model.SaleItem{{ProductID: "1", Quantity: 3}},
				PaymentMethod: model.PaymentAccountCredit,
				CustomerID:    c.ID,
			}, nil)
			require.ErrorContains(t, err, "disk full")
			kv.failOn()

			p, err := f.catalog.Get(ctx, "1")
			require.NoError(t, err)
			require.Equal(t, 10, p.Stock)
			movements, err := f.ledger.List(ctx, ledger.Filter{})
			require.NoError(t, err)
			require.Empty(t, movements)
			stored, err := f.sales.List(ctx, sales.Filter{})
			require.NoError(t, err)
			require.Empty(t, stored)
			got, err := f.customers.Get(ctx, c.ID)
			require.NoError(t, err)
			require.Zero(t, got.Balance)

			sale, err := f.svc.ConfirmSale(ctx, checkout.Request{
				Items:         []model.SaleItem{{ProductID: "1", Quantity: 3}},
				PaymentMethod: model.PaymentAccountCredit,
				CustomerID:    c.ID,
			}, nil)
			require.NoError(t, err)
			require.Equal(t, 300.0, sale.Total)
			p, err = f.catalog.Get(ctx, "1")
			require.NoError(t, err)
			require.Equal(t, 7, p.Stock)
		})
	}
}

func TestConfirmSaleKeepsCostFromCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.Product{ID: "1", Name: "Yerba", Price: 100, Cost: 40, Stock: 10})
	c, err := f.carts.Create(ctx)
	require.NoError(t, err)
	c, err = f.carts.AddItem(ctx, c.ID, "1", 2)
	require.NoError(t, err)

	_, err = f.catalog.Update(ctx, "1", catalog.Input{Name: "Yerba", Price: 100, Cost: 60, Stock: 10}, nil)
	require.NoError(t, err)

	sale, err := f.svc.ConfirmSale(ctx, checkout.Request{Items: c.Items, PaymentMethod: model.PaymentCash}, nil)
	require.NoError(t, err)
	require.Equal(t, 40.0, sale.Items[0].Cost)
	require.Equal(t, 120.0, sale.Profit)

	inline, err := f.svc.ConfirmSale(ctx, checkout.Request{
		Items:         []model.SaleItem{{ProductID: "1", Quantity: 1}},
		PaymentMethod: model.PaymentCash,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 60.0, inline.Items[0].Cost)
	require.Equal(t, 40.0, inline.Profit)
}

func TestConfirmHandlerLogsCartLeftBehind(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{KV: store.NewMemoryKV()}
	f := newFixtureOn(t, kv, model.Product{ID: "1", Name: "A", Price: 100, Stock: 5})
	c, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, c.ID, "1", 1)
	require.NoError(t, err)
	kv.failDeletes = true

	var logs bytes.Buffer
	h := checkout.Handler{Svc: f.svc, Carts: f.carts, Logger: zerolog.New(&logs)}
	body := `{"cartId":"` + c.ID + `","paymentMethod":"EFECTIVO"}`
	rec := httptest.NewRecorder()
	h.Confirm(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "discard cart after sale", entry["message"])
	require.Equal(t, c.ID, entry["cart_id"])
	require.Contains(t, entry["error"], "read-only replica")
}
