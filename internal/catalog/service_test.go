package catalog_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/ledger"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/store"
)

func newCatalog(t *testing.T) (*catalog.Service, *ledger.Service) {
	t.Helper()
	kv := store.NewMemoryKV()
	l := ledger.NewService(kv)
	svc := catalog.NewService(kv, l)
	fixed := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return fixed }
	l.Now = svc.Now
	return svc, l
}

func TestCreateLogsInitialStock(t *testing.T) {
	ctx := context.Background()
	svc, l := newCatalog(t)
	actor := &model.Actor{UserID: "u1", UserName: "Ana"}

	p, err := svc.Create(ctx, catalog.Input{Name: " Yerba ", Price: 1500, Cost: 900, Stock: 12, MinStock: 3}, actor)
	require.NoError(t, err)
	require.Equal(t, "Yerba", p.Name)
	require.Equal(t, model.CategoryGeneral, p.Category)

	movements, err := l.List(ctx, ledger.Filter{ProductID: p.ID})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, model.MovementIn, movements[0].Type)
	require.Equal(t, 12, movements[0].Quantity)
	require.Equal(t, "Ana", movements[0].UserName)

	empty, err := svc.Create(ctx, catalog.Input{Name: "Sin stock", Category: "food"}, nil)
	require.NoError(t, err)
	require.Equal(t, model.CategoryFood, empty.Category)
	movements, err = l.List(ctx, ledger.Filter{ProductID: empty.ID})
	require.NoError(t, err)
	require.Empty(t, movements)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalog(t)

	_, err := svc.Create(ctx, catalog.Input{Name: "  "}, nil)
	require.ErrorIs(t, err, catalog.ErrInvalidInput)

	_, err = svc.Create(ctx, catalog.Input{Name: "X", Price: -1}, nil)
	require.ErrorIs(t, err, catalog.ErrInvalidInput)

	_, err = svc.Create(ctx, catalog.Input{Name: "X", Category: "TOYS"}, nil)
	require.ErrorIs(t, err, catalog.ErrInvalidInput)
}

func TestUpdateLogsSignedAdjustment(t *testing.T) {
	ctx := context.Background()
	svc, l := newCatalog(t)
	p, err := svc.Create(ctx, catalog.Input{Name: "Leche", Price: 500, Stock: 10}, nil)
	require.NoError(t, err)

	_, err = svc.Update(ctx, p.ID, catalog.Input{Name: "Leche entera", Price: 550, Stock: 7}, nil)
	require.NoError(t, err)
	_, err = svc.Update(ctx, p.ID, catalog.Input{Name: "Leche entera", Price: 560, Stock: 7}, nil)
	require.NoError(t, err)
	_, err = svc.Update(ctx, p.ID, catalog.Input{Name: "Leche entera", Price: 560, Stock: 15}, nil)
	require.NoError(t, err)

	movements, err := l.List(ctx, ledger.Filter{ProductID: p.ID})
	require.NoError(t, err)
	require.Len(t, movements, 3)
	require.Equal(t, "Leche", movements[0].ProductName)
	require.Equal(t, -3, movements[1].Quantity)
	require.Equal(t, model.MovementAdjustment, movements[1].Type)
	require.Equal(t, "Leche entera", movements[1].ProductName)
	require.Equal(t, 8, movements[2].Quantity)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 15, got.Stock)

	net, err := l.NetQuantity(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, got.Stock, net)
}

func TestAdjustStockNormalisesSign(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalog(t)
	p, err := svc.Create(ctx, catalog.Input{Name: "Arroz", Stock: 5}, nil)
	require.NoError(t, err)

	updated, m, err := svc.AdjustStock(ctx, p.ID, model.MovementOut, 2, "rotura", nil)
	require.NoError(t, err)
	require.Equal(t, 3, updated.Stock)
	require.Equal(t, -2, m.Quantity)
	require.Equal(t, "rotura", m.Reason)

	updated, m, err = svc.AdjustStock(ctx, p.ID, model.MovementIn, -4, "compra", nil)
	require.NoError(t, err)
	require.Equal(t, 7, updated.Stock)
	require.Equal(t, 4, m.Quantity)

	_, _, err = svc.AdjustStock(ctx, p.ID, model.MovementAdjustment, 0, "", nil)
	require.ErrorIs(t, err, catalog.ErrInvalidInput)
	_, _, err = svc.AdjustStock(ctx, "missing", model.MovementIn, 1, "", nil)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestApplySaleRecordsOutPerLine(t *testing.T) {
	ctx := context.Background()
	svc, l := newCatalog(t)
	a, err := svc.Create(ctx, catalog.Input{Name: "A", Stock: 10}, nil)
	require.NoError(t, err)
	b, err := svc.Create(ctx, catalog.Input{Name: "B", Stock: 1}, nil)
	require.NoError(t, err)

	movements, err := svc.ApplySale(ctx, "sale-1", []model.SaleItem{
		{ProductID: a.ID, ProductName: "A", Quantity: 3},
		{ProductID: b.ID, ProductName: "B", Quantity: 2},
	}, nil)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	require.Equal(t, -3, movements[0].Quantity)
	require.Equal(t, "sale sale-1", movements[0].Reason)

	gotA, _ := svc.Get(ctx, a.ID)
	gotB, _ := svc.Get(ctx, b.ID)
	require.Equal(t, 7, gotA.Stock)
	require.Equal(t, -1, gotB.Stock)

	all, err := l.List(ctx, ledger.Filter{Type: model.MovementOut})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestImportReplaceDeleteAreNotLogged(t *testing.T) {
	ctx := context.Background()
	svc, l := newCatalog(t)
	require.NoError(t, svc.Import(ctx, []model.Product{{ID: "i1", Name: "Imp", Stock: 40}}))
	p, err := svc.Get(ctx, "i1")
	require.NoError(t, err)
	require.Equal(t, 40, p.Stock)

	require.NoError(t, svc.ReplaceAll(ctx, []model.Product{{ID: "r1", Name: "Restored", Stock: 2}}))
	_, err = svc.Get(ctx, "i1")
	require.ErrorIs(t, err, catalog.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, "r1"))
	require.ErrorIs(t, svc.Delete(ctx, "r1"), catalog.ErrNotFound)

	movements, err := l.List(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Empty(t, movements)
}

func TestListFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalog(t)
	_, err := svc.Create(ctx, catalog.Input{Name: "zanahoria", Category: "FOOD", Stock: 1, MinStock: 5}, nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, catalog.Input{Name: "Agua", Category: "BEVERAGE", Stock: 50, MinStock: 5}, nil)
	require.NoError(t, err)

	all, err := svc.List(ctx, catalog.ListParams{})
	require.NoError(t, err)
	require.Equal(t, "Agua", all[0].Name)

	low, err := svc.List(ctx, catalog.ListParams{LowStock: true})
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, "zanahoria", low[0].Name)

	drinks, err := svc.List(ctx, catalog.ListParams{Category: model.CategoryBeverage, Query: "AG"})
	require.NoError(t, err)
	require.Len(t, drinks, 1)

	removed, err := svc.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, removed)
}

// movementsDownKV rejects writes to the movement history while down is set.
type movementsDownKV struct {
	store.KV
	mu   sync.Mutex
	down bool
}

func (k *movementsDownKV) setDown(v bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.down = v
}

func (k *movementsDownKV) Set(ctx context.Context, key string, value []byte) error {
	k.mu.Lock()
	down := k.down
	k.mu.Unlock()
	if down && key == store.KeyMovements {
		return errors.New("disk full")
	}
	return k.KV.Set(ctx, key, value)
}

func TestStockChangeRollsBackWhenLedgerWriteFails(t *testing.T) {
	ctx := context.Background()
	kv := &movementsDownKV{KV: store.NewMemoryKV()}
	l := ledger.NewService(kv)
	svc := catalog.NewService(kv, l)
	p, err := svc.Create(ctx, catalog.Input{Name: "Arroz", Price: 900, Stock: 5}, nil)
	require.NoError(t, err)

	kv.setDown(true)
	_, _, err = svc.AdjustStock(ctx, p.ID, model.MovementIn, 10, "delivery", nil)
	require.ErrorContains(t, err, "disk full")
	_, err = svc.Update(ctx, p.ID, catalog.Input{Name: "Arroz", Price: 900, Stock: 1}, nil)
	require.Error(t, err)
	_, err = svc.Create(ctx, catalog.Input{Name: "Fideos", Stock: 3}, nil)
	require.Error(t, err)
	_, err = svc.ApplySale(ctx, "s1", []model.SaleItem{{ProductID: p.ID, Quantity: 2}}, nil)
	require.Error(t, err)
	kv.setDown(false)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, 5, all[0].Stock)
	net, err := l.NetQuantity(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, all[0].Stock, net)
}

func TestRevertSaleRestoresStockAndHistory(t *testing.T) {
	ctx := context.Background()
	svc, l := newCatalog(t)
	p, err := svc.Create(ctx, catalog.Input{Name: "Arroz", Stock: 5}, nil)
	require.NoError(t, err)
	before, err := svc.All(ctx)
	require.NoError(t, err)

	movements, err := svc.ApplySale(ctx, "s1", []model.SaleItem{{ProductID: p.ID, Quantity: 2}}, nil)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.NoError(t, svc.RevertSale(ctx, before, movements))

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 5, got.Stock)
	history, err := l.List(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, model.MovementIn, history[0].Type)
}
