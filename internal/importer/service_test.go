package importer_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/backup"
	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/importer"
	"github.com/noah-isme/backend-kasir/internal/ledger"
	"github.com/noah-isme/backend-kasir/internal/store"
)

type fixture struct {
	catalog *catalog.Service
	ledger  *ledger.Service
	backup  *backup.Service
	svc     *importer.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := store.NewMemoryKV()
	l := ledger.NewService(kv)
	c := catalog.NewService(kv, l)
	b := backup.NewService(kv, c)
	return &fixture{catalog: c, ledger: l, backup: b, svc: &importer.Service{Catalog: c, Backups: b}}
}

func TestImportTakesBackupAndSkipsLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	existing, err := f.catalog.Create(ctx, catalog.Input{Name: "Leche", Price: 900}, nil)
	require.NoError(t, err)

	report, err := f.svc.Import(ctx, []importer.Record{
		{"id": existing.ID, "name": "Leche descremada", "stock": 10.0},
		{"name": ""},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, report.Accepted)
	require.Equal(t, 1, report.Dropped)
	require.Equal(t, 1, report.Reassigned)
	require.NotEmpty(t, report.BackupID)

	snap, err := f.backup.Get(ctx, report.BackupID)
	require.NoError(t, err)
	require.True(t, snap.AutoGenerated)
	require.Equal(t, 1, snap.ProductCount)

	all, err := f.catalog.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	movements, err := f.ledger.List(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Empty(t, movements)
}

func TestClearAllIsRecoverable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, name := range []string{"A", "B", "C"} {
		_, err := f.catalog.Create(ctx, catalog.Input{Name: name, Price: 1}, nil)
		require.NoError(t, err)
	}

	report, err := f.svc.ClearAll(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 3, report.Removed)

	all, err := f.catalog.All(ctx)
	require.NoError(t, err)
	require.Empty(t, all)

	ok, err := f.backup.Restore(ctx, report.BackupID)
	require.NoError(t, err)
	require.True(t, ok)
	all, err = f.catalog.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestImportHandlerCSV(t *testing.T) {
	f := newFixture(t)
	h := importer.Handler{Svc: f.svc}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/import", strings.NewReader("name,price\nPan,500\n,1\n"))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	h.Import(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"accepted":1`)
	require.Contains(t, rec.Body.String(), `"dropped":1`)
}

func TestImportHandlerRejectsMalformedJSON(t *testing.T) {
	f := newFixture(t)
	h := importer.Handler{Svc: f.svc}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/import", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Import(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_INPUT")
}

func TestConcurrentImportsKeepIDsUnique(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const batches = 8
	var wg sync.WaitGroup
	errs := make(chan error, batches)
	for i := 0; i < batches; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Import(ctx, []importer.Record{{"codigo": "A1", "nombre": "Arroz"}}, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := f.catalog.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, batches)
	ids := make(map[string]int, len(all))
	for _, p := range all {
		ids[p.ID]++
	}
	require.Len(t, ids, batches)
	require.Equal(t, 1, ids["A1"])
}
