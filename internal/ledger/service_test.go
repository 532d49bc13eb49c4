package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/ledger"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/store"
)

func TestRecordSnapshotsNameAndActor(t *testing.T) {
	ctx := context.Background()
	svc := ledger.NewService(store.NewMemoryKV())
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return fixed }

	actor := &model.Actor{UserID: "u1", UserName: "Ana"}
	m, err := svc.Record(ctx, ledger.Entry{ProductID: "p1", ProductName: "Yerba 1kg", Type: model.MovementIn, Quantity: 10, Reason: " initial "}, actor)
	require.NoError(t, err)
	require.NotEmpty(t, m.ID)
	require.Equal(t, "Yerba 1kg", m.ProductName)
	require.Equal(t, "u1", m.UserID)
	require.Equal(t, "Ana", m.UserName)
	require.Equal(t, "initial", m.Reason)
	require.Equal(t, fixed, m.Date)
}

func TestRecordBatchIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	svc := ledger.NewService(store.NewMemoryKV())
	svc.Now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	first, err := svc.Record(ctx, ledger.Entry{ProductID: "p1", ProductName: "A", Type: model.MovementIn, Quantity: 5}, nil)
	require.NoError(t, err)

	_, err = svc.RecordBatch(ctx, []ledger.Entry{
		{ProductID: "p1", ProductName: "A renamed", Type: model.MovementOut, Quantity: -2},
		{ProductID: "p2", ProductName: "B", Type: model.MovementAdjustment, Quantity: 3},
	}, nil)
	require.NoError(t, err)

	all, err := svc.List(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, first, all[0])
	require.Equal(t, model.MovementOut, all[1].Type)
	require.Equal(t, "A renamed", all[1].ProductName)

	net, err := svc.NetQuantity(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 3, net)

	onlyP2, err := svc.List(ctx, ledger.Filter{ProductID: "p2"})
	require.NoError(t, err)
	require.Len(t, onlyP2, 1)
}

func TestRecordBatchRejectsInvalidWithoutWriting(t *testing.T) {
	ctx := context.Background()
	svc := ledger.NewService(store.NewMemoryKV())

	_, err := svc.RecordBatch(ctx, []ledger.Entry{
		{ProductID: "p1", Type: model.MovementIn, Quantity: 1},
		{ProductID: "p1", Type: "LOST", Quantity: 1},
	}, nil)
	require.ErrorIs(t, err, ledger.ErrInvalidMovement)

	_, err = svc.Record(ctx, ledger.Entry{ProductID: "p1", Type: model.MovementIn}, nil)
	require.ErrorIs(t, err, ledger.ErrInvalidMovement)

	all, err := svc.List(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Empty(t, all)
}
