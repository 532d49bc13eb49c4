package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/store"
)

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsAndNotifies(t *testing.T) {
	ctx := context.Background()
	log := events.NewKVStore(store.NewMemoryKV(), 0)
	notifier := &captureNotifier{}
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	bus := events.Bus{Store: log, Notifiers: []events.Notifier{notifier}, Now: func() time.Time { return fixed }}

	event, err := bus.Emit(ctx, events.TopicSaleConfirmed, "sale-1", map[string]any{"total": 200})
	require.NoError(t, err)
	require.Equal(t, fixed, event.OccurredAt)
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, notifier.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, float64(200), decoded["total"])

	recent, err := log.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "sale-1", recent[0].AggregateID)
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{}
	_, err := bus.Emit(context.Background(), " ", "x", nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicBackupCreated, "x", "not-json")
	require.Error(t, err)

	var nilBus *events.Bus
	require.NotPanics(t, func() { nilBus.Publish(context.Background(), events.TopicBackupCreated, "x", nil) })
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	boom := errors.New("boom")
	second := &captureNotifier{}
	bus := events.Bus{Notifiers: []events.Notifier{
		events.NotifierFunc(func(context.Context, events.Event) error { return boom }),
		second,
	}}
	_, err := bus.Emit(context.Background(), events.TopicStockAdjusted, "p1", nil)
	require.ErrorIs(t, err, boom)
	require.Len(t, second.events, 1)
}

func TestKVStoreCapsHistory(t *testing.T) {
	ctx := context.Background()
	log := events.NewKVStore(store.NewMemoryKV(), 2)
	bus := events.Bus{Store: log}
	for _, id := range []string{"a", "b", "c"} {
		_, err := bus.Emit(ctx, events.TopicBackupCreated, id, nil)
		require.NoError(t, err)
	}
	_, err := bus.Emit(ctx, events.TopicSaleConfirmed, "d", nil)
	require.NoError(t, err)

	recent, err := log.Recent(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "d", recent[0].AggregateID)
	require.Equal(t, "c", recent[1].AggregateID)

	backups, err := log.Recent(ctx, events.TopicBackupCreated, 0)
	require.NoError(t, err)
	require.Len(t, backups, 1)
}
