// Package events fans domain events out to an optional log and to notifiers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/store"
)

// Event is one emitted domain event.
type Event struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// EventStore persists emitted events.
type EventStore interface {
	Append(ctx context.Context, event Event) error
}

// Notifier reacts to emitted events (logging, cache invalidation, etc.).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event Event) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, event Event) error { return f(ctx, event) }

// Bus records domain events and dispatches them to all notifiers.
type Bus struct {
	Store     EventStore
	Notifiers []Notifier
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Emit records the event and dispatches it to all configured notifiers.
func (b *Bus) Emit(ctx context.Context, topic, aggregateID string, payload any) (Event, error) {
	if b == nil {
		return Event{}, errors.New("events: bus not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Event{}, errors.New("events: topic is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode payload: %w", err)
	}
	now := time.Now().UTC()
	if b.Now != nil {
		now = b.Now().UTC()
	}
	ev := Event{
		ID:          uuid.NewString(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     encoded,
		OccurredAt:  now,
	}
	var joined error
	if b.Store != nil {
		if storeErr := b.Store.Append(ctx, ev); storeErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: persist event: %w", storeErr))
		}
	}
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, ev); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", notifyErr))
		}
	}
	return ev, joined
}

// Publish emits the event and logs failures instead of returning them. Safe on a nil bus.
func (b *Bus) Publish(ctx context.Context, topic, aggregateID string, payload any) {
	if b == nil {
		return
	}
	if _, err := b.Emit(ctx, topic, aggregateID, payload); err != nil {
		b.Logger.Warn().Err(err).Str("topic", topic).Str("aggregate_id", aggregateID).Msg("event dispatch failed")
	}
}

// LogNotifier writes every event as a structured log line.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, event Event) error {
	n.Logger.Info().
		Str("event_id", event.ID).
		Str("topic", event.Topic).
		Str("aggregate_id", event.AggregateID).
		RawJSON("payload", event.Payload).
		Msg("domain_event")
	return nil
}

// KVStore keeps the most recent events in the state store.
type KVStore struct {
	Events *store.Collection[Event]
	// Max caps the retained history; zero keeps 500 events.
	Max int

	mu sync.Mutex
}

// NewKVStore binds the event log to kv.
func NewKVStore(kv store.KV, capacity int) *KVStore {
	return &KVStore{Events: store.NewCollection[Event](kv, "events"), Max: capacity}
}

// Append implements EventStore, dropping the oldest entries beyond Max.
func (s *KVStore) Append(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.Events.Load(ctx)
	if err != nil {
		return err
	}
	all = append(all, event)
	limit := s.Max
	if limit <= 0 {
		limit = 500
	}
	if len(all) > limit {
		all = append([]Event(nil), all[len(all)-limit:]...)
	}
	return s.Events.Save(ctx, all)
}

// Recent returns up to limit events, newest first, optionally filtered by topic.
func (s *KVStore) Recent(ctx context.Context, topic string, limit int) ([]Event, error) {
	all, err := s.Events.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if topic != "" && all[i].Topic != topic {
			continue
		}
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	switch v := payload.(type) {
	case []byte:
		return validJSON(v)
	case json.RawMessage:
		return validJSON(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return []byte("{}"), nil
		}
		return validJSON([]byte(v))
	default:
		return json.Marshal(v)
	}
}

func validJSON(v []byte) ([]byte, error) {
	if len(v) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(v) {
		return nil, errors.New("payload is not valid json")
	}
	return append([]byte(nil), v...), nil
}
