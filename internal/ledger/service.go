// Package ledger keeps the append-only stock movement history.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/store"
)

var (
	// ErrInvalidMovement is returned for entries with an unknown type, no product or a zero quantity.
	ErrInvalidMovement = errors.New("invalid stock movement")
)

// Entry is the input of one movement. ProductName is snapshotted as given.
type Entry struct {
	ProductID   string
	ProductName string
	Type        model.MovementType
	Quantity    int
	Reason      string
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	ProductID string
	Type      model.MovementType
	From      time.Time
	To        time.Time
}

// Service appends and lists stock movements.
type Service struct {
	Movements *store.Collection[model.StockMovement]
	Now       func() time.Time

	mu sync.Mutex
}

// NewService binds the ledger to the movements collection of kv.
func NewService(kv store.KV) *Service {
	return &Service{Movements: store.NewCollection[model.StockMovement](kv, store.KeyMovements)}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Record appends a single movement attributed to actor.
func (s *Service) Record(ctx context.Context, entry Entry, actor *model.Actor) (model.StockMovement, error) {
	out, err := s.RecordBatch(ctx, []Entry{entry}, actor)
	if err != nil {
		return model.StockMovement{}, err
	}
	return out[0], nil
}

// RecordBatch appends movements in order with a single write. Nothing is written if any entry is invalid.
func (s *Service) RecordBatch(ctx context.Context, entries []Entry, actor *model.Actor) ([]model.StockMovement, error) {
	if s == nil || s.Movements == nil {
		return nil, errors.New("ledger service not configured")
	}
	if len(entries) == 0 {
		return nil, nil
	}
	now := s.now()
	created := make([]model.StockMovement, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.ProductID) == "" || !e.Type.Valid() || e.Quantity == 0 {
			return nil, fmt.Errorf("%w: product=%q type=%q qty=%d", ErrInvalidMovement, e.ProductID, e.Type, e.Quantity)
		}
		m := model.StockMovement{
			ID:          uuid.NewString(),
			ProductID:   e.ProductID,
			ProductName: e.ProductName,
			Type:        e.Type,
			Quantity:    e.Quantity,
			Date:        now,
			Reason:      strings.TrimSpace(e.Reason),
		}
		if actor != nil {
			m.UserID = actor.UserID
			m.UserName = actor.UserName
		}
		created = append(created, m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	history, err := s.Movements.Load(ctx)
	if err != nil {
		return nil, err
	}
	history = append(history, created...)
	if err := s.Movements.Save(ctx, history); err != nil {
		return nil, err
	}
	for _, m := range created {
		obs.CountMovement(string(m.Type))
	}
	return created, nil
}

// Discard removes the movements with the given ids. It only exists to take back a batch
// whose surrounding operation failed; committed history is never edited.
func (s *Service) Discard(ctx context.Context, ids ...string) error {
	if s == nil || s.Movements == nil {
		return errors.New("ledger service not configured")
	}
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	history, err := s.Movements.Load(ctx)
	if err != nil {
		return err
	}
	kept := history[:0]
	for _, m := range history {
		if _, ok := drop[m.ID]; !ok {
			kept = append(kept, m)
		}
	}
	return s.Movements.Save(ctx, kept)
}

// List returns movements in insertion order.
func (s *Service) List(ctx context.Context, f Filter) ([]model.StockMovement, error) {
	if s == nil || s.Movements == nil {
		return nil, errors.New("ledger service not configured")
	}
	history, err := s.Movements.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.StockMovement, 0, len(history))
	for _, m := range history {
		if f.ProductID != "" && m.ProductID != f.ProductID {
			continue
		}
		if f.Type != "" && m.Type != f.Type {
			continue
		}
		if !f.From.IsZero() && m.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !m.Date.Before(f.To) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// NetQuantity sums the signed quantities recorded for a product.
func (s *Service) NetQuantity(ctx context.Context, productID string) (int, error) {
	movements, err := s.List(ctx, Filter{ProductID: productID})
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range movements {
		total += m.Quantity
	}
	return total, nil
}
