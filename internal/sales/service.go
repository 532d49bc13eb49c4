// Package sales keeps the immutable sale history.
package sales

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/store"
)

var (
	// ErrNotFound is returned when no sale has the requested id.
	ErrNotFound = errors.New("sale not found")
	// ErrDuplicate is returned when appending a sale id that already exists.
	ErrDuplicate = errors.New("sale already recorded")
)

// Filter narrows List results. Zero values match everything; To is exclusive.
type Filter struct {
	From          time.Time
	To            time.Time
	PaymentMethod model.PaymentMethod
	CustomerID    string
	ProductID     string
}

// Matches reports whether sale passes the filter.
func (f Filter) Matches(sale model.Sale) bool {
	if !f.From.IsZero() && sale.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !sale.Date.Before(f.To) {
		return false
	}
	if f.PaymentMethod != "" && sale.PaymentMethod != f.PaymentMethod {
		return false
	}
	if f.CustomerID != "" && sale.CustomerID != f.CustomerID {
		return false
	}
	if f.ProductID != "" {
		for _, item := range sale.Items {
			if item.ProductID == f.ProductID {
				return true
			}
		}
		return false
	}
	return true
}

// Service appends and reads sales. Stored sales are never edited; Discard only takes
// back an Append whose checkout failed afterwards.
type Service struct {
	Sales *store.Collection[model.Sale]

	mu sync.Mutex
}

// NewService binds the history to kv.
func NewService(kv store.KV) *Service {
	return &Service{Sales: store.NewCollection[model.Sale](kv, store.KeySales)}
}

func (s *Service) ready() error {
	if s == nil || s.Sales == nil {
		return errors.New("sales service not configured")
	}
	return nil
}

// Append stores a copy of sale at the end of the history.
func (s *Service) Append(ctx context.Context, sale model.Sale) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.Sales.Load(ctx)
	if err != nil {
		return err
	}
	for _, existing := range all {
		if existing.ID == sale.ID {
			return fmt.Errorf("%w: %s", ErrDuplicate, sale.ID)
		}
	}
	return s.Sales.Save(ctx, append(all, sale.Clone()))
}

// Discard removes the sale with id if present.
func (s *Service) Discard(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.Sales.Load(ctx)
	if err != nil {
		return err
	}
	for i := range all {
		if all[i].ID == id {
			return s.Sales.Save(ctx, append(all[:i], all[i+1:]...))
		}
	}
	return nil
}

// List returns matching sales in confirmation order.
func (s *Service) List(ctx context.Context, f Filter) ([]model.Sale, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	all, err := s.Sales.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Sale, 0, len(all))
	for _, sale := range all {
		if f.Matches(sale) {
			out = append(out, sale.Clone())
		}
	}
	return out, nil
}

// Get returns a copy of one sale.
func (s *Service) Get(ctx context.Context, id string) (model.Sale, error) {
	if err := s.ready(); err != nil {
		return model.Sale{}, err
	}
	all, err := s.Sales.Load(ctx)
	if err != nil {
		return model.Sale{}, err
	}
	for _, sale := range all {
		if sale.ID == id {
			return sale.Clone(), nil
		}
	}
	return model.Sale{}, ErrNotFound
}
