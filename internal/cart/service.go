package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/pricing"
	"github.com/noah-isme/backend-kasir/internal/store"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// Catalog is the read side of the product store used by carts.
type Catalog interface {
	Get(ctx context.Context, id string) (model.Product, error)
	All(ctx context.Context) ([]model.Product, error)
}

// Promotions supplies the active promotions in precedence order.
type Promotions interface {
	Active(ctx context.Context) ([]model.Promotion, error)
}

// View is a cart with its lines repriced.
type View struct {
	Cart
	Totals pricing.Totals `json:"totals"`
}

// Service keeps carts in the state store, one key per cart.
type Service struct {
	KV         store.KV
	Catalog    Catalog
	Promotions Promotions
	Now        func() time.Time

	mu sync.Mutex
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.KV == nil || s.Catalog == nil {
		return errors.New("cart service not configured")
	}
	return nil
}

// Create opens an empty cart.
func (s *Service) Create(ctx context.Context) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	now := s.now()
	c := Cart{ID: uuid.NewString(), Items: []model.SaleItem{}, CreatedAt: now, UpdatedAt: now}
	if err := store.SetJSON(ctx, s.KV, store.CartPrefix+c.ID, c); err != nil {
		return Cart{}, err
	}
	return c, nil
}

// Get loads a cart.
func (s *Service) Get(ctx context.Context, id string) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	var c Cart
	ok, err := store.GetJSON(ctx, s.KV, store.CartPrefix+id, &c)
	if err != nil {
		return Cart{}, fmt.Errorf("load cart: %w", err)
	}
	if !ok {
		return Cart{}, ErrNotFound
	}
	if c.Items == nil {
		c.Items = []model.SaleItem{}
	}
	return c, nil
}

// View loads a cart and prices it against the current catalog and promotions.
func (s *Service) View(ctx context.Context, id string) (View, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	totals, err := s.Quote(ctx, c.Items)
	if err != nil {
		return View{}, err
	}
	return View{Cart: c, Totals: totals}, nil
}

// Quote prices arbitrary lines without touching any cart.
func (s *Service) Quote(ctx context.Context, items []model.SaleItem) (pricing.Totals, error) {
	if err := s.ready(); err != nil {
		return pricing.Totals{}, err
	}
	products, err := s.Catalog.All(ctx)
	if err != nil {
		return pricing.Totals{}, err
	}
	var promos []model.Promotion
	if s.Promotions != nil {
		if promos, err = s.Promotions.Active(ctx); err != nil {
			return pricing.Totals{}, err
		}
	}
	return pricing.ComputeCartTotals(items, promos, products), nil
}

// AddItem adds qty units of a product, checked against its live stock.
func (s *Service) AddItem(ctx context.Context, id, productID string, qty int) (Cart, error) {
	return s.update(ctx, id, func(c *Cart) error {
		p, err := s.Catalog.Get(ctx, productID)
		if err != nil {
			return err
		}
		return c.Add(p, qty)
	})
}

// Increment adds one unit to an existing line.
func (s *Service) Increment(ctx context.Context, id, productID string) (Cart, error) {
	return s.update(ctx, id, func(c *Cart) error {
		p, err := s.Catalog.Get(ctx, productID)
		if err != nil {
			return err
		}
		return c.Increment(productID, p)
	})
}

// Decrement removes one unit from a line.
func (s *Service) Decrement(ctx context.Context, id, productID string) (Cart, error) {
	return s.update(ctx, id, func(c *Cart) error {
		return c.Decrement(productID)
	})
}

// SetQuantity sets a line's quantity; zero removes it.
func (s *Service) SetQuantity(ctx context.Context, id, productID string, qty int) (Cart, error) {
	return s.update(ctx, id, func(c *Cart) error {
		if qty <= 0 {
			return c.SetQuantity(productID, qty, model.Product{})
		}
		p, err := s.Catalog.Get(ctx, productID)
		if err != nil {
			return err
		}
		return c.SetQuantity(productID, qty, p)
	})
}

// RemoveItem drops a line.
func (s *Service) RemoveItem(ctx context.Context, id, productID string) (Cart, error) {
	return s.update(ctx, id, func(c *Cart) error {
		if !c.Remove(productID) {
			return ErrNotInCart
		}
		return nil
	})
}

// Clear empties a cart but keeps it open.
func (s *Service) Clear(ctx context.Context, id string) (Cart, error) {
	return s.update(ctx, id, func(c *Cart) error {
		c.Clear()
		return nil
	})
}

// Discard deletes a cart. Nothing else is affected.
func (s *Service) Discard(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.KV.Delete(ctx, store.CartPrefix+id)
}

func (s *Service) update(ctx context.Context, id string, fn func(c *Cart) error) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.Get(ctx, id)
	if err != nil {
		return Cart{}, err
	}
	if err := fn(&c); err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			obs.CountCartRejection("insufficient_stock")
		}
		return Cart{}, err
	}
	c.UpdatedAt = s.now()
	if err := store.SetJSON(ctx, s.KV, store.CartPrefix+c.ID, c); err != nil {
		return Cart{}, err
	}
	return c, nil
}
