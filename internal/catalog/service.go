// Package catalog owns the product collection. Every flow that changes products or stock
// goes through one of its entrypoints; the last writer wins.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/ledger"
	"github.com/noah-isme/backend-kasir/internal/lock"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/store"
)

var (
	// ErrNotFound is returned when no product has the requested id.
	ErrNotFound = errors.New("product not found")
	// ErrInvalidInput marks rejected product payloads.
	ErrInvalidInput = errors.New("invalid product input")
)

// Input is the editable part of a product.
type Input struct {
	Name     string  `json:"name" validate:"required,max=200"`
	Category string  `json:"category"`
	Price    float64 `json:"price" validate:"gte=0"`
	Cost     float64 `json:"cost" validate:"gte=0"`
	Stock    int     `json:"stock"`
	MinStock int     `json:"minStock" validate:"gte=0"`
}

// ListParams filters List results.
type ListParams struct {
	Query    string
	Category model.Category
	LowStock bool
}

// Service is the single owner of the product collection.
type Service struct {
	Products *store.Collection[model.Product]
	Ledger   *ledger.Service
	Locker   lock.Locker
	LockTTL  time.Duration
	Events   *events.Bus
	Now      func() time.Time
}

// NewService wires the catalog over kv with the given ledger.
func NewService(kv store.KV, l *ledger.Service) *Service {
	return &Service{
		Products: store.NewCollection[model.Product](kv, store.KeyProducts),
		Ledger:   l,
		Locker:   &lock.Local{},
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.Products == nil {
		return errors.New("catalog service not configured")
	}
	return nil
}

// WithInventoryLock runs fn holding the inventory lock. Catalog mutations made with the
// context passed to fn reuse the lock instead of waiting for it.
func (s *Service) WithInventoryLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.Locker == nil {
		s.Locker = &lock.Local{}
	}
	return s.Locker.WithLock(ctx, lock.InventoryKey, s.LockTTL, fn)
}

// mutation is what one catalog change produces: the next collection and the movements
// that explain its stock changes.
type mutation struct {
	products []model.Product
	entries  []ledger.Entry
}

// mutate runs fn under the inventory lock, saves the products and then appends the
// movements. When the ledger write fails the previous collection is put back, so stock
// and history never disagree.
func (s *Service) mutate(ctx context.Context, actor *model.Actor, fn func(ctx context.Context, products []model.Product) (mutation, error)) ([]model.StockMovement, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var created []model.StockMovement
	err := s.WithInventoryLock(ctx, func(ctx context.Context) error {
		products, err := s.Products.Load(ctx)
		if err != nil {
			return err
		}
		previous := append([]model.Product(nil), products...)
		next, err := fn(ctx, products)
		if err != nil {
			return err
		}
		if err := s.Products.Save(ctx, next.products); err != nil {
			return err
		}
		if s.Ledger == nil || len(next.entries) == 0 {
			return nil
		}
		created, err = s.Ledger.RecordBatch(ctx, next.entries, actor)
		if err != nil {
			if restoreErr := s.Products.Save(ctx, previous); restoreErr != nil {
				return errors.Join(err, fmt.Errorf("restore products: %w", restoreErr))
			}
			return err
		}
		return nil
	})
	return created, err
}

// All returns the full collection in stored order.
func (s *Service) All(ctx context.Context) ([]model.Product, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.Products.Load(ctx)
}

// List returns products sorted by name, filtered by params.
func (s *Service) List(ctx context.Context, params ListParams) ([]model.Product, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	query := strings.ToLower(strings.TrimSpace(params.Query))
	out := make([]model.Product, 0, len(all))
	for _, p := range all {
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) && p.ID != params.Query {
			continue
		}
		if params.Category != "" && p.Category != params.Category {
			continue
		}
		if params.LowStock && !p.LowStock() {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id string) (model.Product, error) {
	all, err := s.All(ctx)
	if err != nil {
		return model.Product{}, err
	}
	if i := indexOf(all, id); i >= 0 {
		return all[i], nil
	}
	return model.Product{}, ErrNotFound
}

// Create stores a new product under a fresh id and logs its initial stock as an IN movement.
func (s *Service) Create(ctx context.Context, in Input, actor *model.Actor) (model.Product, error) {
	category, err := normalizeInput(&in)
	if err != nil {
		return model.Product{}, err
	}
	if in.Stock < 0 {
		return model.Product{}, fmt.Errorf("initial stock must not be negative: %w", ErrInvalidInput)
	}
	product := model.Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Category:    category,
		Price:       in.Price,
		Cost:        in.Cost,
		Stock:       in.Stock,
		MinStock:    in.MinStock,
		LastUpdated: s.now(),
	}
	_, err = s.mutate(ctx, actor, func(_ context.Context, products []model.Product) (mutation, error) {
		next := mutation{products: append(products, product)}
		if product.Stock > 0 {
			next.entries = []ledger.Entry{{
				ProductID:   product.ID,
				ProductName: product.Name,
				Type:        model.MovementIn,
				Quantity:    product.Stock,
				Reason:      "initial stock",
			}}
		}
		return next, nil
	})
	if err != nil {
		return model.Product{}, err
	}
	return product, nil
}

// Update replaces the editable fields. A stock change is logged as an ADJUSTMENT with the signed delta.
func (s *Service) Update(ctx context.Context, id string, in Input, actor *model.Actor) (model.Product, error) {
	category, err := normalizeInput(&in)
	if err != nil {
		return model.Product{}, err
	}
	var updated model.Product
	_, err = s.mutate(ctx, actor, func(_ context.Context, products []model.Product) (mutation, error) {
		i := indexOf(products, id)
		if i < 0 {
			return mutation{}, ErrNotFound
		}
		p := products[i]
		delta := in.Stock - p.Stock
		p.Name = in.Name
		p.Category = category
		p.Price = in.Price
		p.Cost = in.Cost
		p.Stock = in.Stock
		p.MinStock = in.MinStock
		p.LastUpdated = s.now()
		products[i] = p
		updated = p
		next := mutation{products: products}
		if delta != 0 {
			next.entries = []ledger.Entry{{
				ProductID:   p.ID,
				ProductName: p.Name,
				Type:        model.MovementAdjustment,
				Quantity:    delta,
				Reason:      "manual edit",
			}}
		}
		return next, nil
	})
	if err != nil {
		return model.Product{}, err
	}
	return updated, nil
}

// AdjustStock applies a signed delta and records it. IN is always positive and OUT always negative;
// ADJUSTMENT keeps the given sign.
func (s *Service) AdjustStock(ctx context.Context, id string, kind model.MovementType, delta int, reason string, actor *model.Actor) (model.Product, model.StockMovement, error) {
	if !kind.Valid() {
		return model.Product{}, model.StockMovement{}, fmt.Errorf("unknown movement type %q: %w", kind, ErrInvalidInput)
	}
	if delta == 0 {
		return model.Product{}, model.StockMovement{}, fmt.Errorf("quantity must not be zero: %w", ErrInvalidInput)
	}
	switch kind {
	case model.MovementIn:
		delta = abs(delta)
	case model.MovementOut:
		delta = -abs(delta)
	}
	var updated model.Product
	created, err := s.mutate(ctx, actor, func(_ context.Context, products []model.Product) (mutation, error) {
		i := indexOf(products, id)
		if i < 0 {
			return mutation{}, ErrNotFound
		}
		p := products[i]
		p.Stock += delta
		p.LastUpdated = s.now()
		products[i] = p
		updated = p
		return mutation{products: products, entries: []ledger.Entry{{
			ProductID:   p.ID,
			ProductName: p.Name,
			Type:        kind,
			Quantity:    delta,
			Reason:      reason,
		}}}, nil
	})
	if err != nil {
		return model.Product{}, model.StockMovement{}, err
	}
	var movement model.StockMovement
	if len(created) > 0 {
		movement = created[0]
	}
	s.Events.Publish(ctx, events.TopicStockAdjusted, updated.ID, map[string]any{
		"type":     kind,
		"quantity": delta,
		"stock":    updated.Stock,
		"reason":   movement.Reason,
	})
	return updated, movement, nil
}

// ApplySale decrements stock for every sold line and records one OUT movement per line.
// Stock is not checked here; lines for products that no longer exist are still logged.
func (s *Service) ApplySale(ctx context.Context, saleID string, items []model.SaleItem, actor *model.Actor) ([]model.StockMovement, error) {
	return s.mutate(ctx, actor, func(_ context.Context, products []model.Product) (mutation, error) {
		now := s.now()
		entries := make([]ledger.Entry, 0, len(items))
		for _, item := range items {
			if item.Quantity <= 0 {
				continue
			}
			name := item.ProductName
			if i := indexOf(products, item.ProductID); i >= 0 {
				products[i].Stock -= item.Quantity
				products[i].LastUpdated = now
				name = products[i].Name
			}
			entries = append(entries, ledger.Entry{
				ProductID:   item.ProductID,
				ProductName: name,
				Type:        model.MovementOut,
				Quantity:    -item.Quantity,
				Reason:      "sale " + saleID,
			})
		}
		return mutation{products: products, entries: entries}, nil
	})
}

// RevertSale puts back the collection captured before ApplySale and drops the movements
// it wrote. Used when the rest of a checkout could not be stored.
func (s *Service) RevertSale(ctx context.Context, before []model.Product, movements []model.StockMovement) error {
	if err := s.ReplaceAll(ctx, before); err != nil {
		return err
	}
	if s.Ledger == nil || len(movements) == 0 {
		return nil
	}
	ids := make([]string, 0, len(movements))
	for _, m := range movements {
		ids = append(ids, m.ID)
	}
	return s.Ledger.Discard(ctx, ids...)
}

// Import appends already-normalised products without logging movements.
func (s *Service) Import(ctx context.Context, incoming []model.Product) error {
	if len(incoming) == 0 {
		return nil
	}
	_, err := s.ImportFunc(ctx, func(map[string]struct{}) []model.Product { return incoming })
	return err
}

// ImportFunc appends the products returned by prepare, which receives the ids already in the
// catalog as read under the inventory lock. No movements are logged.
func (s *Service) ImportFunc(ctx context.Context, prepare func(existing map[string]struct{}) []model.Product) ([]model.Product, error) {
	var added []model.Product
	_, err := s.mutate(ctx, nil, func(_ context.Context, products []model.Product) (mutation, error) {
		ids := make(map[string]struct{}, len(products))
		for _, p := range products {
			ids[p.ID] = struct{}{}
		}
		now := s.now()
		for _, p := range prepare(ids) {
			p.LastUpdated = now
			products = append(products, p)
			added = append(added, p)
		}
		return mutation{products: products}, nil
	})
	return added, err
}

// ReplaceAll swaps the whole collection. The ledger is left untouched.
func (s *Service) ReplaceAll(ctx context.Context, products []model.Product) error {
	replacement := append([]model.Product(nil), products...)
	_, err := s.mutate(ctx, nil, func(context.Context, []model.Product) (mutation, error) {
		return mutation{products: replacement}, nil
	})
	return err
}

// Delete removes a product. Deletions are not logged as movements.
func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, nil, func(_ context.Context, products []model.Product) (mutation, error) {
		i := indexOf(products, id)
		if i < 0 {
			return mutation{}, ErrNotFound
		}
		return mutation{products: append(products[:i], products[i+1:]...)}, nil
	})
	return err
}

// Clear removes every product and returns how many were dropped.
func (s *Service) Clear(ctx context.Context) (int, error) {
	removed := 0
	_, err := s.mutate(ctx, nil, func(_ context.Context, products []model.Product) (mutation, error) {
		removed = len(products)
		return mutation{products: []model.Product{}}, nil
	})
	return removed, err
}

func normalizeInput(in *Input) (model.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := common.ValidateStruct(in); err != nil {
		return "", errors.Join(ErrInvalidInput, err)
	}
	if strings.TrimSpace(in.Category) == "" {
		return model.CategoryGeneral, nil
	}
	category := model.Category(strings.ToUpper(strings.TrimSpace(in.Category)))
	if !category.Valid() {
		return "", fmt.Errorf("unknown category %q: %w", in.Category, ErrInvalidInput)
	}
	return category, nil
}

func indexOf(products []model.Product, id string) int {
	for i := range products {
		if products[i].ID == id {
			return i
		}
	}
	return -1
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
