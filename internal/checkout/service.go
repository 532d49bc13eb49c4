package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/customer"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/pricing"
	"github.com/noah-isme/backend-kasir/internal/sales"
)

var (
	// ErrEmptyCart is returned when a sale is confirmed without any positive line.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidPayment flags an unknown payment method.
	ErrInvalidPayment = errors.New("invalid payment method")
	// ErrInvalidFiscalType flags an unknown invoice kind.
	ErrInvalidFiscalType = errors.New("invalid fiscal type")
	// ErrCustomerRequired is returned for account-credit sales without a customer.
	ErrCustomerRequired = errors.New("account credit requires a customer")
	// ErrUnknownProduct is returned when a line references a product missing from the catalog.
	ErrUnknownProduct = errors.New("unknown product")
)

// Promotions supplies the active promotions in precedence order.
type Promotions interface {
	Active(ctx context.Context) ([]model.Promotion, error)
}

// Request describes a sale to confirm.
type Request struct {
	Items         []model.SaleItem
	PaymentMethod model.PaymentMethod
	CustomerID    string
	FiscalType    model.FiscalType
}

// Service confirms sales. Pricing, persistence and the stock update run under the
// inventory lock so two checkouts cannot interleave their stock changes.
type Service struct {
	Catalog    *catalog.Service
	Sales      *sales.Service
	Promotions Promotions
	Customers  *customer.Service
	Events     *events.Bus
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.Catalog == nil || s.Sales == nil {
		return errors.New("checkout service not configured")
	}
	return nil
}

// Quote prices lines against the live catalog without persisting anything.
func (s *Service) Quote(ctx context.Context, items []model.SaleItem) (pricing.Totals, error) {
	if err := s.ready(); err != nil {
		return pricing.Totals{}, err
	}
	products, err := s.Catalog.All(ctx)
	if err != nil {
		return pricing.Totals{}, err
	}
	promos, err := s.activePromotions(ctx)
	if err != nil {
		return pricing.Totals{}, err
	}
	return pricing.ComputeCartTotals(items, promos, products), nil
}

// ConfirmSale prices the lines, routes every line through the stock ledger and stores the
// resulting sale, all or nothing. Line costs snapshotted when the line was added are kept;
// lines without one take the catalog cost. The returned sale is a copy.
func (s *Service) ConfirmSale(ctx context.Context, req Request, actor *model.Actor) (model.Sale, error) {
	if err := s.ready(); err != nil {
		return model.Sale{}, err
	}
	if !req.PaymentMethod.Valid() {
		return model.Sale{}, fmt.Errorf("%w: %q", ErrInvalidPayment, req.PaymentMethod)
	}
	if req.FiscalType == "" {
		req.FiscalType = model.FiscalTicket
	}
	if !req.FiscalType.Valid() {
		return model.Sale{}, fmt.Errorf("%w: %q", ErrInvalidFiscalType, req.FiscalType)
	}
	if req.PaymentMethod == model.PaymentAccountCredit && req.CustomerID == "" {
		return model.Sale{}, ErrCustomerRequired
	}
	lines := make([]model.SaleItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity > 0 {
			lines = append(lines, item)
		}
	}
	if len(lines) == 0 {
		return model.Sale{}, ErrEmptyCart
	}

	var sale model.Sale
	err := s.Catalog.WithInventoryLock(ctx, func(ctx context.Context) error {
		if req.CustomerID != "" {
			if s.Customers == nil {
				return errors.New("customer service not configured")
			}
			if _, err := s.Customers.Get(ctx, req.CustomerID); err != nil {
				return err
			}
		}
		products, err := s.Catalog.All(ctx)
		if err != nil {
			return err
		}
		byID := make(map[string]model.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}
		for _, line := range lines {
			if _, ok := byID[line.ProductID]; !ok {
				return fmt.Errorf("%w: %s", ErrUnknownProduct, line.ProductID)
			}
		}
		promos, err := s.activePromotions(ctx)
		if err != nil {
			return err
		}
		totals := pricing.ComputeCartTotals(lines, promos, products)

		sale = model.Sale{
			ID:            uuid.NewString(),
			Date:          s.now(),
			Items:         make([]model.SaleItem, 0, len(totals.Items)),
			Total:         totals.Total,
			PaymentMethod: req.PaymentMethod,
			CustomerID:    req.CustomerID,
			FiscalType:    req.FiscalType,
		}
		if actor != nil {
			sale.UserID = actor.UserID
			sale.UserName = actor.UserName
		}
		for _, item := range totals.Items {
			p := byID[item.ProductID]
			item.ProductName = p.Name
			if item.Cost == 0 {
				item.Cost = p.Cost
			}
			sale.Profit += (item.Price - item.Cost) * model.Money(item.Quantity)
			sale.Items = append(sale.Items, item)
		}

		return s.commit(ctx, sale, products, actor)
	})
	if err != nil {
		return model.Sale{}, err
	}

	obs.CountSale(string(sale.PaymentMethod), sale.Total)
	s.Events.Publish(ctx, events.TopicSaleConfirmed, sale.ID, map[string]any{
		"total":         sale.Total,
		"profit":        sale.Profit,
		"paymentMethod": sale.PaymentMethod,
		"items":         len(sale.Items),
	})
	return sale.Clone(), nil
}

// commit writes stock and movements, then the sale, then the customer charge. A failed
// step undoes the ones before it, newest first. Runs under the inventory lock; before is
// the catalog as loaded under that lock.
func (s *Service) commit(ctx context.Context, sale model.Sale, before []model.Product, actor *model.Actor) (err error) {
	var undo []func(context.Context) error
	defer func() {
		if err == nil {
			return
		}
		for i := len(undo) - 1; i >= 0; i-- {
			if undoErr := undo[i](ctx); undoErr != nil {
				err = errors.Join(err, fmt.Errorf("roll back sale %s: %w", sale.ID, undoErr))
			}
		}
	}()

	movements, err := s.Catalog.ApplySale(ctx, sale.ID, sale.Items, actor)
	if err != nil {
		return err
	}
	undo = append(undo, func(ctx context.Context) error {
		return s.Catalog.RevertSale(ctx, before, movements)
	})

	if err = s.Sales.Append(ctx, sale); err != nil {
		return err
	}
	undo = append(undo, func(ctx context.Context) error {
		return s.Sales.Discard(ctx, sale.ID)
	})

	if sale.PaymentMethod == model.PaymentAccountCredit && sale.Total > 0 {
		if _, err = s.Customers.Charge(ctx, sale.CustomerID, sale.Total); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) activePromotions(ctx context.Context) ([]model.Promotion, error) {
	if s.Promotions == nil {
		return nil, nil
	}
	return s.Promotions.Active(ctx)
}
