package analytics

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/cache"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/sales"
)

// SalesSource lists confirmed sales.
type SalesSource interface {
	List(ctx context.Context, f sales.Filter) ([]model.Sale, error)
}

// ProductSource returns the live catalog.
type ProductSource interface {
	All(ctx context.Context) ([]model.Product, error)
}

// MethodTotal aggregates sales for one payment method.
type MethodTotal struct {
	Method  model.PaymentMethod `json:"method"`
	Count   int                 `json:"count"`
	Revenue float64             `json:"revenue"`
}

// DayTotal aggregates sales for one UTC calendar day.
type DayTotal struct {
	Date    string  `json:"date"`
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
	Profit  float64 `json:"profit"`
}

// Summary is the financial report for a period. To is exclusive.
type Summary struct {
	From          time.Time     `json:"from"`
	To            time.Time     `json:"to"`
	SaleCount     int           `json:"saleCount"`
	Revenue       float64       `json:"revenue"`
	Profit        float64       `json:"profit"`
	AverageTicket float64       `json:"averageTicket"`
	ByMethod      []MethodTotal `json:"byPaymentMethod"`
	ByDay         []DayTotal    `json:"byDay"`
}

// ProductSales aggregates sold units of one product.
type ProductSales struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Revenue     float64 `json:"revenue"`
	Profit      float64 `json:"profit"`
}

// Valuation values the stock on hand. Products with negative stock count as zero units.
type Valuation struct {
	Products        int     `json:"products"`
	Units           int     `json:"units"`
	CostValue       float64 `json:"costValue"`
	RetailValue     float64 `json:"retailValue"`
	PotentialProfit float64 `json:"potentialProfit"`
	LowStock        int     `json:"lowStock"`
}

// Service computes reports over sales and the catalog. Sales reports are cached.
type Service struct {
	Sales        SalesSource
	Products     ProductSource
	Cache        *cache.Store
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// DefaultPeriod returns the last DefaultRange days (30 when unset) including today. Bounds
// fall on UTC midnights so repeated requests share a cache entry.
func (s *Service) DefaultPeriod() (time.Time, time.Time) {
	days := s.DefaultRange
	if days <= 0 {
		days = 30
	}
	to := s.now().Truncate(24*time.Hour).AddDate(0, 0, 1)
	return to.AddDate(0, 0, -days), to
}

// SalesSummary aggregates sales confirmed in [from, to).
func (s *Service) SalesSummary(ctx context.Context, from, to time.Time) (Summary, error) {
	if s == nil || s.Sales == nil {
		return Summary{}, errors.New("analytics service not configured")
	}
	key := s.cacheKey(ctx, "summary", from, to)
	var out Summary
	if s.Cache.Get(ctx, key, &out) {
		return out, nil
	}
	list, err := s.Sales.List(ctx, sales.Filter{From: from, To: to})
	if err != nil {
		return Summary{}, err
	}

	revenue, profit := decimal.Zero, decimal.Zero
	methods := make(map[model.PaymentMethod]*methodAcc)
	days := make(map[string]*dayAcc)
	for _, sale := range list {
		total := decimal.NewFromFloat(sale.Total)
		margin := decimal.NewFromFloat(sale.Profit)
		revenue = revenue.Add(total)
		profit = profit.Add(margin)

		m, ok := methods[sale.PaymentMethod]
		if !ok {
			m = &methodAcc{}
			methods[sale.PaymentMethod] = m
		}
		m.count++
		m.revenue = m.revenue.Add(total)

		day := sale.Date.UTC().Format(time.DateOnly)
		d, ok := days[day]
		if !ok {
			d = &dayAcc{}
			days[day] = d
		}
		d.count++
		d.revenue = d.revenue.Add(total)
		d.profit = d.profit.Add(margin)
	}

	out = Summary{
		From:      from,
		To:        to,
		SaleCount: len(list),
		Revenue:   money(revenue),
		Profit:    money(profit),
		ByMethod:  []MethodTotal{},
		ByDay:     make([]DayTotal, 0, len(days)),
	}
	if len(list) > 0 {
		out.AverageTicket = money(revenue.Div(decimal.NewFromInt(int64(len(list)))))
	}
	for _, method := range model.PaymentMethods() {
		if m, ok := methods[method]; ok {
			out.ByMethod = append(out.ByMethod, MethodTotal{Method: method, Count: m.count, Revenue: money(m.revenue)})
		}
	}
	for day, d := range days {
		out.ByDay = append(out.ByDay, DayTotal{Date: day, Count: d.count, Revenue: money(d.revenue), Profit: money(d.profit)})
	}
	slices.SortFunc(out.ByDay, func(a, b DayTotal) int { return cmp.Compare(a.Date, b.Date) })

	s.Cache.Set(ctx, key, out)
	return out, nil
}

// TopProducts ranks products sold in [from, to) by quantity, then revenue.
func (s *Service) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]ProductSales, error) {
	if s == nil || s.Sales == nil {
		return nil, errors.New("analytics service not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	key := s.cacheKey(ctx, "top", from, to, limit)
	var out []ProductSales
	if s.Cache.Get(ctx, key, &out) {
		return out, nil
	}
	list, err := s.Sales.List(ctx, sales.Filter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	type acc struct {
		name     string
		quantity int
		revenue  decimal.Decimal
		profit   decimal.Decimal
	}
	byProduct := make(map[string]*acc)
	for _, sale := range list {
		for _, item := range sale.Items {
			a, ok := byProduct[item.ProductID]
			if !ok {
				a = &acc{}
				byProduct[item.ProductID] = a
			}
			a.name = item.ProductName
			a.quantity += item.Quantity
			qty := decimal.NewFromInt(int64(item.Quantity))
			price := decimal.NewFromFloat(item.Price)
			a.revenue = a.revenue.Add(price.Mul(qty))
			a.profit = a.profit.Add(price.Sub(decimal.NewFromFloat(item.Cost)).Mul(qty))
		}
	}
	out = make([]ProductSales, 0, len(byProduct))
	for id, a := range byProduct {
		out = append(out, ProductSales{
			ProductID:   id,
			ProductName: a.name,
			Quantity:    a.quantity,
			Revenue:     money(a.revenue),
			Profit:      money(a.profit),
		})
	}
	slices.SortFunc(out, func(a, b ProductSales) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Revenue, a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	s.Cache.Set(ctx, key, out)
	return out, nil
}

// InventoryValuation values the live stock at cost and at retail price.
func (s *Service) InventoryValuation(ctx context.Context) (Valuation, error) {
	products, err := s.products(ctx)
	if err != nil {
		return Valuation{}, err
	}
	cost, retail := decimal.Zero, decimal.Zero
	out := Valuation{Products: len(products)}
	for _, p := range products {
		if p.LowStock() {
			out.LowStock++
		}
		if p.Stock <= 0 {
			continue
		}
		units := decimal.NewFromInt(int64(p.Stock))
		out.Units += p.Stock
		cost = cost.Add(decimal.NewFromFloat(p.Cost).Mul(units))
		retail = retail.Add(decimal.NewFromFloat(p.Price).Mul(units))
	}
	out.CostValue = money(cost)
	out.RetailValue = money(retail)
	out.PotentialProfit = money(retail.Sub(cost))
	return out, nil
}

// LowStock lists products at or below their reorder threshold, most depleted first.
func (s *Service) LowStock(ctx context.Context) ([]model.Product, error) {
	products, err := s.products(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Product, 0)
	for _, p := range products {
		if p.LowStock() {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Product) int {
		return cmp.Compare(a.Stock-a.MinStock, b.Stock-b.MinStock)
	})
	return out, nil
}

// Invalidate drops every cached report.
func (s *Service) Invalidate(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.Cache.Invalidate(ctx)
}

// Notifier returns an event notifier that invalidates cached reports on sales and stock changes.
func (s *Service) Notifier() events.Notifier {
	topics := events.InventoryTopics()
	return events.NotifierFunc(func(ctx context.Context, event events.Event) error {
		if !slices.Contains(topics, event.Topic) {
			return nil
		}
		return s.Invalidate(ctx)
	})
}

func (s *Service) products(ctx context.Context) ([]model.Product, error) {
	if s == nil || s.Products == nil {
		return nil, errors.New("analytics service not configured")
	}
	return s.Products.All(ctx)
}

func (s *Service) cacheKey(ctx context.Context, kind string, from, to time.Time, extra ...any) string {
	if !s.Cache.Enabled() {
		return ""
	}
	parts := append([]any{kind, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339)}, extra...)
	return s.Cache.Key(ctx, parts...)
}

type methodAcc struct {
	count   int
	revenue decimal.Decimal
}

type dayAcc struct {
	count   int
	revenue decimal.Decimal
	profit  decimal.Decimal
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
