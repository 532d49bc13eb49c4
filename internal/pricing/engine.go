// Package pricing computes effective cart prices from the catalog and the promotion list.
package pricing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/backend-kasir/internal/model"
)

// Totals aggregates computed pricing components. Items carries the repriced lines.
type Totals struct {
	Subtotal model.Money      `json:"subtotal"`
	Discount model.Money      `json:"discount"`
	Total    model.Money      `json:"total"`
	Items    []model.SaleItem `json:"items"`
}

// ComputeCartTotals reprices every line against the catalog and the active promotions.
// Matching promotions apply in list order and a later match overwrites an earlier one.
// The inputs are never mutated.
func ComputeCartTotals(items []model.SaleItem, promotions []model.Promotion, products []model.Product) Totals {
	catalog := make(map[string]model.Product, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}

	out := Totals{Items: make([]model.SaleItem, 0, len(items))}
	for _, line := range items {
		priced, lineTotal := priceLine(line, catalog, promotions)
		out.Subtotal += priced.OriginalPrice * model.Money(priced.Quantity)
		out.Total += lineTotal
		out.Items = append(out.Items, priced)
	}
	out.Discount = out.Subtotal - out.Total
	return out
}

// PriceLine returns a copy of line with its price reset to the catalog base price and
// every applicable active promotion applied.
func PriceLine(line model.SaleItem, catalog map[string]model.Product, promotions []model.Promotion) model.SaleItem {
	priced, _ := priceLine(line, catalog, promotions)
	return priced
}

func priceLine(line model.SaleItem, catalog map[string]model.Product, promotions []model.Promotion) (model.SaleItem, model.Money) {
	if p, ok := catalog[line.ProductID]; ok {
		line.OriginalPrice = p.Price
		if line.ProductName == "" {
			line.ProductName = p.Name
		}
	}
	line.Price = line.OriginalPrice
	line.AppliedPromotion = ""
	total := line.OriginalPrice * model.Money(line.Quantity)

	for _, promo := range promotions {
		if !promo.Active || promo.TargetProductID != line.ProductID {
			continue
		}
		price, ok := Apply(promo, line.OriginalPrice, line.Quantity)
		if !ok {
			continue
		}
		line.Price = price
		line.AppliedPromotion = Label(promo)
		total = price * model.Money(line.Quantity)
		if promo.Type == model.PromotionMxN {
			paid, _ := PaidQuantity(line.Quantity, promo.M, promo.N)
			total = model.Money(paid) * line.OriginalPrice
		}
	}
	return line, total
}

// Apply computes the effective unit price for one promotion. The bool is false when the
// promotion does not apply to the given quantity.
func Apply(promo model.Promotion, unitPrice model.Money, qty int) (model.Money, bool) {
	if qty <= 0 {
		return unitPrice, false
	}
	switch promo.Type {
	case model.PromotionPercentage:
		return unitPrice * (1 - promo.Value/100), true
	case model.PromotionBulk:
		if qty < promo.MinQuantity {
			return unitPrice, false
		}
		return promo.Value, true
	case model.PromotionMxN:
		paid, ok := PaidQuantity(qty, promo.M, promo.N)
		if !ok {
			return unitPrice, false
		}
		return model.Money(paid) * unitPrice / model.Money(qty), true
	default:
		return unitPrice, false
	}
}

// PaidQuantity returns how many units are charged under a buy-m-pay-n deal.
// m <= 0 makes the deal inapplicable.
func PaidQuantity(qty, m, n int) (int, bool) {
	if m <= 0 || qty <= 0 {
		return qty, false
	}
	return (qty/m)*n + qty%m, true
}

// LineTotal is effective unit price times quantity. For buy-m-pay-n lines it can differ from
// the exact charge by floating point error; ComputeCartTotals uses the exact figure.
func LineTotal(line model.SaleItem) model.Money {
	return line.Price * model.Money(line.Quantity)
}

// Label renders the human-readable tag stored on a priced line.
func Label(promo model.Promotion) string {
	var rule string
	switch promo.Type {
	case model.PromotionPercentage:
		rule = "-" + formatNumber(promo.Value) + "%"
	case model.PromotionBulk:
		rule = fmt.Sprintf("bulk %d+ @ %s", promo.MinQuantity, formatNumber(promo.Value))
	case model.PromotionMxN:
		rule = fmt.Sprintf("%dx%d", promo.M, promo.N)
	default:
		rule = string(promo.Type)
	}
	name := strings.TrimSpace(promo.Name)
	if name == "" {
		return rule
	}
	return name + " (" + rule + ")"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
