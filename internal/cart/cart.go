// Package cart holds in-progress sales. A cart never reserves stock: quantities are only
// checked against the live catalog when lines are added or incremented.
package cart

import (
	"errors"
	"time"

	"github.com/noah-isme/backend-kasir/internal/model"
)

var (
	// ErrInsufficientStock rejects a change that would exceed the product's stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrNotInCart is returned when the product has no line in the cart.
	ErrNotInCart = errors.New("product not in cart")
	// ErrInvalidQuantity rejects non-positive quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Cart is an ordered list of lines; line order is insertion order.
type Cart struct {
	ID        string           `json:"id"`
	Items     []model.SaleItem `json:"items"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Add puts qty units of p in the cart, merging with an existing line.
// The cart is left unchanged when the new quantity would exceed p.Stock.
func (c *Cart) Add(p model.Product, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	i := c.indexOf(p.ID)
	current := 0
	if i >= 0 {
		current = c.Items[i].Quantity
	}
	if current+qty > p.Stock {
		return ErrInsufficientStock
	}
	if i >= 0 {
		c.Items[i].Quantity += qty
		return nil
	}
	c.Items = append(c.Items, model.SaleItem{
		ProductID:     p.ID,
		ProductName:   p.Name,
		Quantity:      qty,
		Price:         p.Price,
		Cost:          p.Cost,
		OriginalPrice: p.Price,
	})
	return nil
}

// Increment adds one unit to an existing line.
func (c *Cart) Increment(productID string, p model.Product) error {
	i := c.indexOf(productID)
	if i < 0 {
		return ErrNotInCart
	}
	if c.Items[i].Quantity+1 > p.Stock {
		return ErrInsufficientStock
	}
	c.Items[i].Quantity++
	return nil
}

// Decrement removes one unit; a line that reaches zero is removed.
func (c *Cart) Decrement(productID string) error {
	i := c.indexOf(productID)
	if i < 0 {
		return ErrNotInCart
	}
	if c.Items[i].Quantity <= 1 {
		c.removeAt(i)
		return nil
	}
	c.Items[i].Quantity--
	return nil
}

// SetQuantity sets a line's quantity. Zero or less removes the line.
func (c *Cart) SetQuantity(productID string, qty int, p model.Product) error {
	i := c.indexOf(productID)
	if i < 0 {
		return ErrNotInCart
	}
	if qty <= 0 {
		c.removeAt(i)
		return nil
	}
	if qty > p.Stock {
		return ErrInsufficientStock
	}
	c.Items[i].Quantity = qty
	return nil
}

// Remove drops a line. It reports whether the line existed.
func (c *Cart) Remove(productID string) bool {
	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	c.removeAt(i)
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = []model.SaleItem{}
}

// Quantity returns the units of productID in the cart.
func (c *Cart) Quantity(productID string) int {
	if i := c.indexOf(productID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool { return len(c.Items) == 0 }

func (c *Cart) indexOf(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}
