// Package model holds the records shared by the point-of-sale services.
package model

import (
	"encoding/json"
	"time"
)

// Money is an amount in currency units. Effective prices after an M_X_N promotion can be fractional.
type Money = float64

// Product is a catalog entry with its live stock count.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    Category  `json:"category"`
	Price       Money     `json:"price"`
	Cost        Money     `json:"cost"`
	Stock       int       `json:"stock"`
	MinStock    int       `json:"minStock"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// LowStock reports whether the product sits at or below its reorder threshold.
func (p Product) LowStock() bool {
	return p.Stock <= p.MinStock
}

// Promotion targets a single product with one pricing rule.
type Promotion struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Type            PromotionType `json:"type"`
	TargetProductID string        `json:"targetProductId"`
	Value           float64       `json:"value"`
	M               int           `json:"m,omitempty"`
	N               int           `json:"n,omitempty"`
	MinQuantity     int           `json:"minQuantity,omitempty"`
	Active          bool          `json:"active"`
}

// SaleItem is one priced line of a cart or of a confirmed sale.
type SaleItem struct {
	ProductID        string `json:"productId"`
	ProductName      string `json:"productName"`
	Quantity         int    `json:"quantity"`
	Price            Money  `json:"price"`
	Cost             Money  `json:"cost"`
	OriginalPrice    Money  `json:"originalPrice"`
	AppliedPromotion string `json:"appliedPromotion,omitempty"`
}

// Sale is an immutable record of a confirmed checkout.
type Sale struct {
	ID            string        `json:"id"`
	Date          time.Time     `json:"date"`
	Items         []SaleItem    `json:"items"`
	Total         Money         `json:"total"`
	Profit        Money         `json:"profit"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	CustomerID    string        `json:"customerId,omitempty"`
	FiscalType    FiscalType    `json:"fiscalType"`
	UserID        string        `json:"userId,omitempty"`
	UserName      string        `json:"userName,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate stored history.
func (s Sale) Clone() Sale {
	out := s
	out.Items = append([]SaleItem(nil), s.Items...)
	return out
}

// StockMovement is one append-only ledger entry. Quantity is signed.
type StockMovement struct {
	ID          string       `json:"id"`
	ProductID   string       `json:"productId"`
	ProductName string       `json:"productName"`
	Type        MovementType `json:"type"`
	Quantity    int          `json:"quantity"`
	Date        time.Time    `json:"date"`
	Reason      string       `json:"reason"`
	UserID      string       `json:"userId,omitempty"`
	UserName    string       `json:"userName,omitempty"`
}

// Backup is a serialized snapshot of the product collection.
type Backup struct {
	ID            string          `json:"id"`
	Date          time.Time       `json:"date"`
	Reason        string          `json:"reason,omitempty"`
	Products      json.RawMessage `json:"products"`
	ProductCount  int             `json:"productCount"`
	Size          int             `json:"size"`
	AutoGenerated bool            `json:"autoGenerated"`
}

// Customer is a buyer who may carry an account-credit balance.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	TaxID     string    `json:"taxId,omitempty"`
	Address   string    `json:"address,omitempty"`
	Balance   Money     `json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Supplier is a vendor contact record.
type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// User is an operator account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"passwordHash"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Actor attributes an operation to the user performing it.
type Actor struct {
	UserID   string
	UserName string
	Role     Role
}
