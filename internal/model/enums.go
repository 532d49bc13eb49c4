package model

import "strings"

// PromotionType enumerates the supported promotion pricing rules.
type PromotionType string

const (
	// PromotionPercentage discounts the base unit price by a percentage.
	PromotionPercentage PromotionType = "PERCENTAGE"
	// PromotionBulk sets a flat unit price once a minimum quantity is reached.
	PromotionBulk PromotionType = "BULK"
	// PromotionMxN charges N units for every M taken ("buy M pay N").
	PromotionMxN PromotionType = "M_X_N"
)

// Valid reports whether the promotion type is known.
func (t PromotionType) Valid() bool {
	switch t {
	case PromotionPercentage, PromotionBulk, PromotionMxN:
		return true
	}
	return false
}

// PaymentMethod enumerates how a sale was paid.
type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "EFECTIVO"
	PaymentDebit         PaymentMethod = "DEBITO"
	PaymentCredit        PaymentMethod = "CREDITO"
	PaymentTransfer      PaymentMethod = "TRANSFERENCIA"
	PaymentAccountCredit PaymentMethod = "CUENTA_CORRIENTE"
)

// Valid reports whether the payment method is known.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentDebit, PaymentCredit, PaymentTransfer, PaymentAccountCredit:
		return true
	}
	return false
}

// PaymentMethods lists every accepted payment method in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentCash, PaymentDebit, PaymentCredit, PaymentTransfer, PaymentAccountCredit}
}

// MovementType classifies stock ledger entries.
type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// Valid reports whether the movement type is known.
func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjustment:
		return true
	}
	return false
}

// Category groups products for listing and reporting.
type Category string

const (
	CategoryGeneral      Category = "GENERAL"
	CategoryFood         Category = "FOOD"
	CategoryBeverage     Category = "BEVERAGE"
	CategoryCleaning     Category = "CLEANING"
	CategoryPersonalCare Category = "PERSONAL_CARE"
	CategoryOther        Category = "OTHER"
)

// Valid reports whether the category is known.
func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryFood, CategoryBeverage, CategoryCleaning, CategoryPersonalCare, CategoryOther:
		return true
	}
	return false
}

// FiscalType tags the invoice kind printed for a sale. It has no effect on totals.
type FiscalType string

const (
	FiscalTicket   FiscalType = "TICKET"
	FiscalFacturaA FiscalType = "FACTURA_A"
	FiscalFacturaB FiscalType = "FACTURA_B"
	FiscalFacturaC FiscalType = "FACTURA_C"
)

// Valid reports whether the fiscal type is known.
func (f FiscalType) Valid() bool {
	switch f {
	case FiscalTicket, FiscalFacturaA, FiscalFacturaB, FiscalFacturaC:
		return true
	}
	return false
}

// Role identifies the permissions granted to a user.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCashier Role = "cashier"
)

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCashier
}

// ParsePromotionType normalises raw input into a PromotionType.
func ParsePromotionType(value string) (PromotionType, bool) {
	t := PromotionType(normalizeEnum(value))
	return t, t.Valid()
}

// ParsePaymentMethod normalises raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, bool) {
	m := PaymentMethod(normalizeEnum(value))
	return m, m.Valid()
}

// ParseMovementType normalises raw input into a MovementType.
func ParseMovementType(value string) (MovementType, bool) {
	t := MovementType(normalizeEnum(value))
	return t, t.Valid()
}

// ParseCategory normalises raw input into a Category, falling back to CategoryOther.
func ParseCategory(value string) Category {
	c := Category(normalizeEnum(value))
	if !c.Valid() {
		return CategoryOther
	}
	return c
}

// ParseFiscalType normalises raw input into a FiscalType, defaulting to a ticket.
func ParseFiscalType(value string) (FiscalType, bool) {
	if strings.TrimSpace(value) == "" {
		return FiscalTicket, true
	}
	f := FiscalType(normalizeEnum(value))
	return f, f.Valid()
}

// ParseRole normalises raw input into a Role.
func ParseRole(value string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(value)))
	return r, r.Valid()
}

func normalizeEnum(value string) string {
	v := strings.ToUpper(strings.TrimSpace(value))
	v = strings.ReplaceAll(v, "-", "_")
	return strings.ReplaceAll(v, " ", "_")
}
