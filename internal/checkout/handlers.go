package checkout

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/customer"
	"github.com/noah-isme/backend-kasir/internal/model"
)

// Handler exposes quoting and sale confirmation. Carts is optional; without it only
// inline items are accepted.
type Handler struct {
	Svc    *Service
	Carts  *cart.Service
	Logger zerolog.Logger
}

type lineInput struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// QuoteInput prices either a stored cart or inline lines.
type QuoteInput struct {
	CartID string      `json:"cartId"`
	Items  []lineInput `json:"items" validate:"omitempty,dive"`
}

// ConfirmInput is the payload of POST /api/v1/checkout.
type ConfirmInput struct {
	CartID        string      `json:"cartId"`
	Items         []lineInput `json:"items" validate:"omitempty,dive"`
	PaymentMethod string      `json:"paymentMethod" validate:"required"`
	CustomerID    string      `json:"customerId"`
	FiscalType    string      `json:"fiscalType"`
}

// Quote handles POST /api/v1/checkout/quote.
func (h Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in QuoteInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(in); err != nil {
		common.WriteError(w, err)
		return
	}
	items, err := h.lines(r, in.CartID, in.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	totals, err := h.Svc.Quote(r.Context(), items)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": totals})
}

// Confirm handles POST /api/v1/checkout. A stored cart is discarded once its sale is recorded.
func (h Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in ConfirmInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(in); err != nil {
		common.WriteError(w, err)
		return
	}
	items, err := h.lines(r, in.CartID, in.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	sale, err := h.Svc.ConfirmSale(r.Context(), Request{
		Items:         items,
		PaymentMethod: model.PaymentMethod(in.PaymentMethod),
		CustomerID:    in.CustomerID,
		FiscalType:    model.FiscalType(in.FiscalType),
	}, common.ActorRef(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	if in.CartID != "" && h.Carts != nil {
		if err := h.Carts.Discard(r.Context(), in.CartID); err != nil {
			h.Logger.Warn().Err(err).
				Str("cart_id", in.CartID).
				Str("sale_id", sale.ID).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("discard cart after sale")
		}
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": sale})
}

func (h Handler) lines(r *http.Request, cartID string, inline []lineInput) ([]model.SaleItem, error) {
	if cartID != "" {
		if h.Carts == nil {
			return nil, common.BadRequest("carts are not available", nil)
		}
		c, err := h.Carts.Get(r.Context(), cartID)
		if err != nil {
			return nil, err
		}
		return c.Items, nil
	}
	items := make([]model.SaleItem, 0, len(inline))
	for _, line := range inline {
		items = append(items, model.SaleItem{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return items, nil
}

func (h Handler) ready(w http.ResponseWriter) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case common.IsAppError(err):
		common.WriteError(w, err)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusBadRequest, "EMPTY_CART", "cart is empty", nil)
	case errors.Is(err, ErrInvalidPayment):
		common.JSONError(w, http.StatusBadRequest, "INVALID_PAYMENT", err.Error(), map[string]any{"accepted": model.PaymentMethods()})
	case errors.Is(err, ErrInvalidFiscalType):
		common.JSONError(w, http.StatusBadRequest, "INVALID_FISCAL_TYPE", err.Error(), nil)
	case errors.Is(err, ErrCustomerRequired):
		common.JSONError(w, http.StatusBadRequest, "CUSTOMER_REQUIRED", err.Error(), nil)
	case errors.Is(err, ErrUnknownProduct):
		common.JSONError(w, http.StatusUnprocessableEntity, "UNKNOWN_PRODUCT", err.Error(), nil)
	case errors.Is(err, customer.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "customer not found", nil)
	case errors.Is(err, cart.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	default:
		common.WriteError(w, err)
	}
}
