// Package customer keeps customer records and their account-credit balances.
package customer

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/store"
)

var (
	// ErrNotFound is returned when no customer has the requested id.
	ErrNotFound = errors.New("customer not found")
	// ErrInvalidAmount rejects non-positive charges and settlements.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrOutstandingBalance blocks deleting a customer that still owes money.
	ErrOutstandingBalance = errors.New("customer has an outstanding balance")
)

// Input is the editable part of a customer.
type Input struct {
	Name    string `json:"name" validate:"required,max=120"`
	Phone   string `json:"phone" validate:"max=40"`
	Email   string `json:"email" validate:"omitempty,email"`
	TaxID   string `json:"taxId" validate:"max=20"`
	Address string `json:"address" validate:"max=300"`
}

// Service owns the customer collection.
type Service struct {
	Customers *store.Collection[model.Customer]
	Now       func() time.Time

	mu sync.Mutex
}

// NewService wires the customer store over kv.
func NewService(kv store.KV) *Service {
	return &Service{Customers: store.NewCollection[model.Customer](kv, store.KeyCustomers)}
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.Customers == nil {
		return errors.New("customer service not configured")
	}
	return nil
}

// List returns customers sorted by name, optionally filtered by a name, phone or tax id fragment.
func (s *Service) List(ctx context.Context, query string) ([]model.Customer, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	all, err := s.Customers.Load(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Customer, 0, len(all))
	for _, c := range all {
		if q != "" && !strings.Contains(strings.ToLower(c.Name), q) && !strings.Contains(c.Phone, q) && !strings.Contains(strings.ToLower(c.TaxID), q) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

// Get returns one customer.
func (s *Service) Get(ctx context.Context, id string) (model.Customer, error) {
	if err := s.ready(); err != nil {
		return model.Customer{}, err
	}
	all, err := s.Customers.Load(ctx)
	if err != nil {
		return model.Customer{}, err
	}
	if i := indexOf(all, id); i >= 0 {
		return all[i], nil
	}
	return model.Customer{}, ErrNotFound
}

// Create adds a customer with a zero balance.
func (s *Service) Create(ctx context.Context, in Input) (model.Customer, error) {
	if err := s.ready(); err != nil {
		return model.Customer{}, err
	}
	in = trim(in)
	if err := common.ValidateStruct(in); err != nil {
		return model.Customer{}, err
	}
	now := s.now()
	c := model.Customer{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Phone:     in.Phone,
		Email:     in.Email,
		TaxID:     in.TaxID,
		Address:   in.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.mutate(ctx, func(all []model.Customer) ([]model.Customer, error) {
		return append(all, c), nil
	})
	if err != nil {
		return model.Customer{}, err
	}
	return c, nil
}

// Update replaces a customer's contact data. The balance is only changed by Charge and Settle.
func (s *Service) Update(ctx context.Context, id string, in Input) (model.Customer, error) {
	if err := s.ready(); err != nil {
		return model.Customer{}, err
	}
	in = trim(in)
	if err := common.ValidateStruct(in); err != nil {
		return model.Customer{}, err
	}
	var updated model.Customer
	err := s.mutate(ctx, func(all []model.Customer) ([]model.Customer, error) {
		i := indexOf(all, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		c := &all[i]
		c.Name, c.Phone, c.Email, c.TaxID, c.Address = in.Name, in.Phone, in.Email, in.TaxID, in.Address
		c.UpdatedAt = s.now()
		updated = *c
		return all, nil
	})
	return updated, err
}

// Delete removes a customer whose balance is settled.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.mutate(ctx, func(all []model.Customer) ([]model.Customer, error) {
		i := indexOf(all, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		if !decimal.NewFromFloat(all[i].Balance).IsZero() {
			return nil, ErrOutstandingBalance
		}
		return append(all[:i], all[i+1:]...), nil
	})
}

// Charge adds amount to the customer's account-credit balance.
func (s *Service) Charge(ctx context.Context, id string, amount float64) (model.Customer, error) {
	if amount <= 0 {
		return model.Customer{}, ErrInvalidAmount
	}
	return s.adjust(ctx, id, decimal.NewFromFloat(amount))
}

// Settle records a payment against the customer's balance.
func (s *Service) Settle(ctx context.Context, id string, amount float64) (model.Customer, error) {
	if amount <= 0 {
		return model.Customer{}, ErrInvalidAmount
	}
	return s.adjust(ctx, id, decimal.NewFromFloat(amount).Neg())
}

func (s *Service) adjust(ctx context.Context, id string, delta decimal.Decimal) (model.Customer, error) {
	if err := s.ready(); err != nil {
		return model.Customer{}, err
	}
	var updated model.Customer
	err := s.mutate(ctx, func(all []model.Customer) ([]model.Customer, error) {
		i := indexOf(all, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		balance := decimal.NewFromFloat(all[i].Balance).Add(delta).Round(2)
		all[i].Balance = balance.InexactFloat64()
		all[i].UpdatedAt = s.now()
		updated = all[i]
		return all, nil
	})
	return updated, err
}

func (s *Service) mutate(ctx context.Context, fn func([]model.Customer) ([]model.Customer, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.Customers.Load(ctx)
	if err != nil {
		return err
	}
	next, err := fn(all)
	if err != nil {
		return err
	}
	return s.Customers.Save(ctx, next)
}

func trim(in Input) Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	in.TaxID = strings.TrimSpace(in.TaxID)
	in.Address = strings.TrimSpace(in.Address)
	return in
}

func indexOf(all []model.Customer, id string) int {
	for i := range all {
		if all[i].ID == id {
			return i
		}
	}
	return -1
}
