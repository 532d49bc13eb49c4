// Package supplier keeps the supplier directory.
package supplier

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/store"
)

// ErrNotFound is returned when no supplier has the requested id.
var ErrNotFound = errors.New("supplier not found")

// Input is the editable part of a supplier.
type Input struct {
	Name    string `json:"name" validate:"required,max=120"`
	Contact string `json:"contact" validate:"max=120"`
	Phone   string `json:"phone" validate:"max=40"`
	Email   string `json:"email" validate:"omitempty,email"`
	Notes   string `json:"notes" validate:"max=1000"`
}

// Service owns the supplier collection.
type Service struct {
	Suppliers *store.Collection[model.Supplier]
	Now       func() time.Time

	mu sync.Mutex
}

func NewService(kv store.KV) *Service {
	return &Service{Suppliers: store.NewCollection[model.Supplier](kv, store.KeySuppliers)}
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.Suppliers == nil {
		return errors.New("supplier service not configured")
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]model.Supplier, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	all, err := s.Suppliers.Load(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return strings.ToLower(all[i].Name) < strings.ToLower(all[j].Name) })
	return all, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Supplier, error) {
	all, err := s.List(ctx)
	if err != nil {
		return model.Supplier{}, err
	}
	for _, sup := range all {
		if sup.ID == id {
			return sup, nil
		}
	}
	return model.Supplier{}, ErrNotFound
}

func (s *Service) Create(ctx context.Context, in Input) (model.Supplier, error) {
	if err := s.ready(); err != nil {
		return model.Supplier{}, err
	}
	in = trim(in)
	if err := common.ValidateStruct(in); err != nil {
		return model.Supplier{}, err
	}
	now := s.now()
	sup := model.Supplier{ID: uuid.NewString(), CreatedAt: now}
	apply(&sup, in, now)
	err := s.mutate(ctx, func(all []model.Supplier) ([]model.Supplier, error) {
		return append(all, sup), nil
	})
	if err != nil {
		return model.Supplier{}, err
	}
	return sup, nil
}

func (s *Service) Update(ctx context.Context, id string, in Input) (model.Supplier, error) {
	if err := s.ready(); err != nil {
		return model.Supplier{}, err
	}
	in = trim(in)
	if err := common.ValidateStruct(in); err != nil {
		return model.Supplier{}, err
	}
	var updated model.Supplier
	err := s.mutate(ctx, func(all []model.Supplier) ([]model.Supplier, error) {
		for i := range all {
			if all[i].ID == id {
				apply(&all[i], in, s.now())
				updated = all[i]
				return all, nil
			}
		}
		return nil, ErrNotFound
	})
	return updated, err
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.mutate(ctx, func(all []model.Supplier) ([]model.Supplier, error) {
		for i := range all {
			if all[i].ID == id {
				return append(all[:i], all[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
}

func (s *Service) mutate(ctx context.Context, fn func([]model.Supplier) ([]model.Supplier, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.Suppliers.Load(ctx)
	if err != nil {
		return err
	}
	next, err := fn(all)
	if err != nil {
		return err
	}
	return s.Suppliers.Save(ctx, next)
}

func apply(sup *model.Supplier, in Input, now time.Time) {
	sup.Name, sup.Contact, sup.Phone, sup.Email, sup.Notes = in.Name, in.Contact, in.Phone, in.Email, in.Notes
	sup.UpdatedAt = now
}

func trim(in Input) Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Contact = strings.TrimSpace(in.Contact)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	in.Notes = strings.TrimSpace(in.Notes)
	return in
}
