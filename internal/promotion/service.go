// Package promotion manages the ordered promotion list. List order is precedence order:
// when several active promotions target a product the later one wins at pricing time.
package promotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/store"
)

var (
	// ErrNotFound is returned when no promotion has the requested id.
	ErrNotFound = errors.New("promotion not found")
	// ErrUnknownProduct marks promotions whose target is not in the catalog.
	ErrUnknownProduct = errors.New("target product not found")
)

// ProductLookup resolves promotion targets.
type ProductLookup interface {
	Get(ctx context.Context, id string) (model.Product, error)
}

// Input is the editable part of a promotion.
type Input struct {
	Name            string  `json:"name" validate:"required,max=120"`
	Type            string  `json:"type" validate:"required"`
	TargetProductID string  `json:"targetProductId" validate:"required"`
	Value           float64 `json:"value" validate:"gte=0"`
	M               int     `json:"m" validate:"gte=0"`
	N               int     `json:"n" validate:"gte=0"`
	MinQuantity     int     `json:"minQuantity" validate:"gte=0"`
	Active          *bool   `json:"active"`
}

// Service stores promotions as one ordered collection.
type Service struct {
	Promotions *store.Collection[model.Promotion]
	Products   ProductLookup

	mu sync.Mutex
}

// NewService wires the promotion list over kv.
func NewService(kv store.KV, products ProductLookup) *Service {
	return &Service{Promotions: store.NewCollection[model.Promotion](kv, store.KeyPromotions), Products: products}
}

func (s *Service) ready() error {
	if s == nil || s.Promotions == nil {
		return errors.New("promotion service not configured")
	}
	return nil
}

// List returns every promotion in precedence order.
func (s *Service) List(ctx context.Context) ([]model.Promotion, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.Promotions.Load(ctx)
}

// Active returns the active promotions in precedence order.
func (s *Service) Active(ctx context.Context) ([]model.Promotion, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Promotion, 0, len(all))
	for _, p := range all {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

// Get returns one promotion.
func (s *Service) Get(ctx context.Context, id string) (model.Promotion, error) {
	all, err := s.List(ctx)
	if err != nil {
		return model.Promotion{}, err
	}
	if i := indexOf(all, id); i >= 0 {
		return all[i], nil
	}
	return model.Promotion{}, ErrNotFound
}

// Create validates and appends a promotion at the end of the list.
func (s *Service) Create(ctx context.Context, in Input) (model.Promotion, error) {
	if err := s.ready(); err != nil {
		return model.Promotion{}, err
	}
	promo, err := s.build(ctx, in)
	if err != nil {
		return model.Promotion{}, err
	}
	promo.ID = uuid.NewString()
	if in.Active == nil {
		promo.Active = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.Promotions.Load(ctx)
	if err != nil {
		return model.Promotion{}, err
	}
	if err := s.Promotions.Save(ctx, append(all, promo)); err != nil {
		return model.Promotion{}, err
	}
	return promo, nil
}

// Update replaces a promotion in place, keeping its position in the list.
func (s *Service) Update(ctx context.Context, id string, in Input) (model.Promotion, error) {
	if err := s.ready(); err != nil {
		return model.Promotion{}, err
	}
	promo, err := s.build(ctx, in)
	if err != nil {
		return model.Promotion{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.Promotions.Load(ctx)
	if err != nil {
		return model.Promotion{}, err
	}
	i := indexOf(all, id)
	if i < 0 {
		return model.Promotion{}, ErrNotFound
	}
	promo.ID = id
	if in.Active == nil {
		promo.Active = all[i].Active
	}
	all[i] = promo
	if err := s.Promotions.Save(ctx, all); err != nil {
		return model.Promotion{}, err
	}
	return promo, nil
}

// SetActive toggles a promotion without touching its rule.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (model.Promotion, error) {
	if err := s.ready(); err != nil {
		return model.Promotion{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.Promotions.Load(ctx)
	if err != nil {
		return model.Promotion{}, err
	}
	i := indexOf(all, id)
	if i < 0 {
		return model.Promotion{}, ErrNotFound
	}
	all[i].Active = active
	if err := s.Promotions.Save(ctx, all); err != nil {
		return model.Promotion{}, err
	}
	return all[i], nil
}

// Delete removes a promotion.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.Promotions.Load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(all, id)
	if i < 0 {
		return ErrNotFound
	}
	return s.Promotions.Save(ctx, append(all[:i], all[i+1:]...))
}

func (s *Service) build(ctx context.Context, in Input) (model.Promotion, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.TargetProductID = strings.TrimSpace(in.TargetProductID)
	if err := common.ValidateStruct(in); err != nil {
		return model.Promotion{}, err
	}
	kind, ok := model.ParsePromotionType(in.Type)
	if !ok {
		return model.Promotion{}, ruleError("type", "oneof=PERCENTAGE BULK M_X_N")
	}
	promo := model.Promotion{
		Name:            in.Name,
		Type:            kind,
		TargetProductID: in.TargetProductID,
		Active:          in.Active != nil && *in.Active,
	}
	switch kind {
	case model.PromotionPercentage:
		if in.Value > 100 {
			return model.Promotion{}, ruleError("value", "lte=100")
		}
		promo.Value = in.Value
	case model.PromotionBulk:
		if in.MinQuantity < 1 {
			return model.Promotion{}, ruleError("minQuantity", "gte=1")
		}
		promo.Value = in.Value
		promo.MinQuantity = in.MinQuantity
	case model.PromotionMxN:
		if in.M < 1 {
			return model.Promotion{}, ruleError("m", "gte=1")
		}
		promo.M = in.M
		promo.N = in.N
	}
	if s.Products != nil {
		if _, err := s.Products.Get(ctx, promo.TargetProductID); err != nil {
			return model.Promotion{}, fmt.Errorf("%w: %s", ErrUnknownProduct, promo.TargetProductID)
		}
	}
	return promo, nil
}

func ruleError(field, rule string) error {
	appErr := common.BadRequest("validation failed", nil)
	appErr.Details = map[string]any{"fields": map[string]string{field: rule}}
	return appErr
}

func indexOf(all []model.Promotion, id string) int {
	for i := range all {
		if all[i].ID == id {
			return i
		}
	}
	return -1
}
