// Package backup snapshots the product collection and restores it wholesale.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/store"
)

// ErrNotFound is returned when no backup has the requested id.
var ErrNotFound = errors.New("backup not found")

// Info is a backup without its payload, used for listings.
type Info struct {
	ID            string    `json:"id"`
	Date          time.Time `json:"date"`
	Reason        string    `json:"reason,omitempty"`
	ProductCount  int       `json:"productCount"`
	Size          int       `json:"size"`
	AutoGenerated bool      `json:"autoGenerated"`
}

// Service creates, lists, restores and deletes product snapshots.
// Restores replace products only; sales, movements and customers are untouched.
type Service struct {
	Backups *store.Collection[model.Backup]
	Catalog *catalog.Service
	// MaxAuto caps retained auto-generated backups; zero keeps all of them.
	MaxAuto int
	Events  *events.Bus
	Now     func() time.Time

	mu sync.Mutex
}

// NewService binds backups to kv and the product owner.
func NewService(kv store.KV, c *catalog.Service) *Service {
	return &Service{Backups: store.NewCollection[model.Backup](kv, store.KeyBackups), Catalog: c}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.Backups == nil || s.Catalog == nil {
		return errors.New("backup service not configured")
	}
	return nil
}

// Create snapshots the current product collection.
func (s *Service) Create(ctx context.Context, autoGenerated bool, reason string) (model.Backup, error) {
	if err := s.ready(); err != nil {
		return model.Backup{}, err
	}
	products, err := s.Catalog.All(ctx)
	if err != nil {
		return model.Backup{}, err
	}
	raw, err := json.Marshal(products)
	if err != nil {
		return model.Backup{}, fmt.Errorf("encode snapshot: %w", err)
	}
	b := model.Backup{
		ID:            uuid.NewString(),
		Date:          s.now(),
		Reason:        reason,
		Products:      raw,
		ProductCount:  len(products),
		Size:          len(raw),
		AutoGenerated: autoGenerated,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.Backups.Load(ctx)
	if err != nil {
		return model.Backup{}, err
	}
	all = prune(append(all, b), s.MaxAuto)
	if err := s.Backups.Save(ctx, all); err != nil {
		return model.Backup{}, err
	}

	kind := "manual"
	if autoGenerated {
		kind = "auto"
	}
	obs.CountBackup(kind)
	s.Events.Publish(ctx, events.TopicBackupCreated, b.ID, map[string]any{
		"auto":     autoGenerated,
		"products": b.ProductCount,
		"size":     b.Size,
		"reason":   reason,
	})
	return b, nil
}

// Restore replaces the live product collection with the snapshot. A missing id
// reports false and changes nothing. The movement ledger is not replayed.
func (s *Service) Restore(ctx context.Context, id string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	b, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		obs.CountRestore("missing")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	products := make([]model.Product, 0, b.ProductCount)
	if err := json.Unmarshal(b.Products, &products); err != nil {
		obs.CountRestore("corrupt")
		return false, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	if err := s.Catalog.ReplaceAll(ctx, products); err != nil {
		obs.CountRestore("error")
		return false, err
	}
	obs.CountRestore("ok")
	s.Events.Publish(ctx, events.TopicBackupRestored, b.ID, map[string]any{"products": len(products)})
	return true, nil
}

// Delete removes a backup record. Products are unaffected.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.Backups.Load(ctx)
	if err != nil {
		return err
	}
	for i := range all {
		if all[i].ID == id {
			return s.Backups.Save(ctx, append(all[:i], all[i+1:]...))
		}
	}
	return ErrNotFound
}

// Get returns a backup including its payload.
func (s *Service) Get(ctx context.Context, id string) (model.Backup, error) {
	if err := s.ready(); err != nil {
		return model.Backup{}, err
	}
	all, err := s.Backups.Load(ctx)
	if err != nil {
		return model.Backup{}, err
	}
	for _, b := range all {
		if b.ID == id {
			return b, nil
		}
	}
	return model.Backup{}, ErrNotFound
}

// List returns backup metadata, newest first.
func (s *Service) List(ctx context.Context) ([]Info, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	all, err := s.Backups.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(all))
	for _, b := range all {
		out = append(out, Info{
			ID:            b.ID,
			Date:          b.Date,
			Reason:        b.Reason,
			ProductCount:  b.ProductCount,
			Size:          b.Size,
			AutoGenerated: b.AutoGenerated,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// prune drops the oldest auto-generated backups beyond maxAuto. Manual backups are always kept.
func prune(all []model.Backup, maxAuto int) []model.Backup {
	if maxAuto <= 0 {
		return all
	}
	autos := 0
	for _, b := range all {
		if b.AutoGenerated {
			autos++
		}
	}
	drop := autos - maxAuto
	if drop <= 0 {
		return all
	}
	out := make([]model.Backup, 0, len(all)-drop)
	for _, b := range all {
		if b.AutoGenerated && drop > 0 {
			drop--
			continue
		}
		out = append(out, b)
	}
	return out
}
