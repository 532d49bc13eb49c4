// Package importer loads product batches and clears the catalog, taking a snapshot first.
package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/backend-kasir/internal/backup"
	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/obs"
)

// ClearReport summarises a clear-all.
type ClearReport struct {
	Removed  int    `json:"removed"`
	BackupID string `json:"backupId"`
}

// Service runs destructive bulk operations behind an automatic backup.
type Service struct {
	Catalog *catalog.Service
	Backups *backup.Service
	Events  *events.Bus
}

func (s *Service) ready() error {
	if s == nil || s.Catalog == nil || s.Backups == nil {
		return errors.New("importer service not configured")
	}
	return nil
}

// Import snapshots the catalog, normalises records and appends the accepted products.
// Imported stock is not logged as movements.
func (s *Service) Import(ctx context.Context, records []Record, actor *model.Actor) (Report, error) {
	if err := s.ready(); err != nil {
		return Report{}, err
	}
	snap, err := s.Backups.Create(ctx, true, "before import")
	if err != nil {
		return Report{}, fmt.Errorf("backup before import: %w", err)
	}
	var report Report
	_, err = s.Catalog.ImportFunc(ctx, func(existing map[string]struct{}) []model.Product {
		var products []model.Product
		products, report = Normalize(records, existing)
		return products
	})
	if err != nil {
		return Report{}, err
	}
	report.BackupID = snap.ID

	obs.CountImportRecords("accepted", report.Accepted)
	obs.CountImportRecords("dropped", report.Dropped)
	obs.CountImportRecords("reassigned", report.Reassigned)
	payload := map[string]any{"report": report}
	if actor != nil {
		payload["userId"] = actor.UserID
	}
	s.Events.Publish(ctx, events.TopicCatalogImported, snap.ID, payload)
	return report, nil
}

// ClearAll snapshots the catalog and removes every product. Sales and movements are kept.
func (s *Service) ClearAll(ctx context.Context, actor *model.Actor) (ClearReport, error) {
	if err := s.ready(); err != nil {
		return ClearReport{}, err
	}
	snap, err := s.Backups.Create(ctx, true, "before clear")
	if err != nil {
		return ClearReport{}, fmt.Errorf("backup before clear: %w", err)
	}
	removed, err := s.Catalog.Clear(ctx)
	if err != nil {
		return ClearReport{}, err
	}
	report := ClearReport{Removed: removed, BackupID: snap.ID}
	payload := map[string]any{"removed": removed}
	if actor != nil {
		payload["userId"] = actor.UserID
	}
	s.Events.Publish(ctx, events.TopicCatalogCleared, snap.ID, payload)
	return report, nil
}
