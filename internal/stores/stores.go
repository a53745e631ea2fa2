package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/sie-import/internal/config"
	"github.com/dvloznov/sie-import/internal/domain"
	"github.com/dvloznov/sie-import/internal/importer"
	infra "github.com/dvloznov/sie-import/internal/infra/bigquery"
	"github.com/dvloznov/sie-import/internal/notionsync"
	"github.com/dvloznov/sie-import/internal/pipeline"
)

// PeriodRepository writes and reads back financial periods.
type PeriodRepository interface {
	importer.PeriodStore
	ListFinancialPeriods(ctx context.Context, tenantID string) ([]*domain.FinancialPeriod, error)
}

// Backend is the configured period store together with its run tracker.
type Backend struct {
	Name    string
	Periods PeriodRepository
	Runs    pipeline.RunTracker

	closers []func() error
}

// Open builds the backend selected by cfg.Store.Backend.
// BigQuery records import runs in its import_runs table; Notion only logs them.
func Open(ctx context.Context, cfg config.Config) (*Backend, error) {
	switch cfg.Store.Backend {
	case config.StoreBigQuery:
		if err := cfg.RequireBigQuery(); err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		repo, err := infra.NewRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		return &Backend{
			Name:    config.StoreBigQuery,
			Periods: repo,
			Runs:    repo,
			closers: []func() error{repo.Close},
		}, nil

	case config.StoreNotion:
		if err := cfg.RequireNotion(); err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		client := notionsync.NewNotionClient(cfg.Notion.Token)
		return &Backend{
			Name:    config.StoreNotion,
			Periods: notionsync.NewPeriodStore(client, cfg.Notion.DatabaseID),
			Runs:    pipeline.LogRunTracker{},
		}, nil
	}

	return nil, fmt.Errorf("Open: unknown store backend %q", cfg.Store.Backend)
}

// Deps returns pipeline dependencies using this backend and storage.
func (b *Backend) Deps(storage pipeline.StorageService) pipeline.Deps {
	return pipeline.Deps{
		Runs:    b.Runs,
		Storage: storage,
		Store:   b.Periods,
	}
}

// Close releases any clients held by the backend.
func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ PeriodRepository = (*infra.Repository)(nil)
	_ PeriodRepository = (*notionsync.PeriodStore)(nil)
)
