package pipeline

import (
	"context"

	"github.com/dvloznov/sie-import/internal/importer"
	infra "github.com/dvloznov/sie-import/internal/infra/bigquery"
	"github.com/dvloznov/sie-import/internal/logger"
	"github.com/google/uuid"
)

// StorageService is an interface for storage operations.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURI(uri string) string
}

// RunTracker records the lifecycle of an import run.
type RunTracker interface {
	StartImportRun(ctx context.Context, row *infra.ImportRunRow) (string, error)
	MarkImportRunFailed(ctx context.Context, importRunID string, runErr error)
	FinishImportRun(ctx context.Context, importRunID, status string, periodsImported int, errMsg string) error
}

// PeriodStore is where imported periods are written.
type PeriodStore = importer.PeriodStore

// LogRunTracker is a RunTracker that only logs, for stores without a runs table.
type LogRunTracker struct{}

func (LogRunTracker) StartImportRun(ctx context.Context, row *infra.ImportRunRow) (string, error) {
	if row.ImportRunID == "" {
		row.ImportRunID = uuid.NewString()
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("import_run_id", row.ImportRunID).
		Str("tenant_id", row.TenantID).
		Str("source_uri", row.SourceURI).
		Msg("Import run started")
	return row.ImportRunID, nil
}

func (LogRunTracker) MarkImportRunFailed(ctx context.Context, importRunID string, runErr error) {
	log := logger.FromContext(ctx)
	log.Error().Err(runErr).Str("import_run_id", importRunID).Msg("Import run failed")
}

func (LogRunTracker) FinishImportRun(ctx context.Context, importRunID, status string, periodsImported int, errMsg string) error {
	log := logger.FromContext(ctx)
	log.Info().
		Str("import_run_id", importRunID).
		Str("status", status).
		Int("periods_imported", periodsImported).
		Str("error_message", errMsg).
		Msg("Import run finished")
	return nil
}

var _ RunTracker = LogRunTracker{}
var _ RunTracker = (*infra.Repository)(nil)
var _ PeriodStore = (*infra.Repository)(nil)
