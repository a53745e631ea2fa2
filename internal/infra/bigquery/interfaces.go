package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sie-import/internal/domain"
)

// Repository stores financial periods and import runs in BigQuery.
// It holds a shared client to avoid creating a new connection for each operation.
type Repository struct {
	client    *bigquery.Client
	datasetID string
}

// NewRepository creates a Repository for the given project and dataset.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return NewRepositoryWithClient(client, datasetID), nil
}

// NewRepositoryWithClient wraps an existing client.
func NewRepositoryWithClient(client *bigquery.Client, datasetID string) *Repository {
	return &Repository{client: client, datasetID: datasetID}
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// SaveFinancialPeriod upserts one period.
func (r *Repository) SaveFinancialPeriod(ctx context.Context, period *domain.FinancialPeriod) error {
	return SaveFinancialPeriodWithClient(ctx, r.client, r.datasetID, NewFinancialPeriodRow(period))
}

// ListFinancialPeriods returns the stored periods of a tenant, oldest first.
func (r *Repository) ListFinancialPeriods(ctx context.Context, tenantID string) ([]*domain.FinancialPeriod, error) {
	rows, err := ListFinancialPeriodsWithClient(ctx, r.client, r.datasetID, tenantID)
	if err != nil {
		return nil, err
	}
	periods := make([]*domain.FinancialPeriod, 0, len(rows))
	for _, row := range rows {
		p, err := row.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("ListFinancialPeriods: %s: %w", row.PeriodKey, err)
		}
		periods = append(periods, p)
	}
	return periods, nil
}

// StartImportRun creates or restarts a RUNNING import run and returns its id.
func (r *Repository) StartImportRun(ctx context.Context, row *ImportRunRow) (string, error) {
	return StartImportRunWithClient(ctx, r.client, r.datasetID, row)
}

// MarkImportRunFailed marks a run FAILED; errors are logged.
func (r *Repository) MarkImportRunFailed(ctx context.Context, importRunID string, runErr error) {
	MarkImportRunFailedWithClient(ctx, r.client, r.datasetID, importRunID, runErr)
}

// FinishImportRun records the final status of a run.
func (r *Repository) FinishImportRun(ctx context.Context, importRunID, status string, periodsImported int, errMsg string) error {
	return FinishImportRunWithClient(ctx, r.client, r.datasetID, importRunID, status, periodsImported, errMsg)
}

// GetImportRun loads a run by id, or nil if unknown.
func (r *Repository) GetImportRun(ctx context.Context, importRunID string) (*ImportRunRow, error) {
	return GetImportRunWithClient(ctx, r.client, r.datasetID, importRunID)
}
