package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sie-import/internal/domain"
	"github.com/dvloznov/sie-import/internal/logger"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// StartImportRunWithClient marks an import run RUNNING and returns its id.
// A new id is generated when row.ImportRunID is empty. Starting an existing
// run again (a retried job) resets it in place instead of adding a row.
func StartImportRunWithClient(ctx context.Context, client *bigquery.Client, datasetID string, row *ImportRunRow) (string, error) {
	if row.ImportRunID == "" {
		row.ImportRunID = uuid.NewString()
	}
	row.Status = domain.ImportStatusRunning
	if row.StartedTS.IsZero() {
		row.StartedTS = time.Now()
	}

	q := client.Query(fmt.Sprintf(`
		MERGE %s T
		USING (
			SELECT
				@import_run_id AS import_run_id,
				@tenant_id AS tenant_id,
				@actor_id AS actor_id,
				@source_uri AS source_uri,
				@fiscal_year AS fiscal_year,
				@started_ts AS started_ts,
				@status AS status
		) S
		ON T.import_run_id = S.import_run_id
		WHEN MATCHED THEN UPDATE SET
			started_ts = S.started_ts,
			status = S.status,
			finished_ts = NULL,
			periods_imported = 0,
			error_message = NULL
		WHEN NOT MATCHED THEN INSERT (
			import_run_id,
			tenant_id,
			actor_id,
			source_uri,
			fiscal_year,
			started_ts,
			status,
			periods_imported
		)
		VALUES (
			S.import_run_id,
			S.tenant_id,
			S.actor_id,
			S.source_uri,
			S.fiscal_year,
			S.started_ts,
			S.status,
			0
		)
	`, tableRef(client, datasetID, importRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "import_run_id", Value: row.ImportRunID},
		{Name: "tenant_id", Value: row.TenantID},
		{Name: "actor_id", Value: row.ActorID},
		{Name: "source_uri", Value: row.SourceURI},
		{Name: "fiscal_year", Value: row.FiscalYear},
		{Name: "started_ts", Value: row.StartedTS},
		{Name: "status", Value: row.Status},
	}

	if err := runDML(ctx, q); err != nil {
		return "", fmt.Errorf("StartImportRunWithClient: %w", err)
	}
	return row.ImportRunID, nil
}

// MarkImportRunFailedWithClient sets status=FAILED, finished_ts and error_message.
// Failures are logged, not returned, so callers can use it on an error path.
func MarkImportRunFailedWithClient(ctx context.Context, client *bigquery.Client, datasetID, importRunID string, runErr error) {
	log := logger.FromContext(ctx)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}

	if err := finishImportRun(ctx, client, datasetID, importRunID, domain.ImportStatusFailed, 0, errMsg); err != nil {
		log.Error().
			Err(err).
			Str("import_run_id", importRunID).
			Msg("MarkImportRunFailed: updating run")
	}
}

// FinishImportRunWithClient records the final status of a run.
func FinishImportRunWithClient(ctx context.Context, client *bigquery.Client, datasetID, importRunID, status string, periodsImported int, errMsg string) error {
	if err := finishImportRun(ctx, client, datasetID, importRunID, status, periodsImported, errMsg); err != nil {
		return fmt.Errorf("FinishImportRunWithClient: %w", err)
	}
	return nil
}

func finishImportRun(ctx context.Context, client *bigquery.Client, datasetID, importRunID, status string, periodsImported int, errMsg string) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    periods_imported = @periods_imported,
		    error_message = @error_message
		WHERE import_run_id = @import_run_id
	`, tableRef(client, datasetID, importRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: status},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "periods_imported", Value: int64(periodsImported)},
		{Name: "error_message", Value: truncateErrorMessage(errMsg)},
		{Name: "import_run_id", Value: importRunID},
	}

	return runDML(ctx, q)
}

// GetImportRunWithClient loads one run. Returns nil if it does not exist.
func GetImportRunWithClient(ctx context.Context, client *bigquery.Client, datasetID, importRunID string) (*ImportRunRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			import_run_id,
			tenant_id,
			actor_id,
			source_uri,
			fiscal_year,
			started_ts,
			finished_ts,
			status,
			periods_imported,
			error_message
		FROM %s
		WHERE import_run_id = @import_run_id
		LIMIT 1
	`, tableRef(client, datasetID, importRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "import_run_id", Value: importRunID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetImportRunWithClient: reading query: %w", err)
	}

	var row ImportRunRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetImportRunWithClient: iterating: %w", err)
	}
	return &row, nil
}
