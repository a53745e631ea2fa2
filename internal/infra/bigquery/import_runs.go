package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

const importRunsTable = "import_runs"

// maxErrorMessageLen bounds import_runs.error_message.
const maxErrorMessageLen = 2000

type ImportRunRow struct {
	ImportRunID string `bigquery:"import_run_id"` // REQUIRED
	TenantID    string `bigquery:"tenant_id"`     // REQUIRED
	ActorID     string `bigquery:"actor_id"`      // NULLABLE
	SourceURI   string `bigquery:"source_uri"`    // NULLABLE, gs:// or local name
	FiscalYear  int64  `bigquery:"fiscal_year"`   // REQUIRED, SIE year index

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status          string `bigquery:"status"`           // RUNNING | SUCCESS | PARTIAL | FAILED
	PeriodsImported int64  `bigquery:"periods_imported"` // NULLABLE
	ErrorMessage    string `bigquery:"error_message"`    // NULLABLE
}

// truncateErrorMessage caps msg at maxErrorMessageLen bytes.
func truncateErrorMessage(msg string) string {
	if len(msg) > maxErrorMessageLen {
		return msg[:maxErrorMessageLen]
	}
	return msg
}
