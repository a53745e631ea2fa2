package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/sie-import/internal/domain"
	"github.com/dvloznov/sie-import/internal/jobs"
	"github.com/dvloznov/sie-import/internal/logger"
	"github.com/google/uuid"
)

// NewImportJobHandler returns a JobHandler that runs the import pipeline for
// ImportFileJobs. The job is given a run id before its first attempt and every
// retry reuses it, so one job maps to one import run. The per-period outcome
// is written back onto the job. A PARTIAL import completes the job; a run that saved nothing is
// returned as an error so the queue retries it.
func NewImportJobHandler(deps Deps) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		importJob, ok := job.(*jobs.ImportFileJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		if importJob.ImportRunID == "" {
			importJob.ImportRunID = uuid.NewString()
		}

		log := logger.FromContext(ctx).With().
			Str("job_id", importJob.JobID).
			Str("import_run_id", importJob.ImportRunID).
			Str("gcs_uri", importJob.GCSURI).
			Logger()
		log.Info().Msg("Processing import job")

		outcome, err := ImportSIEFromGCSWithDeps(logger.WithContext(ctx, log), ImportRequest{
			TenantID:    importJob.TenantID,
			ActorID:     importJob.ActorID,
			FiscalYear:  importJob.FiscalYear,
			GCSURI:      importJob.GCSURI,
			ImportRunID: importJob.ImportRunID,
		}, deps)
		if err != nil {
			log.Error().Err(err).Msg("Import pipeline failed")
			return err
		}

		importJob.ImportRunID = outcome.ImportRunID
		importJob.PeriodsImported = outcome.Result.PeriodsImported
		importJob.ImportErrors = outcome.Result.Errors

		if outcome.Status == domain.ImportStatusFailed {
			return errors.New("no period could be saved")
		}
		return nil
	}
}
