package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/sie-import/internal/importer"
	"github.com/dvloznov/sie-import/internal/logger"
)

// ImportRequest describes one SIE import.
// Either File or GCSURI must be set; File wins when both are.
type ImportRequest struct {
	TenantID   string
	ActorID    string
	FiscalYear int

	GCSURI   string
	File     []byte
	Filename string // recorded as the source when File is used

	// ImportRunID is optional; a new id is generated when empty.
	ImportRunID string
}

// SourceURI is the value recorded as the run's source.
func (r ImportRequest) SourceURI() string {
	if len(r.File) > 0 && r.Filename != "" {
		return r.Filename
	}
	return r.GCSURI
}

// Deps are the collaborators of the import pipeline.
type Deps struct {
	Runs    RunTracker
	Storage StorageService
	Store   PeriodStore
}

// Outcome is the result of a completed pipeline run.
type Outcome struct {
	ImportRunID string           `json:"import_run_id"`
	Status      string           `json:"status"`
	Result      *importer.Result `json:"result"`
}

// ImportSIEFromGCSWithDeps runs the import pipeline for one file.
// A run that wrote only some periods is not an error; its Outcome has
// status PARTIAL and lists the per-period errors.
func ImportSIEFromGCSWithDeps(ctx context.Context, req ImportRequest, deps Deps) (*Outcome, error) {
	if deps.Runs == nil {
		deps.Runs = LogRunTracker{}
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("ImportSIEFromGCSWithDeps: no period store configured")
	}
	if req.TenantID == "" {
		return nil, fmt.Errorf("ImportSIEFromGCSWithDeps: %w", importer.ErrMissingTenant)
	}

	log := logger.FromContext(ctx).With().
		Str("tenant_id", req.TenantID).
		Str("source", req.SourceURI()).
		Logger()
	ctx = logger.WithContext(ctx, log)

	state := &PipelineState{Request: req}
	if err := NewImportPipeline(deps).Execute(ctx, state); err != nil {
		return nil, fmt.Errorf("ImportSIEFromGCSWithDeps: %w", err)
	}

	log.Info().
		Str("import_run_id", state.ImportRunID).
		Str("status", state.Status).
		Int("periods_imported", state.Result.PeriodsImported).
		Msg("SIE import pipeline completed")

	return &Outcome{
		ImportRunID: state.ImportRunID,
		Status:      state.Status,
		Result:      state.Result,
	}, nil
}
