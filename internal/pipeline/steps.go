package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/sie-import/internal/domain"
	"github.com/dvloznov/sie-import/internal/importer"
	infra "github.com/dvloznov/sie-import/internal/infra/bigquery"
	"github.com/dvloznov/sie-import/internal/logger"
	"github.com/dvloznov/sie-import/internal/sie"
)

// PipelineStep represents a single step in the import pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Request     ImportRequest
	ImportRunID string
	FileBytes   []byte
	Parsed      *sie.Result
	Result      *importer.Result
	Status      string
}

var (
	// ErrNoFile is returned when neither file bytes nor a GCS URI were supplied.
	ErrNoFile = errors.New("no SIE file to import")
	// ErrFiscalYearNotDeclared is returned when the file has no #RAR for the requested index.
	ErrFiscalYearNotDeclared = errors.New("fiscal year not declared in the file")
)

// Step 1: StartImportRunStep creates the import run (status=RUNNING).
type StartImportRunStep struct {
	Runs RunTracker
}

func (s *StartImportRunStep) Execute(ctx context.Context, state *PipelineState) error {
	req := state.Request
	id, err := s.Runs.StartImportRun(ctx, &infra.ImportRunRow{
		ImportRunID: req.ImportRunID,
		TenantID:    req.TenantID,
		ActorID:     req.ActorID,
		SourceURI:   req.SourceURI(),
		FiscalYear:  int64(req.FiscalYear),
	})
	if err != nil {
		return err
	}
	state.ImportRunID = id
	return nil
}

// Step 2: FetchFileStep downloads the SIE file from GCS unless its bytes are already present.
type FetchFileStep struct {
	Runs    RunTracker
	Storage StorageService
}

func (s *FetchFileStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Request.File) > 0 {
		state.FileBytes = state.Request.File
		return nil
	}
	if state.Request.GCSURI == "" {
		s.Runs.MarkImportRunFailed(ctx, state.ImportRunID, ErrNoFile)
		return ErrNoFile
	}

	if s.Storage == nil {
		err := fmt.Errorf("no storage configured to fetch %s", state.Request.GCSURI)
		s.Runs.MarkImportRunFailed(ctx, state.ImportRunID, err)
		return err
	}

	data, err := s.Storage.FetchFromGCS(ctx, state.Request.GCSURI)
	if err != nil {
		s.Runs.MarkImportRunFailed(ctx, state.ImportRunID, err)
		return err
	}
	state.FileBytes = data
	return nil
}

// Step 3: ParseFileStep decodes and parses the SIE file.
// Malformed numeric fields are logged; they do not fail the run.
type ParseFileStep struct {
	Runs RunTracker
}

func (s *ParseFileStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	res := sie.ParseBytes(state.FileBytes)
	for _, issue := range res.Issues {
		log.Warn().
			Str("import_run_id", state.ImportRunID).
			Int("line", issue.Line).
			Str("tag", issue.Tag).
			Str("value", issue.Value).
			Msg("Skipped SIE record with an unparseable field")
	}

	if _, ok := res.FiscalYear(state.Request.FiscalYear); !ok {
		err := fmt.Errorf("fiscal year %d: %w", state.Request.FiscalYear, ErrFiscalYearNotDeclared)
		s.Runs.MarkImportRunFailed(ctx, state.ImportRunID, err)
		return err
	}

	state.Parsed = res
	return nil
}

// Step 4: ImportPeriodsStep aggregates the fiscal year and writes every period.
type ImportPeriodsStep struct {
	Runs     RunTracker
	Importer *importer.Importer
}

func (s *ImportPeriodsStep) Execute(ctx context.Context, state *PipelineState) error {
	req := state.Request
	result, err := s.Importer.ImportFiscalYear(ctx, req.TenantID, state.Parsed, req.ActorID, req.FiscalYear)
	if err != nil {
		s.Runs.MarkImportRunFailed(ctx, state.ImportRunID, err)
		return err
	}
	state.Result = result
	return nil
}

// Step 5: FinishImportRunStep records SUCCESS, PARTIAL or FAILED.
type FinishImportRunStep struct {
	Runs RunTracker
}

func (s *FinishImportRunStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Status = RunStatus(state.Result)
	errMsg := strings.Join(state.Result.Errors, "; ")
	return s.Runs.FinishImportRun(ctx, state.ImportRunID, state.Status, state.Result.PeriodsImported, errMsg)
}

// RunStatus derives the import run status from an import result.
func RunStatus(r *importer.Result) string {
	switch {
	case r.Success:
		return domain.ImportStatusSuccess
	case r.PeriodsImported > 0:
		return domain.ImportStatusPartial
	default:
		return domain.ImportStatusFailed
	}
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewImportPipeline creates the standard 5-step SIE import pipeline.
func NewImportPipeline(deps Deps) *Pipeline {
	return NewPipeline(
		&StartImportRunStep{Runs: deps.Runs},
		&FetchFileStep{Runs: deps.Runs, Storage: deps.Storage},
		&ParseFileStep{Runs: deps.Runs},
		&ImportPeriodsStep{Runs: deps.Runs, Importer: importer.New(deps.Store)},
		&FinishImportRunStep{Runs: deps.Runs},
	)
}
