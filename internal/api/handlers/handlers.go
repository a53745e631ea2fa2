package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/sie-import/internal/api/middleware"
	"github.com/dvloznov/sie-import/internal/domain"
	"github.com/dvloznov/sie-import/internal/gcsuploader"
	"github.com/dvloznov/sie-import/internal/jobs"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ImportsHandler enqueues asynchronous imports of SIE files in GCS.
type ImportsHandler struct {
	publisher         jobs.Publisher
	defaultFiscalYear int
	log               zerolog.Logger
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(publisher jobs.Publisher, defaultFiscalYear int, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{
		publisher:         publisher,
		defaultFiscalYear: defaultFiscalYear,
		log:               log,
	}
}

// EnqueueImport handles POST /api/imports
func (h *ImportsHandler) EnqueueImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID   string `json:"tenant_id"`
		ActorID    string `json:"actor_id"`
		GCSURI     string `json:"gcs_uri"`
		FiscalYear *int   `json:"fiscal_year"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.TenantID) == "" || req.GCSURI == "" {
		middleware.WriteError(w, http.StatusBadRequest, "tenant_id and gcs_uri are required")
		return
	}
	if _, _, err := gcsuploader.ParseGCSURI(req.GCSURI); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "gcs_uri must look like gs://bucket/object")
		return
	}

	fiscalYear := h.defaultFiscalYear
	if req.FiscalYear != nil {
		fiscalYear = *req.FiscalYear
	}

	job := &jobs.ImportFileJob{
		TenantID:   req.TenantID,
		ActorID:    req.ActorID,
		GCSURI:     req.GCSURI,
		FiscalYear: fiscalYear,
	}

	if err := h.publisher.PublishImportFile(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue import job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("tenant_id", job.TenantID).Msg("Import job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"gcs_uri": job.GCSURI,
		"status":  string(job.Status),
	})
}

// JobsHandler reports the state of async import jobs.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to load job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// MaxJobsPageSize caps the limit query parameter of ListJobs.
const MaxJobsPageSize = 100

// ListJobs handles GET /api/jobs?tenant_id=&status=&limit=&offset=
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := nonNegativeParam(q.Get("limit"), MaxJobsPageSize)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "limit "+err.Error())
		return
	}
	offset, err := nonNegativeParam(q.Get("offset"), 0)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "offset "+err.Error())
		return
	}
	if limit > MaxJobsPageSize {
		limit = MaxJobsPageSize
	}

	list, err := h.store.ListJobs(r.Context(), jobs.JobFilter{
		TenantID: q.Get("tenant_id"),
		Status:   jobs.JobStatus(q.Get("status")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":   list,
		"count":  len(list),
		"limit":  limit,
		"offset": offset,
	})
}

// nonNegativeParam parses an optional integer query value, returning def when
// it is empty.
func nonNegativeParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("must be a non-negative integer")
	}
	return n, nil
}

// PeriodLister reads back stored financial periods.
type PeriodLister interface {
	ListFinancialPeriods(ctx context.Context, tenantID string) ([]*domain.FinancialPeriod, error)
}

// PeriodsHandler serves stored financial periods.
type PeriodsHandler struct {
	lister PeriodLister
	log    zerolog.Logger
}

// NewPeriodsHandler creates a new periods handler.
func NewPeriodsHandler(lister PeriodLister, log zerolog.Logger) *PeriodsHandler {
	return &PeriodsHandler{
		lister: lister,
		log:    log,
	}
}

// ListPeriods handles GET /api/tenants/{tenantID}/periods
func (h *PeriodsHandler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	periods, err := h.lister.ListFinancialPeriods(r.Context(), tenantID)
	if err != nil {
		h.log.Error().Err(err).Str("tenant_id", tenantID).Msg("Failed to list periods")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list periods")
		return
	}

	if periods == nil {
		periods = []*domain.FinancialPeriod{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"tenant_id": tenantID,
		"periods":   periods,
		"count":     len(periods),
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
