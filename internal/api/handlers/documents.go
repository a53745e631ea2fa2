package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/sie-import/internal/aggregate"
	"github.com/dvloznov/sie-import/internal/api/middleware"
	"github.com/dvloznov/sie-import/internal/domain"
	"github.com/dvloznov/sie-import/internal/gcsuploader"
	"github.com/dvloznov/sie-import/internal/importer"
	"github.com/dvloznov/sie-import/internal/pipeline"
	"github.com/dvloznov/sie-import/internal/sie"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// Uploader stores raw SIE files.
type Uploader interface {
	UploadBytes(ctx context.Context, bucketName, objectName string, data []byte) error
}

// Document is an uploaded SIE file kept in the cache with its parse result.
type Document struct {
	ID         string      `json:"document_id"`
	TenantID   string      `json:"tenant_id,omitempty"`
	Filename   string      `json:"filename"`
	GCSURI     string      `json:"gcs_uri,omitempty"`
	UploadedAt time.Time   `json:"uploaded_at"`
	Result     *sie.Result `json:"result"`

	raw []byte
}

// source is what an import run records as the file it came from.
func (d *Document) source() string {
	if d.GCSURI != "" {
		return d.GCSURI
	}
	return d.Filename
}

// DocumentSummary is returned after an upload.
type DocumentSummary struct {
	DocumentID      string           `json:"document_id"`
	Filename        string           `json:"filename"`
	GCSURI          string           `json:"gcs_uri,omitempty"`
	Format          string           `json:"format"`
	ProgramName     string           `json:"program_name"`
	Company         sie.CompanyInfo  `json:"company"`
	FiscalYears     []sie.FiscalYear `json:"fiscal_years"`
	Accounts        int              `json:"accounts"`
	PeriodBalances  int              `json:"period_balances"`
	ClosingBalances int              `json:"closing_balances"`
	Transactions    int              `json:"transactions"`
	Issues          []sie.Issue      `json:"issues"`
}

// Summarize builds the upload response for a document.
func Summarize(doc *Document) DocumentSummary {
	res := doc.Result
	issues := res.Issues
	if issues == nil {
		issues = []sie.Issue{}
	}
	return DocumentSummary{
		DocumentID:      doc.ID,
		Filename:        doc.Filename,
		GCSURI:          doc.GCSURI,
		Format:          res.Format,
		ProgramName:     res.ProgramName,
		Company:         res.Company,
		FiscalYears:     res.FiscalYears,
		Accounts:        len(res.Accounts),
		PeriodBalances:  len(res.PeriodBalances),
		ClosingBalances: len(res.ClosingBalances),
		Transactions:    len(res.Transactions),
		Issues:          issues,
	}
}

// PeriodView is one aggregated period in a response.
type PeriodView struct {
	PeriodKey string `json:"period_key"`
	aggregate.Totals
}

// DocumentsHandler handles SIE document endpoints.
type DocumentsHandler struct {
	cache     *cache.Cache
	deps      pipeline.Deps
	uploader  Uploader
	bucket    string
	maxBytes  int64
	defaultFY int
	log       zerolog.Logger
}

// DocumentsConfig configures a DocumentsHandler.
type DocumentsConfig struct {
	// Uploader and Bucket enable copying uploads to GCS. Both must be set.
	Uploader          Uploader
	Bucket            string
	MaxUploadBytes    int64
	DefaultFiscalYear int
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(c *cache.Cache, deps pipeline.Deps, cfg DocumentsConfig, log zerolog.Logger) *DocumentsHandler {
	return &DocumentsHandler{
		cache:     c,
		deps:      deps,
		uploader:  cfg.Uploader,
		bucket:    cfg.Bucket,
		maxBytes:  cfg.MaxUploadBytes,
		defaultFY: cfg.DefaultFiscalYear,
		log:       log,
	}
}

// UploadDocument handles POST /api/sie/documents
// The request body is the raw SIE file.
func (h *DocumentsHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body := r.Body
	if h.maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Request body is empty")
		return
	}

	query := r.URL.Query()
	filename := cleanFilename(query.Get("filename"))
	tenantID := strings.TrimSpace(query.Get("tenant_id"))

	doc := &Document{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Filename:   filename,
		UploadedAt: time.Now().UTC(),
		Result:     sie.ParseBytes(data),
		raw:        data,
	}

	if h.uploader != nil && h.bucket != "" {
		object := gcsuploader.ObjectNameFor(tenantOrShared(tenantID), filename)
		if err := h.uploader.UploadBytes(ctx, h.bucket, object, data); err != nil {
			h.log.Error().Err(err).Str("object", object).Msg("Failed to upload SIE file to GCS")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to store file")
			return
		}
		doc.GCSURI = gcsuploader.BuildGCSURI(h.bucket, object)
	}

	h.cache.Set(doc.ID, doc, cache.DefaultExpiration)

	h.log.Info().
		Str("document_id", doc.ID).
		Str("filename", filename).
		Int("bytes", len(data)).
		Int("issues", len(doc.Result.Issues)).
		Msg("SIE document parsed")

	middleware.WriteJSON(w, http.StatusCreated, Summarize(doc))
}

// GetDocument handles GET /api/sie/documents/{id}
func (h *DocumentsHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, doc)
}

// GetPeriods handles GET /api/sie/documents/{id}/periods?fiscal_year=N
func (h *DocumentsHandler) GetPeriods(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}

	fiscalYear, err := h.fiscalYearParam(r.URL.Query().Get("fiscal_year"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid fiscal_year")
		return
	}

	periods := aggregate.Aggregate(doc.Result, fiscalYear)
	views := make([]PeriodView, 0, len(periods))
	for _, key := range periods.Keys() {
		views = append(views, PeriodView{PeriodKey: key, Totals: periods[key]})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": doc.ID,
		"fiscal_year": fiscalYear,
		"periods":     views,
		"count":       len(views),
	})
}

// ImportDocument handles POST /api/sie/documents/{id}/import
func (h *DocumentsHandler) ImportDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req struct {
		TenantID   string `json:"tenant_id"`
		ActorID    string `json:"actor_id"`
		FiscalYear *int   `json:"fiscal_year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TenantID == "" {
		req.TenantID = doc.TenantID
	}
	if strings.TrimSpace(req.TenantID) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	fiscalYear := h.defaultFY
	if req.FiscalYear != nil {
		fiscalYear = *req.FiscalYear
	}

	outcome, err := pipeline.ImportSIEFromGCSWithDeps(r.Context(), pipeline.ImportRequest{
		TenantID:   req.TenantID,
		ActorID:    req.ActorID,
		FiscalYear: fiscalYear,
		File:       doc.raw,
		Filename:   doc.source(),
	}, h.deps)
	switch {
	case errors.Is(err, importer.ErrMissingTenant):
		middleware.WriteError(w, http.StatusBadRequest, "tenant_id is required")
		return
	case errors.Is(err, pipeline.ErrFiscalYearNotDeclared):
		middleware.WriteError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Fiscal year %d is not declared in the file", fiscalYear))
		return
	case err != nil:
		h.log.Error().Err(err).Str("document_id", doc.ID).Msg("Failed to import document")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to import document")
		return
	}

	status := http.StatusOK
	if outcome.Status == domain.ImportStatusFailed {
		status = http.StatusBadGateway
	}
	middleware.WriteJSON(w, status, outcome)
}

func (h *DocumentsHandler) lookup(w http.ResponseWriter, r *http.Request) (*Document, bool) {
	id := chi.URLParam(r, "id")
	v, found := h.cache.Get(id)
	if !found {
		middleware.WriteError(w, http.StatusNotFound, "Document not found")
		return nil, false
	}
	return v.(*Document), true
}

func (h *DocumentsHandler) fiscalYearParam(s string) (int, error) {
	if s == "" {
		return h.defaultFY, nil
	}
	return strconv.Atoi(s)
}

// cleanFilename strips any path or query from a client-supplied name.
func cleanFilename(name string) string {
	if idx := strings.Index(name, "?"); idx >= 0 {
		name = name[:idx]
	}
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return "upload.se"
	}
	return name
}

func tenantOrShared(tenantID string) string {
	if tenantID == "" {
		return "_shared"
	}
	return tenantID
}
