package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/sie-import/internal/api"
	"github.com/dvloznov/sie-import/internal/api/handlers"
	"github.com/dvloznov/sie-import/internal/domain"
	"github.com/dvloznov/sie-import/internal/jobs"
	"github.com/dvloznov/sie-import/internal/jobs/inmemory"
	"github.com/dvloznov/sie-import/internal/pipeline"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const exampleSIE = `#FLAGGA 0
#PROGRAM "Fortnox" 3.0
#FORMAT PC8
#SIETYP 4
#FNAMN "Exempel AB"
#ORGNR 556677-8899
#RAR 0 20260101 20261231
#KONTO 3010 "Forsaljning"
#KONTO 4010 "Varuinkop"
#PSALDO 0 202601 3010 {} -50000
#PSALDO 0 202602 4010 {} 12000
`

// MockPeriodStore is a mock period store that also lists what it saved.
type MockPeriodStore struct {
	SaveFinancialPeriodFunc func(ctx context.Context, p *domain.FinancialPeriod) error
	Saved                   []*domain.FinancialPeriod
}

func (m *MockPeriodStore) SaveFinancialPeriod(ctx context.Context, p *domain.FinancialPeriod) error {
	if m.SaveFinancialPeriodFunc != nil {
		if err := m.SaveFinancialPeriodFunc(ctx, p); err != nil {
			return err
		}
	}
	m.Saved = append(m.Saved, p)
	return nil
}

func (m *MockPeriodStore) ListFinancialPeriods(ctx context.Context, tenantID string) ([]*domain.FinancialPeriod, error) {
	var out []*domain.FinancialPeriod
	for _, p := range m.Saved {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

// MockPublisher records published jobs.
type MockPublisher struct {
	PublishImportFileFunc func(ctx context.Context, job *jobs.ImportFileJob) error
	Published             []*jobs.ImportFileJob
}

func (m *MockPublisher) PublishImportFile(ctx context.Context, job *jobs.ImportFileJob) error {
	if m.PublishImportFileFunc != nil {
		return m.PublishImportFileFunc(ctx, job)
	}
	job.JobID = "job-1"
	job.Status = jobs.JobStatusPending
	m.Published = append(m.Published, job)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// MockUploader records uploaded objects.
type MockUploader struct {
	UploadBytesFunc func(ctx context.Context, bucket, object string, data []byte) error
	Objects         []string
}

func (m *MockUploader) UploadBytes(ctx context.Context, bucket, object string, data []byte) error {
	if m.UploadBytesFunc != nil {
		return m.UploadBytesFunc(ctx, bucket, object, data)
	}
	m.Objects = append(m.Objects, bucket+"/"+object)
	return nil
}

type testServer struct {
	handler   http.Handler
	store     *MockPeriodStore
	publisher *MockPublisher
	jobStore  *inmemory.Store
}

func newTestServer(t *testing.T, cfg handlers.DocumentsConfig) *testServer {
	t.Helper()

	log := zerolog.Nop()
	store := &MockPeriodStore{}
	publisher := &MockPublisher{}
	jobStore := inmemory.NewStore()

	deps := pipeline.Deps{Store: store}
	return &testServer{
		handler: api.NewRouter(api.RouterConfig{
			Documents: handlers.NewDocumentsHandler(cache.New(time.Minute, time.Minute), deps, cfg, log),
			Imports:   handlers.NewImportsHandler(publisher, 0, log),
			Jobs:      handlers.NewJobsHandler(jobStore, log),
			Periods:   handlers.NewPeriodsHandler(store, log),
			Log:       log,
		}),
		store:     store,
		publisher: publisher,
		jobStore:  jobStore,
	}
}

func (s *testServer) do(t *testing.T, method, target string, body []byte) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("%s %s: response is not JSON: %v: %s", method, target, err, rec.Body.String())
		}
	}
	return rec, decoded
}

func (s *testServer) upload(t *testing.T, target string) string {
	t.Helper()

	rec, body := s.do(t, http.MethodPost, target, []byte(exampleSIE))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: status = %d, body %s", rec.Code, rec.Body.String())
	}
	id, _ := body["document_id"].(string)
	if id == "" {
		t.Fatalf("upload: no document_id in %v", body)
	}
	return id
}

func TestUploadDocument_Summary(t *testing.T) {
	s := newTestServer(t, handlers.DocumentsConfig{})

	rec, body := s.do(t, http.MethodPost, "/api/sie/documents?filename=C%3A%5Cexport%5Cbokslut.se", []byte(exampleSIE))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if body["filename"] != "bokslut.se" {
		t.Errorf("filename = %v, want bokslut.se", body["filename"])
	}
	company, _ := body["company"].(map[string]interface{})
	if company["name"] != "Exempel AB" || company["organization_number"] != "556677-8899" {
		t.Errorf("company = %v", company)
	}
	if body["program_name"] != "Fortnox" {
		t.Errorf("program_name = %v", body["program_name"])
	}
	if body["accounts"] != float64(2) || body["period_balances"] != float64(2) {
		t.Errorf("counts: accounts=%v period_balances=%v", body["accounts"], body["period_balances"])
	}
	if issues, ok := body["issues"].([]interface{}); !ok || len(issues) != 0 {
		t.Errorf("issues = %v, want empty list", body["issues"])
	}
	if _, ok := body["gcs_uri"]; ok {
		t.Errorf("gcs_uri should be omitted without an uploader: %v", body["gcs_uri"])
	}
}

func TestUploadDocument_ReportsIssues(t *testing.T) {
	s := newTestServer(t, handlers.DocumentsConfig{})

	rec, body := s.do(t, http.MethodPost, "/api/sie/documents", []byte("#RAR 0 20260101 20261231\n#PSALDO 0 1 3010 {} abc\n"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	issues, _ := body["issues"].([]interface{})
	if len(issues) != 1 {
		t.Fatalf("issues = %v, want one", body["issues"])
	}
	if issue := issues[0].(map[string]interface{}); issue["tag"] != "#PSALDO" || issue["value"] != "abc" {
		t.Errorf("issue = %v", issue)
	}
	if body["filename"] != "upload.se" {
		t.Errorf("filename = %v, want upload.se", body["filename"])
	}
}

func TestUploadDocument_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		maxBytes int64
		body     string
		want     int
	}{
		{"empty body", 0, "", http.StatusBadRequest},
		{"too large", 10, exampleSIE, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, handlers.DocumentsConfig{MaxUploadBytes: tt.maxBytes})

			rec, body := s.do(t, http.MethodPost, "/api/sie/documents", []byte(tt.body))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if body["error"] == nil {
				t.Error("expected an error message")
			}
		})
	}
}

func TestUploadDocument_CopiesToGCS(t *testing.T) {
	uploader := &MockUploader{}
	s := newTestServer(t, handlers.DocumentsConfig{Uploader: uploader, Bucket: "sie-files"})

	_, body := s.do(t, http.MethodPost, "/api/sie/documents?tenant_id=acme&filename=2026.se", []byte(exampleSIE))

	uri, _ := body["gcs_uri"].(string)
	if !strings.HasPrefix(uri, "gs://sie-files/sie/acme/") || !strings.HasSuffix(uri, "-2026.se") {
		t.Errorf("gcs_uri = %q", uri)
	}
	if len(uploader.Objects) != 1 {
		t.Errorf("uploaded %v, want one object", uploader.Objects)
	}
}

func TestUploadDocument_UploadFails(t *testing.T) {
	uploader := &MockUploader{
		UploadBytesFunc: func(ctx context.Context, bucket, object string, data []byte) error {
			return errors.New("permission denied")
		},
	}
	s := newTestServer(t, handlers.DocumentsConfig{Uploader: uploader, Bucket: "sie-files"})

	rec, _ := s.do(t, http.MethodPost, "/api/sie/documents", []byte(exampleSIE))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestGetDocument(t *testing.T) {
	s := newTestServer(t, handlers.DocumentsConfig{})
	id := s.upload(t, "/api/sie/documents?filename=a.se")

	rec, body := s.do(t, http.MethodGet, "/api/sie/documents/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	result, _ := body["result"].(map[string]interface{})
	if result == nil {
		t.Fatalf("missing result in %v", body)
	}
	if fys, _ := result["fiscal_years"].([]interface{}); len(fys) != 1 {
		t.Errorf("fiscal_years = %v", result["fiscal_years"])
	}

	rec, _ = s.do(t, http.MethodGet, "/api/sie/documents/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown document: status = %d, want 404", rec.Code)
	}
}

func TestGetPeriods(t *testing.T) {
	s := newTestServer(t, handlers.DocumentsConfig{})
	id := s.upload(t, "/api/sie/documents")

	rec, body := s.do(t, http.MethodGet, "/api/sie/documents/"+id+"/periods", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", body["count"])
	}
	periods := body["periods"].([]interface{})
	jan := periods[0].(map[string]interface{})
	feb := periods[1].(map[string]interface{})
	if jan["period_key"] != "2026-01" || jan["revenue"] != "50000" {
		t.Errorf("january = %v", jan)
	}
	if feb["period_key"] != "2026-02" || feb["cost_of_goods_sold"] != "12000" {
		t.Errorf("february = %v", feb)
	}

	_, body = s.do(t, http.MethodGet, "/api/sie/documents/"+id+"/periods?fiscal_year=-1", nil)
	if body["count"] != float64(0) {
		t.Errorf("undeclared year: count = %v, want 0", body["count"])
	}

	rec, _ = s.do(t, http.MethodGet, "/api/sie/documents/"+id+"/periods?fiscal_year=last", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid fiscal_year: status = %d, want 400", rec.Code)
	}
}

func TestImportDocument(t *testing.T) {
	s := newTestServer(t, handlers.DocumentsConfig{})
	id := s.upload(t, "/api/sie/documents")

	rec, body := s.do(t, http.MethodPost, "/api/sie/documents/"+id+"/import", []byte(`{"tenant_id":"acme","actor_id":"user-1"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if body["status"] != domain.ImportStatusSuccess {
		t.Errorf("status = %v", body["status"])
	}
	if len(s.store.Saved) != 2 {
		t.Fatalf("saved %d periods, want 2", len(s.store.Saved))
	}
	jan := s.store.Saved[0]
	if jan.TenantID != "acme" || jan.ImportedBy != "user-1" || !jan.Revenue.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("january = %+v", jan)
	}

	rec, body = s.do(t, http.MethodGet, "/api/tenants/acme/periods", nil)
	if rec.Code != http.StatusOK || body["count"] != float64(2) {
		t.Errorf("list periods: status %d body %v", rec.Code, body)
	}
	_, body = s.do(t, http.MethodGet, "/api/tenants/other/periods", nil)
	if periods, ok := body["periods"].([]interface{}); !ok || len(periods) != 0 {
		t.Errorf("other tenant periods = %v, want empty list", body["periods"])
	}
}

func TestImportDocument_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing tenant", `{"actor_id":"user-1"}`, http.StatusBadRequest},
		{"invalid json", `{`, http.StatusBadRequest},
		{"undeclared fiscal year", `{"tenant_id":"acme","fiscal_year":-2}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, handlers.DocumentsConfig{})
			id := s.upload(t, "/api/sie/documents")

			rec, _ := s.do(t, http.MethodPost, "/api/sie/documents/"+id+"/import", []byte(tt.body))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if len(s.store.Saved) != 0 {
				t.Errorf("saved %d periods, want none", len(s.store.Saved))
			}
		})
	}
}

func TestImportDocument_TenantFromUpload(t *testing.T) {
	s := newTestServer(t, handlers.DocumentsConfig{})
	id := s.upload(t, "/api/sie/documents?tenant_id=acme")

	rec, _ := s.do(t, http.MethodPost, "/api/sie/documents/"+id+"/import", []byte(`{}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(s.store.Saved) != 2 || s.store.Saved[0].TenantID != "acme" {
		t.Errorf("saved %+v", s.store.Saved)
	}
}

func TestImportDocument_StoreDown(t *testing.T) {
	s := newTestServer(t, handlers.DocumentsConfig{})
	s.store.SaveFinancialPeriodFunc = func(ctx context.Context, p *domain.FinancialPeriod) error {
		return errors.New("unavailable")
	}
	id := s.upload(t, "/api/sie/documents")

	rec, body := s.do(t, http.MethodPost, "/api/sie/documents/"+id+"/import", []byte(`{"tenant_id":"acme"}`))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	result, _ := body["result"].(map[string]interface{})
	if errs, _ := result["errors"].([]interface{}); len(errs) != 2 {
		t.Errorf("errors = %v, want two", result["errors"])
	}
}

func TestEnqueueImport(t *testing.T) {
	s := newTestServer(t, handlers.DocumentsConfig{})

	rec, body := s.do(t, http.MethodPost, "/api/imports", []byte(`{"tenant_id":"acme","actor_id":"u","gcs_uri":"gs://bucket/sie/acme/2026.se","fiscal_year":-1}`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if body["job_id"] != "job-1" || body["status"] != string(jobs.JobStatusPending) {
		t.Errorf("body = %v", body)
	}
	if len(s.publisher.Published) != 1 {
		t.Fatalf("published %d jobs, want 1", len(s.publisher.Published))
	}
	if job := s.publisher.Published[0]; job.TenantID != "acme" || job.FiscalYear != -1 {
		t.Errorf("job = %+v", job)
	}
}

func TestEnqueueImport_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		publish error
		want    int
	}{
		{"missing tenant", `{"gcs_uri":"gs://b/o.se"}`, nil, http.StatusBadRequest},
		{"not a gcs uri", `{"tenant_id":"acme","gcs_uri":"https://example.com/o.se"}`, nil, http.StatusBadRequest},
		{"missing object", `{"tenant_id":"acme","gcs_uri":"gs://bucket"}`, nil, http.StatusBadRequest},
		{"queue closed", `{"tenant_id":"acme","gcs_uri":"gs://b/o.se"}`, jobs.ErrQueueClosed, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, handlers.DocumentsConfig{})
			if tt.publish != nil {
				s.publisher.PublishImportFileFunc = func(ctx context.Context, job *jobs.ImportFileJob) error {
					return tt.publish
				}
			}

			rec, _ := s.do(t, http.MethodPost, "/api/imports", []byte(tt.body))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestJobsEndpoints(t *testing.T) {
	s := newTestServer(t, handlers.DocumentsConfig{})
	ctx := context.Background()
	for _, job := range []*jobs.ImportFileJob{
		{JobID: "a", TenantID: "acme", Status: jobs.JobStatusCompleted, CreatedAt: time.Unix(100, 0)},
		{JobID: "b", TenantID: "beta", Status: jobs.JobStatusPending, CreatedAt: time.Unix(200, 0)},
	} {
		if err := s.jobStore.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob: %v", err)
		}
	}

	_, body := s.do(t, http.MethodGet, "/api/jobs", nil)
	if body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}

	_, body = s.do(t, http.MethodGet, "/api/jobs?tenant_id=acme", nil)
	if body["count"] != float64(1) {
		t.Errorf("filtered count = %v, want 1", body["count"])
	}

	rec, body := s.do(t, http.MethodGet, "/api/jobs/b", nil)
	if rec.Code != http.StatusOK || body["tenant_id"] != "beta" {
		t.Errorf("get job: status %d body %v", rec.Code, body)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/jobs/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job: status = %d, want 404", rec.Code)
	}

	_, body = s.do(t, http.MethodGet, "/api/jobs?limit=1&offset=1", nil)
	if body["count"] != float64(1) || body["limit"] != float64(1) || body["offset"] != float64(1) {
		t.Errorf("paged: %v", body)
	}

	_, body = s.do(t, http.MethodGet, "/api/jobs?limit=5000", nil)
	if body["limit"] != float64(handlers.MaxJobsPageSize) {
		t.Errorf("limit = %v, want capped at %d", body["limit"], handlers.MaxJobsPageSize)
	}

	for _, q := range []string{"limit=abc", "limit=-1", "offset=x"} {
		rec, _ = s.do(t, http.MethodGet, "/api/jobs?"+q, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestHealthAndFallbacks(t *testing.T) {
	s := newTestServer(t, handlers.DocumentsConfig{})

	rec, body := s.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("health: status %d body %v", rec.Code, body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	rec, _ = s.do(t, http.MethodGet, "/api/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown route: status = %d, want 404", rec.Code)
	}

	rec, _ = s.do(t, http.MethodDelete, "/api/imports", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method: status = %d, want 405", rec.Code)
	}
}
