package notionsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/sie-import/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
)

// MockNotionService is an in-memory NotionService keyed by page id.
type MockNotionService struct {
	Pages          map[string]notionapi.Properties
	Queries        []*notionapi.DatabaseQueryRequest
	Created        int
	Updated        []string
	Deleted        []string
	CreatePageFunc func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryFunc      func(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

func newMockNotion() *MockNotionService {
	return &MockNotionService{Pages: map[string]notionapi.Properties{}}
}

func (m *MockNotionService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.CreatePageFunc != nil {
		return m.CreatePageFunc(ctx, databaseID, properties)
	}
	m.Created++
	id := fmt.Sprintf("page-%d", len(m.Pages)+1)
	m.Pages[id] = properties
	return &notionapi.Page{ID: notionapi.ObjectID(id)}, nil
}

func (m *MockNotionService) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if _, ok := m.Pages[pageID]; !ok {
		return nil, errors.New("page not found")
	}
	m.Updated = append(m.Updated, pageID)
	m.Pages[pageID] = properties
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (m *MockNotionService) ArchivePage(ctx context.Context, pageID string) error {
	m.Deleted = append(m.Deleted, pageID)
	delete(m.Pages, pageID)
	return nil
}

// QueryDatabase applies a rich_text equals filter against the stored pages.
func (m *MockNotionService) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	m.Queries = append(m.Queries, req)
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, databaseID, req)
	}

	filter, ok := req.Filter.(*notionapi.PropertyFilter)
	if !ok || filter.RichText == nil {
		return nil, errors.New("unexpected filter")
	}

	resp := &notionapi.DatabaseQueryResponse{}
	for id, props := range m.Pages {
		rt, ok := props[filter.Property].(notionapi.RichTextProperty)
		if !ok || len(rt.RichText) == 0 || rt.RichText[0].Text.Content != filter.RichText.Equals {
			continue
		}
		resp.Results = append(resp.Results, notionapi.Page{ID: notionapi.ObjectID(id)})
	}
	return resp, nil
}

func testPeriod(key string) *domain.FinancialPeriod {
	return &domain.FinancialPeriod{
		TenantID:   "acme",
		PeriodKey:  key,
		Year:       2026,
		Month:      1,
		Revenue:    decimal.NewFromInt(50000),
		NetIncome:  decimal.NewFromInt(1234),
		Source:     domain.SourceSIE,
		ImportedBy: "user-1",
		ImportedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPeriodStore_CreatesThenUpdates(t *testing.T) {
	mock := newMockNotion()
	store := NewPeriodStore(mock, "db-1")
	ctx := context.Background()

	if err := store.SaveFinancialPeriod(ctx, testPeriod("2026-01")); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if mock.Created != 1 || len(mock.Updated) != 0 {
		t.Fatalf("after first save: created=%d updated=%d", mock.Created, len(mock.Updated))
	}

	p := testPeriod("2026-01")
	p.Revenue = decimal.NewFromInt(60000)
	if err := store.SaveFinancialPeriod(ctx, p); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if mock.Created != 1 || len(mock.Updated) != 1 {
		t.Errorf("after second save: created=%d updated=%d, want 1/1", mock.Created, len(mock.Updated))
	}

	revenue := mock.Pages[mock.Updated[0]][PropRevenue].(notionapi.NumberProperty)
	if revenue.Number != 60000 {
		t.Errorf("Revenue = %v, want 60000", revenue.Number)
	}

	if err := store.SaveFinancialPeriod(ctx, testPeriod("2026-02")); err != nil {
		t.Fatalf("third save: %v", err)
	}
	if mock.Created != 2 {
		t.Errorf("created = %d, want 2 for a new period key", mock.Created)
	}
}

func TestPeriodStore_ArchivesDuplicates(t *testing.T) {
	mock := newMockNotion()
	props := FinancialPeriodToNotionProperties(testPeriod("2026-01"))
	mock.Pages["a"] = props
	mock.Pages["b"] = props

	if err := NewPeriodStore(mock, "db-1").SaveFinancialPeriod(context.Background(), testPeriod("2026-01")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(mock.Updated) != 1 || len(mock.Deleted) != 1 {
		t.Errorf("updated=%v deleted=%v, want one of each", mock.Updated, mock.Deleted)
	}
	if len(mock.Pages) != 1 {
		t.Errorf("pages left = %d, want 1", len(mock.Pages))
	}
}

func TestPeriodStore_CreateError(t *testing.T) {
	mock := newMockNotion()
	mock.CreatePageFunc = func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
		return nil, errors.New("rate limited")
	}

	err := NewPeriodStore(mock, "db-1").SaveFinancialPeriod(context.Background(), testPeriod("2026-01"))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestPeriodStore_QueryFollowsCursor(t *testing.T) {
	mock := newMockNotion()
	calls := 0
	mock.QueryFunc = func(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
		calls++
		if calls == 1 {
			if req.StartCursor != "" {
				t.Errorf("first query has cursor %q", req.StartCursor)
			}
			return &notionapi.DatabaseQueryResponse{
				Results:    []notionapi.Page{notionPage("p1", "2026-01")},
				HasMore:    true,
				NextCursor: "next",
			}, nil
		}
		if req.StartCursor != "next" {
			t.Errorf("second query cursor = %q, want next", req.StartCursor)
		}
		return &notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{notionPage("p2", "2026-02"), {ID: "broken"}},
		}, nil
	}

	periods, err := NewPeriodStore(mock, "db-1").ListFinancialPeriods(context.Background(), "acme")
	if err != nil {
		t.Fatalf("ListFinancialPeriods: %v", err)
	}
	if calls != 2 {
		t.Errorf("QueryDatabase called %d times, want 2", calls)
	}
	if len(periods) != 2 {
		t.Fatalf("got %d periods, want 2 (malformed page skipped)", len(periods))
	}
	if periods[1].PeriodKey != "2026-02" || !periods[1].Revenue.Equal(decimal.NewFromFloat(100.5)) {
		t.Errorf("unexpected second period: %+v", periods[1])
	}

	filter := mock.Queries[0].Filter.(*notionapi.PropertyFilter)
	if filter.Property != PropTenant || filter.RichText.Equals != "acme" {
		t.Errorf("unexpected filter %+v", filter)
	}
}

func notionPage(id, key string) notionapi.Page {
	start := notionapi.Date(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			PropPeriod:     &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: key}}},
			PropTenant:     &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: "acme"}}},
			PropYear:       &notionapi.NumberProperty{Number: 2026},
			PropMonth:      &notionapi.NumberProperty{Number: 2},
			PropRevenue:    &notionapi.NumberProperty{Number: 100.5},
			PropSource:     &notionapi.SelectProperty{Select: notionapi.Option{Name: "sie"}},
			PropImportedAt: &notionapi.DateProperty{Date: &notionapi.DateObject{Start: &start}},
		},
	}
}

func TestFinancialPeriodToNotionProperties(t *testing.T) {
	props := FinancialPeriodToNotionProperties(testPeriod("2026-01"))

	title := props[PropPeriod].(notionapi.TitleProperty)
	if title.Title[0].Text.Content != "2026-01" {
		t.Errorf("Period = %q", title.Title[0].Text.Content)
	}
	key := props[PropImportKey].(notionapi.RichTextProperty)
	if key.RichText[0].Text.Content != "acme/2026-01" {
		t.Errorf("Import Key = %q", key.RichText[0].Text.Content)
	}
	if n := props[PropNetIncome].(notionapi.NumberProperty).Number; n != 1234 {
		t.Errorf("Net Income = %v", n)
	}
	if _, ok := props[PropEquity]; !ok {
		t.Error("expected zero-valued Equity to be written")
	}
	if _, ok := props[PropImportedAt]; !ok {
		t.Error("expected Imported At")
	}
}

func TestNotionPageToFinancialPeriod_MissingTitle(t *testing.T) {
	if _, err := NotionPageToFinancialPeriod(notionapi.Page{ID: "x"}); err == nil {
		t.Error("expected error for a page without a period title")
	}
}

func TestNotionClient_HonoursCanceledContext(t *testing.T) {
	c := NewNotionClientWithLimit("secret", 0.001)
	// Drain the single burst token so the next call has to wait.
	c.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.QueryDatabase(ctx, "db", &notionapi.DatabaseQueryRequest{}); err == nil {
		t.Fatal("expected an error for a canceled context")
	}
	if err := c.ArchivePage(ctx, "page"); err == nil {
		t.Fatal("expected an error for a canceled context")
	}
}
