package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/sie-import/internal/domain"
	"github.com/dvloznov/sie-import/internal/logger"
	"github.com/jomei/notionapi"
)

// PeriodStore keeps financial periods as pages of one Notion database.
// Pages are matched on the "Import Key" property, so saving a period twice
// updates the existing page.
type PeriodStore struct {
	notion     NotionService
	databaseID string
}

// NewPeriodStore creates a PeriodStore for the given database.
func NewPeriodStore(notion NotionService, databaseID string) *PeriodStore {
	return &PeriodStore{notion: notion, databaseID: databaseID}
}

// SaveFinancialPeriod creates or updates the page for the period.
func (s *PeriodStore) SaveFinancialPeriod(ctx context.Context, period *domain.FinancialPeriod) error {
	log := logger.FromContext(ctx).With().
		Str("tenant_id", period.TenantID).
		Str("period", period.PeriodKey).
		Logger()

	key := period.ImportKey()
	pages, err := queryAllNotionPages(ctx, s.notion, s.databaseID, richTextEquals(PropImportKey, key))
	if err != nil {
		return fmt.Errorf("SaveFinancialPeriod: finding page for %s: %w", key, err)
	}

	props := FinancialPeriodToNotionProperties(period)

	if len(pages) == 0 {
		page, err := s.notion.CreatePage(ctx, s.databaseID, props)
		if err != nil {
			return fmt.Errorf("SaveFinancialPeriod: creating page for %s: %w", key, err)
		}
		log.Debug().Str("page_id", string(page.ID)).Msg("Created Notion page")
		return nil
	}

	pageID := string(pages[0].ID)
	if _, err := s.notion.UpdatePage(ctx, pageID, props); err != nil {
		return fmt.Errorf("SaveFinancialPeriod: updating page %s for %s: %w", pageID, key, err)
	}
	log.Debug().Str("page_id", pageID).Msg("Updated Notion page")

	// Earlier duplicates of the same key are archived so that one page remains.
	for _, dup := range pages[1:] {
		if err := s.notion.ArchivePage(ctx, string(dup.ID)); err != nil {
			log.Warn().Err(err).Str("page_id", string(dup.ID)).Msg("Failed to archive duplicate Notion page")
		}
	}
	return nil
}

// ListFinancialPeriods returns all periods of a tenant.
func (s *PeriodStore) ListFinancialPeriods(ctx context.Context, tenantID string) ([]*domain.FinancialPeriod, error) {
	pages, err := queryAllNotionPages(ctx, s.notion, s.databaseID, richTextEquals(PropTenant, tenantID))
	if err != nil {
		return nil, fmt.Errorf("ListFinancialPeriods: %w", err)
	}

	periods := make([]*domain.FinancialPeriod, 0, len(pages))
	for _, page := range pages {
		p, err := NotionPageToFinancialPeriod(page)
		if err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Skipping malformed Notion page")
			continue
		}
		periods = append(periods, p)
	}
	return periods, nil
}

func richTextEquals(property, value string) notionapi.Filter {
	return &notionapi.PropertyFilter{
		Property: property,
		RichText: &notionapi.TextFilterCondition{
			Equals: value,
		},
	}
}

// queryAllNotionPages follows the result cursor until every matching page is read.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string, filter notionapi.Filter) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter:   filter,
			PageSize: 100,
		}

		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
