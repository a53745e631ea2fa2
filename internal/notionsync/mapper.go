package notionsync

import (
	"fmt"
	"time"

	"github.com/dvloznov/sie-import/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
)

// Property names of the financial periods database.
const (
	PropPeriod                = "Period"
	PropImportKey             = "Import Key"
	PropTenant                = "Tenant"
	PropYear                  = "Year"
	PropMonth                 = "Month"
	PropRevenue               = "Revenue"
	PropCostOfGoodsSold       = "Cost of Goods Sold"
	PropGrossProfit           = "Gross Profit"
	PropOperatingExpenses     = "Operating Expenses"
	PropOperatingIncome       = "Operating Income"
	PropNetIncome             = "Net Income"
	PropCurrentAssets         = "Current Assets"
	PropNonCurrentAssets      = "Non-current Assets"
	PropCurrentLiabilities    = "Current Liabilities"
	PropNonCurrentLiabilities = "Non-current Liabilities"
	PropEquity                = "Equity"
	PropSource                = "Source"
	PropImportedBy            = "Imported By"
	PropImportedAt            = "Imported At"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

// amountFields pairs each numeric Notion property with its period field.
func amountFields(p *domain.FinancialPeriod) []struct {
	name  string
	value *decimal.Decimal
} {
	return []struct {
		name  string
		value *decimal.Decimal
	}{
		{PropRevenue, &p.Revenue},
		{PropCostOfGoodsSold, &p.CostOfGoodsSold},
		{PropGrossProfit, &p.GrossProfit},
		{PropOperatingExpenses, &p.OperatingExpenses},
		{PropOperatingIncome, &p.OperatingIncome},
		{PropNetIncome, &p.NetIncome},
		{PropCurrentAssets, &p.CurrentAssets},
		{PropNonCurrentAssets, &p.NonCurrentAssets},
		{PropCurrentLiabilities, &p.CurrentLiabilities},
		{PropNonCurrentLiabilities, &p.NonCurrentLiabilities},
		{PropEquity, &p.Equity},
	}
}

// FinancialPeriodToNotionProperties converts a FinancialPeriod to Notion properties.
// Notion numbers are float64, so amounts lose precision beyond ~15 digits.
func FinancialPeriodToNotionProperties(p *domain.FinancialPeriod) notionapi.Properties {
	props := notionapi.Properties{
		PropPeriod: notionapi.TitleProperty{
			Title: richText(p.PeriodKey),
		},
		PropImportKey: notionapi.RichTextProperty{
			RichText: richText(p.ImportKey()),
		},
		PropTenant: notionapi.RichTextProperty{
			RichText: richText(p.TenantID),
		},
		PropYear: notionapi.NumberProperty{
			Number: float64(p.Year),
		},
		PropMonth: notionapi.NumberProperty{
			Number: float64(p.Month),
		},
	}

	for _, f := range amountFields(p) {
		props[f.name] = notionapi.NumberProperty{
			Number: f.value.InexactFloat64(),
		}
	}

	if p.Source != "" {
		props[PropSource] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: p.Source,
			},
		}
	}

	if p.ImportedBy != "" {
		props[PropImportedBy] = notionapi.RichTextProperty{
			RichText: richText(p.ImportedBy),
		}
	}

	if !p.ImportedAt.IsZero() {
		importedAt := notionapi.Date(p.ImportedAt)
		props[PropImportedAt] = notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: &importedAt,
			},
		}
	}

	return props
}

// NotionPageToFinancialPeriod reads a period back from a page of the database.
func NotionPageToFinancialPeriod(page notionapi.Page) (*domain.FinancialPeriod, error) {
	p := &domain.FinancialPeriod{
		PeriodKey:  titleText(page, PropPeriod),
		TenantID:   plainText(page, PropTenant),
		ImportedBy: plainText(page, PropImportedBy),
	}
	if p.PeriodKey == "" {
		return nil, fmt.Errorf("NotionPageToFinancialPeriod: page %s has no %q", page.ID, PropPeriod)
	}

	p.Year = int(number(page, PropYear))
	p.Month = int(number(page, PropMonth))
	for _, f := range amountFields(p) {
		*f.value = decimal.NewFromFloat(number(page, f.name))
	}

	if prop, ok := page.Properties[PropSource].(*notionapi.SelectProperty); ok {
		p.Source = prop.Select.Name
	}
	if prop, ok := page.Properties[PropImportedAt].(*notionapi.DateProperty); ok && prop.Date != nil && prop.Date.Start != nil {
		p.ImportedAt = time.Time(*prop.Date.Start)
	}

	return p, nil
}

func plainText(page notionapi.Page, name string) string {
	if prop, ok := page.Properties[name].(*notionapi.RichTextProperty); ok {
		if len(prop.RichText) > 0 {
			return prop.RichText[0].PlainText
		}
	}
	return ""
}

func titleText(page notionapi.Page, name string) string {
	if prop, ok := page.Properties[name].(*notionapi.TitleProperty); ok {
		if len(prop.Title) > 0 {
			return prop.Title[0].PlainText
		}
	}
	return ""
}

func number(page notionapi.Page, name string) float64 {
	if prop, ok := page.Properties[name].(*notionapi.NumberProperty); ok {
		return prop.Number
	}
	return 0
}
