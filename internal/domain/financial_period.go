package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FinancialPeriod is one month of statement figures for a tenant.
// It is a domain struct, not a storage row; each store maps it into its own schema.
type FinancialPeriod struct {
	TenantID  string `json:"tenant_id"`  // owning tenant
	PeriodKey string `json:"period_key"` // "YYYY-MM"
	Year      int    `json:"year"`
	Month     int    `json:"month"`

	Revenue           decimal.Decimal `json:"revenue"`
	CostOfGoodsSold   decimal.Decimal `json:"cost_of_goods_sold"`
	GrossProfit       decimal.Decimal `json:"gross_profit"` // revenue - cost of goods sold
	OperatingExpenses decimal.Decimal `json:"operating_expenses"`
	OperatingIncome   decimal.Decimal `json:"operating_income"` // gross profit - operating expenses
	NetIncome         decimal.Decimal `json:"net_income"`       // equal to operating income; no interest or tax

	// Balance sheet figures are split evenly between current and non-current.
	CurrentAssets         decimal.Decimal `json:"current_assets"`
	NonCurrentAssets      decimal.Decimal `json:"non_current_assets"`
	CurrentLiabilities    decimal.Decimal `json:"current_liabilities"`
	NonCurrentLiabilities decimal.Decimal `json:"non_current_liabilities"`
	Equity                decimal.Decimal `json:"equity"`

	Source     string    `json:"source"`      // e.g. "sie"
	ImportedBy string    `json:"imported_by"` // actor identity
	ImportedAt time.Time `json:"imported_at"`
}

// TotalAssets returns current plus non-current assets.
func (p *FinancialPeriod) TotalAssets() decimal.Decimal {
	return p.CurrentAssets.Add(p.NonCurrentAssets)
}

// TotalLiabilities returns current plus non-current liabilities.
func (p *FinancialPeriod) TotalLiabilities() decimal.Decimal {
	return p.CurrentLiabilities.Add(p.NonCurrentLiabilities)
}

// ImportKey identifies a period within a tenant across stores.
func (p *FinancialPeriod) ImportKey() string {
	return p.TenantID + "/" + p.PeriodKey
}

// SourceSIE marks periods produced from an SIE file.
const SourceSIE = "sie"

// Import run statuses.
const (
	ImportStatusRunning = "RUNNING"
	ImportStatusSuccess = "SUCCESS"
	ImportStatusPartial = "PARTIAL"
	ImportStatusFailed  = "FAILED"
)
