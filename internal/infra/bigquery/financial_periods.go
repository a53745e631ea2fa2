package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sie-import/internal/domain"
	"github.com/shopspring/decimal"
)

const financialPeriodsTable = "financial_periods"

// FinancialPeriodRow is one row of financial_periods.
// (tenant_id, period_key) is unique; writes go through MERGE.
type FinancialPeriodRow struct {
	TenantID  string `bigquery:"tenant_id"`  // REQUIRED
	PeriodKey string `bigquery:"period_key"` // REQUIRED, YYYY-MM
	Year      int64  `bigquery:"year"`       // REQUIRED
	Month     int64  `bigquery:"month"`      // REQUIRED

	// PeriodStart is the first day of the month, used for partitioning.
	PeriodStart civil.Date `bigquery:"period_start"` // REQUIRED

	Revenue           *big.Rat `bigquery:"revenue"`            // NUMERIC
	CostOfGoodsSold   *big.Rat `bigquery:"cost_of_goods_sold"` // NUMERIC
	GrossProfit       *big.Rat `bigquery:"gross_profit"`       // NUMERIC
	OperatingExpenses *big.Rat `bigquery:"operating_expenses"` // NUMERIC
	OperatingIncome   *big.Rat `bigquery:"operating_income"`   // NUMERIC
	NetIncome         *big.Rat `bigquery:"net_income"`         // NUMERIC

	CurrentAssets         *big.Rat `bigquery:"current_assets"`          // NUMERIC
	NonCurrentAssets      *big.Rat `bigquery:"non_current_assets"`      // NUMERIC
	CurrentLiabilities    *big.Rat `bigquery:"current_liabilities"`     // NUMERIC
	NonCurrentLiabilities *big.Rat `bigquery:"non_current_liabilities"` // NUMERIC
	Equity                *big.Rat `bigquery:"equity"`                  // NUMERIC

	Source     string    `bigquery:"source"`      // NULLABLE
	ImportedBy string    `bigquery:"imported_by"` // NULLABLE
	ImportedTS time.Time `bigquery:"imported_ts"` // REQUIRED
}

// NewFinancialPeriodRow maps a domain period to its table row.
func NewFinancialPeriodRow(p *domain.FinancialPeriod) *FinancialPeriodRow {
	return &FinancialPeriodRow{
		TenantID:              p.TenantID,
		PeriodKey:             p.PeriodKey,
		Year:                  int64(p.Year),
		Month:                 int64(p.Month),
		PeriodStart:           civil.Date{Year: p.Year, Month: time.Month(p.Month), Day: 1},
		Revenue:               p.Revenue.Rat(),
		CostOfGoodsSold:       p.CostOfGoodsSold.Rat(),
		GrossProfit:           p.GrossProfit.Rat(),
		OperatingExpenses:     p.OperatingExpenses.Rat(),
		OperatingIncome:       p.OperatingIncome.Rat(),
		NetIncome:             p.NetIncome.Rat(),
		CurrentAssets:         p.CurrentAssets.Rat(),
		NonCurrentAssets:      p.NonCurrentAssets.Rat(),
		CurrentLiabilities:    p.CurrentLiabilities.Rat(),
		NonCurrentLiabilities: p.NonCurrentLiabilities.Rat(),
		Equity:                p.Equity.Rat(),
		Source:                p.Source,
		ImportedBy:            p.ImportedBy,
		ImportedTS:            p.ImportedAt,
	}
}

// ToDomain converts the row back into a domain period.
func (r *FinancialPeriodRow) ToDomain() (*domain.FinancialPeriod, error) {
	p := &domain.FinancialPeriod{
		TenantID:   r.TenantID,
		PeriodKey:  r.PeriodKey,
		Year:       int(r.Year),
		Month:      int(r.Month),
		Source:     r.Source,
		ImportedBy: r.ImportedBy,
		ImportedAt: r.ImportedTS,
	}

	fields := []struct {
		name string
		src  *big.Rat
		dst  *decimal.Decimal
	}{
		{"revenue", r.Revenue, &p.Revenue},
		{"cost_of_goods_sold", r.CostOfGoodsSold, &p.CostOfGoodsSold},
		{"gross_profit", r.GrossProfit, &p.GrossProfit},
		{"operating_expenses", r.OperatingExpenses, &p.OperatingExpenses},
		{"operating_income", r.OperatingIncome, &p.OperatingIncome},
		{"net_income", r.NetIncome, &p.NetIncome},
		{"current_assets", r.CurrentAssets, &p.CurrentAssets},
		{"non_current_assets", r.NonCurrentAssets, &p.NonCurrentAssets},
		{"current_liabilities", r.CurrentLiabilities, &p.CurrentLiabilities},
		{"non_current_liabilities", r.NonCurrentLiabilities, &p.NonCurrentLiabilities},
		{"equity", r.Equity, &p.Equity},
	}
	for _, f := range fields {
		d, err := ratToDecimal(f.src)
		if err != nil {
			return nil, fmt.Errorf("ToDomain: %s: %w", f.name, err)
		}
		*f.dst = d
	}
	return p, nil
}

// numericScale is the fractional precision of BigQuery NUMERIC.
const numericScale = 9

func ratToDecimal(r *big.Rat) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(r.FloatString(numericScale))
}
