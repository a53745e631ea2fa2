package importer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/sie-import/internal/aggregate"
	"github.com/dvloznov/sie-import/internal/domain"
	"github.com/dvloznov/sie-import/internal/logger"
	"github.com/dvloznov/sie-import/internal/sie"
	"github.com/shopspring/decimal"
)

// DefaultFiscalYear is the current fiscal year index in an SIE file.
const DefaultFiscalYear = 0

var (
	ErrMissingTenant = errors.New("tenant id is required")
	ErrNilResult     = errors.New("parse result is nil")
)

// Result summarises one import.
type Result struct {
	Success         bool            `json:"success"`
	Company         sie.CompanyInfo `json:"company"`
	PeriodsImported int             `json:"periods_imported"`
	Errors          []string        `json:"errors"`
}

// Importer writes aggregated SIE periods to a PeriodStore.
type Importer struct {
	store PeriodStore
	now   func() time.Time
}

// New creates an Importer backed by store.
func New(store PeriodStore) *Importer {
	return &Importer{store: store, now: time.Now}
}

// Import aggregates the current fiscal year of res and saves every period.
func (im *Importer) Import(ctx context.Context, tenantID string, res *sie.Result, actorID string) (*Result, error) {
	return im.ImportFiscalYear(ctx, tenantID, res, actorID, DefaultFiscalYear)
}

// ImportFiscalYear aggregates the given fiscal year index and saves every
// period in key order. A failed write is recorded and the remaining periods
// are still attempted. The error return is only used for invalid arguments.
func (im *Importer) ImportFiscalYear(ctx context.Context, tenantID string, res *sie.Result, actorID string, fiscalYear int) (*Result, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("ImportFiscalYear: %w", ErrMissingTenant)
	}
	if res == nil {
		return nil, fmt.Errorf("ImportFiscalYear: %w", ErrNilResult)
	}

	log := logger.FromContext(ctx).With().
		Str("tenant_id", tenantID).
		Int("fiscal_year", fiscalYear).
		Logger()

	out := &Result{
		Company: res.Company,
		Errors:  []string{},
	}

	periods := aggregate.Aggregate(res, fiscalYear)
	importedAt := im.now().UTC()

	for _, key := range periods.Keys() {
		if err := ctx.Err(); err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("import stopped before %s: %v", key, err))
			break
		}

		period, err := BuildFinancialPeriod(tenantID, key, periods[key], actorID, importedAt)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", key, err))
			continue
		}

		if err := im.store.SaveFinancialPeriod(ctx, period); err != nil {
			log.Warn().Err(err).Str("period", key).Msg("failed to save financial period")
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		out.PeriodsImported++
	}

	out.Success = len(out.Errors) == 0

	log.Info().
		Int("periods", len(periods)).
		Int("periods_imported", out.PeriodsImported).
		Int("errors", len(out.Errors)).
		Msg("SIE import finished")

	return out, nil
}

var two = decimal.NewFromInt(2)

// BuildFinancialPeriod maps one aggregated period to a FinancialPeriod.
func BuildFinancialPeriod(tenantID, periodKey string, t aggregate.Totals, actorID string, importedAt time.Time) (*domain.FinancialPeriod, error) {
	year, month, err := ParsePeriodKey(periodKey)
	if err != nil {
		return nil, fmt.Errorf("BuildFinancialPeriod: %w", err)
	}

	grossProfit := t.Revenue.Sub(t.CostOfGoodsSold)
	operatingIncome := grossProfit.Sub(t.OperatingExpenses)
	currentAssets, nonCurrentAssets := split(t.Assets)
	currentLiabilities, nonCurrentLiabilities := split(t.Liabilities)

	return &domain.FinancialPeriod{
		TenantID:              tenantID,
		PeriodKey:             periodKey,
		Year:                  year,
		Month:                 month,
		Revenue:               t.Revenue,
		CostOfGoodsSold:       t.CostOfGoodsSold,
		GrossProfit:           grossProfit,
		OperatingExpenses:     t.OperatingExpenses,
		OperatingIncome:       operatingIncome,
		NetIncome:             operatingIncome,
		CurrentAssets:         currentAssets,
		NonCurrentAssets:      nonCurrentAssets,
		CurrentLiabilities:    currentLiabilities,
		NonCurrentLiabilities: nonCurrentLiabilities,
		Equity:                t.Equity,
		Source:                domain.SourceSIE,
		ImportedBy:            actorID,
		ImportedAt:            importedAt,
	}, nil
}

// split halves v; the two parts always sum to v.
func split(v decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	half := v.Div(two)
	return half, v.Sub(half)
}

// ParsePeriodKey splits a "YYYY-MM" key into year and month.
func ParsePeriodKey(key string) (int, int, error) {
	y, m, ok := strings.Cut(key, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed period key %q", key)
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed year in period key %q: %w", key, err)
	}
	month, err := strconv.Atoi(m)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed month in period key %q: %w", key, err)
	}
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("month out of range in period key %q", key)
	}
	return year, month, nil
}
