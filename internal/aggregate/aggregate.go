package aggregate

import (
	"fmt"
	"sort"

	"github.com/dvloznov/sie-import/internal/sie"
	"github.com/shopspring/decimal"
)

// Totals holds the six statement buckets for one period.
type Totals struct {
	Revenue           decimal.Decimal `json:"revenue"`
	CostOfGoodsSold   decimal.Decimal `json:"cost_of_goods_sold"`
	OperatingExpenses decimal.Decimal `json:"operating_expenses"`
	Assets            decimal.Decimal `json:"assets"`
	Liabilities       decimal.Decimal `json:"liabilities"`
	Equity            decimal.Decimal `json:"equity"`
}

// Periods maps a "YYYY-MM" period key to its totals.
type Periods map[string]Totals

// Keys returns the period keys in ascending order.
func (p Periods) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Aggregate sums the balances of one fiscal year into statement buckets.
//
// Monthly period balances are used when the year has any. Otherwise the
// closing balances form a single period keyed to December of the year. A
// fiscal year index that the file does not declare yields an empty map.
func Aggregate(res *sie.Result, fiscalYear int) Periods {
	periods := make(Periods)
	if res == nil {
		return periods
	}

	fy, ok := res.FiscalYear(fiscalYear)
	if !ok {
		return periods
	}
	year := calendarYear(fy.Start)

	var monthly []sie.PeriodBalance
	for _, pb := range res.PeriodBalances {
		if pb.FiscalYear == fiscalYear {
			monthly = append(monthly, pb)
		}
	}

	if len(monthly) > 0 {
		for _, pb := range monthly {
			key := PeriodKey(year, pb.Month)
			t := periods[key]
			t.add(pb.AccountNumber, pb.Balance)
			periods[key] = t
		}
		return periods
	}

	for _, b := range res.ClosingBalances {
		if b.FiscalYear != fiscalYear {
			continue
		}
		key := PeriodKey(year, 12)
		t := periods[key]
		t.add(b.AccountNumber, b.Balance)
		periods[key] = t
	}
	return periods
}

// PeriodKey formats a calendar year and month as "YYYY-MM".
func PeriodKey(year string, month int) string {
	return fmt.Sprintf("%s-%02d", year, month)
}

// calendarYear takes the YYYY part of a YYYYMMDD date.
func calendarYear(date string) string {
	if len(date) < 4 {
		return date
	}
	return date[:4]
}

func (t *Totals) add(account int, balance decimal.Decimal) {
	b := Classify(account)
	if b.CreditNormal() {
		balance = balance.Abs()
	}
	switch b {
	case BucketRevenue:
		t.Revenue = t.Revenue.Add(balance)
	case BucketCostOfGoodsSold:
		t.CostOfGoodsSold = t.CostOfGoodsSold.Add(balance)
	case BucketOperatingExpenses:
		t.OperatingExpenses = t.OperatingExpenses.Add(balance)
	case BucketAssets:
		t.Assets = t.Assets.Add(balance)
	case BucketEquity:
		t.Equity = t.Equity.Add(balance)
	case BucketLiabilities:
		t.Liabilities = t.Liabilities.Add(balance)
	}
}
