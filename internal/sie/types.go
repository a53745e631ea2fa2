package sie

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CompanyInfo identifies the company that produced the export.
type CompanyInfo struct {
	Name               string `json:"name"`
	OrganizationNumber string `json:"organization_number"`
	Address            string `json:"address,omitempty"`
	SNICode            string `json:"sni_code,omitempty"`
}

// FiscalYear is one #RAR record. Index 0 is the current year, -1 the one
// before it and so on. Dates are kept as the raw YYYYMMDD tokens.
type FiscalYear struct {
	Index int    `json:"index"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// AccountBalance is an opening (#IB), closing (#UB) or result (#RES) balance.
type AccountBalance struct {
	FiscalYear    int             `json:"fiscal_year"`
	AccountNumber int             `json:"account_number"`
	AccountName   string          `json:"account_name"`
	Balance       decimal.Decimal `json:"balance"`
}

// PeriodBalance is a monthly snapshot from a #PSALDO record.
type PeriodBalance struct {
	FiscalYear    int             `json:"fiscal_year"`
	Month         int             `json:"month"`
	AccountNumber int             `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
}

// Entry is one #TRANS line inside a verification block.
type Entry struct {
	AccountNumber int             `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	Memo          string          `json:"memo,omitempty"`
}

// Transaction is a verification (#VER) together with its entries.
// ID is the series code followed by the sequence number, e.g. "A1".
type Transaction struct {
	ID          string  `json:"id"`
	Series      string  `json:"series"`
	Number      string  `json:"number"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Entries     []Entry `json:"entries"`
}

// DimensionObject is an #OBJEKT record: one value on a dimension axis.
type DimensionObject struct {
	Dimension int    `json:"dimension"`
	ID        string `json:"id"`
	Name      string `json:"name"`
}

// Result is everything collected from one SIE file.
//
// Accounts, AccountTypes and Dimensions are last-write-wins maps; every other
// collection keeps file order.
type Result struct {
	Format          string `json:"format"`
	Flag            string `json:"flag,omitempty"`
	ProgramName     string `json:"program_name"`
	ProgramVersion  string `json:"program_version"`
	GeneratedAt     string `json:"generated_at"`
	AccountPlanType string `json:"account_plan_type,omitempty"`

	Company     CompanyInfo  `json:"company"`
	FiscalYears []FiscalYear `json:"fiscal_years"`

	Accounts     map[int]string `json:"accounts"`
	AccountTypes map[int]string `json:"account_types,omitempty"`

	OpeningBalances []AccountBalance `json:"opening_balances"`
	ClosingBalances []AccountBalance `json:"closing_balances"`
	ResultBalances  []AccountBalance `json:"result_balances,omitempty"`
	PeriodBalances  []PeriodBalance  `json:"period_balances"`

	Transactions []Transaction `json:"transactions"`

	Dimensions       map[int]string    `json:"dimensions"`
	DimensionObjects []DimensionObject `json:"dimension_objects,omitempty"`

	// Issues lists records that were skipped because a field could not be read.
	Issues []Issue `json:"issues,omitempty"`
}

func newResult() *Result {
	return &Result{
		Accounts:     make(map[int]string),
		AccountTypes: make(map[int]string),
		Dimensions:   make(map[int]string),
	}
}

// FiscalYear returns the first declared fiscal year with the given index.
func (r *Result) FiscalYear(index int) (FiscalYear, bool) {
	for _, fy := range r.FiscalYears {
		if fy.Index == index {
			return fy, true
		}
	}
	return FiscalYear{}, false
}

// AccountName returns the name declared for an account, or "" if it was never named.
func (r *Result) AccountName(number int) string {
	return r.Accounts[number]
}

// SortedAccountNumbers returns the declared account numbers in ascending order.
func (r *Result) SortedAccountNumbers() []int {
	numbers := make([]int, 0, len(r.Accounts))
	for n := range r.Accounts {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}
