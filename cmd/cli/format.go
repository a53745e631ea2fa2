package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dvloznov/sie-import/internal/aggregate"
	"github.com/dvloznov/sie-import/internal/domain"
	"github.com/dvloznov/sie-import/internal/pipeline"
	"github.com/dvloznov/sie-import/internal/sie"
)

func writeSummary(w io.Writer, res *sie.Result) {
	fmt.Fprintln(w, "=== SIE File ===")
	fmt.Fprintf(w, "Company:      %s\n", res.Company.Name)
	fmt.Fprintf(w, "Org number:   %s\n", res.Company.OrganizationNumber)
	fmt.Fprintf(w, "Format:       %s\n", res.Format)
	fmt.Fprintf(w, "Program:      %s %s\n", res.ProgramName, res.ProgramVersion)
	fmt.Fprintf(w, "Generated:    %s\n", res.GeneratedAt)

	fmt.Fprintf(w, "\n=== Fiscal Years (%d) ===\n", len(res.FiscalYears))
	for _, fy := range res.FiscalYears {
		fmt.Fprintf(w, "%3d  %s - %s\n", fy.Index, fy.Start, fy.End)
	}

	fmt.Fprintln(w, "\n=== Contents ===")
	fmt.Fprintf(w, "Accounts:          %d\n", len(res.Accounts))
	fmt.Fprintf(w, "Opening balances:  %d\n", len(res.OpeningBalances))
	fmt.Fprintf(w, "Closing balances:  %d\n", len(res.ClosingBalances))
	fmt.Fprintf(w, "Period balances:   %d\n", len(res.PeriodBalances))
	fmt.Fprintf(w, "Transactions:      %d\n", len(res.Transactions))

	if len(res.Issues) > 0 {
		fmt.Fprintf(w, "\n=== Skipped Records (%d) ===\n", len(res.Issues))
		for _, issue := range res.Issues {
			fmt.Fprintf(w, "line %d: %s %s %q\n", issue.Line, issue.Tag, issue.Field, issue.Value)
		}
	}
}

// writeAccounts lists the chart of accounts with the bucket each account
// aggregates into.
func writeAccounts(w io.Writer, res *sie.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tNAME\tBUCKET\t")
	for _, n := range res.SortedAccountNumbers() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t\n", n, res.AccountName(n), aggregate.Classify(n))
	}
	tw.Flush()
}

func writePeriods(w io.Writer, periods aggregate.Periods) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "PERIOD\tREVENUE\tCOGS\tOPEX\tASSETS\tLIABILITIES\tEQUITY\t")
	for _, key := range periods.Keys() {
		t := periods[key]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			key,
			t.Revenue.StringFixed(2),
			t.CostOfGoodsSold.StringFixed(2),
			t.OperatingExpenses.StringFixed(2),
			t.Assets.StringFixed(2),
			t.Liabilities.StringFixed(2),
			t.Equity.StringFixed(2),
		)
	}
	tw.Flush()
}

func writeStoredPeriods(w io.Writer, periods []*domain.FinancialPeriod) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "PERIOD\tREVENUE\tGROSS PROFIT\tNET INCOME\tTOTAL ASSETS\tTOTAL LIABILITIES\tEQUITY\tIMPORTED BY\t")
	for _, p := range periods {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			p.PeriodKey,
			p.Revenue.StringFixed(2),
			p.GrossProfit.StringFixed(2),
			p.NetIncome.StringFixed(2),
			p.TotalAssets().StringFixed(2),
			p.TotalLiabilities().StringFixed(2),
			p.Equity.StringFixed(2),
			p.ImportedBy,
		)
	}
	tw.Flush()
}

func writeOutcome(w io.Writer, o *pipeline.Outcome) {
	fmt.Fprintf(w, "Import run:  %s\n", o.ImportRunID)
	fmt.Fprintf(w, "Status:      %s\n", o.Status)
	fmt.Fprintf(w, "Company:     %s (%s)\n", o.Result.Company.Name, o.Result.Company.OrganizationNumber)
	fmt.Fprintf(w, "Periods:     %d\n", o.Result.PeriodsImported)
	for _, e := range o.Result.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
}
