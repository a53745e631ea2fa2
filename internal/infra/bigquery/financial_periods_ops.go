package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// tableRef returns a fully qualified, backtick-quoted table name.
func tableRef(client *bigquery.Client, datasetID, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", client.Project(), datasetID, table)
}

// SaveFinancialPeriodWithClient upserts a row keyed by tenant_id and period_key.
// Re-importing the same period overwrites the previous figures.
func SaveFinancialPeriodWithClient(ctx context.Context, client *bigquery.Client, datasetID string, row *FinancialPeriodRow) error {
	if row.TenantID == "" || row.PeriodKey == "" {
		return fmt.Errorf("SaveFinancialPeriodWithClient: tenant_id and period_key are required")
	}

	q := client.Query(fmt.Sprintf(`
		MERGE %s T
		USING (
			SELECT
				@tenant_id AS tenant_id,
				@period_key AS period_key,
				@year AS year,
				@month AS month,
				@period_start AS period_start,
				@revenue AS revenue,
				@cost_of_goods_sold AS cost_of_goods_sold,
				@gross_profit AS gross_profit,
				@operating_expenses AS operating_expenses,
				@operating_income AS operating_income,
				@net_income AS net_income,
				@current_assets AS current_assets,
				@non_current_assets AS non_current_assets,
				@current_liabilities AS current_liabilities,
				@non_current_liabilities AS non_current_liabilities,
				@equity AS equity,
				@source AS source,
				@imported_by AS imported_by,
				@imported_ts AS imported_ts
		) S
		ON T.tenant_id = S.tenant_id AND T.period_key = S.period_key
		WHEN MATCHED THEN UPDATE SET
			year = S.year,
			month = S.month,
			period_start = S.period_start,
			revenue = S.revenue,
			cost_of_goods_sold = S.cost_of_goods_sold,
			gross_profit = S.gross_profit,
			operating_expenses = S.operating_expenses,
			operating_income = S.operating_income,
			net_income = S.net_income,
			current_assets = S.current_assets,
			non_current_assets = S.non_current_assets,
			current_liabilities = S.current_liabilities,
			non_current_liabilities = S.non_current_liabilities,
			equity = S.equity,
			source = S.source,
			imported_by = S.imported_by,
			imported_ts = S.imported_ts
		WHEN NOT MATCHED THEN INSERT (
			tenant_id,
			period_key,
			year,
			month,
			period_start,
			revenue,
			cost_of_goods_sold,
			gross_profit,
			operating_expenses,
			operating_income,
			net_income,
			current_assets,
			non_current_assets,
			current_liabilities,
			non_current_liabilities,
			equity,
			source,
			imported_by,
			imported_ts
		) VALUES (
			S.tenant_id,
			S.period_key,
			S.year,
			S.month,
			S.period_start,
			S.revenue,
			S.cost_of_goods_sold,
			S.gross_profit,
			S.operating_expenses,
			S.operating_income,
			S.net_income,
			S.current_assets,
			S.non_current_assets,
			S.current_liabilities,
			S.non_current_liabilities,
			S.equity,
			S.source,
			S.imported_by,
			S.imported_ts
		)
	`, tableRef(client, datasetID, financialPeriodsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "tenant_id", Value: row.TenantID},
		{Name: "period_key", Value: row.PeriodKey},
		{Name: "year", Value: row.Year},
		{Name: "month", Value: row.Month},
		{Name: "period_start", Value: row.PeriodStart},
		{Name: "revenue", Value: row.Revenue},
		{Name: "cost_of_goods_sold", Value: row.CostOfGoodsSold},
		{Name: "gross_profit", Value: row.GrossProfit},
		{Name: "operating_expenses", Value: row.OperatingExpenses},
		{Name: "operating_income", Value: row.OperatingIncome},
		{Name: "net_income", Value: row.NetIncome},
		{Name: "current_assets", Value: row.CurrentAssets},
		{Name: "non_current_assets", Value: row.NonCurrentAssets},
		{Name: "current_liabilities", Value: row.CurrentLiabilities},
		{Name: "non_current_liabilities", Value: row.NonCurrentLiabilities},
		{Name: "equity", Value: row.Equity},
		{Name: "source", Value: row.Source},
		{Name: "imported_by", Value: row.ImportedBy},
		{Name: "imported_ts", Value: row.ImportedTS},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("SaveFinancialPeriodWithClient: %s %s: %w", row.TenantID, row.PeriodKey, err)
	}
	return nil
}

// ListFinancialPeriodsWithClient returns all stored periods of a tenant, oldest first.
func ListFinancialPeriodsWithClient(ctx context.Context, client *bigquery.Client, datasetID, tenantID string) ([]*FinancialPeriodRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			tenant_id,
			period_key,
			year,
			month,
			period_start,
			revenue,
			cost_of_goods_sold,
			gross_profit,
			operating_expenses,
			operating_income,
			net_income,
			current_assets,
			non_current_assets,
			current_liabilities,
			non_current_liabilities,
			equity,
			source,
			imported_by,
			imported_ts
		FROM %s
		WHERE tenant_id = @tenant_id
		ORDER BY period_key ASC
	`, tableRef(client, datasetID, financialPeriodsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "tenant_id", Value: tenantID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListFinancialPeriodsWithClient: reading query: %w", err)
	}

	var rows []*FinancialPeriodRow
	for {
		var row FinancialPeriodRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListFinancialPeriodsWithClient: iterating: %w", err)
		}
		rows = append(rows, &row)
	}

	return rows, nil
}

// runDML runs a DML statement and waits for it to finish.
func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
