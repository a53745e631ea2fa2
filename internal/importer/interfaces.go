package importer

import (
	"context"

	"github.com/dvloznov/sie-import/internal/domain"
)

// PeriodStore persists financial periods.
// Implementations must treat a repeated save of the same tenant and period
// key as an update.
type PeriodStore interface {
	SaveFinancialPeriod(ctx context.Context, period *domain.FinancialPeriod) error
}
