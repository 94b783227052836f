package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ahmed20kamel/project-management-api/internal/project"
)

// SuspensionAfter is how long a project may go without a payment before it
// counts as suspended.
const SuspensionAfter = 180 * 24 * time.Hour

var (
	hundred         = decimal.NewFromInt(100)
	handoverPercent = decimal.NewFromInt(91)
	closurePercent  = decimal.NewFromInt(5)
)

// CalculateStatus derives a project status from its contract value and
// its payments, which must be ordered by date. Rules apply in order:
//
//  1. no payments: not_started
//  2. paid >= 100% of the contract: completed
//  3. paid >= 91%: handover_stage
//  4. less than 5% of the contract left: pending_financial_closure
//  5. last payment older than 180 days: temporarily_suspended
//  6. exactly one payment: execution_started
//  7. otherwise: under_execution
//
// A zero contract value counts as 0% complete. Rule 4 is shadowed by
// rule 3 and kept so the order matches the business rules as written.
func CalculateStatus(contractValue decimal.Decimal, payments []Payment, now time.Time) project.Status {
	if len(payments) == 0 {
		return project.StatusNotStarted
	}

	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}

	completion := decimal.Zero
	if contractValue.IsPositive() {
		completion = paid.Div(contractValue).Mul(hundred)
	}

	switch {
	case completion.GreaterThanOrEqual(hundred):
		return project.StatusCompleted
	case completion.GreaterThanOrEqual(handoverPercent):
		return project.StatusHandoverStage
	}

	if contractValue.IsPositive() {
		remaining := contractValue.Sub(paid).Div(contractValue).Mul(hundred)
		if remaining.LessThan(closurePercent) {
			return project.StatusPendingFinancialClosure
		}
	}

	last := payments[len(payments)-1]
	if dateOnly(last.Date).Before(dateOnly(now.Add(-SuspensionAfter))) {
		return project.StatusTemporarilySuspended
	}

	if len(payments) == 1 {
		return project.StatusExecutionStarted
	}
	return project.StatusUnderExecution
}

// CompletionPercent returns paid / contract * 100, rounded to two places.
func CompletionPercent(contractValue, paid decimal.Decimal) decimal.Decimal {
	if !contractValue.IsPositive() {
		return decimal.Zero
	}
	return paid.Div(contractValue).Mul(hundred).Round(2)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
