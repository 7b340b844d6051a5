package insights

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/stillsuit/internal/model"
)

// ComputePredictions projects spendSoFar linearly to the end of now's month.
func ComputePredictions(now time.Time, spendSoFar float64, budgets []model.Budget) Predictions {
	_, end := MonthBounds(now)
	daysInMonth := end.AddDate(0, 0, -1).Day()
	elapsed := now.Day()
	if elapsed < 1 {
		elapsed = 1
	}

	rate := decimal.NewFromFloat(spendSoFar).Div(decimal.NewFromInt(int64(elapsed)))
	expected := rate.Mul(decimal.NewFromInt(int64(daysInMonth)))

	return Predictions{
		Overruns:              GlobalRunRateOverruns(expected, budgets),
		DailyRate:             rate.InexactFloat64(),
		ExpectedMonthEndSpend: expected.InexactFloat64(),
		DaysElapsed:           elapsed,
		DaysInMonth:           daysInMonth,
	}
}

// SpendSoFar sums expenses from the start of now's month through the end of
// now's day. Rows dated later in the month, such as expanded recurring
// occurrences, are not spent yet.
func SpendSoFar(now time.Time, txs []model.Transaction) float64 {
	start, _ := MonthBounds(now)
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)

	total := decimal.Zero
	for i := range txs {
		tx := &txs[i]
		if !tx.IsExpense() {
			continue
		}
		date := tx.Date.In(now.Location())
		if date.Before(start) || !date.Before(end) {
			continue
		}
		total = total.Add(decimal.NewFromFloat(tx.Amount))
	}
	return total.InexactFloat64()
}

// GlobalRunRateOverruns compares one overall month-end projection against
// every active budget's limit, category budgets included.
//
// TODO: project each category's own run-rate against its own budget once the
// intended semantics are confirmed.
func GlobalRunRateOverruns(expected decimal.Decimal, budgets []model.Budget) []Overrun {
	var overruns []Overrun
	for i := range budgets {
		b := &budgets[i]
		if !b.IsActive {
			continue
		}
		limit := decimal.NewFromFloat(b.LimitAmount)
		if !expected.GreaterThan(limit) {
			continue
		}
		overruns = append(overruns, Overrun{
			CategoryID: b.CategoryID,
			BudgetID:   b.ID,
			Limit:      b.LimitAmount,
			Expected:   expected.InexactFloat64(),
			Excess:     expected.Sub(limit).InexactFloat64(),
		})
	}
	return overruns
}
