package insights

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/stillsuit/internal/model"
)

var hundred = decimal.NewFromInt(100)

// MonthBounds returns the first instant of t's calendar month and of the
// following month, in t's location.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

// ComputeOverview sums expenses of now's calendar month and the previous
// one and ranks the current month's categories.
//
// Categories with equal totals keep the order in which they first appear in
// txs. That order is stable for a given input but otherwise unspecified.
func ComputeOverview(now time.Time, txs []model.Transaction, categories []model.Category) Overview {
	curStart, curEnd := MonthBounds(now)
	prevStart := curStart.AddDate(0, -1, 0)
	names := model.CategoryNames(categories)

	current := decimal.Zero
	previous := decimal.Zero
	byCategory := make(map[string]decimal.Decimal)
	var order []string

	for i := range txs {
		tx := &txs[i]
		if !tx.IsExpense() {
			continue
		}
		amount := decimal.NewFromFloat(tx.Amount)
		date := tx.Date.In(now.Location())

		switch {
		case !date.Before(curStart) && date.Before(curEnd):
			current = current.Add(amount)
			key := tx.CategoryKey()
			if _, seen := byCategory[key]; !seen {
				order = append(order, key)
			}
			byCategory[key] = byCategory[key].Add(amount)
		case !date.Before(prevStart) && date.Before(curStart):
			previous = previous.Add(amount)
		}
	}

	totals := make([]CategoryTotal, 0, len(order))
	for _, key := range order {
		totals = append(totals, CategoryTotal{
			CategoryID: key,
			Name:       categoryName(names, key),
			Total:      byCategory[key].InexactFloat64(),
		})
	}
	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].Total > totals[j].Total
	})
	if len(totals) > TopCategoryCount {
		totals = totals[:TopCategoryCount]
	}

	return Overview{
		TopCategories:      totals,
		CurrentMonthTotal:  current.InexactFloat64(),
		PreviousMonthTotal: previous.InexactFloat64(),
		PercentageChange:   percentageChange(current, previous),
	}
}

func percentageChange(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		return 0
	}
	return current.Sub(previous).Div(previous).Mul(hundred).InexactFloat64()
}

func categoryName(names map[string]string, id string) string {
	if id == "" {
		return UncategorizedName
	}
	if name, ok := names[id]; ok {
		return name
	}
	return id
}
