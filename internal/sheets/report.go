package sheets

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/stillsuit/internal/insights"
	"github.com/Veraticus/stillsuit/internal/model"
)

// Report is the data written to one spreadsheet.
type Report struct {
	Start           time.Time
	End             time.Time
	Currency        string
	TotalIncome     decimal.Decimal
	TotalExpenses   decimal.Decimal
	Categories      []CategoryRow
	Transactions    []TransactionRow
	Recommendations []string
}

// CategoryRow is one line of the expense breakdown.
type CategoryRow struct {
	Name   string
	Amount decimal.Decimal
	Count  int
}

// TransactionRow is one line of the transaction details.
type TransactionRow struct {
	Date      time.Time
	Type      model.TransactionType
	Merchant  string
	Category  string
	Note      string
	Currency  string
	Amount    decimal.Decimal
	Recurring bool
}

// Net is income minus expenses.
func (r *Report) Net() decimal.Decimal {
	return r.TotalIncome.Sub(r.TotalExpenses)
}

// BuildReport summarizes txs over [start, end]. result may be nil.
func BuildReport(start, end time.Time, txs []model.Transaction, categories []model.Category, result *insights.Result) *Report {
	names := model.CategoryNames(categories)
	report := &Report{
		Start:         start,
		End:           end,
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
		Transactions:  make([]TransactionRow, 0, len(txs)),
	}

	byCategory := make(map[string]*CategoryRow)
	for i := range txs {
		tx := &txs[i]
		if report.Currency == "" {
			report.Currency = tx.Currency
		}

		amount := decimal.NewFromFloat(tx.Amount)
		name := categoryLabel(names, tx.CategoryKey())

		if tx.IsExpense() {
			report.TotalExpenses = report.TotalExpenses.Add(amount)
			row, ok := byCategory[name]
			if !ok {
				row = &CategoryRow{Name: name, Amount: decimal.Zero}
				byCategory[name] = row
			}
			row.Amount = row.Amount.Add(amount)
			row.Count++
		} else {
			report.TotalIncome = report.TotalIncome.Add(amount)
		}

		report.Transactions = append(report.Transactions, TransactionRow{
			Date:      tx.Date,
			Type:      tx.Type,
			Merchant:  tx.Merchant,
			Category:  name,
			Note:      tx.Note,
			Currency:  tx.Currency,
			Amount:    amount,
			Recurring: tx.IsRecurring,
		})
	}

	report.Categories = make([]CategoryRow, 0, len(byCategory))
	for _, row := range byCategory {
		report.Categories = append(report.Categories, *row)
	}
	sort.Slice(report.Categories, func(i, j int) bool {
		a, b := report.Categories[i], report.Categories[j]
		if !a.Amount.Equal(b.Amount) {
			return a.Amount.GreaterThan(b.Amount)
		}
		return a.Name < b.Name
	})

	// Newest first.
	sort.SliceStable(report.Transactions, func(i, j int) bool {
		return report.Transactions[i].Date.After(report.Transactions[j].Date)
	})

	if result != nil {
		report.Recommendations = result.Recommendations
	}
	return report
}

func categoryLabel(names map[string]string, id string) string {
	if id == "" {
		return insights.UncategorizedName
	}
	if name, ok := names[id]; ok {
		return name
	}
	return id
}
