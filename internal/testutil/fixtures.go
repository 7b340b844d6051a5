package testutil

import (
	"time"

	"github.com/Veraticus/stillsuit/internal/model"
)

// Category ids seeded by BasicCategories.
const (
	CategoryFood      = "food"
	CategoryRent      = "rent"
	CategoryTransport = "transport"
	CategorySalary    = "salary"
)

// BasicCategories is the minimal set most tests need.
func BasicCategories() []model.Category {
	return []model.Category{
		{ID: CategoryFood, Name: "Food", Icon: "🍞", ColorHex: "#E0A458"},
		{ID: CategoryRent, Name: "Rent", Icon: "🏠", ColorHex: "#8C5E58"},
		{ID: CategoryTransport, Name: "Transport", Icon: "🚌", ColorHex: "#5B8E7D"},
		{ID: CategorySalary, Name: "Salary", Icon: "💼", ColorHex: "#3D5A80"},
	}
}

// TxBuilder builds transactions fluently.
type TxBuilder struct {
	tx model.Transaction
}

// Expense starts an EUR expense dated 2025-01-01 at noon UTC.
func Expense(id string, amount float64) *TxBuilder {
	return newTx(id, model.TypeExpense, amount)
}

// Income starts an EUR income dated 2025-01-01 at noon UTC.
func Income(id string, amount float64) *TxBuilder {
	return newTx(id, model.TypeIncome, amount)
}

func newTx(id string, typ model.TransactionType, amount float64) *TxBuilder {
	return &TxBuilder{tx: model.Transaction{
		ID:       id,
		Type:     typ,
		Amount:   amount,
		Currency: "EUR",
		Date:     Day(2025, time.January, 1),
		Source:   model.SourceManual,
	}}
}

// On sets the date.
func (b *TxBuilder) On(date time.Time) *TxBuilder {
	b.tx.Date = date
	return b
}

// At sets the merchant.
func (b *TxBuilder) At(merchant string) *TxBuilder {
	b.tx.Merchant = merchant
	return b
}

// In sets the category.
func (b *TxBuilder) In(categoryID string) *TxBuilder {
	b.tx.CategoryID = model.StringPtr(categoryID)
	return b
}

// Note sets the note.
func (b *TxBuilder) Note(note string) *TxBuilder {
	b.tx.Note = note
	return b
}

// Repeating makes the transaction a recurring template.
func (b *TxBuilder) Repeating(rule *model.RecurringRule) *TxBuilder {
	b.tx.IsRecurring = true
	b.tx.RecurringRule = rule
	return b
}

// Build returns a copy of the transaction.
func (b *TxBuilder) Build() model.Transaction {
	return b.tx
}

// Day returns noon UTC on the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

// MonthlyBudget caps categoryID, or everything when categoryID is "".
func MonthlyBudget(id, categoryID string, limit float64) model.Budget {
	b := model.Budget{
		ID:                    id,
		Period:                model.PeriodMonthly,
		Currency:              "EUR",
		LimitAmount:           limit,
		PeriodStartDay:        1,
		AlertThresholdPercent: 80,
		IsActive:              true,
	}
	if categoryID != "" {
		b.CategoryID = model.StringPtr(categoryID)
	}
	return b
}
