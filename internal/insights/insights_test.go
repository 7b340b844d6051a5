package insights

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/stillsuit/internal/model"
	"github.com/Veraticus/stillsuit/internal/service"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func expense(id string, date time.Time, amount float64, category string) model.Transaction {
	return model.Transaction{
		ID:         id,
		Type:       model.TypeExpense,
		Amount:     amount,
		Date:       date,
		CategoryID: model.StringPtr(category),
		Currency:   "EUR",
	}
}

var testCategories = []model.Category{
	{ID: "food", Name: "Food"},
	{ID: "rent", Name: "Rent"},
	{ID: "fun", Name: "Fun"},
	{ID: "travel", Name: "Travel"},
}

func TestComputeOverview_PercentageChange(t *testing.T) {
	now := day(2025, 6, 15)

	tests := []struct {
		name     string
		txs      []model.Transaction
		current  float64
		previous float64
		change   float64
	}{
		{
			name: "twenty percent increase",
			txs: []model.Transaction{
				expense("a", day(2025, 6, 1), 700, "rent"),
				expense("b", day(2025, 6, 10), 500, "food"),
				expense("c", day(2025, 5, 3), 1000, "rent"),
			},
			current:  1200,
			previous: 1000,
			change:   20.0,
		},
		{
			name: "no previous spend",
			txs: []model.Transaction{
				expense("a", day(2025, 6, 1), 300, "rent"),
			},
			current:  300,
			previous: 0,
			change:   0,
		},
		{
			name: "decrease",
			txs: []model.Transaction{
				expense("a", day(2025, 6, 2), 50, "food"),
				expense("b", day(2025, 5, 31), 100, "food"),
			},
			current:  50,
			previous: 100,
			change:   -50,
		},
		{
			name: "income and older months ignored",
			txs: []model.Transaction{
				{ID: "i", Type: model.TypeIncome, Amount: 5000, Date: day(2025, 6, 1)},
				expense("old", day(2025, 4, 30), 999, "food"),
				expense("a", day(2025, 6, 5), 10, "food"),
			},
			current:  10,
			previous: 0,
			change:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeOverview(now, tt.txs, testCategories)
			assert.InDelta(t, tt.current, got.CurrentMonthTotal, 1e-9)
			assert.InDelta(t, tt.previous, got.PreviousMonthTotal, 1e-9)
			assert.InDelta(t, tt.change, got.PercentageChange, 1e-9)
		})
	}
}

func TestComputeOverview_TopCategories(t *testing.T) {
	now := day(2025, 6, 15)
	txs := []model.Transaction{
		expense("1", day(2025, 6, 1), 10, "fun"),
		expense("2", day(2025, 6, 2), 40, "food"),
		expense("3", day(2025, 6, 3), 40, "travel"),
		expense("4", day(2025, 6, 4), 100, "rent"),
		expense("5", day(2025, 6, 5), 0.1, "food"),
		{ID: "6", Type: model.TypeExpense, Amount: 5, Date: day(2025, 6, 6)},
	}

	got := ComputeOverview(now, txs, testCategories)
	require.Len(t, got.TopCategories, TopCategoryCount)
	assert.Equal(t, "Rent", got.TopCategories[0].Name)
	assert.Equal(t, "Food", got.TopCategories[1].Name)
	assert.InDelta(t, 40.1, got.TopCategories[1].Total, 1e-9)
	assert.Equal(t, "Travel", got.TopCategories[2].Name)
}

func TestComputeOverview_TiesKeepInputOrder(t *testing.T) {
	now := day(2025, 6, 15)
	txs := []model.Transaction{
		expense("1", day(2025, 6, 1), 20, "travel"),
		expense("2", day(2025, 6, 2), 20, "fun"),
		expense("3", day(2025, 6, 3), 20, "food"),
	}

	got := ComputeOverview(now, txs, testCategories)
	names := []string{got.TopCategories[0].Name, got.TopCategories[1].Name, got.TopCategories[2].Name}
	assert.Equal(t, []string{"Travel", "Fun", "Food"}, names)
}

func TestFindSpikes(t *testing.T) {
	txs := []model.Transaction{
		expense("a", day(2025, 1, 1), 10, "food"),
		expense("b", day(2025, 1, 2), 10, "food"),
		expense("c", day(2025, 1, 3), 10, "food"),
		expense("d", day(2025, 1, 4), 70, "food"),
		expense("e", day(2025, 1, 5), 500, "rent"),
		{ID: "u1", Type: model.TypeExpense, Amount: 1, Date: day(2025, 1, 6)},
		{ID: "u2", Type: model.TypeExpense, Amount: 1, Date: day(2025, 1, 7)},
		{ID: "u3", Type: model.TypeExpense, Amount: 1, Date: day(2025, 1, 8)},
		{ID: "u4", Type: model.TypeExpense, Amount: 9, Date: day(2025, 1, 9)},
	}

	spikes := FindSpikes(txs, testCategories)
	require.Len(t, spikes, 2)

	assert.Equal(t, "d", spikes[0].TransactionID)
	assert.Equal(t, "Food", spikes[0].CategoryName)
	assert.InDelta(t, 25.0, spikes[0].CategoryMean, 1e-9)
	assert.Equal(t, 70.0, spikes[0].Amount)
	assert.True(t, spikes[0].Date.Equal(day(2025, 1, 4)))

	assert.Equal(t, "u4", spikes[1].TransactionID)
	assert.Equal(t, UncategorizedName, spikes[1].CategoryName)
}

func TestFindSpikes_ExactlyDoubleIsNotASpike(t *testing.T) {
	txs := []model.Transaction{
		expense("a", day(2025, 1, 1), 0, "food"),
		expense("b", day(2025, 1, 2), 20, "food"),
	}
	// mean 10, 20 is not strictly greater than 2x mean
	assert.Empty(t, FindSpikes(txs, testCategories))
}

func TestFindSubscriptions(t *testing.T) {
	sub := func(id, merchant string, amount float64) model.Transaction {
		tx := expense(id, day(2025, 1, 1), amount, "fun")
		tx.Merchant = merchant
		tx.IsRecurring = true
		return tx
	}
	oneOff := expense("x", day(2025, 1, 1), 9.99, "fun")
	oneOff.Merchant = "Netflix"

	txs := []model.Transaction{
		sub("1", "Netflix", 9.99),
		sub("2", "Netflix", 9.99),
		sub("3", "Netflix", 12.99),
		sub("4", "Spotify", 9.99),
		oneOff,
	}

	subs := FindSubscriptions(txs)
	require.Len(t, subs, 3)
	assert.Equal(t, "1", subs[0].TransactionID)
	assert.Equal(t, "3", subs[1].TransactionID)
	assert.Equal(t, "Spotify", subs[2].Merchant)
}

func TestComputePredictions(t *testing.T) {
	budgets := []model.Budget{
		{ID: "overall", LimitAmount: 250, IsActive: true},
		{ID: "food", CategoryID: model.StringPtr("food"), LimitAmount: 400, IsActive: true},
		{ID: "inactive", LimitAmount: 1, IsActive: false},
	}

	// June has 30 days; 100 over 10 days projects to 300.
	got := ComputePredictions(day(2025, 6, 10), 100, budgets)
	assert.InDelta(t, 10.0, got.DailyRate, 1e-9)
	assert.InDelta(t, 300.0, got.ExpectedMonthEndSpend, 1e-9)
	assert.Equal(t, 30, got.DaysInMonth)
	assert.Equal(t, 10, got.DaysElapsed)
	require.Len(t, got.Overruns, 1)
	assert.Equal(t, "overall", got.Overruns[0].BudgetID)
	assert.InDelta(t, 50.0, got.Overruns[0].Excess, 1e-9)

	// February 2024 is a leap month.
	leap := ComputePredictions(day(2024, 2, 1), 10, nil)
	assert.Equal(t, 29, leap.DaysInMonth)
	assert.InDelta(t, 290.0, leap.ExpectedMonthEndSpend, 1e-9)
	assert.Empty(t, leap.Overruns)
}

func TestGlobalRunRateOverrunsAppliesToCategoryBudgets(t *testing.T) {
	budgets := []model.Budget{
		{ID: "tiny-category", CategoryID: model.StringPtr("fun"), LimitAmount: 5, IsActive: true},
	}
	// The fun category has no spend of its own, yet the global projection
	// still flags its budget.
	got := ComputePredictions(day(2025, 6, 30), 30, budgets)
	require.Len(t, got.Overruns, 1)
	assert.Equal(t, "tiny-category", got.Overruns[0].BudgetID)
}

func TestSpendSoFar(t *testing.T) {
	now := day(2025, 3, 5)
	income := expense("salary", day(2025, 3, 1), 3000, "")
	income.Type = model.TypeIncome
	txs := []model.Transaction{
		expense("last-month", day(2025, 2, 28), 40, "food"),
		expense("first", day(2025, 3, 1), 10, "food"),
		expense("today-late", time.Date(2025, 3, 5, 23, 59, 0, 0, time.UTC), 5, "food"),
		expense("tomorrow", time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC), 70, "food"),
		expense("rent", day(2025, 3, 28), 1000, "rent"),
		income,
	}

	assert.InDelta(t, 15.0, SpendSoFar(now, txs), 1e-9)
	assert.Zero(t, SpendSoFar(now, nil))
}

func TestEngine_FutureOccurrencesAreNotSpendSoFar(t *testing.T) {
	rent := expense("rent", day(2025, 1, 28), 1000, "rent")
	rent.IsRecurring = true
	rent.RecurringRule = model.Monthly(28)

	reader := &fakeReader{
		txs:     []model.Transaction{rent},
		budgets: []model.Budget{{ID: "b", LimitAmount: 2000, IsActive: true}},
	}

	got, err := NewEngine(reader, WithRecurringExpansion()).Generate(context.Background(), day(2025, 3, 5))
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, got.Overview.CurrentMonthTotal, 1e-9)
	assert.Zero(t, got.Predictions.DailyRate)
	assert.Zero(t, got.Predictions.ExpectedMonthEndSpend)
	assert.Empty(t, got.Predictions.Overruns)
	assert.NotContains(t, got.Recommendations, RecommendBudgetOverrun)
}

func TestRecommend(t *testing.T) {
	threeSubs := []Subscription{{Merchant: "a"}, {Merchant: "b"}, {Merchant: "c"}}

	tests := []struct {
		name        string
		overview    Overview
		diagnostics Diagnostics
		predictions Predictions
		want        []string
	}{
		{
			name: "nothing to say",
			want: []string{},
		},
		{
			name:     "exactly ten percent is not an increase",
			overview: Overview{PercentageChange: 10},
			want:     []string{},
		},
		{
			name:        "all rules in order",
			overview:    Overview{PercentageChange: 10.5},
			diagnostics: Diagnostics{Spikes: []Spike{{}}, Subscriptions: threeSubs},
			predictions: Predictions{Overruns: []Overrun{{}}},
			want: []string{
				RecommendSpendingIncreased,
				RecommendUnusualSpikes,
				RecommendSubscriptions,
				RecommendBudgetOverrun,
			},
		},
		{
			name:        "two subscriptions are fine",
			diagnostics: Diagnostics{Subscriptions: threeSubs[:2]},
			predictions: Predictions{Overruns: []Overrun{{}}},
			want:        []string{RecommendBudgetOverrun},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Recommend(tt.overview, tt.diagnostics, tt.predictions))
		})
	}
}

type fakeReader struct {
	err        error
	txs        []model.Transaction
	budgets    []model.Budget
	categories []model.Category
}

func (f *fakeReader) ListTransactions(context.Context, service.TransactionFilter) ([]model.Transaction, error) {
	return f.txs, f.err
}

func (f *fakeReader) ListBudgets(context.Context, bool) ([]model.Budget, error) {
	return f.budgets, nil
}

func (f *fakeReader) ListCategories(context.Context) ([]model.Category, error) {
	return f.categories, nil
}

func TestEngine_Generate(t *testing.T) {
	rent := expense("rent", day(2025, 1, 1), 1000, "rent")
	rent.IsRecurring = true
	rent.Merchant = "Landlord"
	rent.RecurringRule = model.Monthly(1)

	reader := &fakeReader{
		txs:        []model.Transaction{rent, expense("lunch", day(2025, 6, 3), 20, "food")},
		budgets:    []model.Budget{{ID: "b", LimitAmount: 500, IsActive: true}},
		categories: testCategories,
	}
	now := day(2025, 6, 15)

	plain, err := NewEngine(reader).Generate(context.Background(), now)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, plain.Overview.CurrentMonthTotal, 1e-9)
	assert.Len(t, plain.Diagnostics.Subscriptions, 1)

	expanded, err := NewEngine(reader, WithRecurringExpansion()).Generate(context.Background(), now)
	require.NoError(t, err)
	assert.InDelta(t, 1020.0, expanded.Overview.CurrentMonthTotal, 1e-9)
	assert.InDelta(t, 1000.0, expanded.Overview.PreviousMonthTotal, 1e-9)
	assert.InDelta(t, 2.0, expanded.Overview.PercentageChange, 1e-9)
	assert.Equal(t, "Rent", expanded.Overview.TopCategories[0].Name)
	assert.Contains(t, expanded.Recommendations, RecommendBudgetOverrun)
	assert.True(t, expanded.GeneratedAt.Equal(now))
}

func TestEngine_GeneratePropagatesErrors(t *testing.T) {
	reader := &fakeReader{err: errors.New("disk on fire")}
	_, err := NewEngine(reader).Generate(context.Background(), day(2025, 6, 1))
	assert.ErrorContains(t, err, "disk on fire")
}
