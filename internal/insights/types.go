// Package insights computes read-only spending analytics over stored
// transactions and budgets.
package insights

import "time"

// TopCategoryCount is how many categories the overview ranks.
const TopCategoryCount = 3

// UncategorizedName labels rows without a category.
const UncategorizedName = "Uncategorized"

// Recommendation texts, in the order they are emitted.
const (
	RecommendSpendingIncreased = "Spending increased more than 10% compared to last month."
	RecommendUnusualSpikes     = "Unusual spikes detected; review large transactions."
	RecommendSubscriptions     = "Review subscriptions; you have more than 2 recurring payments."
	RecommendBudgetOverrun     = "You are likely to exceed a budget this month."
)

// CategoryTotal is the summed expense of one category.
type CategoryTotal struct {
	CategoryID string
	Name       string
	Total      float64
}

// Overview compares this calendar month's expenses with last month's.
type Overview struct {
	TopCategories      []CategoryTotal
	CurrentMonthTotal  float64
	PreviousMonthTotal float64
	// PercentageChange is 0 when the previous month had no spend.
	PercentageChange float64
}

// Spike is a transaction well above its category's mean amount.
type Spike struct {
	Date          time.Time
	TransactionID string
	CategoryID    string
	CategoryName  string
	Amount        float64
	CategoryMean  float64
}

// Subscription is one distinct (merchant, amount) pair among recurring rows.
type Subscription struct {
	TransactionID string
	Merchant      string
	Currency      string
	Amount        float64
}

// Diagnostics groups spike and subscription findings.
type Diagnostics struct {
	Spikes        []Spike
	Subscriptions []Subscription
}

// Overrun flags a budget the projected month-end spend exceeds.
type Overrun struct {
	CategoryID *string
	BudgetID   string
	Limit      float64
	Expected   float64
	Excess     float64
}

// Predictions projects the month-end spend from the current run-rate.
type Predictions struct {
	Overruns              []Overrun
	DailyRate             float64
	ExpectedMonthEndSpend float64
	DaysElapsed           int
	DaysInMonth           int
}

// Result is the composed output of every insight computation.
type Result struct {
	GeneratedAt     time.Time
	Recommendations []string
	Overview        Overview
	Diagnostics     Diagnostics
	Predictions     Predictions
}
