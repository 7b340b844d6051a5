package model

import "time"

// BudgetPeriod is the window a budget limit applies to.
type BudgetPeriod string

const (
	// PeriodMonthly resets every month on PeriodStartDay.
	PeriodMonthly BudgetPeriod = "monthly"
	// PeriodWeekly resets every week.
	PeriodWeekly BudgetPeriod = "weekly"
	// PeriodCustom is a user-defined window.
	PeriodCustom BudgetPeriod = "custom"
)

// Budget caps spending for one category, or overall when CategoryID is nil.
type Budget struct {
	CreatedAt             time.Time
	UpdatedAt             time.Time
	CategoryID            *string
	ID                    string
	Period                BudgetPeriod
	Currency              string
	LimitAmount           float64
	PeriodStartDay        int
	AlertThresholdPercent int
	IsActive              bool
}

// IsOverall reports whether the budget covers all categories.
func (b *Budget) IsOverall() bool {
	return b.CategoryID == nil
}
