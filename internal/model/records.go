package model

import "time"

// UserSetting is one key/value preference.
type UserSetting struct {
	UpdatedAt time.Time
	Key       string
	Value     string
}

// AlertRule fires a notification when a budget crosses a threshold.
type AlertRule struct {
	CreatedAt        time.Time
	ID               string
	BudgetID         string
	Channel          string
	ThresholdPercent int
	IsEnabled        bool
}

// TrainingExample records a user's categorization of a merchant, used to
// suggest categories for new transactions.
type TrainingExample struct {
	CreatedAt  time.Time
	ID         string
	Merchant   string
	Note       string
	CategoryID string
}
