package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// TransactionType indicates whether money left or entered the user's accounts.
type TransactionType string

const (
	// TypeExpense represents money spent.
	TypeExpense TransactionType = "expense"
	// TypeIncome represents money received.
	TypeIncome TransactionType = "income"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TypeExpense || t == TypeIncome
}

// Transaction sources.
const (
	SourceManual = "manual"
	SourceOFX    = "ofx"
	SourceCSV    = "csv"
)

// Transaction represents a single financial transaction.
// A recurring transaction's stored row is the template for its occurrences.
type Transaction struct {
	Date          time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CategoryID    *string
	RecurringRule *RecurringRule
	ID            string
	Type          TransactionType
	Currency      string
	PaymentMethod string
	Source        string

	// Note, Merchant and Metadata are plain text today; the columns are
	// reserved for field-level encryption.
	Note     string
	Merchant string
	Metadata string

	Amount      float64
	IsRecurring bool
}

// IsExpense reports whether the transaction is an expense.
func (t *Transaction) IsExpense() bool {
	return t.Type == TypeExpense
}

// Recurrence returns the transaction's rule when it is a usable recurring
// template. Rows flagged recurring without a recognized rule return nil and
// are treated as one-off transactions by every consumer.
func (t *Transaction) Recurrence() *RecurringRule {
	if !t.IsRecurring || t.RecurringRule == nil || !t.RecurringRule.Frequency.Valid() {
		return nil
	}
	return t.RecurringRule
}

// CategoryKey returns the category id or "" for uncategorized rows.
func (t *Transaction) CategoryKey() string {
	if t.CategoryID == nil {
		return ""
	}
	return *t.CategoryID
}

// GenerateHash creates a stable fingerprint used for import deduplication.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.Merchant,
		t.Type)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
