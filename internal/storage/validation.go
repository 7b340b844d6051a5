// Package storage provides the data persistence layer for stillsuit.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/stillsuit/internal/common"
	"github.com/Veraticus/stillsuit/internal/model"
)

// Validation and storage errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidBudget      = errors.New("invalid budget")
	ErrInvalidRecord      = errors.New("invalid record")
	ErrNotFound           = common.ErrNotFound
	// ErrAtomicity reports that a multi-row write was rolled back as a whole.
	ErrAtomicity = errors.New("atomic write failed; no rows were changed")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if !txn.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, txn.Type)
	}
	if txn.Amount < 0 {
		return fmt.Errorf("%w: negative amount", ErrInvalidTransaction)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

func validateCategory(category *model.Category) error {
	if category == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}
	if category.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidCategory)
	}
	if strings.TrimSpace(category.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCategory)
	}
	return nil
}

// validateBudget enforces the writer-side invariants analytics rely on.
func validateBudget(budget *model.Budget) error {
	if budget == nil {
		return fmt.Errorf("%w: budget", ErrNilParameter)
	}
	if budget.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidBudget)
	}
	if budget.LimitAmount <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrInvalidBudget)
	}
	switch budget.Period {
	case model.PeriodMonthly, model.PeriodWeekly, model.PeriodCustom:
	default:
		return fmt.Errorf("%w: unknown period %q", ErrInvalidBudget, budget.Period)
	}
	if budget.AlertThresholdPercent < 0 || budget.AlertThresholdPercent > 100 {
		return fmt.Errorf("%w: alert threshold must be between 0 and 100", ErrInvalidBudget)
	}
	return nil
}

func validateAlertRule(rule *model.AlertRule) error {
	if rule == nil {
		return fmt.Errorf("%w: alert rule", ErrNilParameter)
	}
	if rule.ID == "" || rule.BudgetID == "" {
		return fmt.Errorf("%w: alert rule needs id and budget", ErrInvalidRecord)
	}
	return nil
}

func validateTrainingExample(example *model.TrainingExample) error {
	if example == nil {
		return fmt.Errorf("%w: training example", ErrNilParameter)
	}
	if example.ID == "" || example.CategoryID == "" {
		return fmt.Errorf("%w: training example needs id and category", ErrInvalidRecord)
	}
	return nil
}
