package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/stillsuit/internal/model"
)

const budgetColumns = `id, category_id, period, period_start_day, limit_amount, currency,
	alert_threshold_percent, is_active, created_at, updated_at`

// ListBudgets returns budgets ordered by creation time.
func (s *SQLiteStorage) ListBudgets(ctx context.Context, activeOnly bool) ([]model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + budgetColumns + ` FROM budgets`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var budgets []model.Budget
	for rows.Next() {
		b, scanErr := scanBudget(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", scanErr)
		}
		budgets = append(budgets, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budgets: %w", err)
	}
	return budgets, nil
}

// GetBudget returns a budget by id.
func (s *SQLiteStorage) GetBudget(ctx context.Context, id string) (*model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	b, err := scanBudget(s.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: budget %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query budget: %w", err)
	}
	return b, nil
}

// SaveBudget inserts or updates a budget.
func (s *SQLiteStorage) SaveBudget(ctx context.Context, budget *model.Budget) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBudget(budget); err != nil {
		return err
	}
	return s.write(func(q queryable) error {
		return saveBudgetTx(ctx, q, budget)
	})
}

// DeleteBudget removes a budget.
func (s *SQLiteStorage) DeleteBudget(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.write(func(q queryable) error {
		return deleteByID(ctx, q, "budgets", id)
	})
}

func saveBudgetTx(ctx context.Context, q queryable, budget *model.Budget) error {
	stampTimes(&budget.CreatedAt, &budget.UpdatedAt)
	startDay := budget.PeriodStartDay
	if startDay == 0 {
		startDay = 1
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category_id = excluded.category_id,
			period = excluded.period,
			period_start_day = excluded.period_start_day,
			limit_amount = excluded.limit_amount,
			currency = excluded.currency,
			alert_threshold_percent = excluded.alert_threshold_percent,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		budget.ID,
		nullString(budget.CategoryID),
		string(budget.Period),
		startDay,
		budget.LimitAmount,
		defaultString(budget.Currency, "EUR"),
		budget.AlertThresholdPercent,
		budget.IsActive,
		formatTime(budget.CreatedAt),
		formatTime(budget.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save budget %s: %w", budget.ID, err)
	}
	return nil
}

func scanBudget(sc scanner) (*model.Budget, error) {
	var b model.Budget
	var categoryID sql.NullString
	var period, createdAt, updatedAt string
	if err := sc.Scan(
		&b.ID, &categoryID, &period, &b.PeriodStartDay, &b.LimitAmount, &b.Currency,
		&b.AlertThresholdPercent, &b.IsActive, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	b.CategoryID = stringPtr(categoryID)
	b.Period = model.BudgetPeriod(period)
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}
