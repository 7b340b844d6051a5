package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/stillsuit/internal/model"
)

// GetSetting returns the value stored under key.
func (s *SQLiteStorage) GetSetting(ctx context.Context, key string) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateString(key, "key"); err != nil {
		return "", err
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM user_settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: setting %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query setting: %w", err)
	}
	return value, nil
}

// SetSetting stores value under key.
func (s *SQLiteStorage) SetSetting(ctx context.Context, key, value string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(key, "key"); err != nil {
		return err
	}
	return s.write(func(q queryable) error {
		return setSettingTx(ctx, q, key, value)
	})
}

// ListSettings returns every setting ordered by key.
func (s *SQLiteStorage) ListSettings(ctx context.Context) ([]model.UserSetting, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value, updated_at FROM user_settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var settings []model.UserSetting
	for rows.Next() {
		var setting model.UserSetting
		var updatedAt string
		if err := rows.Scan(&setting.Key, &setting.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		if setting.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, setting)
	}
	return settings, rows.Err()
}

func setSettingTx(ctx context.Context, q queryable, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO user_settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(timeNow()))
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// ListAlertRules returns all alert rules.
func (s *SQLiteStorage) ListAlertRules(ctx context.Context) ([]model.AlertRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, budget_id, threshold_percent, channel, is_enabled, created_at
		FROM alert_rules ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.AlertRule
	for rows.Next() {
		var rule model.AlertRule
		var createdAt string
		if err := rows.Scan(&rule.ID, &rule.BudgetID, &rule.ThresholdPercent, &rule.Channel, &rule.IsEnabled, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert rule: %w", err)
		}
		if rule.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// SaveAlertRule inserts or updates an alert rule.
func (s *SQLiteStorage) SaveAlertRule(ctx context.Context, rule *model.AlertRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAlertRule(rule); err != nil {
		return err
	}
	return s.write(func(q queryable) error {
		return saveAlertRuleTx(ctx, q, rule)
	})
}

// DeleteAlertRule removes an alert rule.
func (s *SQLiteStorage) DeleteAlertRule(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.write(func(q queryable) error {
		return deleteByID(ctx, q, "alert_rules", id)
	})
}

func saveAlertRuleTx(ctx context.Context, q queryable, rule *model.AlertRule) error {
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = timeNow()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO alert_rules (id, budget_id, threshold_percent, channel, is_enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			budget_id = excluded.budget_id,
			threshold_percent = excluded.threshold_percent,
			channel = excluded.channel,
			is_enabled = excluded.is_enabled`,
		rule.ID, rule.BudgetID, rule.ThresholdPercent, defaultString(rule.Channel, "local"), rule.IsEnabled,
		formatTime(rule.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save alert rule %s: %w", rule.ID, err)
	}
	return nil
}

// ListTrainingExamples returns the stored categorization examples.
func (s *SQLiteStorage) ListTrainingExamples(ctx context.Context) ([]model.TrainingExample, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, merchant, note, category_id, created_at
		FROM ai_training_examples ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query training examples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var examples []model.TrainingExample
	for rows.Next() {
		var ex model.TrainingExample
		var createdAt string
		if err := rows.Scan(&ex.ID, &ex.Merchant, &ex.Note, &ex.CategoryID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan training example: %w", err)
		}
		if ex.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		examples = append(examples, ex)
	}
	return examples, rows.Err()
}

// SaveTrainingExample inserts or updates a training example.
func (s *SQLiteStorage) SaveTrainingExample(ctx context.Context, example *model.TrainingExample) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTrainingExample(example); err != nil {
		return err
	}
	return s.write(func(q queryable) error {
		return saveTrainingExampleTx(ctx, q, example)
	})
}

// DeleteTrainingExample removes a training example.
func (s *SQLiteStorage) DeleteTrainingExample(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.write(func(q queryable) error {
		return deleteByID(ctx, q, "ai_training_examples", id)
	})
}

func saveTrainingExampleTx(ctx context.Context, q queryable, example *model.TrainingExample) error {
	if example.CreatedAt.IsZero() {
		example.CreatedAt = timeNow()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO ai_training_examples (id, merchant, note, category_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			merchant = excluded.merchant,
			note = excluded.note,
			category_id = excluded.category_id`,
		example.ID, example.Merchant, example.Note, example.CategoryID, formatTime(example.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save training example %s: %w", example.ID, err)
	}
	return nil
}
