package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/stillsuit/internal/model"
)

const categoryColumns = `id, name, icon, color_hex, is_default, created_at, updated_at`

// ListCategories returns all categories ordered by name.
func (s *SQLiteStorage) ListCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		cat, scanErr := scanCategory(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan category: %w", scanErr)
		}
		categories = append(categories, *cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "count", len(categories))
	return categories, nil
}

// GetCategory returns a category by id.
func (s *SQLiteStorage) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	cat, err := scanCategory(s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: category %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	return cat, nil
}

// SaveCategory inserts or updates a category.
func (s *SQLiteStorage) SaveCategory(ctx context.Context, category *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(category); err != nil {
		return err
	}
	return s.write(func(q queryable) error {
		return saveCategoryTx(ctx, q, category)
	})
}

// DeleteCategory removes a category. Transactions keep their category_id.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.write(func(q queryable) error {
		return deleteByID(ctx, q, "categories", id)
	})
}

func saveCategoryTx(ctx context.Context, q queryable, category *model.Category) error {
	stampTimes(&category.CreatedAt, &category.UpdatedAt)
	_, err := q.ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			icon = excluded.icon,
			color_hex = excluded.color_hex,
			is_default = excluded.is_default,
			updated_at = excluded.updated_at`,
		category.ID,
		category.Name,
		category.Icon,
		category.ColorHex,
		category.IsDefault,
		formatTime(category.CreatedAt),
		formatTime(category.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save category %s: %w", category.ID, err)
	}
	return nil
}

func scanCategory(sc scanner) (*model.Category, error) {
	var cat model.Category
	var createdAt, updatedAt string
	if err := sc.Scan(&cat.ID, &cat.Name, &cat.Icon, &cat.ColorHex, &cat.IsDefault, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if cat.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if cat.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &cat, nil
}
