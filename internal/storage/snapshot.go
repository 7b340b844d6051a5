package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Veraticus/stillsuit/internal/service"
)

// SnapshotTables lists the tables captured by a snapshot, in restore order.
var SnapshotTables = []string{
	"categories",
	"budgets",
	"transactions",
	"user_settings",
	"alert_rules",
	"ai_training_examples",
}

// ExportTables reads every row of every snapshot table. Cells keep the
// driver's native types: int64, float64, string, []byte or nil.
func (s *SQLiteStorage) ExportTables(ctx context.Context) (service.Tables, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tables := make(service.Tables, len(SnapshotTables))
	for _, table := range SnapshotTables {
		rows, readErr := readTable(ctx, tx, table)
		if readErr != nil {
			return nil, readErr
		}
		tables[table] = rows
	}
	return tables, nil
}

// ReplaceTables clears every snapshot table and inserts the given rows in a
// single transaction. Tables missing from the input end up empty. Any
// failure rolls everything back and wraps ErrAtomicity.
func (s *SQLiteStorage) ReplaceTables(ctx context.Context, tables service.Tables) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	for name := range tables {
		if !isSnapshotTable(name) {
			return fmt.Errorf("%w: unknown table %q", ErrAtomicity, name)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Clear in reverse so dependents go first.
	for i := len(SnapshotTables) - 1; i >= 0; i-- {
		// #nosec G202 - table names come from SnapshotTables
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+SnapshotTables[i]); err != nil {
			return fmt.Errorf("%w: clear %s: %v", ErrAtomicity, SnapshotTables[i], err)
		}
	}

	total := 0
	for _, table := range SnapshotTables {
		rows := tables[table]
		if len(rows) == 0 {
			continue
		}
		columns, colErr := tableColumns(ctx, tx, table)
		if colErr != nil {
			return fmt.Errorf("%w: %v", ErrAtomicity, colErr)
		}
		for i, row := range rows {
			if insErr := insertRow(ctx, tx, table, columns, row); insErr != nil {
				return fmt.Errorf("%w: %s row %d: %v", ErrAtomicity, table, i, insErr)
			}
		}
		total += len(rows)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrAtomicity, err)
	}

	slog.Info("Replaced snapshot tables", "rows", total)
	s.notify()
	return nil
}

func isSnapshotTable(name string) bool {
	for _, t := range SnapshotTables {
		if t == name {
			return true
		}
	}
	return false
}

func readTable(ctx context.Context, q queryable, table string) ([]service.Row, error) {
	// #nosec G202 - table names come from SnapshotTables
	rows, err := q.QueryContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s columns: %w", table, err)
	}

	result := []service.Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}

		row := make(service.Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeCell(values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", table, err)
	}
	return result, nil
}

// normalizeCell collapses driver types onto the set a JSON round trip can
// reproduce.
func normalizeCell(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case bool:
		if val {
			return int64(1)
		}
		return int64(0)
	case int:
		return int64(val)
	default:
		return val
	}
}

func tableColumns(ctx context.Context, q queryable, table string) (map[string]bool, error) {
	// #nosec G202 - table names come from SnapshotTables
	rows, err := q.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, kind string
			notNull    int
			dflt       sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &kind, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan %s column: %w", table, err)
		}
		columns[name] = true
	}
	return columns, rows.Err()
}

func insertRow(ctx context.Context, q queryable, table string, columns map[string]bool, row service.Row) error {
	names := make([]string, 0, len(row))
	for col := range row {
		if !columns[col] {
			return fmt.Errorf("unknown column %q", col)
		}
		names = append(names, col)
	}
	if len(names) == 0 {
		return fmt.Errorf("empty row")
	}
	sort.Strings(names)

	args := make([]any, len(names))
	for i, col := range names {
		args[i] = row[col]
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	// #nosec G201 - table and column names are checked against the schema
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), placeholders)
	_, err := q.ExecContext(ctx, query, args...)
	return err
}
