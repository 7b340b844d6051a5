package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/stillsuit/internal/model"
	"github.com/Veraticus/stillsuit/internal/service"
)

const transactionColumns = `id, type, amount, currency, date, category_id, payment_method,
	note_encrypted, merchant_encrypted, metadata_encrypted,
	is_recurring, recurring_rule, source, created_at, updated_at`

// SaveTransaction inserts or replaces a single transaction.
func (s *SQLiteStorage) SaveTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return s.write(func(q queryable) error {
		return s.saveTransactionTx(ctx, q, txn)
	})
}

func (s *SQLiteStorage) saveTransactionTx(ctx context.Context, q queryable, txn *model.Transaction) error {
	rule, err := txn.RecurringRule.Encode()
	if err != nil {
		return fmt.Errorf("transaction %s: %w", txn.ID, err)
	}
	stampTimes(&txn.CreatedAt, &txn.UpdatedAt)

	_, err = q.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			amount = excluded.amount,
			currency = excluded.currency,
			date = excluded.date,
			category_id = excluded.category_id,
			payment_method = excluded.payment_method,
			note_encrypted = excluded.note_encrypted,
			merchant_encrypted = excluded.merchant_encrypted,
			metadata_encrypted = excluded.metadata_encrypted,
			is_recurring = excluded.is_recurring,
			recurring_rule = excluded.recurring_rule,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		txn.ID,
		string(txn.Type),
		txn.Amount,
		defaultString(txn.Currency, "EUR"),
		txn.Date.Format(timeLayout),
		nullString(txn.CategoryID),
		txn.PaymentMethod,
		txn.Note,
		txn.Merchant,
		txn.Metadata,
		txn.IsRecurring,
		nullString(model.StringPtr(rule)),
		defaultString(txn.Source, model.SourceManual),
		formatTime(txn.CreatedAt),
		formatTime(txn.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
	}
	return nil
}

// ImportTransactions inserts a batch atomically, skipping ids that already
// exist. It returns the number of new rows.
func (s *SQLiteStorage) ImportTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransactions(transactions); err != nil {
		return 0, err
	}
	if len(transactions) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := formatTime(timeNow())
	inserted := 0
	for i := range transactions {
		txn := &transactions[i]
		rule, encErr := txn.RecurringRule.Encode()
		if encErr != nil {
			return 0, fmt.Errorf("%w: transaction %s: %v", ErrAtomicity, txn.ID, encErr)
		}

		res, execErr := stmt.ExecContext(ctx,
			txn.ID,
			string(txn.Type),
			txn.Amount,
			defaultString(txn.Currency, "EUR"),
			txn.Date.Format(timeLayout),
			nullString(txn.CategoryID),
			txn.PaymentMethod,
			txn.Note,
			txn.Merchant,
			txn.Metadata,
			txn.IsRecurring,
			nullString(model.StringPtr(rule)),
			defaultString(txn.Source, model.SourceManual),
			now,
			now,
		)
		if execErr != nil {
			return 0, fmt.Errorf("%w: transaction %s: %v", ErrAtomicity, txn.ID, execErr)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrAtomicity, err)
	}

	slog.Info("Imported transactions", "total", len(transactions), "inserted", inserted)
	if inserted > 0 {
		s.notify()
	}
	return inserted, nil
}

// GetTransaction returns one transaction by id.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// ListTransactions returns transactions ordered by date then id. Date bounds
// compare calendar days.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, *filter.EndDate, *filter.StartDate)
	}

	var where []string
	var args []any
	if filter.StartDate != nil {
		where = append(where, "substr(date, 1, 10) >= ?")
		args = append(args, filter.StartDate.Format(model.DateLayout))
	}
	if filter.EndDate != nil {
		where = append(where, "substr(date, 1, 10) <= ?")
		args = append(args, filter.EndDate.Format(model.DateLayout))
	}
	if filter.CategoryID != nil {
		where = append(where, "category_id = ?")
		args = append(args, *filter.CategoryID)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.RecurringOnly {
		where = append(where, "is_recurring = 1")
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", scanErr)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// DeleteTransaction removes a transaction.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.write(func(q queryable) error {
		return deleteByID(ctx, q, "transactions", id)
	})
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(sc scanner) (*model.Transaction, error) {
	var txn model.Transaction
	var txnType, date, createdAt, updatedAt string
	var categoryID, note, merchant, metadata, rule sql.NullString

	if err := sc.Scan(
		&txn.ID, &txnType, &txn.Amount, &txn.Currency, &date, &categoryID, &txn.PaymentMethod,
		&note, &merchant, &metadata,
		&txn.IsRecurring, &rule, &txn.Source, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	txn.Type = model.TransactionType(txnType)
	txn.CategoryID = stringPtr(categoryID)
	txn.Note = note.String
	txn.Merchant = merchant.String
	txn.Metadata = metadata.String

	if txn.Date, err = parseTime(date); err != nil {
		return nil, err
	}
	if txn.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if txn.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	// A broken rule degrades the row to a one-off; it never fails the read.
	parsed, ruleErr := model.ParseRecurringRule(rule.String)
	if ruleErr != nil {
		slog.Debug("ignoring unusable recurring rule", "transaction", txn.ID, "error", ruleErr)
	}
	txn.RecurringRule = parsed

	return &txn, nil
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
