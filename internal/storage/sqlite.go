package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Veraticus/stillsuit/internal/model"
	"github.com/Veraticus/stillsuit/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// timeLayout is how timestamps are stored in TEXT columns.
const timeLayout = time.RFC3339Nano

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	hooks    []func()
	hooksMux sync.RWMutex
}

// queryable is satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer: every statement goes through one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// NewCheckpointManager creates a new checkpoint manager for this storage instance.
func (s *SQLiteStorage) NewCheckpointManager() (*CheckpointManager, error) {
	return NewCheckpointManager(s.db, s.dbPath)
}

// OnChange registers fn to run after every committed mutation.
func (s *SQLiteStorage) OnChange(fn func()) {
	s.hooksMux.Lock()
	defer s.hooksMux.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *SQLiteStorage) notify() {
	s.hooksMux.RLock()
	hooks := append([]func(){}, s.hooks...)
	s.hooksMux.RUnlock()

	for _, fn := range hooks {
		fn()
	}
}

// SchemaVersion returns the schema version marker.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Tx, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// write runs fn outside any transaction and fires change hooks on success.
func (s *SQLiteStorage) write(fn func(q queryable) error) error {
	if err := fn(s.db); err != nil {
		return err
	}
	s.notify()
	return nil
}

// sqliteTransaction wraps sql.Tx to implement service.Tx.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
	dirty   bool
}

func (t *sqliteTransaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return err
	}
	if t.dirty {
		t.storage.notify()
	}
	return nil
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) write(err error) error {
	if err == nil {
		t.dirty = true
	}
	return err
}

func (t *sqliteTransaction) SaveTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return t.write(t.storage.saveTransactionTx(ctx, t.tx, txn))
}

func (t *sqliteTransaction) DeleteTransaction(ctx context.Context, id string) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.write(deleteByID(ctx, t.tx, "transactions", id))
}

func (t *sqliteTransaction) SaveCategory(ctx context.Context, category *model.Category) error {
	if err := validateCategory(category); err != nil {
		return err
	}
	return t.write(saveCategoryTx(ctx, t.tx, category))
}

func (t *sqliteTransaction) DeleteCategory(ctx context.Context, id string) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.write(deleteByID(ctx, t.tx, "categories", id))
}

func (t *sqliteTransaction) SaveBudget(ctx context.Context, budget *model.Budget) error {
	if err := validateBudget(budget); err != nil {
		return err
	}
	return t.write(saveBudgetTx(ctx, t.tx, budget))
}

func (t *sqliteTransaction) DeleteBudget(ctx context.Context, id string) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.write(deleteByID(ctx, t.tx, "budgets", id))
}

func (t *sqliteTransaction) SetSetting(ctx context.Context, key, value string) error {
	if err := validateString(key, "key"); err != nil {
		return err
	}
	return t.write(setSettingTx(ctx, t.tx, key, value))
}

func (t *sqliteTransaction) SaveAlertRule(ctx context.Context, rule *model.AlertRule) error {
	if err := validateAlertRule(rule); err != nil {
		return err
	}
	return t.write(saveAlertRuleTx(ctx, t.tx, rule))
}

func (t *sqliteTransaction) DeleteAlertRule(ctx context.Context, id string) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.write(deleteByID(ctx, t.tx, "alert_rules", id))
}

func (t *sqliteTransaction) SaveTrainingExample(ctx context.Context, example *model.TrainingExample) error {
	if err := validateTrainingExample(example); err != nil {
		return err
	}
	return t.write(saveTrainingExampleTx(ctx, t.tx, example))
}

func (t *sqliteTransaction) DeleteTrainingExample(ctx context.Context, id string) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.write(deleteByID(ctx, t.tx, "ai_training_examples", id))
}

// deleteByID removes one row from a table keyed by id. table is always a
// package constant.
func deleteByID(ctx context.Context, q queryable, table, id string) error {
	// #nosec G201 - table is a package constant
	res, err := q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, table, id)
	}
	return nil
}

// timeNow is replaced in tests.
var timeNow = func() time.Time { return time.Now().UTC() }

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// stampTimes fills created/updated timestamps for a save.
func stampTimes(created, updated *time.Time) {
	now := timeNow()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
