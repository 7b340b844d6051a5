// Package service defines the interfaces shared between the application's
// components.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/stillsuit/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate     *time.Time
	EndDate       *time.Time
	CategoryID    *string
	Type          model.TransactionType
	RecurringOnly bool
	Limit         int
	Offset        int
}

// Row is one raw table row keyed by column name.
type Row = map[string]any

// Tables holds raw rows per table name.
type Tables = map[string][]Row

// Reader is the read-only view of the store used by analytics.
type Reader interface {
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	ListBudgets(ctx context.Context, activeOnly bool) ([]model.Budget, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
}

// Writer holds the single-row mutations.
type Writer interface {
	SaveTransaction(ctx context.Context, txn *model.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	SaveCategory(ctx context.Context, category *model.Category) error
	DeleteCategory(ctx context.Context, id string) error
	SaveBudget(ctx context.Context, budget *model.Budget) error
	DeleteBudget(ctx context.Context, id string) error
	SetSetting(ctx context.Context, key, value string) error
	SaveAlertRule(ctx context.Context, rule *model.AlertRule) error
	DeleteAlertRule(ctx context.Context, id string) error
	SaveTrainingExample(ctx context.Context, example *model.TrainingExample) error
	DeleteTrainingExample(ctx context.Context, id string) error
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	Reader
	Writer

	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	ImportTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	GetBudget(ctx context.Context, id string) (*model.Budget, error)
	GetSetting(ctx context.Context, key string) (string, error)
	ListSettings(ctx context.Context) ([]model.UserSetting, error)
	ListAlertRules(ctx context.Context) ([]model.AlertRule, error)
	ListTrainingExamples(ctx context.Context) ([]model.TrainingExample, error)

	// Snapshot support
	SchemaVersion(ctx context.Context) (int, error)
	ExportTables(ctx context.Context) (Tables, error)
	ReplaceTables(ctx context.Context, tables Tables) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Tx, error)
	OnChange(fn func())
	Close() error
}

// Tx groups writes into one atomic unit.
type Tx interface {
	Writer
	Commit() error
	Rollback() error
}
