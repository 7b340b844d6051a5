// Package testutil provides database fixtures for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Veraticus/stillsuit/internal/model"
	"github.com/Veraticus/stillsuit/internal/service"
	"github.com/Veraticus/stillsuit/internal/storage"
)

// TestDB is a migrated SQLite database in the test's temp dir.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
	Path    string
}

// SetupTestDB creates and migrates a database and seeds cats. It is closed
// when the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.BasicCategories()...)
//	db.AddTransactions(testutil.Expense("t1", 12.5).On(day).In("food").Build())
func SetupTestDB(t *testing.T, cats ...model.Category) *TestDB {
	t.Helper()

	// A file rather than :memory: so every pooled connection sees the same data.
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.NewSQLiteStorage(path)
	require.NoError(t, err, "failed to create test database")
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()), "failed to run migrations")

	db := &TestDB{Storage: store, Path: path, t: t}
	db.SeedCategories(cats...)
	return db
}

// SeedCategories saves cats or fails the test.
func (db *TestDB) SeedCategories(cats ...model.Category) {
	db.t.Helper()
	for i := range cats {
		require.NoError(db.t, db.Storage.SaveCategory(context.Background(), &cats[i]),
			"failed to seed category %q", cats[i].ID)
	}
}

// AddTransactions saves txs or fails the test.
func (db *TestDB) AddTransactions(txs ...model.Transaction) {
	db.t.Helper()
	for i := range txs {
		require.NoError(db.t, db.Storage.SaveTransaction(context.Background(), &txs[i]),
			"failed to save transaction %q", txs[i].ID)
	}
}

// AddBudgets saves budgets or fails the test.
func (db *TestDB) AddBudgets(budgets ...model.Budget) {
	db.t.Helper()
	for i := range budgets {
		require.NoError(db.t, db.Storage.SaveBudget(context.Background(), &budgets[i]),
			"failed to save budget %q", budgets[i].ID)
	}
}

// MustListTransactions returns every stored transaction.
func (db *TestDB) MustListTransactions() []model.Transaction {
	db.t.Helper()
	txs, err := db.Storage.ListTransactions(context.Background(), service.TransactionFilter{})
	require.NoError(db.t, err)
	return txs
}
