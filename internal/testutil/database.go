// Package testutil provides test helpers for seeded, isolated databases.
package testutil

import (
	"context"
	"testing"

	"github.com/mp3fbf/finance-analyzer/internal/model"
	"github.com/mp3fbf/finance-analyzer/internal/service"
	"github.com/mp3fbf/finance-analyzer/internal/storage"
)

// TestDB is a migrated in-memory database scoped to one test.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

var _ service.Storage = (*storage.SQLiteStorage)(nil)

// SetupTestDB creates a new in-memory test database seeded with txns.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t,
//		testutil.NewTransactions(t).
//			Monthly("NETFLIX.COM", -39.90, 5, 6).
//			Build()...,
//	)
func SetupTestDB(t *testing.T, txns ...model.Transaction) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	db := &TestDB{Storage: store, t: t}
	if len(txns) > 0 {
		db.SeedTransactions(txns...)
	}
	return db
}

// SeedTransactions inserts txns or fails the test.
func (db *TestDB) SeedTransactions(txns ...model.Transaction) {
	db.t.Helper()
	if _, err := db.Storage.SaveTransactions(context.Background(), txns); err != nil {
		db.t.Fatalf("failed to seed transactions: %v", err)
	}
}

// MustDiscoveryByCode returns the stored discovery for code or fails the test.
func (db *TestDB) MustDiscoveryByCode(code string) *model.MerchantDiscovery {
	db.t.Helper()
	d, err := db.Storage.GetDiscoveryByCode(context.Background(), code)
	if err != nil {
		db.t.Fatalf("discovery %q not found: %v", code, err)
	}
	return d
}

// MustLearning returns the full learning history or fails the test.
func (db *TestDB) MustLearning() []model.DiscoveryLearning {
	db.t.Helper()
	history, err := db.Storage.GetAllLearning(context.Background())
	if err != nil {
		db.t.Fatalf("failed to load learning history: %v", err)
	}
	return history
}
