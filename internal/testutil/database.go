// Package testutil provides test helpers for setting up isolated in-memory
// databases and seeding them with fixture data.
package testutil

import (
	"context"
	"testing"

	"github.com/cashboard/cashboard/internal/model"
	"github.com/cashboard/cashboard/internal/storage"
)

// SetupTestDB creates a migrated in-memory SQLite database. The reserved
// Uncategorized category (id 1) is seeded by the migrations. Cleanup is
// registered automatically.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// SeedAccount inserts a bank account and returns its id.
func SeedAccount(t *testing.T, store *storage.SQLiteStorage, name, bank string, scraperType *string) int64 {
	t.Helper()

	id, err := store.CreateAccount(context.Background(), &model.Account{
		Name:        name,
		Bank:        bank,
		Type:        "personal",
		ScraperType: scraperType,
	})
	if err != nil {
		t.Fatalf("failed to seed account %q: %v", name, err)
	}
	return id
}

// SeedCreditCard inserts a credit card and returns its id.
func SeedCreditCard(t *testing.T, store *storage.SQLiteStorage, accountID int64, name string, lastFour, scraperType *string, billingDay *int) int64 {
	t.Helper()

	id, err := store.CreateCreditCard(context.Background(), &model.CreditCard{
		AccountID:      accountID,
		Name:           name,
		Company:        "visa",
		LastFourDigits: lastFour,
		ScraperType:    scraperType,
		BillingDay:     billingDay,
	})
	if err != nil {
		t.Fatalf("failed to seed credit card %q: %v", name, err)
	}
	return id
}

// SeedCategory inserts a category and returns its id.
func SeedCategory(t *testing.T, store *storage.SQLiteStorage, name string) int64 {
	t.Helper()

	id, err := store.CreateCategory(context.Background(), &model.Category{Name: name})
	if err != nil {
		t.Fatalf("failed to seed category %q: %v", name, err)
	}
	return id
}

// SeedRule inserts a classification rule and returns its id.
func SeedRule(t *testing.T, store *storage.SQLiteStorage, categoryID int64, keyword string, matchType model.MatchType) int64 {
	t.Helper()

	id, err := store.CreateClassificationRule(context.Background(), &model.ClassificationRule{
		CategoryID: categoryID,
		Keyword:    keyword,
		MatchType:  matchType,
	})
	if err != nil {
		t.Fatalf("failed to seed rule %q: %v", keyword, err)
	}
	return id
}

// SeedObligation inserts a fixed expense or income and returns its id.
func SeedObligation(t *testing.T, store *storage.SQLiteStorage, kind model.ObligationKind, name string, keyword *string) int64 {
	t.Helper()

	id, err := store.CreateFixedObligation(context.Background(), &model.FixedObligation{
		Kind:           kind,
		Name:           name,
		ExpectedAmount: 1000,
		Keyword:        keyword,
	})
	if err != nil {
		t.Fatalf("failed to seed fixed obligation %q: %v", name, err)
	}
	return id
}

// Ptr returns a pointer to the given value; convenient for optional fields.
func Ptr[T any](v T) *T {
	return &v
}
