// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/cashboard/cashboard/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	FromDate   *string
	ToDate     *string
	CategoryID *int64
	AccountID  *int64
	SourceType *model.SourceType
	Limit      int
	Offset     int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Transaction operations
	InsertTransaction(ctx context.Context, txn *model.Transaction) (int64, error)
	FindTransactionByOriginalID(ctx context.Context, originalID string, sourceType model.SourceType, sourceID int64) (*model.Transaction, error)
	FindPendingByContent(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	PromoteTransaction(ctx context.Context, id int64, txn *model.Transaction) error
	GetTransactionByID(ctx context.Context, id int64) (*model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetUncategorizedTransactions(ctx context.Context) ([]model.Transaction, error)
	ReclassifyTransaction(ctx context.Context, id int64, categoryID int64, txType *model.TransactionType) error

	// Source resolution
	GetCreditCardByLastFour(ctx context.Context, lastFour string) (*model.CreditCard, error)
	GetCreditCardByScraperType(ctx context.Context, scraperType string) (*model.CreditCard, error)
	GetAccountByScraperType(ctx context.Context, scraperType string) (*model.Account, error)
	GetAccounts(ctx context.Context) ([]model.Account, error)
	GetCreditCards(ctx context.Context) ([]model.CreditCard, error)

	// Classification configuration (read-only for the pipeline)
	GetClassificationRules(ctx context.Context) ([]model.ClassificationRule, error)
	CreateClassificationRule(ctx context.Context, rule *model.ClassificationRule) (int64, error)
	DeleteClassificationRule(ctx context.Context, id int64) error
	GetFixedObligations(ctx context.Context, kind model.ObligationKind) ([]model.FixedObligation, error)
	GetBillingDays(ctx context.Context) (map[int64]int, error)

	// Category operations
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*model.Category, error)
	CreateCategory(ctx context.Context, category *model.Category) (int64, error)
	UpdateCategory(ctx context.Context, category *model.Category) error
	DeleteCategory(ctx context.Context, id int64) error

	// Batch bookkeeping
	UpsertBalanceSnapshot(ctx context.Context, accountID int64, date string, balance float64) error
	AppendScrapeLog(ctx context.Context, entry *model.ScrapeLogEntry) error
	GetScrapeLog(ctx context.Context, limit int) ([]model.ScrapeLogEntry, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction. All writes for one scraped
// account go through a single Transaction so they commit as a unit.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
