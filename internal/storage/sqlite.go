package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cashboard/cashboard/internal/model"
	"github.com/cashboard/cashboard/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// Validate input
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Test connection
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

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
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

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.
func (t *sqliteTransaction) InsertTransaction(ctx context.Context, txn *model.Transaction) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransaction(txn); err != nil {
		return 0, err
	}
	return t.storage.insertTransactionTx(ctx, t.tx, txn)
}

func (t *sqliteTransaction) FindTransactionByOriginalID(ctx context.Context, originalID string, sourceType model.SourceType, sourceID int64) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.findTransactionByOriginalIDTx(ctx, t.tx, originalID, sourceType, sourceID)
}

func (t *sqliteTransaction) FindPendingByContent(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.findPendingByContentTx(ctx, t.tx, txn)
}

func (t *sqliteTransaction) PromoteTransaction(ctx context.Context, id int64, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.promoteTransactionTx(ctx, t.tx, id, txn)
}

func (t *sqliteTransaction) GetTransactionByID(ctx context.Context, id int64) (*model.Transaction, error) {
	return t.storage.getTransactionByIDTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	return t.storage.getTransactionsTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) GetUncategorizedTransactions(ctx context.Context) ([]model.Transaction, error) {
	return t.storage.getUncategorizedTransactionsTx(ctx, t.tx)
}

func (t *sqliteTransaction) ReclassifyTransaction(ctx context.Context, id int64, categoryID int64, txType *model.TransactionType) error {
	return t.storage.reclassifyTransactionTx(ctx, t.tx, id, categoryID, txType)
}

func (t *sqliteTransaction) GetCreditCardByLastFour(ctx context.Context, lastFour string) (*model.CreditCard, error) {
	return t.storage.getCreditCardByLastFourTx(ctx, t.tx, lastFour)
}

func (t *sqliteTransaction) GetCreditCardByScraperType(ctx context.Context, scraperType string) (*model.CreditCard, error) {
	return t.storage.getCreditCardByScraperTypeTx(ctx, t.tx, scraperType)
}

func (t *sqliteTransaction) GetAccountByScraperType(ctx context.Context, scraperType string) (*model.Account, error) {
	return t.storage.getAccountByScraperTypeTx(ctx, t.tx, scraperType)
}

func (t *sqliteTransaction) GetAccounts(ctx context.Context) ([]model.Account, error) {
	return t.storage.getAccountsTx(ctx, t.tx)
}

func (t *sqliteTransaction) GetCreditCards(ctx context.Context) ([]model.CreditCard, error) {
	return t.storage.getCreditCardsTx(ctx, t.tx)
}

func (t *sqliteTransaction) GetClassificationRules(ctx context.Context) ([]model.ClassificationRule, error) {
	return t.storage.getClassificationRulesTx(ctx, t.tx)
}

func (t *sqliteTransaction) CreateClassificationRule(ctx context.Context, rule *model.ClassificationRule) (int64, error) {
	return t.storage.createClassificationRuleTx(ctx, t.tx, rule)
}

func (t *sqliteTransaction) DeleteClassificationRule(ctx context.Context, id int64) error {
	return t.storage.deleteClassificationRuleTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetFixedObligations(ctx context.Context, kind model.ObligationKind) ([]model.FixedObligation, error) {
	return t.storage.getFixedObligationsTx(ctx, t.tx, kind)
}

func (t *sqliteTransaction) GetBillingDays(ctx context.Context) (map[int64]int, error) {
	return t.storage.getBillingDaysTx(ctx, t.tx)
}

func (t *sqliteTransaction) GetCategories(ctx context.Context) ([]model.Category, error) {
	return t.storage.getCategoriesTx(ctx, t.tx)
}

func (t *sqliteTransaction) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	return t.storage.getCategoryByIDTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) CreateCategory(ctx context.Context, category *model.Category) (int64, error) {
	return t.storage.createCategoryTx(ctx, t.tx, category)
}

func (t *sqliteTransaction) UpdateCategory(ctx context.Context, category *model.Category) error {
	return t.storage.updateCategoryTx(ctx, t.tx, category)
}

func (t *sqliteTransaction) DeleteCategory(ctx context.Context, id int64) error {
	return t.storage.deleteCategoryTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) UpsertBalanceSnapshot(ctx context.Context, accountID int64, date string, balance float64) error {
	return t.storage.upsertBalanceSnapshotTx(ctx, t.tx, accountID, date, balance)
}

func (t *sqliteTransaction) AppendScrapeLog(ctx context.Context, entry *model.ScrapeLogEntry) error {
	return t.storage.appendScrapeLogTx(ctx, t.tx, entry)
}

func (t *sqliteTransaction) GetScrapeLog(ctx context.Context, limit int) ([]model.ScrapeLogEntry, error) {
	return t.storage.getScrapeLogTx(ctx, t.tx, limit)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}

// queryable is an interface satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
