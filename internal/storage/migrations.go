package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS accounts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					bank TEXT NOT NULL,
					type TEXT NOT NULL DEFAULT 'personal',
					scraper_type TEXT
				)`,

				`CREATE TABLE IF NOT EXISTS credit_cards (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					account_id INTEGER NOT NULL,
					name TEXT NOT NULL,
					company TEXT NOT NULL,
					last_4_digits TEXT,
					scraper_type TEXT,
					billing_day INTEGER,
					FOREIGN KEY (account_id) REFERENCES accounts(id)
				)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL UNIQUE,
					monthly_budget REAL,
					icon TEXT,
					color TEXT
				)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					source_type TEXT NOT NULL,
					source_id INTEGER NOT NULL,
					date TEXT,
					processed_date TEXT,
					amount REAL NOT NULL,
					currency TEXT NOT NULL DEFAULT 'ILS',
					description TEXT,
					category_id INTEGER,
					transaction_type TEXT,
					status TEXT NOT NULL DEFAULT 'completed',
					installment_number INTEGER,
					installment_total INTEGER,
					original_id TEXT,
					notes TEXT,
					charged_month TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (category_id) REFERENCES categories(id)
				)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_source ON transactions(source_type, source_id)`,
				`CREATE INDEX idx_transactions_category ON transactions(category_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Classification configuration tables",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS classification_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					category_id INTEGER NOT NULL,
					keyword TEXT NOT NULL,
					match_type TEXT NOT NULL DEFAULT 'contains',
					FOREIGN KEY (category_id) REFERENCES categories(id)
				)`,
				`CREATE INDEX idx_classification_rules_category ON classification_rules(category_id)`,

				`CREATE TABLE IF NOT EXISTS fixed_expenses (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					expected_amount REAL NOT NULL,
					keyword TEXT
				)`,

				`CREATE TABLE IF NOT EXISTS fixed_incomes (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					expected_amount REAL NOT NULL,
					keyword TEXT
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Batch bookkeeping tables and dedup key index",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS balance_snapshots (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					account_id INTEGER NOT NULL,
					date TEXT NOT NULL,
					balance REAL NOT NULL,
					UNIQUE(account_id, date),
					FOREIGN KEY (account_id) REFERENCES accounts(id)
				)`,

				`CREATE TABLE IF NOT EXISTS scrape_log (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL,
					source_type TEXT NOT NULL,
					source_id INTEGER NOT NULL,
					status TEXT NOT NULL,
					transactions_count INTEGER NOT NULL DEFAULT 0,
					error_message TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_scrape_log_source ON scrape_log(source_type, source_id)`,

				// The primary dedup invariant: one stored row per external id per source.
				`CREATE UNIQUE INDEX idx_transactions_dedupe
					ON transactions(original_id, source_type, source_id)
					WHERE original_id IS NOT NULL`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Seed the reserved Uncategorized category",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				INSERT OR IGNORE INTO categories (id, name) VALUES (1, 'Uncategorized')
			`)
			return err
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
