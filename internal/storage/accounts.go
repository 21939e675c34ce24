package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cashboard/cashboard/internal/common"
	"github.com/cashboard/cashboard/internal/model"
)

// GetCreditCardByLastFour returns the credit card whose configured last four
// digits equal the scraped account number, or common.ErrNotFound.
func (s *SQLiteStorage) GetCreditCardByLastFour(ctx context.Context, lastFour string) (*model.CreditCard, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(lastFour, "lastFour"); err != nil {
		return nil, err
	}
	return s.getCreditCardByLastFourTx(ctx, s.db, lastFour)
}

func (s *SQLiteStorage) getCreditCardByLastFourTx(ctx context.Context, q queryable, lastFour string) (*model.CreditCard, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, account_id, name, company, last_4_digits, scraper_type, billing_day
		FROM credit_cards
		WHERE last_4_digits = ?
	`, lastFour)
	return scanCreditCardRow(row)
}

// GetCreditCardByScraperType returns the credit card tagged with the given
// scraper source identifier, or common.ErrNotFound.
func (s *SQLiteStorage) GetCreditCardByScraperType(ctx context.Context, scraperType string) (*model.CreditCard, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(scraperType, "scraperType"); err != nil {
		return nil, err
	}
	return s.getCreditCardByScraperTypeTx(ctx, s.db, scraperType)
}

func (s *SQLiteStorage) getCreditCardByScraperTypeTx(ctx context.Context, q queryable, scraperType string) (*model.CreditCard, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, account_id, name, company, last_4_digits, scraper_type, billing_day
		FROM credit_cards
		WHERE scraper_type = ?
	`, scraperType)
	return scanCreditCardRow(row)
}

// GetAccountByScraperType returns the bank account tagged with the given
// scraper source identifier, or common.ErrNotFound.
func (s *SQLiteStorage) GetAccountByScraperType(ctx context.Context, scraperType string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(scraperType, "scraperType"); err != nil {
		return nil, err
	}
	return s.getAccountByScraperTypeTx(ctx, s.db, scraperType)
}

func (s *SQLiteStorage) getAccountByScraperTypeTx(ctx context.Context, q queryable, scraperType string) (*model.Account, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, bank, type, scraper_type
		FROM accounts
		WHERE scraper_type = ?
	`, scraperType)
	return scanAccountRow(row)
}

// GetAccounts returns all bank accounts.
func (s *SQLiteStorage) GetAccounts(ctx context.Context) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getAccountsTx(ctx, s.db)
}

func (s *SQLiteStorage) getAccountsTx(ctx context.Context, q queryable) ([]model.Account, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, bank, type, scraper_type
		FROM accounts
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// GetCreditCards returns all credit cards.
func (s *SQLiteStorage) GetCreditCards(ctx context.Context) ([]model.CreditCard, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCreditCardsTx(ctx, s.db)
}

func (s *SQLiteStorage) getCreditCardsTx(ctx context.Context, q queryable) ([]model.CreditCard, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, account_id, name, company, last_4_digits, scraper_type, billing_day
		FROM credit_cards
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cards []model.CreditCard
	for rows.Next() {
		card, err := scanCreditCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credit card: %w", err)
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// UpsertBalanceSnapshot records an account balance for a date, overwriting
// any snapshot already stored for that (account, date).
func (s *SQLiteStorage) UpsertBalanceSnapshot(ctx context.Context, accountID int64, date string, balance float64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(date, "date"); err != nil {
		return err
	}
	return s.upsertBalanceSnapshotTx(ctx, s.db, accountID, date, balance)
}

func (s *SQLiteStorage) upsertBalanceSnapshotTx(ctx context.Context, q queryable, accountID int64, date string, balance float64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO balance_snapshots (account_id, date, balance)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id, date) DO UPDATE SET balance = excluded.balance
	`, accountID, date, balance)
	if err != nil {
		return fmt.Errorf("failed to upsert balance snapshot: %w", err)
	}

	slog.Debug("recorded balance snapshot",
		"account_id", accountID,
		"date", date,
		"balance", balance)
	return nil
}

// GetBalanceSnapshots returns the snapshots stored for an account, oldest first.
func (s *SQLiteStorage) GetBalanceSnapshots(ctx context.Context, accountID int64) ([]model.BalanceSnapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, date, balance
		FROM balance_snapshots
		WHERE account_id = ?
		ORDER BY date
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshots []model.BalanceSnapshot
	for rows.Next() {
		var snap model.BalanceSnapshot
		if err := rows.Scan(&snap.ID, &snap.AccountID, &snap.Date, &snap.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan balance snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// AppendScrapeLog writes one append-only scrape outcome entry.
func (s *SQLiteStorage) AppendScrapeLog(ctx context.Context, entry *model.ScrapeLogEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	return s.appendScrapeLogTx(ctx, s.db, entry)
}

func (s *SQLiteStorage) appendScrapeLogTx(ctx context.Context, q queryable, entry *model.ScrapeLogEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO scrape_log (run_id, source_type, source_id, status, transactions_count, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		entry.RunID,
		string(entry.SourceType),
		entry.SourceID,
		string(entry.Status),
		entry.TransactionCount,
		entry.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to append scrape log: %w", err)
	}
	return nil
}

// GetScrapeLog returns the most recent scrape log entries.
func (s *SQLiteStorage) GetScrapeLog(ctx context.Context, limit int) ([]model.ScrapeLogEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getScrapeLogTx(ctx, s.db, limit)
}

func (s *SQLiteStorage) getScrapeLogTx(ctx context.Context, q queryable, limit int) ([]model.ScrapeLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, run_id, source_type, source_id, status, transactions_count, error_message, created_at
		FROM scrape_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scrape log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.ScrapeLogEntry
	for rows.Next() {
		var entry model.ScrapeLogEntry
		var sourceType, status string
		var errMsg sql.NullString
		err := rows.Scan(
			&entry.ID,
			&entry.RunID,
			&sourceType,
			&entry.SourceID,
			&status,
			&entry.TransactionCount,
			&errMsg,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scrape log entry: %w", err)
		}
		entry.SourceType = model.SourceType(sourceType)
		entry.Status = model.ScrapeStatus(status)
		entry.ErrorMessage = nullableString(errMsg)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CreateAccount inserts a bank account and returns its id.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, account *model.Account) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if account == nil {
		return 0, fmt.Errorf("%w: account", ErrNilParameter)
	}
	if err := validateString(account.Name, "name"); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (name, bank, type, scraper_type) VALUES (?, ?, ?, ?)
	`, account.Name, account.Bank, account.Type, account.ScraperType)
	if err != nil {
		return 0, fmt.Errorf("failed to insert account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get account id: %w", err)
	}
	return id, nil
}

// CreateCreditCard inserts a credit card and returns its id.
func (s *SQLiteStorage) CreateCreditCard(ctx context.Context, card *model.CreditCard) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if card == nil {
		return 0, fmt.Errorf("%w: card", ErrNilParameter)
	}
	if err := validateString(card.Name, "name"); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO credit_cards (account_id, name, company, last_4_digits, scraper_type, billing_day)
		VALUES (?, ?, ?, ?, ?, ?)
	`, card.AccountID, card.Name, card.Company, card.LastFourDigits, card.ScraperType, card.BillingDay)
	if err != nil {
		return 0, fmt.Errorf("failed to insert credit card: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get credit card id: %w", err)
	}
	return id, nil
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var account model.Account
	var scraperType sql.NullString
	err := row.Scan(&account.ID, &account.Name, &account.Bank, &account.Type, &scraperType)
	if err != nil {
		return nil, err
	}
	account.ScraperType = nullableString(scraperType)
	return &account, nil
}

func scanAccountRow(row *sql.Row) (*model.Account, error) {
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return account, nil
}

func scanCreditCard(row rowScanner) (*model.CreditCard, error) {
	var card model.CreditCard
	var lastFour, scraperType sql.NullString
	var billingDay sql.NullInt64
	err := row.Scan(&card.ID, &card.AccountID, &card.Name, &card.Company, &lastFour, &scraperType, &billingDay)
	if err != nil {
		return nil, err
	}
	card.LastFourDigits = nullableString(lastFour)
	card.ScraperType = nullableString(scraperType)
	if billingDay.Valid {
		day := int(billingDay.Int64)
		card.BillingDay = &day
	}
	return &card, nil
}

func scanCreditCardRow(row *sql.Row) (*model.CreditCard, error) {
	card, err := scanCreditCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan credit card: %w", err)
	}
	return card, nil
}
