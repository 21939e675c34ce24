package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cashboard/cashboard/internal/common"
	"github.com/cashboard/cashboard/internal/model"
	"github.com/cashboard/cashboard/internal/service"
)

const transactionColumns = `
	id, source_type, source_id, date, processed_date, amount, currency,
	description, category_id, transaction_type, status,
	installment_number, installment_total, original_id, notes, charged_month`

// InsertTransaction inserts a transaction and returns the new row id.
func (s *SQLiteStorage) InsertTransaction(ctx context.Context, txn *model.Transaction) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransaction(txn); err != nil {
		return 0, err
	}
	return s.insertTransactionTx(ctx, s.db, txn)
}

func (s *SQLiteStorage) insertTransactionTx(ctx context.Context, q queryable, txn *model.Transaction) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO transactions (
			source_type, source_id, date, processed_date, amount, currency,
			description, category_id, transaction_type, status,
			installment_number, installment_total, original_id, notes, charged_month
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(txn.SourceType),
		txn.SourceID,
		txn.Date,
		txn.ProcessedDate,
		txn.Amount,
		txn.Currency,
		txn.Description,
		txn.CategoryID,
		txTypeParam(txn.Type),
		string(txn.Status),
		txn.InstallmentNumber,
		txn.InstallmentTotal,
		txn.OriginalID,
		txn.Notes,
		txn.ChargedMonth,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction id: %w", err)
	}
	return id, nil
}

// FindTransactionByOriginalID looks up the stored row for the primary dedup
// key (original_id, source_type, source_id). Returns common.ErrNotFound when
// no row matches.
func (s *SQLiteStorage) FindTransactionByOriginalID(ctx context.Context, originalID string, sourceType model.SourceType, sourceID int64) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(originalID, "originalID"); err != nil {
		return nil, err
	}
	return s.findTransactionByOriginalIDTx(ctx, s.db, originalID, sourceType, sourceID)
}

func (s *SQLiteStorage) findTransactionByOriginalIDTx(ctx context.Context, q queryable, originalID string, sourceType model.SourceType, sourceID int64) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE original_id = ? AND source_type = ? AND source_id = ?
	`, originalID, string(sourceType), sourceID)

	return scanTransactionRow(row)
}

// FindPendingByContent looks up a stored row matching the content-equality
// fallback key used for pending records without a stable identifier.
func (s *SQLiteStorage) FindPendingByContent(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	return s.findPendingByContentTx(ctx, s.db, txn)
}

func (s *SQLiteStorage) findPendingByContentTx(ctx context.Context, q queryable, txn *model.Transaction) (*model.Transaction, error) {
	// NULL comparison via = never matches, so a record with no date or no
	// description always comes back as new. This mirrors the fallback being
	// a content-equality substitute, not a fuzzy match.
	row := q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE date = ? AND amount = ? AND description = ?
			AND source_type = ? AND source_id = ?
	`, txn.Date, txn.Amount, txn.Description, string(txn.SourceType), txn.SourceID)

	return scanTransactionRow(row)
}

// PromoteTransaction applies the single legal status transition
// pending → completed to the stored row, overwriting identifier, processed
// date, amount and classification results from the incoming record. The row
// id and creation identity are preserved. Promoting a row that is not
// pending returns common.ErrNotPending.
func (s *SQLiteStorage) PromoteTransaction(ctx context.Context, id int64, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.promoteTransactionTx(ctx, s.db, id, txn)
}

func (s *SQLiteStorage) promoteTransactionTx(ctx context.Context, q queryable, id int64, txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}

	res, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, original_id = ?, processed_date = ?, amount = ?,
			category_id = ?, transaction_type = ?, charged_month = ?
		WHERE id = ? AND status = ?
	`,
		string(model.StatusCompleted),
		txn.OriginalID,
		txn.ProcessedDate,
		txn.Amount,
		txn.CategoryID,
		txTypeParam(txn.Type),
		txn.ChargedMonth,
		id,
		string(model.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to promote transaction %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check promoted rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %d: %w", id, common.ErrNotPending)
	}
	return nil
}

// GetTransactionByID retrieves a single transaction by its internal id.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id int64) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTransactionByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getTransactionByIDTx(ctx context.Context, q queryable, id int64) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = ?
	`, id)

	return scanTransactionRow(row)
}

// GetTransactions retrieves transactions matching the filter, newest first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTransactionsTx(ctx, s.db, filter)
}

func (s *SQLiteStorage) getTransactionsTx(ctx context.Context, q queryable, filter service.TransactionFilter) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions`
	var clauses []string
	var args []any

	if filter.FromDate != nil {
		clauses = append(clauses, "date >= ?")
		args = append(args, *filter.FromDate)
	}
	if filter.ToDate != nil {
		clauses = append(clauses, "date <= ?")
		args = append(args, *filter.ToDate)
	}
	if filter.CategoryID != nil {
		clauses = append(clauses, "category_id = ?")
		args = append(args, *filter.CategoryID)
	}
	if filter.AccountID != nil {
		clauses = append(clauses, "source_type = 'bank' AND source_id = ?")
		args = append(args, *filter.AccountID)
	}
	if filter.SourceType != nil {
		clauses = append(clauses, "source_type = ?")
		args = append(args, string(*filter.SourceType))
	}

	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY date DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// GetUncategorizedTransactions retrieves transactions still carrying the
// reserved uncategorized category.
func (s *SQLiteStorage) GetUncategorizedTransactions(ctx context.Context) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getUncategorizedTransactionsTx(ctx, s.db)
}

func (s *SQLiteStorage) getUncategorizedTransactionsTx(ctx context.Context, q queryable) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE category_id = ?
		ORDER BY date DESC, id DESC
	`, model.UncategorizedCategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query uncategorized transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// ReclassifyTransaction manually assigns a category and transaction type.
// The category must exist; a missing category is a validation error, not a
// pipeline error.
func (s *SQLiteStorage) ReclassifyTransaction(ctx context.Context, id int64, categoryID int64, txType *model.TransactionType) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.reclassifyTransactionTx(ctx, s.db, id, categoryID, txType)
}

func (s *SQLiteStorage) reclassifyTransactionTx(ctx context.Context, q queryable, id int64, categoryID int64, txType *model.TransactionType) error {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM categories WHERE id = ?)
	`, categoryID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check category existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("category %d: %w", categoryID, common.ErrCategoryNotFound)
	}

	res, err := q.ExecContext(ctx, `
		UPDATE transactions SET category_id = ?, transaction_type = ? WHERE id = ?
	`, categoryID, txTypeParam(txType), id)
	if err != nil {
		return fmt.Errorf("failed to reclassify transaction %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check reclassified rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// txTypeParam converts the optional transaction type to a driver value.
func txTypeParam(t *model.TransactionType) any {
	if t == nil {
		return nil
	}
	return string(*t)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var sourceType, status string
	var date, processedDate, description sql.NullString
	var categoryID sql.NullInt64
	var txType, originalID, notes, chargedMonth sql.NullString
	var instNumber, instTotal sql.NullInt64

	err := row.Scan(
		&txn.ID,
		&sourceType,
		&txn.SourceID,
		&date,
		&processedDate,
		&txn.Amount,
		&txn.Currency,
		&description,
		&categoryID,
		&txType,
		&status,
		&instNumber,
		&instTotal,
		&originalID,
		&notes,
		&chargedMonth,
	)
	if err != nil {
		return nil, err
	}

	txn.SourceType = model.SourceType(sourceType)
	txn.Status = model.TxStatus(status)
	txn.Date = nullableString(date)
	txn.ProcessedDate = nullableString(processedDate)
	txn.Description = nullableString(description)
	txn.OriginalID = nullableString(originalID)
	txn.Notes = nullableString(notes)
	txn.ChargedMonth = nullableString(chargedMonth)
	if categoryID.Valid {
		txn.CategoryID = &categoryID.Int64
	}
	if txType.Valid {
		t := model.TransactionType(txType.String)
		txn.Type = &t
	}
	if instNumber.Valid {
		n := int(instNumber.Int64)
		txn.InstallmentNumber = &n
	}
	if instTotal.Valid {
		n := int(instTotal.Int64)
		txn.InstallmentTotal = &n
	}

	return &txn, nil
}

func scanTransactionRow(row *sql.Row) (*model.Transaction, error) {
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return txn, nil
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
