// Package model defines the core domain types shared across the application.
package model

// SourceType discriminates which kind of financial source a transaction
// belongs to.
type SourceType string

const (
	// SourceBank marks transactions scraped from a bank account.
	SourceBank SourceType = "bank"
	// SourceCreditCard marks transactions scraped from a credit card.
	SourceCreditCard SourceType = "credit_card"
)

// TxStatus is the lifecycle status of a transaction. The only legal
// transition is pending → completed.
type TxStatus string

const (
	// StatusPending marks a transaction the institution has not settled yet.
	StatusPending TxStatus = "pending"
	// StatusCompleted marks a settled transaction.
	StatusCompleted TxStatus = "completed"
)

// TransactionType labels how a transaction relates to the household budget.
type TransactionType string

const (
	// TypeFixedExpense is a recurring expense matched by a fixed-expense keyword.
	TypeFixedExpense TransactionType = "fixed_expense"
	// TypeIncome is a recurring income matched by a fixed-income keyword.
	TypeIncome TransactionType = "income"
	// TypeVariableExpense is assigned when a classification rule matched but
	// no fixed-obligation keyword did.
	TypeVariableExpense TransactionType = "variable_expense"
)

// UncategorizedCategoryID is the reserved category every transaction falls
// back to when no classification rule matches its description.
const UncategorizedCategoryID int64 = 1

// Source identifies the internal account or card a scraped batch resolved to.
type Source struct {
	Type SourceType
	ID   int64
}

// Transaction is the canonical transaction record. The same shape is used
// for freshly normalized records (ID == 0) and stored rows.
//
// Date, ProcessedDate and ChargedMonth are local civil dates formatted as
// YYYY-MM-DD and YYYY-MM; optional fields are pointers so a missing value
// survives the round trip to SQLite as NULL.
type Transaction struct {
	ID                int64
	SourceType        SourceType
	SourceID          int64
	Date              *string
	ProcessedDate     *string
	Amount            float64
	Currency          string
	Description       *string
	CategoryID        *int64
	Type              *TransactionType
	Status            TxStatus
	InstallmentNumber *int
	InstallmentTotal  *int
	OriginalID        *string
	Notes             *string
	ChargedMonth      *string
}

// DedupeKey reports whether the transaction carries the stable external
// identifier used as the primary deduplication key.
func (t *Transaction) DedupeKey() (originalID string, ok bool) {
	if t.OriginalID == nil {
		return "", false
	}
	return *t.OriginalID, true
}
