package model

import "time"

// Account is a bank account transactions can be attributed to.
type Account struct {
	ID          int64
	Name        string
	Bank        string
	Type        string
	ScraperType *string
}

// CreditCard is a card linked to an account. LastFourDigits and ScraperType
// are how scraped batches resolve to the card; BillingDay drives charged
// month attribution.
type CreditCard struct {
	ID             int64
	AccountID      int64
	Name           string
	Company        string
	LastFourDigits *string
	ScraperType    *string
	BillingDay     *int
}

// ObligationKind distinguishes fixed expenses from fixed incomes.
type ObligationKind string

const (
	// ObligationExpense is a recurring expected expense.
	ObligationExpense ObligationKind = "expense"
	// ObligationIncome is a recurring expected income.
	ObligationIncome ObligationKind = "income"
)

// FixedObligation is a recurring expected expense or income. Keyword, when
// set, is matched against descriptions purely to assign a transaction type;
// it never influences category assignment.
type FixedObligation struct {
	ID             int64
	Kind           ObligationKind
	Name           string
	ExpectedAmount float64
	Keyword        *string
}

// BalanceSnapshot records an account's balance on a given local date.
// At most one snapshot exists per (account, date); a later ingestion of the
// same date overwrites the balance.
type BalanceSnapshot struct {
	ID        int64
	AccountID int64
	Date      string
	Balance   float64
}

// ScrapeStatus is the outcome recorded for one scraped account.
type ScrapeStatus string

const (
	// ScrapeSuccess marks a fully processed account.
	ScrapeSuccess ScrapeStatus = "success"
	// ScrapeError marks an account whose processing failed.
	ScrapeError ScrapeStatus = "error"
)

// ScrapeLogEntry is an append-only record of one account's ingestion outcome.
// Entries are written once and never mutated.
type ScrapeLogEntry struct {
	ID               int64
	RunID            string
	SourceType       SourceType
	SourceID         int64
	Status           ScrapeStatus
	TransactionCount int
	ErrorMessage     *string
	CreatedAt        time.Time
}
