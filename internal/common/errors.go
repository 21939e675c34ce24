// Package common provides shared utilities and types used across the application.
package common

import "errors"

// Common application errors.
var (
	// Database errors.
	ErrNotFound = errors.New("not found")

	// Ingestion errors.
	ErrSourceNotResolved = errors.New("no matching account or card")
	ErrNotPending        = errors.New("transaction is not pending")

	// Validation errors.
	ErrCategoryNotFound = errors.New("category not found")
)
