// Package storage provides the data persistence layer for cashboard.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cashboard/cashboard/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidRule        = errors.New("invalid classification rule")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction validates a single transaction before persistence.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	switch txn.SourceType {
	case model.SourceBank, model.SourceCreditCard:
	default:
		return fmt.Errorf("%w: unknown source type %q", ErrInvalidTransaction, txn.SourceType)
	}
	if txn.SourceID == 0 {
		return fmt.Errorf("%w: missing source ID", ErrInvalidTransaction)
	}
	switch txn.Status {
	case model.StatusPending, model.StatusCompleted:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransaction, txn.Status)
	}
	if txn.Currency == "" {
		return fmt.Errorf("%w: missing currency", ErrInvalidTransaction)
	}
	return nil
}

// validateCategory validates a category before persistence.
func validateCategory(category *model.Category) error {
	if category == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}
	if strings.TrimSpace(category.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCategory)
	}
	return nil
}

// validateRule validates a classification rule before persistence.
func validateRule(rule *model.ClassificationRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if rule.CategoryID == 0 {
		return fmt.Errorf("%w: missing category ID", ErrInvalidRule)
	}
	if strings.TrimSpace(rule.Keyword) == "" {
		return fmt.Errorf("%w: missing keyword", ErrInvalidRule)
	}
	switch rule.MatchType {
	case model.MatchExact, model.MatchStartsWith, model.MatchContains:
	default:
		return fmt.Errorf("%w: unknown match type %q", ErrInvalidRule, rule.MatchType)
	}
	return nil
}
