package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cashboard/cashboard/internal/common"
	"github.com/cashboard/cashboard/internal/model"
	"github.com/cashboard/cashboard/internal/service"
)

// SourceResolver maps a scraper's bank identifier and raw account number to
// an internal account or credit card.
type SourceResolver struct {
	store service.Storage
}

// NewSourceResolver creates a resolver backed by the given store.
func NewSourceResolver(store service.Storage) *SourceResolver {
	return &SourceResolver{store: store}
}

// Resolve finds the source a scraped account belongs to. The first match
// wins: a credit card whose last four digits equal the account number, then
// a credit card tagged with the bank's scraper type, then a bank account
// tagged with it. No match is common.ErrSourceNotResolved; the caller skips
// the account's records and keeps going.
func (r *SourceResolver) Resolve(ctx context.Context, bank, accountNumber string) (*model.Source, error) {
	if strings.TrimSpace(accountNumber) != "" {
		card, err := r.store.GetCreditCardByLastFour(ctx, accountNumber)
		if err == nil {
			return &model.Source{Type: model.SourceCreditCard, ID: card.ID}, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up card by last four digits: %w", err)
		}
	}

	if strings.TrimSpace(bank) != "" {
		card, err := r.store.GetCreditCardByScraperType(ctx, bank)
		if err == nil {
			return &model.Source{Type: model.SourceCreditCard, ID: card.ID}, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up card by scraper type: %w", err)
		}

		account, err := r.store.GetAccountByScraperType(ctx, bank)
		if err == nil {
			return &model.Source{Type: model.SourceBank, ID: account.ID}, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up account by scraper type: %w", err)
		}
	}

	return nil, fmt.Errorf("%w for bank=%s accountNumber=%s", common.ErrSourceNotResolved, bank, accountNumber)
}
