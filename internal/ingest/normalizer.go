package ingest

import (
	"fmt"
	"time"

	"github.com/cashboard/cashboard/internal/model"
)

// DefaultCurrency is assumed when a record reports no currency at all.
const DefaultCurrency = "ILS"

// zeroPendingBank is the scraper source whose pending exports report a zero
// charged amount; for those records the original amount is the real one.
const zeroPendingBank = "max"

// Normalizer converts raw scraped records into canonical transactions.
// Dates are converted from UTC timestamps to civil dates in the reference
// timezone (the institution's home timezone).
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer creates a Normalizer using the given reference timezone.
func NewNormalizer(loc *time.Location) *Normalizer {
	return &Normalizer{loc: loc}
}

// Normalize converts one raw record into a canonical transaction for the
// resolved source. Category, transaction type and charged month are left
// unset; classification fills them in later. A record missing a date
// normalizes to a nil date rather than failing; a malformed date is an
// error the caller records against that record alone.
func (n *Normalizer) Normalize(raw *RawTransaction, source model.Source, bank string) (*model.Transaction, error) {
	date, err := n.LocalDate(raw.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %w", err)
	}
	processedDate, err := n.LocalDate(raw.ProcessedDate)
	if err != nil {
		return nil, fmt.Errorf("invalid processed date: %w", err)
	}

	status := model.TxStatus(raw.Status)
	if raw.Status == "" {
		status = model.StatusCompleted
	}

	amount := raw.ChargedAmount
	if bank == zeroPendingBank && status == model.StatusPending && raw.ChargedAmount == 0 {
		amount = raw.OriginalAmount
	}

	currency := raw.ChargedCurrency
	if currency == "" {
		currency = raw.OriginalCurrency
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	var originalID *string
	if raw.Identifier != nil {
		id := raw.Identifier.String()
		originalID = &id
	}

	var notes *string
	if raw.Memo != "" {
		memo := raw.Memo
		notes = &memo
	}

	var description *string
	if raw.Description != "" {
		desc := raw.Description
		description = &desc
	}

	return &model.Transaction{
		SourceType:        source.Type,
		SourceID:          source.ID,
		Date:              date,
		ProcessedDate:     processedDate,
		Amount:            amount,
		Currency:          currency,
		Description:       description,
		Status:            status,
		InstallmentNumber: raw.InstallmentNumber,
		InstallmentTotal:  raw.InstallmentTotal,
		OriginalID:        originalID,
		Notes:             notes,
	}, nil
}

// LocalDate converts a UTC ISO 8601 timestamp to a YYYY-MM-DD date in the
// reference timezone. A nil or empty input yields a nil date.
func (n *Normalizer) LocalDate(iso *string) (*string, error) {
	if iso == nil || *iso == "" {
		return nil, nil
	}

	t, err := parseISOTimestamp(*iso)
	if err != nil {
		return nil, err
	}

	date := t.In(n.loc).Format("2006-01-02")
	return &date, nil
}

// parseISOTimestamp accepts the timestamp shapes scrapers actually emit:
// RFC 3339 with or without fractional seconds, a naive timestamp (taken as
// UTC), or a bare date.
func parseISOTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
