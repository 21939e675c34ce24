// Package ingest implements the scraped-transaction ingestion pipeline:
// parsing scraper export files, normalizing records, resolving sources,
// deduplicating against stored rows and persisting the results.
package ingest

import (
	"encoding/json"
	"fmt"
)

// ScrapeFile is the JSON document one scraper run produces.
type ScrapeFile struct {
	Bank      string          `json:"bank"`
	ScrapedAt *string         `json:"scrapedAt,omitempty"`
	Accounts  []ScrapeAccount `json:"accounts"`
}

// ScrapeAccount is one account's worth of scraped records. Balance is only
// reported for bank accounts.
type ScrapeAccount struct {
	AccountNumber string           `json:"accountNumber"`
	Balance       *float64         `json:"balance,omitempty"`
	Txns          []RawTransaction `json:"txns"`
}

// RawTransaction is a single scraped record, exactly as the scraper exported
// it. It is transient; the normalizer converts it into a model.Transaction.
type RawTransaction struct {
	Description       string      `json:"description"`
	Date              *string     `json:"date"`
	ProcessedDate     *string     `json:"processedDate,omitempty"`
	ChargedAmount     float64     `json:"chargedAmount"`
	OriginalAmount    float64     `json:"originalAmount,omitempty"`
	ChargedCurrency   string      `json:"chargedCurrency,omitempty"`
	OriginalCurrency  string      `json:"originalCurrency,omitempty"`
	Identifier        *Identifier `json:"identifier,omitempty"`
	Memo              string      `json:"memo,omitempty"`
	Status            string      `json:"status,omitempty"`
	InstallmentNumber *int        `json:"installmentNumber,omitempty"`
	InstallmentTotal  *int        `json:"installmentTotal,omitempty"`
}

// Identifier accepts the scraper's external identifier as either a JSON
// string or a JSON number; either way it is kept as a string.
type Identifier string

// UnmarshalJSON implements json.Unmarshaler.
func (i *Identifier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*i = Identifier(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*i = Identifier(n.String())
		return nil
	}

	return fmt.Errorf("identifier must be a string or number, got %s", data)
}

// String returns the identifier as a plain string.
func (i Identifier) String() string {
	return string(i)
}
