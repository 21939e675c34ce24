package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cashboard/cashboard/internal/classify"
	"github.com/cashboard/cashboard/internal/model"
	"github.com/cashboard/cashboard/internal/service"
)

// Result aggregates the outcome of ingesting one scraper export file.
// Every raw record in the file lands in exactly one of the four buckets.
type Result struct {
	File     string   `json:"file"`
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// Ingestor drives scraper export files through the pipeline: resolve source,
// normalize, deduplicate, classify, persist. One account's writes (records,
// balance snapshot and scrape log entry) commit as a unit.
type Ingestor struct {
	store      service.Storage
	normalizer *Normalizer
	loc        *time.Location
	now        func() time.Time
}

// NewIngestor creates an Ingestor using the given reference timezone for
// date normalization.
func NewIngestor(store service.Storage, loc *time.Location) *Ingestor {
	return &Ingestor{
		store:      store,
		normalizer: NewNormalizer(loc),
		loc:        loc,
		now:        time.Now,
	}
}

// IngestFile processes one scraper export file. Failures never panic the
// batch: a parse failure aborts just this file, an unresolved account skips
// just that account, and a bad record skips just that record. The returned
// result always accounts for everything encountered.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) *Result {
	result := &Result{File: path, Errors: []string{}}

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read %s: %v", path, err))
		return result
	}

	var file ScrapeFile
	if err := json.Unmarshal(data, &file); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to parse %s: %v", path, err))
		return result
	}
	if file.Bank == "" {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to parse %s: missing bank identifier", path))
		return result
	}

	// The rule tables are loaded once per batch and reused for every record;
	// the snapshot is immutable for the batch's duration.
	ruleset, err := classify.LoadRuleset(ctx, ing.store)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to load classification rules: %v", err))
		return result
	}

	batchDate, err := ing.batchDate(file.ScrapedAt)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("invalid scrapedAt in %s: %v", path, err))
		return result
	}

	runID := uuid.NewString()

	for i := range file.Accounts {
		ing.ingestAccount(ctx, &file.Accounts[i], file.Bank, batchDate, runID, ruleset, result)
	}

	slog.Info("ingested file",
		"file", filepath.Base(path),
		"bank", file.Bank,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"errors", len(result.Errors))

	return result
}

// ingestAccount processes one scraped account inside a single database
// transaction so its records, snapshot and log entry become durable together.
func (ing *Ingestor) ingestAccount(ctx context.Context, account *ScrapeAccount, bank, batchDate, runID string, ruleset *classify.Ruleset, result *Result) {
	tx, err := ing.store.BeginTx(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to begin transaction for accountNumber=%s: %v", account.AccountNumber, err))
		return
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	source, err := NewSourceResolver(tx).Resolve(ctx, bank, account.AccountNumber)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return
	}

	detector := NewDuplicateDetector(tx)
	var inserted, updated, skipped int

	for i := range account.Txns {
		if err := ing.ingestRecord(ctx, tx, detector, ruleset, &account.Txns[i], *source, bank, &inserted, &updated, &skipped); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("error processing transaction: %v", err))
		}
	}

	if source.Type == model.SourceBank && account.Balance != nil {
		if err := tx.UpsertBalanceSnapshot(ctx, source.ID, batchDate, *account.Balance); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to record balance snapshot: %v", err))
		}
	}

	total := inserted + updated + skipped
	entry := &model.ScrapeLogEntry{
		RunID:            runID,
		SourceType:       source.Type,
		SourceID:         source.ID,
		Status:           model.ScrapeSuccess,
		TransactionCount: total,
	}
	if err := tx.AppendScrapeLog(ctx, entry); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to append scrape log: %v", err))
	}

	if err := tx.Commit(); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to commit accountNumber=%s: %v", account.AccountNumber, err))
		return
	}
	committed = true

	result.Inserted += inserted
	result.Updated += updated
	result.Skipped += skipped

	slog.Debug("ingested account",
		"bank", bank,
		"account_number", account.AccountNumber,
		"source_type", source.Type,
		"source_id", source.ID,
		"inserted", inserted,
		"updated", updated,
		"skipped", skipped)
}

// ingestRecord runs one raw record through normalize → dedupe → classify →
// persist. Classification happens before the write for every outcome so a
// promoted row also ends up with current category, type and charged month.
func (ing *Ingestor) ingestRecord(ctx context.Context, tx service.Transaction, detector *DuplicateDetector, ruleset *classify.Ruleset, raw *RawTransaction, source model.Source, bank string, inserted, updated, skipped *int) error {
	txn, err := ing.normalizer.Normalize(raw, source, bank)
	if err != nil {
		return err
	}

	action, existing, err := detector.Check(ctx, txn)
	if err != nil {
		return err
	}

	switch action {
	case ActionNew:
		if err := ruleset.Classify(txn); err != nil {
			return err
		}
		if _, err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		*inserted++
	case ActionPromote:
		if err := ruleset.Classify(txn); err != nil {
			return err
		}
		if err := tx.PromoteTransaction(ctx, existing.ID, txn); err != nil {
			return err
		}
		*updated++
	default:
		*skipped++
	}
	return nil
}

// batchDate resolves the local date the batch was scraped on, defaulting to
// today when the file carries no timestamp.
func (ing *Ingestor) batchDate(scrapedAt *string) (string, error) {
	date, err := ing.normalizer.LocalDate(scrapedAt)
	if err != nil {
		return "", err
	}
	if date != nil {
		return *date, nil
	}
	return ing.now().In(ing.loc).Format("2006-01-02"), nil
}

// IngestLatest finds the most recent JSON export in each bank subdirectory
// of outputDir and ingests each one. A file that fails entirely still
// produces its result; later files are always processed.
func (ing *Ingestor) IngestLatest(ctx context.Context, outputDir string) ([]Result, error) {
	files, err := latestFilePerBank(outputDir)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(files))
	for _, f := range files {
		results = append(results, *ing.IngestFile(ctx, f))
	}
	return results, nil
}

// latestFilePerBank returns the lexicographically last JSON file in each
// bank subdirectory. Export files are named by timestamp, so the last one
// sorts newest.
func latestFilePerBank(outputDir string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory %s: %w", outputDir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(outputDir, entry.Name(), "*.json"))
		if err != nil {
			return nil, fmt.Errorf("failed to list exports for %s: %w", entry.Name(), err)
		}
		if len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		files = append(files, matches[len(matches)-1])
	}
	return files, nil
}
