package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cashboard/cashboard/internal/config"
	"github.com/cashboard/cashboard/internal/ingest"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest scraped transaction files",
		Long: `Ingest one or more scraper output files into the database.

Each file is normalized, deduplicated and classified. Pass explicit
file paths, or use --dir to pick up the newest file per bank from a
scraper output directory.`,
		RunE: runIngest,
	}

	cmd.Flags().String("dir", "", "scraper output directory (ingest newest file per bank)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" && len(args) == 0 {
		settings, err := config.Load()
		if err != nil {
			return err
		}
		dir = settings.OutputDir
	}
	if dir == "" && len(args) == 0 {
		return fmt.Errorf("no input: pass file paths or set --dir")
	}

	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	loc, err := loadTimezone()
	if err != nil {
		return err
	}

	ingestor := ingest.NewIngestor(store, loc)

	var results []ingest.Result
	if len(args) > 0 {
		bar := progressbar.NewOptions(len(args),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Ingesting files..."),
		)
		for _, path := range args {
			results = append(results, *ingestor.IngestFile(ctx, path))
			_ = bar.Add(1)
		}
		_ = bar.Finish()
	} else {
		results, err = ingestor.IngestLatest(ctx, dir)
		if err != nil {
			return err
		}
	}

	var inserted, updated, skipped, failures int
	for _, res := range results {
		slog.Info("Ingested file",
			"file", res.File,
			"inserted", res.Inserted,
			"updated", res.Updated,
			"skipped", res.Skipped,
			"errors", len(res.Errors))
		for _, msg := range res.Errors {
			slog.Warn("Ingest error", "file", res.File, "error", msg)
		}
		inserted += res.Inserted
		updated += res.Updated
		skipped += res.Skipped
		failures += len(res.Errors)
	}

	slog.Info("Ingest complete",
		"files", len(results),
		"inserted", inserted,
		"updated", updated,
		"skipped", skipped,
		"errors", failures)

	if failures > 0 {
		return fmt.Errorf("ingest finished with %d errors", failures)
	}
	return nil
}
