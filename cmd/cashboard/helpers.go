package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cashboard/cashboard/internal/config"
	"github.com/cashboard/cashboard/internal/storage"
)

// initStorage opens the configured database and brings the schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(settings.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// loadTimezone resolves the normalization timezone from config.
func loadTimezone() (*time.Location, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", settings.Timezone, err)
	}
	return loc, nil
}
