package storage_test

import (
	"context"
	"testing"

	"github.com/cashboard/cashboard/internal/common"
	"github.com/cashboard/cashboard/internal/model"
	"github.com/cashboard/cashboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceLookups(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	accountID := testutil.SeedAccount(t, store, "Checking", "hapoalim", testutil.Ptr("hapoalim"))
	cardID := testutil.SeedCreditCard(t, store, accountID, "Max", testutil.Ptr("1234"), testutil.Ptr("max"), testutil.Ptr(10))

	t.Run("card by last four digits", func(t *testing.T) {
		card, err := store.GetCreditCardByLastFour(ctx, "1234")
		require.NoError(t, err)
		assert.Equal(t, cardID, card.ID)
		assert.Equal(t, accountID, card.AccountID)
		assert.Equal(t, testutil.Ptr(10), card.BillingDay)

		_, err = store.GetCreditCardByLastFour(ctx, "9999")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("card by scraper type", func(t *testing.T) {
		card, err := store.GetCreditCardByScraperType(ctx, "max")
		require.NoError(t, err)
		assert.Equal(t, cardID, card.ID)

		_, err = store.GetCreditCardByScraperType(ctx, "isracard")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("account by scraper type", func(t *testing.T) {
		account, err := store.GetAccountByScraperType(ctx, "hapoalim")
		require.NoError(t, err)
		assert.Equal(t, accountID, account.ID)
		assert.Equal(t, "hapoalim", account.Bank)

		_, err = store.GetAccountByScraperType(ctx, "leumi")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("listings", func(t *testing.T) {
		accounts, err := store.GetAccounts(ctx)
		require.NoError(t, err)
		assert.Len(t, accounts, 1)

		cards, err := store.GetCreditCards(ctx)
		require.NoError(t, err)
		assert.Len(t, cards, 1)
	})
}

func TestUpsertBalanceSnapshot(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	accountID := testutil.SeedAccount(t, store, "Checking", "hapoalim", nil)

	require.NoError(t, store.UpsertBalanceSnapshot(ctx, accountID, "2025-06-19", 1200))
	require.NoError(t, store.UpsertBalanceSnapshot(ctx, accountID, "2025-06-20", 1500.25))

	// Same day again overwrites instead of adding a row.
	require.NoError(t, store.UpsertBalanceSnapshot(ctx, accountID, "2025-06-20", 1400))

	snapshots, err := store.GetBalanceSnapshots(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "2025-06-19", snapshots[0].Date)
	assert.Equal(t, 1200.0, snapshots[0].Balance)
	assert.Equal(t, "2025-06-20", snapshots[1].Date)
	assert.Equal(t, 1400.0, snapshots[1].Balance)
}

func TestScrapeLog(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	accountID := testutil.SeedAccount(t, store, "Checking", "hapoalim", nil)

	require.NoError(t, store.AppendScrapeLog(ctx, &model.ScrapeLogEntry{
		RunID:            "run-1",
		SourceType:       model.SourceBank,
		SourceID:         accountID,
		Status:           model.ScrapeSuccess,
		TransactionCount: 12,
	}))
	require.NoError(t, store.AppendScrapeLog(ctx, &model.ScrapeLogEntry{
		RunID:        "run-2",
		SourceType:   model.SourceBank,
		SourceID:     accountID,
		Status:       model.ScrapeError,
		ErrorMessage: testutil.Ptr("scraper timed out"),
	}))

	entries, err := store.GetScrapeLog(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "run-2", entries[0].RunID)
	assert.Equal(t, model.ScrapeError, entries[0].Status)
	assert.Equal(t, testutil.Ptr("scraper timed out"), entries[0].ErrorMessage)
	assert.False(t, entries[0].CreatedAt.IsZero())

	assert.Equal(t, "run-1", entries[1].RunID)
	assert.Equal(t, 12, entries[1].TransactionCount)

	limited, err := store.GetScrapeLog(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "run-2", limited[0].RunID)
}
