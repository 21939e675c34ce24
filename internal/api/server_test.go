package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/cashboard/cashboard/internal/api"
	"github.com/cashboard/cashboard/internal/ingest"
	"github.com/cashboard/cashboard/internal/model"
	"github.com/cashboard/cashboard/internal/storage"
	"github.com/cashboard/cashboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, outputDir string) (*httptest.Server, *storage.SQLiteStorage) {
	t.Helper()

	store := testutil.SetupTestDB(t)
	loc, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)

	server := api.NewServer(store, ingest.NewIngestor(store, loc), outputDir)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	return ts, store
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestCategoriesAPI(t *testing.T) {
	ts, _ := newTestServer(t, "")

	t.Run("list includes the seeded uncategorized category", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/categories")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		categories := decodeBody[[]model.Category](t, resp)
		require.Len(t, categories, 1)
		assert.Equal(t, model.UncategorizedCategoryID, categories[0].ID)
	})

	var created model.Category
	t.Run("create", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/categories", map[string]any{
			"name":           "Groceries",
			"monthly_budget": 2500,
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		created = decodeBody[model.Category](t, resp)
		assert.NotZero(t, created.ID)
		assert.Equal(t, "Groceries", created.Name)
	})

	t.Run("listing cache is invalidated by the create", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/categories")
		require.NoError(t, err)
		categories := decodeBody[[]model.Category](t, resp)
		assert.Len(t, categories, 2)
	})

	t.Run("update", func(t *testing.T) {
		resp := doJSON(t, http.MethodPut, ts.URL+"/api/categories/"+itoa(created.ID), map[string]any{
			"name": "Food",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		updated := decodeBody[model.Category](t, resp)
		assert.Equal(t, "Food", updated.Name)
	})

	t.Run("update missing category", func(t *testing.T) {
		resp := doJSON(t, http.MethodPut, ts.URL+"/api/categories/9999", map[string]any{"name": "x"})
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("delete", func(t *testing.T) {
		resp := doJSON(t, http.MethodDelete, ts.URL+"/api/categories/"+itoa(created.ID), nil)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("uncategorized cannot be deleted", func(t *testing.T) {
		resp := doJSON(t, http.MethodDelete, ts.URL+"/api/categories/1", nil)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRulesAPI(t *testing.T) {
	ts, store := newTestServer(t, "")
	groceries := testutil.SeedCategory(t, store, "Groceries")

	var created model.ClassificationRule
	t.Run("create", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/rules", map[string]any{
			"category_id": groceries,
			"keyword":     "שופרסל",
			"match_type":  "contains",
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		created = decodeBody[model.ClassificationRule](t, resp)
		assert.NotZero(t, created.ID)
	})

	t.Run("create against unknown category", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/rules", map[string]any{
			"category_id": 9999,
			"keyword":     "x",
		})
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("list", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/rules")
		require.NoError(t, err)
		rules := decodeBody[[]model.ClassificationRule](t, resp)
		require.Len(t, rules, 1)
		assert.Equal(t, "שופרסל", rules[0].Keyword)
	})

	t.Run("delete", func(t *testing.T) {
		resp := doJSON(t, http.MethodDelete, ts.URL+"/api/rules/"+itoa(created.ID), nil)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = doJSON(t, http.MethodDelete, ts.URL+"/api/rules/"+itoa(created.ID), nil)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestTransactionsAPI(t *testing.T) {
	ts, store := newTestServer(t, "")

	accountID := testutil.SeedAccount(t, store, "Checking", "hapoalim", testutil.Ptr("hapoalim"))
	groceries := testutil.SeedCategory(t, store, "Groceries")

	txnID := seedAPITxn(t, store, accountID, "2025-06-15", testutil.Ptr(model.UncategorizedCategoryID))
	seedAPITxn(t, store, accountID, "2025-06-20", &groceries)

	t.Run("list with filter", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/transactions?from=2025-06-16")
		require.NoError(t, err)
		txns := decodeBody[[]model.Transaction](t, resp)
		require.Len(t, txns, 1)
		assert.Equal(t, testutil.Ptr("2025-06-20"), txns[0].Date)
	})

	t.Run("bad filter", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/transactions?category=abc")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("uncategorized", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/transactions/uncategorized")
		require.NoError(t, err)
		txns := decodeBody[[]model.Transaction](t, resp)
		require.Len(t, txns, 1)
		assert.Equal(t, txnID, txns[0].ID)
	})

	t.Run("classify", func(t *testing.T) {
		resp := doJSON(t, http.MethodPut, ts.URL+"/api/transactions/"+itoa(txnID)+"/classify", map[string]any{
			"category_id":      groceries,
			"transaction_type": "variable_expense",
			"create_rule":      true,
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		updated := decodeBody[model.Transaction](t, resp)
		assert.Equal(t, &groceries, updated.CategoryID)
		assert.Equal(t, testutil.Ptr(model.TypeVariableExpense), updated.Type)

		// The side-effect rule defaults to the transaction's description.
		rules, err := store.GetClassificationRules(context.Background())
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, "שופרסל דיל", rules[0].Keyword)
		assert.Equal(t, model.MatchContains, rules[0].MatchType)
	})

	t.Run("classify unknown transaction", func(t *testing.T) {
		resp := doJSON(t, http.MethodPut, ts.URL+"/api/transactions/9999/classify", map[string]any{
			"category_id": groceries,
		})
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("classify with unknown category", func(t *testing.T) {
		resp := doJSON(t, http.MethodPut, ts.URL+"/api/transactions/"+itoa(txnID)+"/classify", map[string]any{
			"category_id": 9999,
		})
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSyncIngestAPI(t *testing.T) {
	outputDir := t.TempDir()
	bankDir := filepath.Join(outputDir, "hapoalim")
	require.NoError(t, os.MkdirAll(bankDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(bankDir, "2025-06-20.json"), []byte(`{
		"bank": "hapoalim",
		"accounts": [{
			"accountNumber": "12-345",
			"txns": [{"identifier": "t1", "date": "2025-06-15T08:00:00Z", "chargedAmount": -10, "description": "העברה", "status": "completed"}]
		}]
	}`), 0o600))

	ts, store := newTestServer(t, outputDir)
	testutil.SeedAccount(t, store, "Checking", "hapoalim", testutil.Ptr("hapoalim"))

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/sync/ingest", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, float64(1), body["inserted"])
	assert.Equal(t, float64(0), body["updated"])
}

func seedAPITxn(t *testing.T, store *storage.SQLiteStorage, accountID int64, date string, categoryID *int64) int64 {
	t.Helper()

	id, err := store.InsertTransaction(context.Background(), &model.Transaction{
		SourceType:  model.SourceBank,
		SourceID:    accountID,
		Date:        &date,
		Amount:      -50,
		Currency:    "ILS",
		Description: testutil.Ptr("שופרסל דיל"),
		Status:      model.StatusCompleted,
		CategoryID:  categoryID,
	})
	require.NoError(t, err)
	return id
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
