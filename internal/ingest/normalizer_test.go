package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cashboard/cashboard/internal/model"
	"github.com/cashboard/cashboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)
	return NewNormalizer(loc)
}

func TestLocalDate(t *testing.T) {
	n := testNormalizer(t)

	tests := []struct {
		name    string
		input   *string
		want    *string
		wantErr bool
	}{
		{
			name:  "utc evening crosses into next local day in summer",
			input: testutil.Ptr("2025-06-30T22:30:00Z"),
			want:  testutil.Ptr("2025-07-01"),
		},
		{
			name:  "utc evening crosses into next local day in winter",
			input: testutil.Ptr("2025-01-15T22:30:00Z"),
			want:  testutil.Ptr("2025-01-16"),
		},
		{
			name:  "utc morning stays on the same day",
			input: testutil.Ptr("2025-06-15T08:00:00Z"),
			want:  testutil.Ptr("2025-06-15"),
		},
		{
			name:  "fractional seconds",
			input: testutil.Ptr("2025-06-15T08:00:00.123Z"),
			want:  testutil.Ptr("2025-06-15"),
		},
		{
			name:  "naive timestamp treated as utc",
			input: testutil.Ptr("2025-06-30T23:15:00"),
			want:  testutil.Ptr("2025-07-01"),
		},
		{
			name:  "bare date",
			input: testutil.Ptr("2025-06-15"),
			want:  testutil.Ptr("2025-06-15"),
		},
		{
			name:  "nil stays nil",
			input: nil,
			want:  nil,
		},
		{
			name:  "empty stays nil",
			input: testutil.Ptr(""),
			want:  nil,
		},
		{
			name:    "garbage is an error",
			input:   testutil.Ptr("yesterday"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.LocalDate(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeAmountFallback(t *testing.T) {
	n := testNormalizer(t)
	source := model.Source{Type: model.SourceCreditCard, ID: 3}

	tests := []struct {
		name   string
		bank   string
		raw    RawTransaction
		want   float64
		status model.TxStatus
	}{
		{
			name:   "charged amount used as is",
			bank:   "isracard",
			raw:    RawTransaction{ChargedAmount: -120.5, OriginalAmount: -130, Status: "completed"},
			want:   -120.5,
			status: model.StatusCompleted,
		},
		{
			name:   "max pending zero falls back to original amount",
			bank:   "max",
			raw:    RawTransaction{ChargedAmount: 0, OriginalAmount: -88.9, Status: "pending"},
			want:   -88.9,
			status: model.StatusPending,
		},
		{
			name:   "max completed zero is kept",
			bank:   "max",
			raw:    RawTransaction{ChargedAmount: 0, OriginalAmount: -88.9, Status: "completed"},
			want:   0,
			status: model.StatusCompleted,
		},
		{
			name:   "other bank pending zero is kept",
			bank:   "isracard",
			raw:    RawTransaction{ChargedAmount: 0, OriginalAmount: -88.9, Status: "pending"},
			want:   0,
			status: model.StatusPending,
		},
		{
			name:   "missing status defaults to completed",
			bank:   "max",
			raw:    RawTransaction{ChargedAmount: -50},
			want:   -50,
			status: model.StatusCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn, err := n.Normalize(&tt.raw, source, tt.bank)
			require.NoError(t, err)
			assert.Equal(t, tt.want, txn.Amount)
			assert.Equal(t, tt.status, txn.Status)
		})
	}
}

func TestNormalizeCurrencyFallback(t *testing.T) {
	n := testNormalizer(t)
	source := model.Source{Type: model.SourceBank, ID: 1}

	tests := []struct {
		name string
		raw  RawTransaction
		want string
	}{
		{name: "charged currency wins", raw: RawTransaction{ChargedCurrency: "USD", OriginalCurrency: "EUR"}, want: "USD"},
		{name: "original currency second", raw: RawTransaction{OriginalCurrency: "EUR"}, want: "EUR"},
		{name: "default when both missing", raw: RawTransaction{}, want: "ILS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn, err := n.Normalize(&tt.raw, source, "hapoalim")
			require.NoError(t, err)
			assert.Equal(t, tt.want, txn.Currency)
		})
	}
}

func TestNormalizeOptionalFields(t *testing.T) {
	n := testNormalizer(t)
	source := model.Source{Type: model.SourceCreditCard, ID: 3}

	id := Identifier("tx-991")
	raw := RawTransaction{
		Description:       "שופרסל דיל",
		Date:              testutil.Ptr("2025-06-15T08:00:00Z"),
		ChargedAmount:     -45,
		Identifier:        &id,
		Memo:              "3 תשלומים",
		InstallmentNumber: testutil.Ptr(1),
		InstallmentTotal:  testutil.Ptr(3),
	}

	txn, err := n.Normalize(&raw, source, "max")
	require.NoError(t, err)

	assert.Equal(t, model.SourceCreditCard, txn.SourceType)
	assert.Equal(t, int64(3), txn.SourceID)
	require.NotNil(t, txn.OriginalID)
	assert.Equal(t, "tx-991", *txn.OriginalID)
	require.NotNil(t, txn.Notes)
	assert.Equal(t, "3 תשלומים", *txn.Notes)
	require.NotNil(t, txn.Description)
	assert.Equal(t, "שופרסל דיל", *txn.Description)
	assert.Equal(t, testutil.Ptr(1), txn.InstallmentNumber)
	assert.Equal(t, testutil.Ptr(3), txn.InstallmentTotal)

	// Classification fields stay unset until the classifier runs.
	assert.Nil(t, txn.CategoryID)
	assert.Nil(t, txn.Type)
	assert.Nil(t, txn.ChargedMonth)
}

func TestNormalizeEmptyStringsBecomeNil(t *testing.T) {
	n := testNormalizer(t)
	txn, err := n.Normalize(&RawTransaction{}, model.Source{Type: model.SourceBank, ID: 1}, "hapoalim")
	require.NoError(t, err)

	assert.Nil(t, txn.Description)
	assert.Nil(t, txn.Notes)
	assert.Nil(t, txn.OriginalID)
	assert.Nil(t, txn.Date)
	assert.Nil(t, txn.ProcessedDate)
}

func TestIdentifierUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "string", input: `"abc-123"`, want: "abc-123"},
		{name: "integer", input: `991245`, want: "991245"},
		{name: "large integer keeps its digits", input: `123456789012345678`, want: "123456789012345678"},
		{name: "float literal is preserved", input: `991245.0`, want: "991245.0"},
		{name: "object rejected", input: `{"id": 1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id Identifier
			err := json.Unmarshal([]byte(tt.input), &id)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id.String())
		})
	}
}
