package payment_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhtruong/restaurant-pos/internal/payment"
)

func TestParseNotification(t *testing.T) {
	t.Run("flat payload", func(t *testing.T) {
		raw := []byte(`{"transferAmount": 150000, "content": "SEVQR OD42 thanh toan"}`)

		n, err := payment.ParseNotification(raw)
		require.NoError(t, err)

		assert.True(t, n.Amount.Equal(decimal.NewFromInt(150000)))
		assert.Equal(t, "SEVQR OD42 THANH TOAN", n.Description)
	})

	t.Run("double encoded data field", func(t *testing.T) {
		raw := []byte(`{"data": "{\"amount\": \"99000\", \"description\": \"od7\"}"}`)

		n, err := payment.ParseNotification(raw)
		require.NoError(t, err)

		assert.True(t, n.Amount.Equal(decimal.NewFromInt(99000)))
		assert.Equal(t, "OD7", n.Description)
	})

	t.Run("transferAmount wins over amount", func(t *testing.T) {
		raw := []byte(`{"transferAmount": 5000, "amount": 1, "content": "OD1"}`)

		n, err := payment.ParseNotification(raw)
		require.NoError(t, err)

		assert.True(t, n.Amount.Equal(decimal.NewFromInt(5000)))
	})

	t.Run("not json", func(t *testing.T) {
		_, err := payment.ParseNotification([]byte("not json at all"))
		assert.ErrorIs(t, err, payment.ErrMalformedPayload)
	})

	t.Run("data field holds garbage", func(t *testing.T) {
		_, err := payment.ParseNotification([]byte(`{"data": "not json"}`))
		assert.ErrorIs(t, err, payment.ErrMalformedPayload)
	})

	t.Run("missing fields yield zero values", func(t *testing.T) {
		n, err := payment.ParseNotification([]byte(`{}`))
		require.NoError(t, err)

		assert.True(t, n.Amount.IsZero())
		assert.Empty(t, n.Description)
	})
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name        string
		description string
		wantToken   string
		wantOK      bool
	}{
		{
			name:        "full prefixed token",
			description: "SEVQR OD123 chuyen khoan",
			wantToken:   "SEVQR OD123",
			wantOK:      true,
		},
		{
			name:        "bare token",
			description: "thanh toan OD9",
			wantToken:   "OD9",
			wantOK:      true,
		},
		{
			name:        "lowercase",
			description: "sevqr od55",
			wantToken:   "SEVQR OD55",
			wantOK:      true,
		},
		{
			name:        "extra spaces between prefix and token",
			description: "SEVQR   OD8",
			wantToken:   "SEVQR OD8",
			wantOK:      true,
		},
		{
			name:        "token buried in narration",
			description: "MBVCB.123456.SEVQR OD31.CT tu 0123",
			wantToken:   "SEVQR OD31",
			wantOK:      true,
		},
		{
			name:        "no token",
			description: "chuyen tien an trua",
			wantOK:      false,
		},
		{
			name:        "od without digits",
			description: "ODX not a token",
			wantOK:      false,
		},
		{
			name:        "empty",
			description: "",
			wantOK:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, ok := payment.ExtractToken(tt.description)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantToken, token)
			}
		})
	}
}

func TestTransactionCode(t *testing.T) {
	code := payment.TransactionCode(42)
	assert.Equal(t, "SEVQR OD42", code)

	token, ok := payment.ExtractToken(code)
	require.True(t, ok)
	assert.Equal(t, code, token)
}
