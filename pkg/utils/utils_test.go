package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  string
		expectErr bool
	}{
		{name: "lower case", input: "usd", expected: "USD"},
		{name: "padded", input: " eur ", expected: "EUR"},
		{name: "empty defaults", input: "", expected: "USD"},
		{name: "too long", input: "USDT", expectErr: true},
		{name: "digits", input: "U5D", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCurrency(tt.input)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("150.00")))
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("0.01")))
	assert.Error(t, ValidateAmount(decimal.Zero))
	assert.Error(t, ValidateAmount(decimal.RequireFromString("-5")))
	assert.Error(t, ValidateAmount(decimal.RequireFromString("1.005")))
}

func TestStableHash(t *testing.T) {
	type item struct {
		ExternalID string `json:"external_id"`
		Amount     string `json:"amount"`
	}

	first, err := StableHash([]item{{ExternalID: "a", Amount: "1.00"}})
	require.NoError(t, err)
	second, err := StableHash([]item{{ExternalID: "a", Amount: "1.00"}})
	require.NoError(t, err)
	third, err := StableHash([]item{{ExternalID: "a", Amount: "1.01"}})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, third)
	assert.Len(t, first, 64)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Acme Corp", SanitizeString("  Acme\x00 Corp\n"))
}
