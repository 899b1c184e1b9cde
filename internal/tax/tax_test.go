package tax_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/tax"
)

func TestCalculateByRegion(t *testing.T) {
	hundred := decimal.NewFromInt(100)
	cases := map[string]string{
		"123 Main St, Los Angeles, CA": "7.25",
		"456 Oak Ave, New York, NY":    "4",
		"789 Pine Rd, Austin, TX":      "6.25",
		"1 Beach Blvd, Miami, FL":      "8",
	}
	for address, want := range cases {
		got := tax.Calculate(hundred, address)
		require.True(t, got.Equal(decimal.RequireFromString(want)), "%s: got %s", address, got)
	}
}

func TestRegionsCheckedInOrder(t *testing.T) {
	require.True(t, tax.RateFor("CA / NY border").Equal(decimal.RequireFromString("0.0725")))
	require.Len(t, tax.Regions(), 3)
}
