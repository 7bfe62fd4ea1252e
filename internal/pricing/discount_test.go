package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSalePrice(t *testing.T) {
	cases := []struct {
		label string
		want  Money
	}{
		{"30%", 700},
		{"-30%", 700},
		{"30", 700},
		{"0%", 1000},
		{"0", 1000},
		{"", 1000},
		{"none", 1000},
		{"150%", 1000},
		{"100", 1000},
		{"99%", 10},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, SalePrice(1000, tc.label), "label %q", tc.label)
	}
}

func TestSalePriceRoundsHalfUp(t *testing.T) {
	// 999 * 0.85 = 849.15
	require.Equal(t, Money(849), SalePrice(999, "15%"))
	// 15 * 0.9 = 13.5
	require.Equal(t, Money(14), SalePrice(15, "10%"))
	// 25 * 0.3 = 7.5
	require.Equal(t, Money(8), SalePrice(25, "70%"))
}

func TestParsePercent(t *testing.T) {
	require.Equal(t, int64(30), ParsePercent("-30%"))
	require.Equal(t, int64(12), ParsePercent("up to 12.5% off"))
	require.Equal(t, int64(0), ParsePercent("%"))
	require.Equal(t, int64(100), ParsePercent("99999999999999999999999"))
}

func TestParseAmount(t *testing.T) {
	require.Equal(t, Money(1000), ParseAmount("৳1,000.00"))
	require.Equal(t, Money(701), ParseAmount("700.50"))
	require.Equal(t, Money(700), ParseAmount("700"))
	require.Equal(t, Money(0), ParseAmount("N/A"))
	require.Equal(t, Money(0), ParseAmount(""))
	require.Equal(t, Money(12), ParseAmount("12."))
}

func TestPercentOf(t *testing.T) {
	require.Equal(t, Money(50), PercentOf(500, decimal.NewFromInt(10)))
	require.Equal(t, Money(3), PercentOf(25, decimal.RequireFromString("12.5")))
	require.Equal(t, Money(0), PercentOf(0, decimal.NewFromInt(10)))
	require.Equal(t, Money(0), PercentOf(100, decimal.Zero))
}
