package voucher

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	code, err := Normalize("  eid10 ")
	require.NoError(t, err)
	require.Equal(t, "EID10", code)

	_, err = Normalize("   ")
	require.ErrorIs(t, err, ErrCodeRequired)
}

func TestComputePercentage(t *testing.T) {
	c := &Coupon{Kind: Percentage, Value: decimal.NewFromInt(10)}
	require.Equal(t, int64(100), Compute(c, 1000))
	require.Equal(t, int64(85), Compute(c, 849))
	require.Equal(t, int64(0), Compute(c, 0))
}

func TestComputeFixedClampsToTotal(t *testing.T) {
	c := &Coupon{Kind: Fixed, Value: decimal.NewFromInt(500)}
	require.Equal(t, int64(500), Compute(c, 900))
	require.Equal(t, int64(300), Compute(c, 300))

	full := &Coupon{Kind: Percentage, Value: decimal.NewFromInt(150)}
	require.Equal(t, int64(300), Compute(full, 300))
}

func TestComputeIgnoresMissingOrNegativeCoupons(t *testing.T) {
	require.Equal(t, int64(0), Compute(nil, 1000))
	require.Equal(t, int64(0), Compute(&Coupon{Kind: Fixed, Value: decimal.NewFromInt(-20)}, 1000))
}

func TestParseKind(t *testing.T) {
	require.Equal(t, Percentage, ParseKind("Percent"))
	require.Equal(t, Fixed, ParseKind("amount"))
	require.Equal(t, Fixed, ParseKind(""))
}
