package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountToWei(t *testing.T) {
	wei, err := AmountToWei(sdkmath.LegacyMustNewDecFromStr("1.2345679"), 6)
	require.NoError(t, err)
	assert.Equal(t, "1234567", wei.String())

	_, err = AmountToWei(sdkmath.LegacyOneDec(), 19)
	assert.ErrorIs(t, err, ErrInvalidPrecision)
	_, err = AmountToWei(sdkmath.LegacyDec{}, 6)
	assert.ErrorIs(t, err, ErrAmountNil)
	_, err = AmountToWei(sdkmath.LegacyNewDec(-1), 6)
	assert.ErrorIs(t, err, ErrAmountNegative)
}

func TestAmountFromWei(t *testing.T) {
	amount, err := AmountFromWei(sdkmath.NewInt(1_500_000), 6)
	require.NoError(t, err)
	assert.True(t, amount.Equal(sdkmath.LegacyMustNewDecFromStr("1.5")))
}

func TestResolveEthValue(t *testing.T) {
	value, err := ResolveEthValue(true, sdkmath.LegacyMustNewDecFromStr("1.5"))
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", value)

	value, err = ResolveEthValue(false, sdkmath.LegacyMustNewDecFromStr("1.5"))
	require.NoError(t, err)
	assert.Equal(t, "0", value)

	value, err = ResolveEthValue(true, sdkmath.LegacyDec{})
	require.NoError(t, err)
	assert.Equal(t, "0", value)
}

func TestFormatCryptoBalance(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"0.000001", "<0.00001"},
		{"1.23456", "1.2345"},
		{"1234.567", "1,234.56"},
		{"999999.999", "999,999.99"},
		{"1234567", "1.23M"},
		{"2500000000", "2.50B"},
		{"-1234.5", "-1,234.50"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCryptoBalance(sdkmath.LegacyMustNewDecFromStr(tt.in)))
		})
	}
	assert.Equal(t, "0.00", FormatCryptoBalance(sdkmath.LegacyDec{}))
}

func TestClampHelpers(t *testing.T) {
	assert.True(t, NegativeToZero(sdkmath.LegacyNewDec(-3)).IsZero())
	assert.True(t, OrZero(sdkmath.LegacyDec{}).IsZero())
	assert.True(t, IntOrZero(sdkmath.Int{}).IsZero())
}
