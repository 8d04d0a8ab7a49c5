/*
This file contains common utility functions for converting between token base units and
18-decimal fixed-point amounts, plus the clamping helpers used across the simulation math.
*/

package utils

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
)

// ProtocolPrecision is the number of fractional digits used by the pool contracts (WAD).
const ProtocolPrecision = 18

// pow10 returns 10^precision as a decimal.
func pow10(precision int) sdkmath.LegacyDec {
	return sdkmath.LegacyNewDecFromInt(sdkmath.NewIntWithDecimal(1, precision))
}

// AmountToWei converts a token amount to base units, truncating digits below the token precision.
func AmountToWei(amount sdkmath.LegacyDec, precision int) (sdkmath.Int, error) {
	if precision < 0 || precision > ProtocolPrecision {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	return amount.Mul(pow10(precision)).TruncateInt(), nil
}

// MustAmountToWei is AmountToWei for amounts already known to be valid.
func MustAmountToWei(amount sdkmath.LegacyDec, precision int) sdkmath.Int {
	wei, err := AmountToWei(amount, precision)
	if err != nil {
		panic(err)
	}
	return wei
}

// AmountFromWei converts base units back to a token amount.
func AmountFromWei(amount sdkmath.Int, precision int) (sdkmath.LegacyDec, error) {
	if precision < 0 || precision > ProtocolPrecision {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return sdkmath.LegacyZeroDec(), ErrAmountNil
	}
	return sdkmath.LegacyNewDecFromInt(amount).Quo(pow10(precision)), nil
}

// NegativeToZero clamps negative amounts to zero.
func NegativeToZero(amount sdkmath.LegacyDec) sdkmath.LegacyDec {
	if amount.IsNegative() {
		return sdkmath.LegacyZeroDec()
	}
	return amount
}

// OrZero maps a nil decimal (absent JSON field) to zero.
func OrZero(amount sdkmath.LegacyDec) sdkmath.LegacyDec {
	if amount.IsNil() {
		return sdkmath.LegacyZeroDec()
	}
	return amount
}

// IntOrZero maps a nil integer to zero.
func IntOrZero(amount sdkmath.Int) sdkmath.Int {
	if amount.IsNil() {
		return sdkmath.ZeroInt()
	}
	return amount
}

// ResolveEthValue is the wei value a transaction must carry: the amount when the user pays in
// native ETH, zero otherwise.
func ResolveEthValue(isUsingEth bool, amount sdkmath.LegacyDec) (string, error) {
	if !isUsingEth {
		return "0", nil
	}
	wei, err := AmountToWei(OrZero(amount), ProtocolPrecision)
	if err != nil {
		return "", err
	}
	return wei.String(), nil
}
