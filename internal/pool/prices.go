package pool

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

const (
	// MaxBucketIndex is one past the highest bucket index a pool accepts.
	MaxBucketIndex int64 = 7388
	// UnitPriceIndex is the bucket priced at exactly 1.
	UnitPriceIndex int64 = 4156
)

var (
	priceStep     = sdkmath.LegacyMustNewDecFromStr("1.005")
	halfPriceStep = sdkmath.LegacyMustNewDecFromStr("0.0025")
)

// PriceAt returns the price of bucket index: 1.005^(4156 - index).
func PriceAt(index int64) (sdkmath.LegacyDec, error) {
	if index < 0 || index >= MaxBucketIndex {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	exponent := UnitPriceIndex - index
	if exponent >= 0 {
		return priceStep.Power(uint64(exponent)), nil
	}
	return sdkmath.LegacyOneDec().Quo(priceStep.Power(uint64(-exponent))), nil
}

// IndexOfPrice returns the bucket index whose price is closest to price.
// Ties resolve to the lower index.
func IndexOfPrice(price sdkmath.LegacyDec) (int64, error) {
	if price.IsNil() || !price.IsPositive() {
		return 0, fmt.Errorf("%w: %v", ErrPriceOutOfRange, price)
	}

	// Prices fall as the index grows, so find the first index priced at or below price.
	lo, hi := int64(0), MaxBucketIndex-1
	for lo < hi {
		mid := lo + (hi-lo)/2
		p, err := PriceAt(mid)
		if err != nil {
			return 0, err
		}
		if p.LTE(price) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}

	if lo == 0 {
		return 0, nil
	}
	below, err := PriceAt(lo)
	if err != nil {
		return 0, err
	}
	above, err := PriceAt(lo - 1)
	if err != nil {
		return 0, err
	}
	if above.Sub(price).LTE(price.Sub(below).Abs()) {
		return lo - 1, nil
	}
	return lo, nil
}

// GridIndexOfPrice is IndexOfPrice for prices that sit on the bucket grid. A price further
// than half a step from the bucket it maps to is out of range.
func GridIndexOfPrice(price sdkmath.LegacyDec) (int64, error) {
	index, err := IndexOfPrice(price)
	if err != nil {
		return 0, err
	}
	at, err := PriceAt(index)
	if err != nil {
		return 0, err
	}
	if price.Sub(at).Abs().GT(at.Mul(halfPriceStep)) {
		return 0, fmt.Errorf("%w: %s is off the bucket grid, nearest bucket %d is priced %s", ErrPriceOutOfRange, price, index, at)
	}
	return index, nil
}
