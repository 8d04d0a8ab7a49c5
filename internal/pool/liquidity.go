package pool

import (
	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/dma-labs/ajna-dma/internal/utils"
)

// TotalLiquidity is the quote token deposit summed across all buckets.
func TotalLiquidity(buckets []types.Bucket) sdkmath.LegacyDec {
	total := sdkmath.LegacyZeroDec()
	for _, b := range buckets {
		total = total.Add(b.QuoteTokens)
	}
	return total
}

// Liquidity is the deposit not yet lent out. It is negative for an insolvent snapshot.
func Liquidity(p types.Pool) sdkmath.LegacyDec {
	return TotalLiquidity(p.Buckets).Sub(p.Debt)
}

// LiquidityInLupBucket is the deposit still free at the LUP bucket: everything deposited at
// or above the LUP minus the pool debt those buckets back, never below zero.
func LiquidityInLupBucket(p types.Pool) sdkmath.LegacyDec {
	covered := sdkmath.LegacyZeroDec()
	for _, b := range SortBuckets(p.Buckets) {
		if b.Index > p.LowestUtilizedPriceIndex {
			break
		}
		covered = covered.Add(b.QuoteTokens)
	}
	return utils.NegativeToZero(covered.Sub(p.Debt))
}
