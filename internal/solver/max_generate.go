/*

This file contains the borrow capacity solver.

Starting at the current LUP, a borrower can draw the free liquidity of the LUP bucket; drawing
more pushes the LUP down one bucket, which lowers the collateral value the next step can borrow
against. The walk keeps an explicit accumulator and moves the LUP strictly down the sorted buckets,
so it ends after at most one step per bucket.

*/

package solver

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/logger"
	"github.com/dma-labs/ajna-dma/internal/pool"
	"github.com/dma-labs/ajna-dma/internal/simulations"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/dma-labs/ajna-dma/internal/utils"
)

var solverLogger = logger.GetForComponent("capacity_solver")

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPosition = errors.New("invalid position")
	ErrStepLimit       = errors.New("bucket walk exceeded the bucket count")
)

// GetMaxGenerate returns the debt a position can draw before fees, walking the LUP down the
// buckets as long as the collateral value outgrows the free liquidity at the LUP.
func GetMaxGenerate(p types.Pool, positionDebt, positionCollateral sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if err := pool.ValidatePool(p); err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	if positionDebt.IsNil() || positionCollateral.IsNil() {
		return sdkmath.LegacyZeroDec(), errors.Join(ErrInvalidPosition, errors.New("position debt and collateral are required"))
	}

	sorted := pool.SortBuckets(p.Buckets)
	p = p.WithBuckets(sorted)
	accumulated := sdkmath.LegacyZeroDec()
	debt := positionDebt

	for step := 0; step <= len(sorted); step++ {
		ceiling := positionCollateral.Mul(p.LowestUtilizedPrice).Sub(debt)
		lupLiquidity := pool.LiquidityInLupBucket(p)

		if ceiling.LTE(lupLiquidity) {
			return accumulated.Add(utils.NegativeToZero(ceiling)), nil
		}

		next := bucketBelow(sorted, p.LowestUtilizedPriceIndex)
		if next == nil {
			return accumulated.Add(lupLiquidity), nil
		}

		solverLogger.Debug().
			Int("step", step).
			Int64("lupIndex", p.LowestUtilizedPriceIndex).
			Int64("nextIndex", next.Index).
			Str("consumed", lupLiquidity.String()).
			Msg("LUP bucket exhausted, moving to next bucket")

		p.LowestUtilizedPrice = next.Price
		p.LowestUtilizedPriceIndex = next.Index
		p.Debt = p.Debt.Add(lupLiquidity)
		debt = debt.Add(lupLiquidity)
		accumulated = accumulated.Add(lupLiquidity)
	}

	return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: max generate over %d buckets", ErrStepLimit, len(sorted))
}

// CalculateMaxGenerate is GetMaxGenerate net of the origination fee, capped by pool liquidity.
func CalculateMaxGenerate(p types.Pool, positionDebt, collateralAmount sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	maxDebtWithoutFee, err := GetMaxGenerate(p, positionDebt, collateralAmount)
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}

	originationFee := simulations.GetBorrowOriginationFee(p.InterestRate, maxDebtWithoutFee)
	poolLiquidityWithFee := pool.Liquidity(p).Sub(originationFee)
	maxDebtWithFee := maxDebtWithoutFee.Sub(originationFee)

	if poolLiquidityWithFee.LT(maxDebtWithFee) {
		return utils.NegativeToZero(poolLiquidityWithFee), nil
	}
	return utils.NegativeToZero(maxDebtWithFee), nil
}

// bucketBelow returns the first bucket of sorted with an index above index.
func bucketBelow(sorted []types.Bucket, index int64) *types.Bucket {
	for i := range sorted {
		if sorted[i].Index > index {
			return &sorted[i]
		}
	}
	return nil
}
