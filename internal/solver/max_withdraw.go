package solver

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/pool"
	"github.com/dma-labs/ajna-dma/internal/simulations"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/dma-labs/ajna-dma/internal/utils"
)

// WithdrawParams are the inputs of CalculateMaxLiquidityWithdraw.
type WithdrawParams struct {
	AvailableToWithdraw  sdkmath.LegacyDec   // Already withdrawable amount, zero when unset
	Pool                 types.Pool          // Snapshot the lender's deposit sits in
	Position             types.EarnPosition  // The lender's current deposit
	PoolCurrentLiquidity sdkmath.LegacyDec   // Deposits minus debt of the untouched snapshot
	Simulation           *types.EarnPosition // Target deposit when the lender also moves buckets
}

// CalculateMaxLiquidityWithdraw returns how much of the position's quote deposit can be withdrawn
// without pushing the LUP past the HTP. Free liquidity is collected bucket by bucket from the LUP
// downwards; each step moves the LUP strictly down, so the walk ends within one step per bucket.
func CalculateMaxLiquidityWithdraw(params WithdrawParams) (sdkmath.LegacyDec, error) {
	p := params.Pool
	position := params.Position
	if err := pool.ValidatePool(p); err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	if position.QuoteTokenAmount.IsNil() || params.PoolCurrentLiquidity.IsNil() {
		return sdkmath.LegacyZeroDec(), errors.Join(ErrInvalidPosition, errors.New("quote amount and pool liquidity are required"))
	}

	quote := position.QuoteTokenAmount
	poolLiquidity := params.PoolCurrentLiquidity
	available := utils.OrZero(params.AvailableToWithdraw)
	p.DepositSize = utils.OrZero(p.DepositSize)

	limit := len(p.Buckets) + 1
	for step := 0; step <= limit; step++ {
		if available.GT(poolLiquidity) {
			return sdkmath.LegacyMinDec(quote, poolLiquidity), nil
		}
		if available.GTE(quote) ||
			p.LowestUtilizedPriceIndex == 0 ||
			position.PriceIndex > p.LowestUtilizedPriceIndex {
			return quote, nil
		}

		newLup, ok, err := simulations.CalculateNewLupWhenAdjusting(p, position, params.Simulation)
		if err != nil {
			return sdkmath.LegacyZeroDec(), err
		}
		if !ok {
			solverLogger.Warn().
				Str("positionPrice", position.Price.String()).
				Msg("Position bucket missing, continuing withdrawal walk without the adjusted LUP")
		}
		if newLup.Index > p.HighestThresholdPriceIndex {
			return resolveWithdraw(available, quote), nil
		}

		buckets := bucketsDownTo(p.Buckets, p.HighestThresholdPriceIndex)
		lupPos := pool.FindByIndex(buckets, p.LowestUtilizedPriceIndex)
		if lupPos == -1 {
			return resolveWithdraw(available, quote), nil
		}

		lupLiquidity := pool.LiquidityInLupBucket(p)
		if lupPos+1 >= len(buckets) {
			return resolveWithdraw(available.Add(lupLiquidity), quote), nil
		}

		available = available.Add(lupLiquidity)
		buckets[lupPos].QuoteTokens = buckets[lupPos].QuoteTokens.Sub(lupLiquidity)
		next := buckets[lupPos+1]

		p = p.WithBuckets(buckets)
		p.DepositSize = p.DepositSize.Sub(lupLiquidity)
		p.LowestUtilizedPrice = next.Price
		p.LowestUtilizedPriceIndex = next.Index
	}

	return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: max withdraw over %d buckets", ErrStepLimit, limit)
}

func resolveWithdraw(available, quote sdkmath.LegacyDec) sdkmath.LegacyDec {
	return utils.NegativeToZero(sdkmath.LegacyMinDec(available, quote))
}

// bucketsDownTo returns a sorted copy of the buckets priced at or above the bucket at maxIndex.
func bucketsDownTo(buckets []types.Bucket, maxIndex int64) []types.Bucket {
	out := make([]types.Bucket, 0, len(buckets))
	for _, b := range pool.SortBuckets(buckets) {
		if b.Index <= maxIndex {
			out = append(out, b)
		}
	}
	return out
}
