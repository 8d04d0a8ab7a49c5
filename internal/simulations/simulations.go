package simulations

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/config"
	"github.com/dma-labs/ajna-dma/internal/logger"
	"github.com/dma-labs/ajna-dma/internal/pool"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/dma-labs/ajna-dma/internal/utils"
)

var simLogger = logger.GetForComponent("liquidity_simulator")

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidDebtChange = errors.New("debt change is required")
	ErrInvalidPosition   = errors.New("invalid position")
)

// Lup is a lowest utilized price together with its bucket index.
type Lup struct {
	Price sdkmath.LegacyDec `json:"price"`
	Index int64             `json:"index"`
}

// CalculateNewLup walks the buckets from the best price down and returns the first bucket
// that cannot fully absorb the debt remaining after the buckets above it.
// When the new debt exceeds all deposits the LUP drops to the worst bucket.
func CalculateNewLup(p types.Pool, debtChange sdkmath.LegacyDec) (Lup, error) {
	if debtChange.IsNil() {
		return Lup{}, ErrInvalidDebtChange
	}
	if err := pool.ValidateBuckets(p.Buckets); err != nil {
		return Lup{}, err
	}
	return walkLup(p, p.Debt.Add(debtChange)), nil
}

// walkLup expects buckets that already passed validation.
func walkLup(p types.Pool, debt sdkmath.LegacyDec) Lup {
	sorted := pool.SortBuckets(p.Buckets)
	if len(sorted) == 0 {
		return Lup{Price: p.LowestUtilizedPrice, Index: p.LowestUtilizedPriceIndex}
	}

	if debt.GT(pool.TotalLiquidity(sorted)) {
		worst := sorted[len(sorted)-1]
		return Lup{Price: worst.Price, Index: worst.Index}
	}

	lup := Lup{Price: sorted[0].Price, Index: sorted[0].Index}
	remaining := debt
	for _, b := range sorted {
		if remaining.GT(b.QuoteTokens) {
			remaining = remaining.Sub(b.QuoteTokens)
			continue
		}
		if remaining.IsPositive() {
			lup = Lup{Price: b.Price, Index: b.Index}
			remaining = sdkmath.LegacyZeroDec()
		}
	}
	return lup
}

// SimulatePool projects the pool after debtChange is drawn (or repaid, when negative) by a
// position ending at positionDebt / positionCollateral.
func SimulatePool(p types.Pool, debtChange, positionDebt, positionCollateral sdkmath.LegacyDec) (types.Pool, error) {
	lup, err := CalculateNewLup(p, debtChange)
	if err != nil {
		return types.Pool{}, err
	}
	return simulatedPool(p, lup, debtChange, positionDebt, positionCollateral)
}

func simulatedPool(p types.Pool, lup Lup, debtChange, positionDebt, positionCollateral sdkmath.LegacyDec) (types.Pool, error) {
	if positionDebt.IsNil() || positionCollateral.IsNil() {
		return types.Pool{}, errors.Join(ErrInvalidPosition, errors.New("position debt and collateral are required"))
	}

	thresholdPrice := sdkmath.LegacyZeroDec()
	if !positionCollateral.IsZero() {
		thresholdPrice = positionDebt.Quo(positionCollateral)
	}

	out := p
	out.LowestUtilizedPrice = lup.Price
	out.LowestUtilizedPriceIndex = lup.Index
	out.Debt = p.Debt.Add(debtChange)

	if thresholdPrice.GT(p.HighestThresholdPrice) {
		index, err := pool.IndexOfPrice(thresholdPrice)
		if err != nil {
			return types.Pool{}, fmt.Errorf("failed to map threshold price %s to a bucket: %w", thresholdPrice, err)
		}
		out.HighestThresholdPrice = thresholdPrice
		out.HighestThresholdPriceIndex = index
	}
	return out, nil
}

// CalculateNewLupWhenAdjusting projects the LUP after a lender moves their deposit from the
// bucket at position.Price to the bucket at simulation.Price with simulation.QuoteTokenAmount.
//
// Without a simulation the current LUP is returned. When the position's bucket is not part of
// the snapshot ok is false and the returned Lup is zero; callers must not use it as a price.
func CalculateNewLupWhenAdjusting(p types.Pool, position types.EarnPosition, simulation *types.EarnPosition) (lup Lup, ok bool, err error) {
	if simulation == nil {
		return Lup{Price: p.LowestUtilizedPrice, Index: p.LowestUtilizedPriceIndex}, true, nil
	}
	if err := pool.ValidateBuckets(p.Buckets); err != nil {
		return Lup{}, false, err
	}
	if position.Price.IsNil() || position.QuoteTokenAmount.IsNil() ||
		simulation.Price.IsNil() || simulation.QuoteTokenAmount.IsNil() {
		return Lup{}, false, errors.Join(ErrInvalidPosition, errors.New("earn position price and quote amount are required"))
	}

	buckets := p.CloneBuckets()
	old := -1
	for i, b := range buckets {
		if b.Price.Equal(position.Price) {
			old = i
			break
		}
	}
	if old == -1 {
		simLogger.Warn().
			Str("price", position.Price.String()).
			Str("pool", p.PoolAddress.Hex()).
			Msg("Position bucket not found in pool snapshot, LUP cannot be projected")
		return Lup{Price: sdkmath.LegacyZeroDec()}, false, nil
	}
	buckets[old].QuoteTokens = utils.NegativeToZero(buckets[old].QuoteTokens.Sub(position.QuoteTokenAmount))

	target, err := targetBucketIndex(buckets, simulation.Price)
	if err != nil {
		return Lup{}, false, err
	}
	if i := pool.FindByIndex(buckets, target); i != -1 {
		buckets[i].QuoteTokens = buckets[i].QuoteTokens.Add(simulation.QuoteTokenAmount)
	} else {
		buckets = append(buckets, types.Bucket{
			Price:       simulation.Price,
			Index:       target,
			QuoteTokens: simulation.QuoteTokenAmount,
			BucketLPs:   sdkmath.LegacyZeroDec(),
			Collateral:  sdkmath.LegacyZeroDec(),
		})
	}

	sorted := pool.SortBuckets(buckets)
	remaining := p.Debt
	for _, b := range sorted {
		if remaining.GT(b.QuoteTokens) {
			remaining = remaining.Sub(b.QuoteTokens)
			continue
		}
		return Lup{Price: b.Price, Index: b.Index}, true, nil
	}

	// Deposits no longer cover the debt: the LUP falls to the worst bucket.
	worst := sorted[len(sorted)-1]
	return Lup{Price: worst.Price, Index: worst.Index}, true, nil
}

// targetBucketIndex prefers a bucket of the snapshot priced exactly at price and falls back
// to the nearest index of the price table.
func targetBucketIndex(buckets []types.Bucket, price sdkmath.LegacyDec) (int64, error) {
	for _, b := range buckets {
		if b.Price.Equal(price) {
			return b.Index, nil
		}
	}
	return pool.IndexOfPrice(price)
}

// GetBorrowOriginationFee is the greater of one week of interest and 5 bps, times the new debt.
func GetBorrowOriginationFee(interestRate, quoteAmount sdkmath.LegacyDec) sdkmath.LegacyDec {
	params := config.DefaultProtocolParameters
	weeklyRate := utils.OrZero(interestRate).QuoInt64(params.WeeksPerYear)
	return sdkmath.LegacyMaxDec(weeklyRate, params.OriginationFeeFloor).Mul(utils.OrZero(quoteAmount))
}
