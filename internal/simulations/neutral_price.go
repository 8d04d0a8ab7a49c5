package simulations

import (
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/dma-labs/ajna-dma/internal/utils"
	"github.com/shopspring/decimal"
)

// GetNeutralPrice estimates the neutral price a position would get after debtChange.
// For the current value of an existing loan read t0Np from the borrower info instead.
func GetNeutralPrice(p types.Pool, debtChange, positionDebt, positionCollateral sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	simulated, err := SimulatePool(p, debtChange, positionDebt, positionCollateral)
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}

	poolDebt := utils.OrZero(p.T0Debt).Mul(utils.OrZero(p.PendingInflator)).Add(debtChange)

	loans := p.LoansCount + p.TotalAuctionsInPool
	mompDebt := sdkmath.LegacyOneDec()
	if loans != 0 {
		mompDebt = poolDebt.QuoInt64(loans)
	}

	// Most optimistic matching price: the LUP if every loan carried the mean debt.
	momp, err := CalculateNewLup(p, poolDebt.Sub(mompDebt).Neg())
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}

	if positionCollateral.IsZero() || !simulated.LowestUtilizedPrice.IsPositive() {
		return sdkmath.LegacyZeroDec(), nil
	}
	thresholdPrice := positionDebt.Quo(positionCollateral)

	rate := utils.OrZero(p.InterestRate)
	return sdkmath.LegacyOneDec().Add(rate).Mul(momp.Price.Mul(thresholdPrice.Quo(simulated.LowestUtilizedPrice))), nil
}

// CalculateApyPerDays returns the yield of amount over days at a continuously compounded apy.
// The exponent is evaluated in float64; the result is converted back at 18 decimals.
func CalculateApyPerDays(amount, apy sdkmath.LegacyDec, days int64) (sdkmath.LegacyDec, error) {
	if amount.IsNil() || amount.IsZero() || apy.IsNil() {
		return sdkmath.LegacyZeroDec(), nil
	}

	apyDecimal, err := decimal.NewFromString(apy.String())
	if err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("invalid apy %s: %w", apy, err)
	}
	growth := math.Exp(apyDecimal.InexactFloat64() * float64(days))
	if math.IsInf(growth, 0) || math.IsNaN(growth) {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("apy %s over %d days overflows", apy, days)
	}

	factor, err := sdkmath.LegacyNewDecFromStr(decimal.NewFromFloat(growth).StringFixed(18))
	if err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("failed to convert growth factor: %w", err)
	}
	return amount.Mul(factor).Sub(amount).Quo(amount), nil
}
