package validation

import (
	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/config"
	"github.com/dma-labs/ajna-dma/internal/solver"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/dma-labs/ajna-dma/internal/utils"
)

// BorrowishArgs describes a change to a borrow or multiply position.
type BorrowishArgs struct {
	Position           types.BorrowPosition // Position before the change
	Target             types.BorrowPosition // Simulated position after the change
	GenerateAmount     sdkmath.LegacyDec    // Quote token drawn
	WithdrawCollateral sdkmath.LegacyDec    // Collateral removed
	PaybackAmount      sdkmath.LegacyDec    // Quote token repaid
}

// ValidateBorrowish runs the rules shared by borrow and multiply positions.
func ValidateBorrowish(args BorrowishArgs) (types.Diagnostics, error) {
	d := types.NewDiagnostics()

	d.Errors = append(d.Errors, ValidateDustLimit(args.Target)...)

	liquidity, err := validateLiquidity(args)
	if err != nil {
		return types.Diagnostics{}, err
	}
	d.Errors = append(d.Errors, liquidity...)
	d.Errors = append(d.Errors, validateWithdrawCollateral(args)...)
	d.Errors = append(d.Errors, validatePayback(args)...)

	d.Warnings = append(d.Warnings, validateLupProximity(args)...)
	return d, nil
}

// ValidateDustLimit fires when the position keeps a debt under the pool's minimum loan size.
func ValidateDustLimit(position types.BorrowPosition) []types.Diagnostic {
	minDebt := utils.OrZero(position.Pool.PoolMinDebtAmount)
	debt := utils.OrZero(position.DebtAmount)
	if debt.IsPositive() && debt.LT(minDebt) {
		return diagnostic(DebtBelowMinimum, MinDebtData{MinDebtAmount: utils.FormatCryptoBalance(minDebt)})
	}
	return nil
}

func validateLiquidity(args BorrowishArgs) ([]types.Diagnostic, error) {
	generate := utils.OrZero(args.GenerateAmount)
	if !generate.IsPositive() {
		return nil, nil
	}
	maxGenerate, err := solver.CalculateMaxGenerate(args.Position.Pool, args.Position.DebtAmount, args.Target.CollateralAmount)
	if err != nil {
		return nil, err
	}
	if generate.GT(maxGenerate) {
		return diagnostic(NotEnoughLiquidity, amountData(maxGenerate)), nil
	}
	return nil, nil
}

// validateWithdrawCollateral allows removing collateral down to what keeps the remaining debt at the LUP.
func validateWithdrawCollateral(args BorrowishArgs) []types.Diagnostic {
	withdraw := utils.OrZero(args.WithdrawCollateral)
	if !withdraw.IsPositive() {
		return nil
	}
	available := CollateralAvailable(args.Position.CollateralAmount, args.Target.DebtAmount, args.Position.Pool.LowestUtilizedPrice)
	if withdraw.GT(available) {
		return diagnostic(WithdrawMoreThanAvailable, amountData(available))
	}
	return nil
}

func validatePayback(args BorrowishArgs) []types.Diagnostic {
	payback := utils.OrZero(args.PaybackAmount)
	debt := utils.OrZero(args.Position.DebtAmount)
	if payback.GT(debt) {
		return diagnostic(PaybackMoreThanDebt, amountData(debt))
	}
	return nil
}

func validateLupProximity(args BorrowishArgs) []types.Diagnostic {
	if !utils.OrZero(args.GenerateAmount).IsPositive() {
		return nil
	}
	lup := utils.OrZero(args.Target.Pool.LowestUtilizedPrice)
	if !lup.IsPositive() {
		return nil
	}
	limit := lup.Mul(config.DefaultProtocolParameters.LupProximityThreshold)
	if args.Target.ThresholdPrice().GT(limit) {
		return diagnostic(GenerateCloseToMaxLup, LupData{Lup: utils.FormatCryptoBalance(lup)})
	}
	return nil
}

// CollateralAvailable is the collateral that can leave a position while debt stays covered at lup.
func CollateralAvailable(collateral, debt, lup sdkmath.LegacyDec) sdkmath.LegacyDec {
	collateral = utils.OrZero(collateral)
	debt = utils.OrZero(debt)
	if !debt.IsPositive() {
		return collateral
	}
	if lup.IsNil() || !lup.IsPositive() {
		return sdkmath.LegacyZeroDec()
	}
	return utils.NegativeToZero(collateral.Sub(debt.Quo(lup)))
}
