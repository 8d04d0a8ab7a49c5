package validation

import (
	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/pool"
	"github.com/dma-labs/ajna-dma/internal/solver"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/dma-labs/ajna-dma/internal/utils"
)

// EarnAction names a lender action.
type EarnAction string

const (
	EarnActionOpen     EarnAction = "open-earn"
	EarnActionDeposit  EarnAction = "deposit-earn"
	EarnActionWithdraw EarnAction = "withdraw-earn"
)

// EarnArgs describes a change to a lender position.
type EarnArgs struct {
	Action        EarnAction
	QuoteAmount   sdkmath.LegacyDec  // Quote token deposited or withdrawn
	Position      types.EarnPosition // Position before the change
	Simulation    types.EarnPosition // Simulated position after the change
	AfterLupIndex *int64             // LUP index after the deposit moves, when it was projected
}

// ValidateEarn runs the lender rule set.
func ValidateEarn(args EarnArgs) (types.Diagnostics, error) {
	d := types.NewDiagnostics()

	if args.Action == EarnActionWithdraw {
		errs, err := validateWithdrawQuote(args)
		if err != nil {
			return types.Diagnostics{}, err
		}
		d.Errors = append(d.Errors, errs...)
	}

	if args.AfterLupIndex != nil && *args.AfterLupIndex > args.Position.Pool.HighestThresholdPriceIndex {
		d.Errors = append(d.Errors, diagnostic(AfterLupIndexBiggerThanHtpIndex, IndexData{
			AfterLupIndex: *args.AfterLupIndex,
			HtpIndex:      args.Position.Pool.HighestThresholdPriceIndex,
		})...)
	}

	if utils.OrZero(args.Simulation.QuoteTokenAmount).IsPositive() {
		warnings, notices, successes := validateLendingPrice(args.Simulation.Price, args.Position.Pool)
		d.Warnings = append(d.Warnings, warnings...)
		d.Notices = append(d.Notices, notices...)
		d.Successes = append(d.Successes, successes...)
	}
	return d, nil
}

func validateWithdrawQuote(args EarnArgs) ([]types.Diagnostic, error) {
	amount := utils.OrZero(args.QuoteAmount)
	if !amount.IsPositive() {
		return nil, nil
	}
	simulation := args.Simulation
	maxWithdraw, err := solver.CalculateMaxLiquidityWithdraw(solver.WithdrawParams{
		Pool:                 args.Position.Pool,
		Position:             args.Position,
		PoolCurrentLiquidity: pool.Liquidity(args.Position.Pool),
		Simulation:           &simulation,
	})
	if err != nil {
		return nil, err
	}
	if amount.GT(maxWithdraw) {
		return diagnostic(WithdrawMoreThanAvailable, amountData(maxWithdraw)), nil
	}
	return nil, nil
}

// validateLendingPrice classifies the bucket a deposit lands in relative to the HTP and LUP.
func validateLendingPrice(price sdkmath.LegacyDec, p types.Pool) (warnings, notices, successes []types.Diagnostic) {
	if price.IsNil() {
		return nil, nil, nil
	}
	data := PriceData{
		Price: utils.FormatCryptoBalance(price),
		Htp:   utils.FormatCryptoBalance(p.HighestThresholdPrice),
		Lup:   utils.FormatCryptoBalance(p.LowestUtilizedPrice),
	}
	switch {
	case price.LT(utils.OrZero(p.HighestThresholdPrice)):
		return diagnostic(PriceBelowHtp, data), nil, nil
	case price.GT(utils.OrZero(p.LowestUtilizedPrice)):
		return nil, diagnostic(PriceAboveLup, data), nil
	default:
		return nil, nil, diagnostic(PriceBetweenHtpAndLup, data)
	}
}
