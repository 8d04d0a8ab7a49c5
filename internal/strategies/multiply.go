/*

This file contains the Ajna multiply strategies: open, adjust and close.

A multiply position is a borrow position levered through a flashloan. Levering up borrows quote
token, swaps it for collateral and deposits the result; levering down repays debt with a
flashloan and sells withdrawn collateral to pay it back. Amounts are solved in USD so the target
loan-to-value is met after the protocol swap fee, the swap itself is quoted by an external
aggregator and its failure aborts the strategy.

*/

package strategies

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/operations"
	"github.com/dma-labs/ajna-dma/internal/simulations"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/dma-labs/ajna-dma/internal/utils"
	"github.com/dma-labs/ajna-dma/internal/validation"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SwapDataFetcher quotes a swap. Amount is in base units of from.
type SwapDataFetcher interface {
	GetSwapData(ctx context.Context, from, to common.Address, amount sdkmath.Int, slippage sdkmath.LegacyDec) (types.SwapData, error)
}

// MultiplyDependencies extend Dependencies with what DMA operations need.
type MultiplyDependencies struct {
	Dependencies
	Builder     *operations.Builder
	SwapFetcher SwapDataFetcher
	Params      types.ProtocolParameters
}

// CloseTo is the token a closed multiply position is paid out in.
type CloseTo string

const (
	CloseToQuote      CloseTo = "quote"
	CloseToCollateral CloseTo = "collateral"
)

// MultiplyPayload is the request of a multiply strategy.
type MultiplyPayload struct {
	Position        types.BorrowPosition `json:"position"`
	CollateralToken types.Token          `json:"collateral_token"`
	QuoteToken      types.Token          `json:"quote_token"`
	Proxy           operations.Proxy     `json:"proxy"`
	DepositAmount   sdkmath.LegacyDec    `json:"deposit_amount,omitempty"` // Collateral added by the owner
	RiskRatio       sdkmath.LegacyDec    `json:"risk_ratio,omitempty"`     // Target loan-to-value
	Slippage        sdkmath.LegacyDec    `json:"slippage"`
	CloseTo         CloseTo              `json:"close_to,omitempty"`
}

// multiplyMath holds the validated inputs of the solve, prices in USD.
type multiplyMath struct {
	collateral      sdkmath.LegacyDec
	debt            sdkmath.LegacyDec
	deposit         sdkmath.LegacyDec
	collateralPrice sdkmath.LegacyDec
	quotePrice      sdkmath.LegacyDec
	slippage        sdkmath.LegacyDec
	fee             sdkmath.LegacyDec // Swap fee rate
}

func (d MultiplyDependencies) check() error {
	if d.Builder == nil {
		return operations.ErrNilFactory
	}
	if d.SwapFetcher == nil {
		return errors.Join(ErrSwapDataUnavailable, errors.New("no swap data fetcher"))
	}
	if d.Params.FeeBase <= 0 {
		return errors.New("protocol parameters have no fee base")
	}
	return nil
}

func (d MultiplyDependencies) newMath(payload MultiplyPayload) (multiplyMath, error) {
	m := multiplyMath{
		collateral:      utils.OrZero(payload.Position.CollateralAmount),
		debt:            utils.OrZero(payload.Position.DebtAmount),
		deposit:         utils.OrZero(payload.DepositAmount),
		collateralPrice: utils.OrZero(payload.Position.CollateralPrice),
		quotePrice:      utils.OrZero(payload.Position.QuotePrice),
		slippage:        utils.OrZero(payload.Slippage),
		fee:             sdkmath.LegacyNewDec(d.Params.DefaultSwapFee).QuoInt64(d.Params.FeeBase),
	}
	if m.quotePrice.IsZero() {
		m.quotePrice = sdkmath.LegacyOneDec()
	}
	if m.collateral.IsNegative() || m.debt.IsNegative() || m.deposit.IsNegative() {
		return m, fmt.Errorf("%w: position amounts", ErrInvalidAmount)
	}
	if !m.collateralPrice.IsPositive() || m.quotePrice.IsNegative() {
		return m, fmt.Errorf("%w: collateral and quote prices are required", ErrInvalidAmount)
	}
	if m.slippage.IsNegative() || m.slippage.GTE(sdkmath.LegacyOneDec()) {
		return m, fmt.Errorf("%w: slippage %s", ErrInvalidAmount, m.slippage)
	}
	return m, nil
}

// MultiplyOpen opens a levered position from the owner's collateral deposit.
func MultiplyOpen(ctx context.Context, deps MultiplyDependencies, payload MultiplyPayload) (types.Strategy[types.BorrowPosition], error) {
	payload.Position = normalized(payload.Position)
	if utils.OrZero(payload.Position.CollateralAmount).IsPositive() {
		return types.Strategy[types.BorrowPosition]{}, ErrPositionExists
	}
	if !utils.OrZero(payload.DepositAmount).IsPositive() {
		return types.Strategy[types.BorrowPosition]{}, fmt.Errorf("%w: open needs a deposit", ErrInvalidAmount)
	}
	return leverUp(ctx, deps, payload, true)
}

// MultiplyAdjust moves the position to payload.RiskRatio, up or down from where it is.
func MultiplyAdjust(ctx context.Context, deps MultiplyDependencies, payload MultiplyPayload) (types.Strategy[types.BorrowPosition], error) {
	payload.Position = normalized(payload.Position)
	if !utils.OrZero(payload.Position.CollateralAmount).IsPositive() {
		return types.Strategy[types.BorrowPosition]{}, ErrNoPosition
	}
	target := utils.OrZero(payload.RiskRatio)
	current := payload.Position.RiskRatio()
	switch {
	case target.GT(current):
		return leverUp(ctx, deps, payload, false)
	case target.LT(current):
		return leverDown(ctx, deps, payload)
	default:
		return types.Strategy[types.BorrowPosition]{}, fmt.Errorf("%w: position is already at %s", ErrInvalidRiskRatio, current)
	}
}

func leverUp(ctx context.Context, deps MultiplyDependencies, payload MultiplyPayload, open bool) (types.Strategy[types.BorrowPosition], error) {
	if err := deps.check(); err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	m, err := deps.newMath(payload)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	r := utils.OrZero(payload.RiskRatio)
	if !r.IsPositive() || r.GTE(sdkmath.LegacyOneDec()) {
		return types.Strategy[types.BorrowPosition]{}, fmt.Errorf("%w: %s", ErrInvalidRiskRatio, r)
	}

	// ΔB = (r·C·cp − B·qp) / (qp·(1 − r(1−f)))
	collateral := m.collateral.Add(m.deposit)
	numerator := r.Mul(collateral).Mul(m.collateralPrice).Sub(m.debt.Mul(m.quotePrice))
	denominator := m.quotePrice.Mul(sdkmath.LegacyOneDec().Sub(r.Mul(sdkmath.LegacyOneDec().Sub(m.fee))))
	borrow := numerator.Quo(denominator)
	if !borrow.IsPositive() {
		return types.Strategy[types.BorrowPosition]{}, fmt.Errorf("%w: %s does not add debt", ErrInvalidRiskRatio, r)
	}

	borrowWei, err := utils.AmountToWei(borrow, payload.QuoteToken.Precision)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	swapFee := calculateFee(borrowWei, deps.Params.DefaultSwapFee, deps.Params.FeeBase)
	swapData, err := fetchSwap(ctx, deps, payload.QuoteToken, payload.CollateralToken, borrowWei.Sub(swapFee), m.slippage)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	bought, err := utils.AmountFromWei(swapData.ToTokenAmount, payload.CollateralToken.Precision)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	// The position draws the flashloan repayment, venue fee included.
	drawn, err := utils.AmountFromWei(deps.Builder.FlashloanRepayment(borrowWei), payload.QuoteToken.Precision)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	originationFee := simulations.GetBorrowOriginationFee(utils.OrZero(payload.Position.Pool.InterestRate), drawn)
	debtChange := drawn.Add(originationFee)
	target, err := project(payload.Position.Deposit(m.deposit.Add(bought), debtChange), debtChange)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	d, err := validation.ValidateBorrowish(validation.BorrowishArgs{
		Position:       payload.Position,
		Target:         target,
		GenerateAmount: drawn,
	})
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	depositWei, err := utils.AmountToWei(m.deposit, payload.CollateralToken.Precision)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	priceWad, err := utils.AmountToWei(target.Pool.LowestUtilizedPrice, utils.ProtocolPrecision)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	args := operations.AjnaMultiplyArgs{
		Collateral:    payload.CollateralToken,
		Debt:          payload.QuoteToken,
		DepositAmount: depositWei,
		Swap: operations.SwapStep{
			Amount:         borrowWei,
			ReceiveAtLeast: swapData.MinToTokenAmount,
			Fee:            deps.Params.DefaultSwapFee,
			Data:           swapData.ExchangeCalldata,
			CollectFeeFrom: types.CollectFeeFromSourceToken,
		},
		Flashloan: deps.flashloan(payload.QuoteToken, borrowWei),
		Proxy:     payload.Proxy,
		Addresses: deps.addresses(payload.Position.Pool.PoolAddress),
		Price:     priceWad,
	}
	var op types.Operation
	if open {
		op, err = deps.Builder.AjnaOpenMultiply(args)
	} else {
		op, err = deps.Builder.AjnaAdjustRiskUp(args)
	}
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	txValue, err := utils.ResolveEthValue(payload.CollateralToken.IsEth, m.deposit)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	return dmaPayload(deps, op, target, d, txValue, types.Swap{
		SwapData:       swapData,
		CollectFeeFrom: types.CollectFeeFromSourceToken,
		Fee:            swapFee,
	})
}

func leverDown(ctx context.Context, deps MultiplyDependencies, payload MultiplyPayload) (types.Strategy[types.BorrowPosition], error) {
	if err := deps.check(); err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	m, err := deps.newMath(payload)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	if m.deposit.IsPositive() {
		return types.Strategy[types.BorrowPosition]{}, fmt.Errorf("%w: deposits only lever up", ErrInvalidAmount)
	}
	r := utils.OrZero(payload.RiskRatio)
	one := sdkmath.LegacyOneDec()
	afterFee := one.Sub(m.fee)
	if r.IsNegative() || r.GTE(afterFee) {
		return types.Strategy[types.BorrowPosition]{}, fmt.Errorf("%w: %s", ErrInvalidRiskRatio, r)
	}

	// R = (B·qp − r·C·cp) / (qp·(1 − r/(1−f)))
	numerator := m.debt.Mul(m.quotePrice).Sub(r.Mul(m.collateral).Mul(m.collateralPrice))
	denominator := m.quotePrice.Mul(one.Sub(r.Quo(afterFee)))
	repay := sdkmath.LegacyMinDec(numerator.Quo(denominator), m.debt)
	if !repay.IsPositive() {
		return types.Strategy[types.BorrowPosition]{}, fmt.Errorf("%w: %s does not repay debt", ErrInvalidRiskRatio, r)
	}
	withdraw := m.sellToRepay(repay)
	if withdraw.GT(m.collateral) {
		return types.Strategy[types.BorrowPosition]{}, fmt.Errorf("%w: needs %s collateral, position has %s", ErrInvalidRiskRatio, withdraw, m.collateral)
	}

	repayWei, err := utils.AmountToWei(repay, payload.QuoteToken.Precision)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	withdrawWei, err := utils.AmountToWei(withdraw, payload.CollateralToken.Precision)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	swapData, swapFee, err := sellCollateral(ctx, deps, payload, withdrawWei, repayWei, m.slippage)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	target, err := project(payload.Position.Withdraw(withdraw, repay), repay.Neg())
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	d, err := validation.ValidateBorrowish(validation.BorrowishArgs{
		Position:           payload.Position,
		Target:             target,
		WithdrawCollateral: withdraw,
		PaybackAmount:      repay,
	})
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	priceWad, err := utils.AmountToWei(utils.OrZero(payload.Position.Pool.LowestUtilizedPrice), utils.ProtocolPrecision)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	op, err := deps.Builder.AjnaAdjustRiskDown(operations.AjnaAdjustDownArgs{
		Collateral:     payload.CollateralToken,
		Debt:           payload.QuoteToken,
		WithdrawAmount: withdrawWei,
		Swap:           sellStep(deps, withdrawWei, swapData),
		Flashloan:      deps.flashloan(payload.QuoteToken, repayWei),
		Proxy:          payload.Proxy,
		Addresses:      deps.addresses(payload.Position.Pool.PoolAddress),
		Price:          priceWad,
	})
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	return dmaPayload(deps, op, target, d, "0", types.Swap{
		SwapData:       swapData,
		CollectFeeFrom: types.CollectFeeFromTargetToken,
		Fee:            swapFee,
	})
}

// MultiplyClose repays all debt and withdraws all collateral, paid out in the quote token or
// in whatever collateral is left after the debt is covered.
func MultiplyClose(ctx context.Context, deps MultiplyDependencies, payload MultiplyPayload) (types.Strategy[types.BorrowPosition], error) {
	payload.Position = normalized(payload.Position)
	if err := deps.check(); err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	if !utils.OrZero(payload.Position.CollateralAmount).IsPositive() {
		return types.Strategy[types.BorrowPosition]{}, ErrNoPosition
	}
	m, err := deps.newMath(payload)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	var sell sdkmath.LegacyDec
	switch payload.CloseTo {
	case CloseToQuote, "":
		sell = m.collateral
	case CloseToCollateral:
		sell = m.sellToRepay(m.debt)
		if sell.GT(m.collateral) {
			return types.Strategy[types.BorrowPosition]{}, fmt.Errorf("%w: collateral does not cover the debt", ErrInsufficientSwapOutput)
		}
	default:
		return types.Strategy[types.BorrowPosition]{}, fmt.Errorf("%w: close to %q", ErrInvalidAmount, payload.CloseTo)
	}

	debtWei, err := utils.AmountToWei(m.debt, payload.QuoteToken.Precision)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	sellWei, err := utils.AmountToWei(sell, payload.CollateralToken.Precision)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	swapData, swapFee, err := sellCollateral(ctx, deps, payload, sellWei, debtWei, m.slippage)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	target, err := project(payload.Position.Withdraw(m.collateral, m.debt), m.debt.Neg())
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	d, err := validation.ValidateBorrowish(validation.BorrowishArgs{
		Position:           payload.Position,
		Target:             target,
		WithdrawCollateral: m.collateral,
		PaybackAmount:      m.debt,
	})
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	priceWad, err := utils.AmountToWei(utils.OrZero(payload.Position.Pool.LowestUtilizedPrice), utils.ProtocolPrecision)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	args := operations.AjnaCloseArgs{
		Collateral: payload.CollateralToken,
		Debt:       payload.QuoteToken,
		Swap:       sellStep(deps, sellWei, swapData),
		Flashloan:  deps.flashloan(payload.QuoteToken, debtWei),
		Proxy:      payload.Proxy,
		Addresses:  deps.addresses(payload.Position.Pool.PoolAddress),
		Price:      priceWad,
	}
	var op types.Operation
	if payload.CloseTo == CloseToCollateral {
		op, err = deps.Builder.AjnaCloseToCollateral(args)
	} else {
		op, err = deps.Builder.AjnaCloseToQuote(args)
	}
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	return dmaPayload(deps, op, target, d, "0", types.Swap{
		SwapData:       swapData,
		CollectFeeFrom: types.CollectFeeFromTargetToken,
		Fee:            swapFee,
	})
}

// sellToRepay is the collateral that, sold with the fee taken from the output and the slippage
// allowance, buys quote worth of the quote token.
func (m multiplyMath) sellToRepay(quote sdkmath.LegacyDec) sdkmath.LegacyDec {
	one := sdkmath.LegacyOneDec()
	return quote.Mul(m.quotePrice).Quo(m.collateralPrice.Mul(one.Sub(m.fee)).Mul(one.Sub(m.slippage)))
}

// sellCollateral quotes a collateral sale and checks its worst case still repays the flashloan.
func sellCollateral(ctx context.Context, deps MultiplyDependencies, payload MultiplyPayload, amount, repay sdkmath.Int, slippage sdkmath.LegacyDec) (types.SwapData, sdkmath.Int, error) {
	swapData, err := fetchSwap(ctx, deps, payload.CollateralToken, payload.QuoteToken, amount, slippage)
	if err != nil {
		return types.SwapData{}, sdkmath.Int{}, err
	}
	fee := tokenFee(sdkmath.ZeroInt(), calculateFee(swapData.ToTokenAmount, deps.Params.DefaultSwapFee, deps.Params.FeeBase), deps.Params.FeeEstimateInflator)
	minOut := swapData.MinToTokenAmount.Sub(calculateFee(swapData.MinToTokenAmount, deps.Params.DefaultSwapFee, deps.Params.FeeBase))
	if minOut.LT(deps.Builder.FlashloanRepayment(repay)) {
		return types.SwapData{}, sdkmath.Int{}, fmt.Errorf("%w: receives at least %s, owes %s", ErrInsufficientSwapOutput, minOut, repay)
	}
	return swapData, fee, nil
}

func sellStep(deps MultiplyDependencies, amount sdkmath.Int, swapData types.SwapData) operations.SwapStep {
	return operations.SwapStep{
		Amount:         amount,
		ReceiveAtLeast: swapData.MinToTokenAmount,
		Fee:            deps.Params.DefaultSwapFee,
		Data:           swapData.ExchangeCalldata,
		CollectFeeFrom: types.CollectFeeFromTargetToken,
	}
}

// fetchSwap asks the aggregator for a quote and rejects one that does not match the request.
func fetchSwap(ctx context.Context, deps MultiplyDependencies, from, to types.Token, amount sdkmath.Int, slippage sdkmath.LegacyDec) (types.SwapData, error) {
	if !amount.IsPositive() {
		return types.SwapData{}, fmt.Errorf("%w: swap amount %s", ErrInvalidAmount, amount)
	}
	swapData, err := deps.SwapFetcher.GetSwapData(ctx, from.Address, to.Address, amount, slippage)
	if err != nil {
		return types.SwapData{}, errAbort("swap quote", errors.Join(ErrSwapDataUnavailable, err))
	}
	if swapData.ToTokenAmount.IsNil() || swapData.MinToTokenAmount.IsNil() || !swapData.ToTokenAmount.IsPositive() {
		return types.SwapData{}, errAbort("swap quote", fmt.Errorf("%w: quote has no output", ErrSwapDataUnavailable))
	}
	if swapData.FromTokenAddress != from.Address || swapData.ToTokenAddress != to.Address {
		return types.SwapData{}, errAbort("swap quote", fmt.Errorf("%w: quote is for %s -> %s",
			ErrSwapDataUnavailable, swapData.FromTokenAddress.Hex(), swapData.ToTokenAddress.Hex()))
	}
	if swapData.FromTokenAmount.IsNil() {
		swapData.FromTokenAmount = amount
	}

	strategiesLogger.Debug().
		Str("from", from.Symbol).
		Str("to", to.Symbol).
		Str("amount", amount.String()).
		Str("toAmount", swapData.ToTokenAmount.String()).
		Msg("Swap quoted")
	return swapData, nil
}

func (d MultiplyDependencies) flashloan(token types.Token, amount sdkmath.Int) types.Flashloan {
	return types.Flashloan{Token: token, Amount: amount, Provider: d.Params.FlashloanProvider}
}

func (d MultiplyDependencies) addresses(pool common.Address) operations.AjnaAddresses {
	return operations.AjnaAddresses{Pool: pool, OperationExecutor: d.OperationExecutor}
}

func dmaPayload(deps MultiplyDependencies, op types.Operation, target types.BorrowPosition, d types.Diagnostics, txValue string, swap types.Swap) (types.Strategy[types.BorrowPosition], error) {
	data, err := operations.EncodeExecuteOp(op)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	strategiesLogger.Debug().
		Str("operation", op.Name).
		Str("calldata", hexutil.Encode(data[:4])).
		Int("errors", len(d.Errors)).
		Msg("Multiply strategy assembled")
	return PrepareAjnaDMAPayload(deps.Dependencies, target, d, data, txValue, []types.Swap{swap}), nil
}

// calculateFee is amount·fee/feeBase rounded down.
func calculateFee(amount sdkmath.Int, fee, feeBase int64) sdkmath.Int {
	if feeBase <= 0 || amount.IsNil() {
		return sdkmath.ZeroInt()
	}
	return amount.MulRaw(fee).QuoRaw(feeBase)
}

// tokenFee adds a fee taken before the swap to one estimated on its output. The output fee
// depends on the executed amount, so it is inflated.
func tokenFee(preSwapFee, postSwapFee sdkmath.Int, inflator sdkmath.LegacyDec) sdkmath.Int {
	inflated := sdkmath.LegacyNewDecFromInt(postSwapFee).Mul(sdkmath.LegacyOneDec().Add(utils.OrZero(inflator))).TruncateInt()
	return preSwapFee.Add(inflated)
}
