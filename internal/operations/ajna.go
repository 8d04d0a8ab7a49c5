/*

This file contains the Ajna multiply operations. Each of them borrows the quote token in a
flashloan, does the pool work and the swap inside it, and repays the loan before the flashloan
returns. Open and adjust-up swap quote for collateral; adjust-down and close swap the other way.

*/

package operations

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/actions"
	"github.com/dma-labs/ajna-dma/internal/config"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// Storage slot of the swap output inside the flashloan, read by the calls that consume it.
const swapOutputSlot = 3

// AjnaMultiplyArgs opens or levers up a position: the owner's deposit plus the swap output is
// deposited as collateral and the flashloan is repaid by borrowing against it.
type AjnaMultiplyArgs struct {
	Collateral    types.Token     `json:"collateral"`
	Debt          types.Token     `json:"debt"`
	DepositAmount sdkmath.Int     `json:"deposit_amount"` // Collateral added by the owner, base units
	Swap          SwapStep        `json:"swap"`
	Flashloan     types.Flashloan `json:"flashloan"`
	Proxy         Proxy           `json:"proxy"`
	Addresses     AjnaAddresses   `json:"addresses"`
	Price         sdkmath.Int     `json:"price"` // WAD price of the bucket the collateral is added at
}

// AjnaAdjustDownArgs delevers a position: the flashloan repays debt, collateral is withdrawn and
// sold to repay the flashloan.
type AjnaAdjustDownArgs struct {
	Collateral     types.Token     `json:"collateral"`
	Debt           types.Token     `json:"debt"`
	WithdrawAmount sdkmath.Int     `json:"withdraw_amount"` // Collateral taken out of the pool, base units
	Swap           SwapStep        `json:"swap"`
	Flashloan      types.Flashloan `json:"flashloan"`
	Proxy          Proxy           `json:"proxy"`
	Addresses      AjnaAddresses   `json:"addresses"`
	Price          sdkmath.Int     `json:"price"`
}

// AjnaCloseArgs repays all debt with a flashloan and withdraws all collateral.
type AjnaCloseArgs struct {
	Collateral types.Token     `json:"collateral"`
	Debt       types.Token     `json:"debt"`
	Swap       SwapStep        `json:"swap"`
	Flashloan  types.Flashloan `json:"flashloan"`
	Proxy      Proxy           `json:"proxy"`
	Addresses  AjnaAddresses   `json:"addresses"`
	Price      sdkmath.Int     `json:"price"`
}

func (b *Builder) AjnaOpenMultiply(args AjnaMultiplyArgs) (types.Operation, error) {
	calls, err := b.leverUpCalls(args)
	if err != nil {
		return types.Operation{}, err
	}

	positionCreated, err := b.factory.PositionCreated(actions.PositionCreatedArgs{
		Protocol:        "Ajna",
		PositionType:    "Multiply",
		CollateralToken: args.Collateral.Address,
		DebtToken:       args.Debt.Address,
	})
	if err != nil {
		return types.Operation{}, err
	}

	return b.finalize(config.OperationAjnaOpenMultiply, append(calls, positionCreated))
}

func (b *Builder) AjnaAdjustRiskUp(args AjnaMultiplyArgs) (types.Operation, error) {
	calls, err := b.leverUpCalls(args)
	if err != nil {
		return types.Operation{}, err
	}
	return b.finalize(config.OperationAjnaAdjustRiskUp, calls)
}

// leverUpCalls is pull, wrap and the flashloan shared by open and adjust-up.
func (b *Builder) leverUpCalls(args AjnaMultiplyArgs) ([]types.ActionCall, error) {
	if err := checkPair(args.Collateral, args.Debt, args.Flashloan, args.Addresses); err != nil {
		return nil, err
	}
	deposit, err := bigOf("deposit amount", args.DepositAmount)
	if err != nil {
		return nil, err
	}
	// The borrow covers the flashloan fee too, repayFlashloan sends both back.
	borrowAmount, err := bigOf("borrow amount", b.FlashloanRepayment(args.Flashloan.Amount))
	if err != nil {
		return nil, err
	}
	price, err := bigOf("price", args.Price)
	if err != nil {
		return nil, err
	}
	noDeposit := deposit.Sign() <= 0

	pullCollateral, err := b.factory.PullToken(actions.PullTokenArgs{
		Asset:  args.Collateral.Address,
		From:   args.Proxy.Owner,
		Amount: deposit,
	})
	if err != nil {
		return nil, err
	}
	pullCollateral.Skipped = noDeposit || args.Collateral.IsEth

	wrapEth, err := b.factory.WrapEth(actions.AmountArgs{Amount: deposit})
	if err != nil {
		return nil, err
	}
	wrapEth.Skipped = noDeposit || !args.Collateral.IsEth

	swap, err := b.swap(args.Debt.Address, args.Collateral.Address, args.Swap)
	if err != nil {
		return nil, err
	}

	approveCollateral, err := b.factory.SetApproval(actions.SetApprovalArgs{
		Asset:      args.Collateral.Address,
		Delegate:   args.Addresses.Pool,
		Amount:     deposit,
		SumAmounts: true,
	}, 0, 0, swapOutputSlot, 0)
	if err != nil {
		return nil, err
	}

	depositBorrow, err := b.factory.AjnaDepositBorrow(actions.AjnaDepositBorrowArgs{
		QuoteToken:        args.Debt.Address,
		CollateralToken:   args.Collateral.Address,
		DepositAmount:     deposit,
		BorrowAmount:      borrowAmount,
		SumDepositAmounts: true,
		Price:             price,
	}, 0, 0, swapOutputSlot, 0, 0, 0)
	if err != nil {
		return nil, err
	}

	repay, err := b.repayFlashloan(args.Debt, args.Flashloan, args.Addresses)
	if err != nil {
		return nil, err
	}

	flashloan, err := b.takeFlashloan(args.Debt, args.Flashloan, args.Proxy,
		[]types.ActionCall{swap, approveCollateral, depositBorrow, repay})
	if err != nil {
		return nil, err
	}

	return []types.ActionCall{pullCollateral, wrapEth, flashloan}, nil
}

func (b *Builder) AjnaAdjustRiskDown(args AjnaAdjustDownArgs) (types.Operation, error) {
	if err := checkPair(args.Collateral, args.Debt, args.Flashloan, args.Addresses); err != nil {
		return types.Operation{}, err
	}
	withdraw, err := bigOf("withdraw amount", args.WithdrawAmount)
	if err != nil {
		return types.Operation{}, err
	}
	flashloanAmount, err := bigOf("flashloan amount", args.Flashloan.Amount)
	if err != nil {
		return types.Operation{}, err
	}

	inner, err := b.deleverCalls(args.Collateral, args.Debt, args.Swap, args.Flashloan, args.Addresses, args.Price,
		actions.AjnaRepayWithdrawArgs{WithdrawAmount: withdraw, RepayAmount: flashloanAmount})
	if err != nil {
		return types.Operation{}, err
	}
	flashloan, err := b.takeFlashloan(args.Debt, args.Flashloan, args.Proxy, inner)
	if err != nil {
		return types.Operation{}, err
	}

	returnDebt, err := b.factory.ReturnFunds(actions.ReturnFundsArgs{Asset: args.Debt.ReturnAddress()})
	if err != nil {
		return types.Operation{}, err
	}
	returnCollateral, err := b.factory.ReturnFunds(actions.ReturnFundsArgs{Asset: args.Collateral.ReturnAddress()})
	if err != nil {
		return types.Operation{}, err
	}

	return b.finalize(config.OperationAjnaAdjustRiskDown, []types.ActionCall{flashloan, returnDebt, returnCollateral})
}

// AjnaCloseToQuote sells all collateral and returns the remaining quote token.
func (b *Builder) AjnaCloseToQuote(args AjnaCloseArgs) (types.Operation, error) {
	flashloan, err := b.closeFlashloan(args)
	if err != nil {
		return types.Operation{}, err
	}

	returnDebt, err := b.factory.ReturnFunds(actions.ReturnFundsArgs{Asset: args.Debt.ReturnAddress()})
	if err != nil {
		return types.Operation{}, err
	}

	return b.finalize(config.OperationAjnaCloseToQuote, []types.ActionCall{flashloan, returnDebt})
}

// AjnaCloseToCollateral sells only the collateral needed to repay the flashloan and returns the rest.
func (b *Builder) AjnaCloseToCollateral(args AjnaCloseArgs) (types.Operation, error) {
	flashloan, err := b.closeFlashloan(args)
	if err != nil {
		return types.Operation{}, err
	}

	returnDebt, err := b.factory.ReturnFunds(actions.ReturnFundsArgs{Asset: args.Debt.ReturnAddress()})
	if err != nil {
		return types.Operation{}, err
	}
	returnCollateral, err := b.factory.ReturnFunds(actions.ReturnFundsArgs{Asset: args.Collateral.ReturnAddress()})
	if err != nil {
		return types.Operation{}, err
	}

	return b.finalize(config.OperationAjnaCloseToCollateral, []types.ActionCall{flashloan, returnDebt, returnCollateral})
}

func (b *Builder) closeFlashloan(args AjnaCloseArgs) (types.ActionCall, error) {
	if err := checkPair(args.Collateral, args.Debt, args.Flashloan, args.Addresses); err != nil {
		return types.ActionCall{}, err
	}

	zero := sdkmath.ZeroInt().BigInt()
	inner, err := b.deleverCalls(args.Collateral, args.Debt, args.Swap, args.Flashloan, args.Addresses, args.Price,
		actions.AjnaRepayWithdrawArgs{
			WithdrawAmount: zero,
			RepayAmount:    zero,
			PaybackAll:     true,
			WithdrawAll:    true,
		})
	if err != nil {
		return types.ActionCall{}, err
	}
	return b.takeFlashloan(args.Debt, args.Flashloan, args.Proxy, inner)
}

// deleverCalls is approve, repay-withdraw, swap to quote, flashloan repayment and unwrap.
func (b *Builder) deleverCalls(
	collateral, debt types.Token,
	swapStep SwapStep,
	fl types.Flashloan,
	addresses AjnaAddresses,
	priceAmount sdkmath.Int,
	repayWithdraw actions.AjnaRepayWithdrawArgs,
) ([]types.ActionCall, error) {
	flashloanAmount, err := bigOf("flashloan amount", fl.Amount)
	if err != nil {
		return nil, err
	}
	price, err := bigOf("price", priceAmount)
	if err != nil {
		return nil, err
	}

	approveDebt, err := b.factory.SetApproval(actions.SetApprovalArgs{
		Asset:    debt.Address,
		Delegate: addresses.Pool,
		Amount:   flashloanAmount,
	})
	if err != nil {
		return nil, err
	}

	repayWithdraw.QuoteToken = debt.Address
	repayWithdraw.CollateralToken = collateral.Address
	repayWithdraw.Price = price
	repayWithdrawCall, err := b.factory.AjnaRepayWithdraw(repayWithdraw)
	if err != nil {
		return nil, err
	}

	swap, err := b.swap(collateral.Address, debt.Address, swapStep)
	if err != nil {
		return nil, err
	}

	repay, err := b.repayFlashloan(debt, fl, addresses)
	if err != nil {
		return nil, err
	}

	unwrapEth, err := b.factory.UnwrapEth(actions.AmountArgs{Amount: b.maxUint()})
	if err != nil {
		return nil, err
	}
	unwrapEth.Skipped = !debt.IsEth && !collateral.IsEth

	return []types.ActionCall{approveDebt, repayWithdrawCall, swap, repay, unwrapEth}, nil
}

func (b *Builder) swap(from, to common.Address, step SwapStep) (types.ActionCall, error) {
	amount, err := bigOf("swap amount", step.Amount)
	if err != nil {
		return types.ActionCall{}, err
	}
	receiveAtLeast, err := bigOf("swap receive at least", step.ReceiveAtLeast)
	if err != nil {
		return types.ActionCall{}, err
	}
	if step.Fee < 0 {
		return types.ActionCall{}, fmt.Errorf("%w: swap fee %d", ErrInvalidAmount, step.Fee)
	}

	return b.factory.Swap(actions.SwapArgs{
		FromAsset:             from,
		ToAsset:               to,
		Amount:                amount,
		ReceiveAtLeast:        receiveAtLeast,
		Fee:                   sdkmath.NewInt(step.Fee).BigInt(),
		WithData:              step.Data,
		CollectFeeInFromToken: step.CollectFeeFrom == types.CollectFeeFromSourceToken,
	})
}

// repayFlashloan sends the loan plus fee back to the executor that took it.
func (b *Builder) repayFlashloan(debt types.Token, fl types.Flashloan, addresses AjnaAddresses) (types.ActionCall, error) {
	amount, err := bigOf("flashloan repayment", b.FlashloanRepayment(fl.Amount))
	if err != nil {
		return types.ActionCall{}, err
	}
	return b.factory.SendToken(actions.SendTokenArgs{
		Asset:  debt.Address,
		To:     addresses.OperationExecutor,
		Amount: amount,
	})
}

func (b *Builder) takeFlashloan(debt types.Token, fl types.Flashloan, proxy Proxy, inner []types.ActionCall) (types.ActionCall, error) {
	amount, err := bigOf("flashloan amount", fl.Amount)
	if err != nil {
		return types.ActionCall{}, err
	}
	return b.factory.TakeFlashloan(actions.TakeFlashloanArgs{
		Amount:           amount,
		Asset:            debt.Address,
		IsProxyFlashloan: true,
		IsDPMProxy:       proxy.IsDPMProxy,
		Provider:         uint8(fl.Provider),
	}, inner)
}

func checkPair(collateral, debt types.Token, fl types.Flashloan, addresses AjnaAddresses) error {
	if collateral.Address == (common.Address{}) || debt.Address == (common.Address{}) {
		return fmt.Errorf("%w: collateral and debt token addresses are required", ErrInvalidTokens)
	}
	if collateral.Address == debt.Address {
		return fmt.Errorf("%w: collateral and debt token are the same", ErrInvalidTokens)
	}
	if fl.Token.Address != (common.Address{}) && fl.Token.Address != debt.Address {
		return fmt.Errorf("%w: flashloan must borrow the debt token", ErrInvalidTokens)
	}
	if addresses.Pool == (common.Address{}) || addresses.OperationExecutor == (common.Address{}) {
		return fmt.Errorf("%w: pool and operation executor are required", ErrMissingAddress)
	}
	return nil
}
