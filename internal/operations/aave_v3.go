package operations

import (
	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/actions"
	"github.com/dma-labs/ajna-dma/internal/config"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// AaveV3PaybackWithdrawArgs pays back debt and withdraws collateral in one transaction.
// Either amount may be zero; the steps of that side are then skipped.
type AaveV3PaybackWithdrawArgs struct {
	CollateralAmount sdkmath.Int    `json:"collateral_amount"` // Base units to withdraw
	DebtAmount       sdkmath.Int    `json:"debt_amount"`       // Base units to pay back
	IsPaybackAll     bool           `json:"is_payback_all"`
	Collateral       types.Token    `json:"collateral"`
	Debt             types.Token    `json:"debt"`
	Proxy            common.Address `json:"proxy"`
	User             common.Address `json:"user"`
	LendingPool      common.Address `json:"lending_pool"`
}

// AaveV3PaybackWithdraw builds the nine step payback-and-withdraw plan.
func (b *Builder) AaveV3PaybackWithdraw(args AaveV3PaybackWithdrawArgs) (types.Operation, error) {
	debtAmount, err := bigOf("debt amount", args.DebtAmount)
	if err != nil {
		return types.Operation{}, err
	}
	collateralAmount, err := bigOf("collateral amount", args.CollateralAmount)
	if err != nil {
		return types.Operation{}, err
	}
	if args.LendingPool == (common.Address{}) {
		return types.Operation{}, ErrMissingAddress
	}

	noDebt := debtAmount.Sign() <= 0
	noCollateral := collateralAmount.Sign() <= 0

	pullDebt, err := b.factory.PullToken(actions.PullTokenArgs{
		Asset:  args.Debt.Address,
		From:   args.User,
		Amount: debtAmount,
	})
	if err != nil {
		return types.Operation{}, err
	}
	pullDebt.Skipped = noDebt || args.Debt.IsEth

	approveDebt, err := b.factory.SetApproval(actions.SetApprovalArgs{
		Asset:    args.Debt.Address,
		Delegate: args.LendingPool,
		Amount:   debtAmount,
	})
	if err != nil {
		return types.Operation{}, err
	}
	approveDebt.Skipped = noDebt

	wrapEth, err := b.factory.WrapEth(actions.AmountArgs{Amount: debtAmount})
	if err != nil {
		return types.Operation{}, err
	}
	wrapEth.Skipped = noDebt || !args.Debt.IsEth

	payback, err := b.factory.AaveV3Payback(actions.AaveV3PaybackArgs{
		Asset:      args.Debt.Address,
		Amount:     debtAmount,
		PaybackAll: args.IsPaybackAll,
	})
	if err != nil {
		return types.Operation{}, err
	}
	payback.Skipped = noDebt

	unwrapDebt, err := b.factory.UnwrapEth(actions.AmountArgs{Amount: b.maxUint()})
	if err != nil {
		return types.Operation{}, err
	}
	unwrapDebt.Skipped = noDebt || !args.Debt.IsEth

	returnDebt, err := b.factory.ReturnFunds(actions.ReturnFundsArgs{Asset: args.Debt.ReturnAddress()})
	if err != nil {
		return types.Operation{}, err
	}
	returnDebt.Skipped = noDebt

	withdraw, err := b.factory.AaveV3Withdraw(actions.AaveV3WithdrawArgs{
		Asset:  args.Collateral.Address,
		Amount: collateralAmount,
		To:     args.Proxy,
	})
	if err != nil {
		return types.Operation{}, err
	}
	withdraw.Skipped = noCollateral

	unwrapCollateral, err := b.factory.UnwrapEth(actions.AmountArgs{Amount: b.maxUint()})
	if err != nil {
		return types.Operation{}, err
	}
	unwrapCollateral.Skipped = noCollateral || !args.Collateral.IsEth

	returnCollateral, err := b.factory.ReturnFunds(actions.ReturnFundsArgs{Asset: args.Collateral.ReturnAddress()})
	if err != nil {
		return types.Operation{}, err
	}
	returnCollateral.Skipped = noCollateral

	return b.finalize(config.OperationAaveV3PaybackWithdraw, []types.ActionCall{
		pullDebt,
		approveDebt,
		wrapEth,
		payback,
		unwrapDebt,
		returnDebt,
		withdraw,
		unwrapCollateral,
		returnCollateral,
	})
}
