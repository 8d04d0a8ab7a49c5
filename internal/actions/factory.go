/*

This file contains the action factory. It resolves an action key to its service registry name
through the network's operation registry, encodes the argument tuple and wraps it in
execute(bytes,uint8[]) calldata. Calls come back unskipped: operation builders set the flag.

*/

package actions

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/dma-labs/ajna-dma/internal/config"
	"github.com/dma-labs/ajna-dma/internal/logger"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

var actionsLogger = logger.GetForComponent("action_factory")

// Error definitions for zero-tolerance error handling
var (
	ErrNilRegistry    = errors.New("action factory needs an operation registry")
	ErrAmountMissing  = errors.New("action amount is missing")
	ErrNegativeAmount = errors.New("action amount cannot be negative")
	ErrAmountOverflow = errors.New("action amount does not fit in uint256")
	ErrParamsMap      = errors.New("params map length does not match the action arguments")
	ErrEncoding       = errors.New("failed to encode action calldata")
	ErrNotExecuteCall = errors.New("calldata is not an execute(bytes,uint8[]) call")
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Factory builds action calls for one network.
type Factory struct {
	registry *config.Registry
}

func NewFactory(registry *config.Registry) (*Factory, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	return &Factory{registry: registry}, nil
}

// Registry returns the registry the factory resolves actions with.
func (f *Factory) Registry() *config.Registry {
	return f.registry
}

func (f *Factory) PullToken(args PullTokenArgs) (types.ActionCall, error) {
	if err := checkAmounts(args.Amount); err != nil {
		return types.ActionCall{}, fmt.Errorf("pull token: %w", err)
	}
	return f.create(config.ActionPullToken, pullTokenTuple, args, nil)
}

// SetApproval takes an optional params map, e.g. to approve an amount stored by a swap.
func (f *Factory) SetApproval(args SetApprovalArgs, paramsMap ...uint8) (types.ActionCall, error) {
	if err := checkAmounts(args.Amount); err != nil {
		return types.ActionCall{}, fmt.Errorf("set approval: %w", err)
	}
	return f.create(config.ActionSetApproval, setApprovalTuple, args, paramsMap)
}

func (f *Factory) Swap(args SwapArgs) (types.ActionCall, error) {
	if err := checkAmounts(args.Amount, args.ReceiveAtLeast, args.Fee); err != nil {
		return types.ActionCall{}, fmt.Errorf("swap: %w", err)
	}
	if args.WithData == nil {
		args.WithData = []byte{}
	}
	return f.create(config.ActionSwap, swapTuple, args, nil)
}

func (f *Factory) SendToken(args SendTokenArgs) (types.ActionCall, error) {
	if err := checkAmounts(args.Amount); err != nil {
		return types.ActionCall{}, fmt.Errorf("send token: %w", err)
	}
	return f.create(config.ActionSendToken, sendTokenTuple, args, nil)
}

func (f *Factory) WrapEth(args AmountArgs) (types.ActionCall, error) {
	if err := checkAmounts(args.Amount); err != nil {
		return types.ActionCall{}, fmt.Errorf("wrap eth: %w", err)
	}
	return f.create(config.ActionWrapEth, amountTuple, args, nil)
}

func (f *Factory) UnwrapEth(args AmountArgs) (types.ActionCall, error) {
	if err := checkAmounts(args.Amount); err != nil {
		return types.ActionCall{}, fmt.Errorf("unwrap eth: %w", err)
	}
	return f.create(config.ActionUnwrapEth, amountTuple, args, nil)
}

func (f *Factory) ReturnFunds(args ReturnFundsArgs) (types.ActionCall, error) {
	return f.create(config.ActionReturnFunds, returnFundsTuple, args, nil)
}

func (f *Factory) PositionCreated(args PositionCreatedArgs) (types.ActionCall, error) {
	return f.create(config.ActionPositionCreated, positionTuple, args, nil)
}

// TakeFlashloan nests calls into the flashloan payload. The returned call keeps them in Inner.
func (f *Factory) TakeFlashloan(args TakeFlashloanArgs, calls []types.ActionCall) (types.ActionCall, error) {
	if err := checkAmounts(args.Amount); err != nil {
		return types.ActionCall{}, fmt.Errorf("take flashloan: %w", err)
	}

	args.Calls = make([]Call, 0, len(calls))
	for _, c := range calls {
		if c.Inner != nil {
			return types.ActionCall{}, errors.Join(ErrEncoding, errors.New("flashloans cannot be nested"))
		}
		callData := c.CallData
		if callData == nil {
			callData = []byte{}
		}
		args.Calls = append(args.Calls, Call{TargetHash: c.TargetHash, CallData: callData, Skipped: c.Skipped})
	}

	call, err := f.create(config.ActionTakeFlashloan, takeFlashloanTuple, args, nil)
	if err != nil {
		return types.ActionCall{}, err
	}
	call.Inner = append([]types.ActionCall{}, calls...)

	actionsLogger.Debug().
		Int("innerCalls", len(calls)).
		Str("amount", args.Amount.String()).
		Uint8("provider", args.Provider).
		Msg("Encoded flashloan")

	return call, nil
}

func (f *Factory) AaveV3Payback(args AaveV3PaybackArgs) (types.ActionCall, error) {
	if err := checkAmounts(args.Amount); err != nil {
		return types.ActionCall{}, fmt.Errorf("aave v3 payback: %w", err)
	}
	return f.create(config.ActionAaveV3Payback, aaveV3PaybackTuple, args, nil)
}

func (f *Factory) AaveV3Withdraw(args AaveV3WithdrawArgs) (types.ActionCall, error) {
	if err := checkAmounts(args.Amount); err != nil {
		return types.ActionCall{}, fmt.Errorf("aave v3 withdraw: %w", err)
	}
	return f.create(config.ActionAaveV3Withdraw, aaveV3WithdrawTuple, args, nil)
}

// AjnaDepositBorrow takes an optional params map, e.g. to add a swap output to the deposit.
func (f *Factory) AjnaDepositBorrow(args AjnaDepositBorrowArgs, paramsMap ...uint8) (types.ActionCall, error) {
	if err := checkAmounts(args.DepositAmount, args.BorrowAmount, args.Price); err != nil {
		return types.ActionCall{}, fmt.Errorf("ajna deposit borrow: %w", err)
	}
	return f.create(config.ActionAjnaDepositBorrow, ajnaDepositBorrowTuple, args, paramsMap)
}

func (f *Factory) AjnaRepayWithdraw(args AjnaRepayWithdrawArgs) (types.ActionCall, error) {
	if err := checkAmounts(args.WithdrawAmount, args.RepayAmount, args.Price); err != nil {
		return types.ActionCall{}, fmt.Errorf("ajna repay withdraw: %w", err)
	}
	return f.create(config.ActionAjnaRepayWithdraw, ajnaRepayWithdrawTuple, args, nil)
}

func (f *Factory) create(action string, layout abi.Arguments, args any, paramsMap []uint8) (types.ActionCall, error) {
	name, err := f.registry.ServiceName(action)
	if err != nil {
		return types.ActionCall{}, err
	}

	fields := len(layout[0].Type.TupleElems)
	if len(paramsMap) == 0 {
		paramsMap = make([]uint8, fields)
	} else if len(paramsMap) != fields {
		return types.ActionCall{}, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrParamsMap, action, fields, len(paramsMap))
	}

	data, err := layout.Pack(args)
	if err != nil {
		return types.ActionCall{}, errors.Join(ErrEncoding, fmt.Errorf("%s: %w", action, err))
	}
	packed, err := executeArguments.Pack(data, paramsMap)
	if err != nil {
		return types.ActionCall{}, errors.Join(ErrEncoding, fmt.Errorf("%s execute: %w", action, err))
	}

	callData := make([]byte, 0, len(executeSelector)+len(packed))
	callData = append(callData, executeSelector...)
	callData = append(callData, packed...)

	return types.ActionCall{TargetHash: config.ActionHash(name), CallData: callData}, nil
}

func checkAmounts(amounts ...*big.Int) error {
	for _, a := range amounts {
		switch {
		case a == nil:
			return ErrAmountMissing
		case a.Sign() < 0:
			return fmt.Errorf("%w: %s", ErrNegativeAmount, a)
		case a.Cmp(maxUint256) > 0:
			return fmt.Errorf("%w: %s", ErrAmountOverflow, a)
		}
	}
	return nil
}
