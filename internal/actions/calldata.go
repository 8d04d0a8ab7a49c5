/*

This file contains the calldata layouts of the DMA actions.

Every action is called through execute(bytes data, uint8[] paramsMap): data is the ABI encoding of
the action's argument tuple, paramsMap tells the executor which arguments to replace with values
stored by earlier actions of the same operation (0 keeps the encoded value, n reads slot n).

*/

package actions

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PullTokenArgs moves tokens from a user into the proxy.
type PullTokenArgs struct {
	Asset  common.Address
	From   common.Address
	Amount *big.Int
}

// SetApprovalArgs approves delegate to spend the proxy's asset.
type SetApprovalArgs struct {
	Asset      common.Address
	Delegate   common.Address
	Amount     *big.Int
	SumAmounts bool
}

type SwapArgs struct {
	FromAsset             common.Address
	ToAsset               common.Address
	Amount                *big.Int
	ReceiveAtLeast        *big.Int
	Fee                   *big.Int
	WithData              []byte
	CollectFeeInFromToken bool
}

type SendTokenArgs struct {
	Asset  common.Address
	To     common.Address
	Amount *big.Int
}

// AmountArgs is the single-amount layout of wrapEth and unwrapEth.
type AmountArgs struct {
	Amount *big.Int
}

type ReturnFundsArgs struct {
	Asset common.Address
}

type PositionCreatedArgs struct {
	Protocol        string
	PositionType    string
	CollateralToken common.Address
	DebtToken       common.Address
}

// Call is the (targetHash, callData, skipped) layout of a call inside a flashloan or executeOp.
type Call struct {
	TargetHash common.Hash
	CallData   []byte
	Skipped    bool
}

type TakeFlashloanArgs struct {
	Amount           *big.Int
	Asset            common.Address
	IsProxyFlashloan bool
	IsDPMProxy       bool
	Provider         uint8
	Calls            []Call
}

type AaveV3PaybackArgs struct {
	Asset      common.Address
	Amount     *big.Int
	PaybackAll bool
}

type AaveV3WithdrawArgs struct {
	Asset  common.Address
	Amount *big.Int
	To     common.Address
}

// AjnaDepositBorrowArgs deposits collateral and draws quote token. Price is the WAD bucket price.
type AjnaDepositBorrowArgs struct {
	QuoteToken        common.Address
	CollateralToken   common.Address
	DepositAmount     *big.Int
	BorrowAmount      *big.Int
	SumDepositAmounts bool
	Price             *big.Int
}

type AjnaRepayWithdrawArgs struct {
	QuoteToken      common.Address
	CollateralToken common.Address
	WithdrawAmount  *big.Int
	RepayAmount     *big.Int
	PaybackAll      bool
	WithdrawAll     bool
	Price           *big.Int
}

var (
	executeSelector = crypto.Keccak256([]byte("execute(bytes,uint8[])"))[:4]

	executeArguments = abi.Arguments{
		{Name: "data", Type: mustType("bytes", nil)},
		{Name: "paramsMap", Type: mustType("uint8[]", nil)},
	}

	callComponents = []abi.ArgumentMarshaling{
		{Name: "targetHash", Type: "bytes32"},
		{Name: "callData", Type: "bytes"},
		{Name: "skipped", Type: "bool"},
	}

	pullTokenTuple = tuple(
		component("asset", "address"),
		component("from", "address"),
		component("amount", "uint256"),
	)
	setApprovalTuple = tuple(
		component("asset", "address"),
		component("delegate", "address"),
		component("amount", "uint256"),
		component("sumAmounts", "bool"),
	)
	swapTuple = tuple(
		component("fromAsset", "address"),
		component("toAsset", "address"),
		component("amount", "uint256"),
		component("receiveAtLeast", "uint256"),
		component("fee", "uint256"),
		component("withData", "bytes"),
		component("collectFeeInFromToken", "bool"),
	)
	sendTokenTuple = tuple(
		component("asset", "address"),
		component("to", "address"),
		component("amount", "uint256"),
	)
	amountTuple      = tuple(component("amount", "uint256"))
	returnFundsTuple = tuple(component("asset", "address"))
	positionTuple    = tuple(
		component("protocol", "string"),
		component("positionType", "string"),
		component("collateralToken", "address"),
		component("debtToken", "address"),
	)
	takeFlashloanTuple = tuple(
		component("amount", "uint256"),
		component("asset", "address"),
		component("isProxyFlashloan", "bool"),
		component("isDPMProxy", "bool"),
		component("provider", "uint8"),
		abi.ArgumentMarshaling{Name: "calls", Type: "tuple[]", Components: callComponents},
	)
	aaveV3PaybackTuple = tuple(
		component("asset", "address"),
		component("amount", "uint256"),
		component("paybackAll", "bool"),
	)
	aaveV3WithdrawTuple = tuple(
		component("asset", "address"),
		component("amount", "uint256"),
		component("to", "address"),
	)
	ajnaDepositBorrowTuple = tuple(
		component("quoteToken", "address"),
		component("collateralToken", "address"),
		component("depositAmount", "uint256"),
		component("borrowAmount", "uint256"),
		component("sumDepositAmounts", "bool"),
		component("price", "uint256"),
	)
	ajnaRepayWithdrawTuple = tuple(
		component("quoteToken", "address"),
		component("collateralToken", "address"),
		component("withdrawAmount", "uint256"),
		component("repayAmount", "uint256"),
		component("paybackAll", "bool"),
		component("withdrawAll", "bool"),
		component("price", "uint256"),
	)
)

func component(name, typ string) abi.ArgumentMarshaling {
	return abi.ArgumentMarshaling{Name: name, Type: typ}
}

func tuple(components ...abi.ArgumentMarshaling) abi.Arguments {
	return abi.Arguments{{Type: mustType("tuple", components)}}
}

// mustType panics on a malformed layout, which can only be a typo in this file.
func mustType(typ string, components []abi.ArgumentMarshaling) abi.Type {
	t, err := abi.NewType(typ, "", components)
	if err != nil {
		panic(err)
	}
	return t
}

// CallComponents returns the (targetHash, callData, skipped) tuple layout shared with the executor.
func CallComponents() []abi.ArgumentMarshaling {
	out := make([]abi.ArgumentMarshaling, len(callComponents))
	copy(out, callComponents)
	return out
}

// DecodeExecute splits execute(bytes,uint8[]) calldata into the argument tuple bytes and the params map.
func DecodeExecute(callData []byte) ([]byte, []uint8, error) {
	if len(callData) < len(executeSelector) || string(callData[:len(executeSelector)]) != string(executeSelector) {
		return nil, nil, ErrNotExecuteCall
	}
	values, err := executeArguments.Unpack(callData[len(executeSelector):])
	if err != nil {
		return nil, nil, err
	}
	return values[0].([]byte), values[1].([]uint8), nil
}

// DecodeCall decodes execute calldata into one of the argument structs of this package.
func DecodeCall(callData []byte, out any) error {
	layout, err := layoutOf(out)
	if err != nil {
		return err
	}
	data, _, err := DecodeExecute(callData)
	if err != nil {
		return err
	}
	values, err := layout.Unpack(data)
	if err != nil {
		return errors.Join(ErrEncoding, err)
	}
	abi.ConvertType(values[0], out)
	return nil
}

func layoutOf(out any) (abi.Arguments, error) {
	switch out.(type) {
	case *PullTokenArgs:
		return pullTokenTuple, nil
	case *SetApprovalArgs:
		return setApprovalTuple, nil
	case *SwapArgs:
		return swapTuple, nil
	case *SendTokenArgs:
		return sendTokenTuple, nil
	case *AmountArgs:
		return amountTuple, nil
	case *ReturnFundsArgs:
		return returnFundsTuple, nil
	case *PositionCreatedArgs:
		return positionTuple, nil
	case *TakeFlashloanArgs:
		return takeFlashloanTuple, nil
	case *AaveV3PaybackArgs:
		return aaveV3PaybackTuple, nil
	case *AaveV3WithdrawArgs:
		return aaveV3WithdrawTuple, nil
	case *AjnaDepositBorrowArgs:
		return ajnaDepositBorrowTuple, nil
	case *AjnaRepayWithdrawArgs:
		return ajnaRepayWithdrawTuple, nil
	default:
		return nil, fmt.Errorf("%w: no calldata layout for %T", ErrEncoding, out)
	}
}
