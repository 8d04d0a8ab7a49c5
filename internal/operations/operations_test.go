package operations

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/actions"
	"github.com/dma-labs/ajna-dma/internal/config"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	wethToken = types.Token{Symbol: "WETH", Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Precision: 18}
	ethToken  = types.Token{Symbol: "ETH", Address: wethToken.Address, Precision: 18, IsEth: true}
	usdcToken = types.Token{Symbol: "USDC", Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Precision: 6}

	owner       = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	proxyAddr   = common.HexToAddress("0x00000000000000000000000000000000000000ab")
	poolAddr    = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	executor    = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	lendingPool = common.HexToAddress("0x00000000000000000000000000000000000000dd")
)

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	reg, err := config.LoadRegistry("mainnet")
	require.NoError(t, err)
	f, err := actions.NewFactory(reg)
	require.NoError(t, err)
	b, err := NewBuilder(f, config.DefaultProtocolParameters)
	require.NoError(t, err)
	return b
}

func skippedFlags(calls []types.ActionCall) []bool {
	out := make([]bool, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Skipped)
	}
	return out
}

func TestNewBuilderNeedsFactory(t *testing.T) {
	_, err := NewBuilder(nil, config.DefaultProtocolParameters)
	assert.ErrorIs(t, err, ErrNilFactory)
}

func TestAaveV3PaybackWithdrawCollateralOnly(t *testing.T) {
	b := newBuilder(t)

	op, err := b.AaveV3PaybackWithdraw(AaveV3PaybackWithdrawArgs{
		CollateralAmount: sdkmath.NewInt(100),
		DebtAmount:       sdkmath.ZeroInt(),
		Collateral:       wethToken,
		Debt:             usdcToken,
		Proxy:            proxyAddr,
		User:             owner,
		LendingPool:      lendingPool,
	})
	require.NoError(t, err)

	assert.Equal(t, "AAVEV3PaybackWithdraw", op.Name)
	require.Len(t, op.Calls, 9)
	// Debt side skipped, collateral side live except the unwrap of a non-native collateral.
	assert.Equal(t, []bool{true, true, true, true, true, true, false, true, false}, skippedFlags(op.Calls))
	for _, c := range op.Calls {
		assert.True(t, c.Optional)
	}

	var withdraw actions.AaveV3WithdrawArgs
	require.NoError(t, actions.DecodeCall(op.Calls[6].CallData, &withdraw))
	assert.Equal(t, wethToken.Address, withdraw.Asset)
	assert.Equal(t, int64(100), withdraw.Amount.Int64())
	assert.Equal(t, proxyAddr, withdraw.To)
}

func TestAaveV3PaybackWithdrawEthDebt(t *testing.T) {
	b := newBuilder(t)

	op, err := b.AaveV3PaybackWithdraw(AaveV3PaybackWithdrawArgs{
		CollateralAmount: sdkmath.ZeroInt(),
		DebtAmount:       sdkmath.NewInt(5),
		Collateral:       usdcToken,
		Debt:             ethToken,
		Proxy:            proxyAddr,
		User:             owner,
		LendingPool:      lendingPool,
	})
	require.NoError(t, err)
	// ETH debt is wrapped from msg.value instead of pulled.
	assert.Equal(t, []bool{true, false, false, false, false, false, true, true, true}, skippedFlags(op.Calls))

	var ret actions.ReturnFundsArgs
	require.NoError(t, actions.DecodeCall(op.Calls[5].CallData, &ret))
	assert.Equal(t, types.EthAddress, ret.Asset)
}

func TestAaveV3PaybackWithdrawRejectsNegative(t *testing.T) {
	b := newBuilder(t)

	_, err := b.AaveV3PaybackWithdraw(AaveV3PaybackWithdrawArgs{
		CollateralAmount: sdkmath.NewInt(-1),
		DebtAmount:       sdkmath.ZeroInt(),
		LendingPool:      lendingPool,
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func closeArgs(collateral types.Token) AjnaCloseArgs {
	return AjnaCloseArgs{
		Collateral: collateral,
		Debt:       usdcToken,
		Swap: SwapStep{
			Amount:         sdkmath.NewInt(1_000),
			ReceiveAtLeast: sdkmath.NewInt(900),
			Fee:            20,
			Data:           []byte{0x01},
			CollectFeeFrom: types.CollectFeeFromSourceToken,
		},
		Flashloan: types.Flashloan{Token: usdcToken, Amount: sdkmath.NewInt(500), Provider: types.FlashloanProviderBalancer},
		Proxy:     Proxy{Address: proxyAddr, Owner: owner, IsDPMProxy: true},
		Addresses: AjnaAddresses{Pool: poolAddr, OperationExecutor: executor},
		Price:     sdkmath.NewInt(1800).Mul(sdkmath.NewInt(1e18)),
	}
}

func TestAjnaCloseToQuote(t *testing.T) {
	b := newBuilder(t)

	op, err := b.AjnaCloseToQuote(closeArgs(wethToken))
	require.NoError(t, err)
	assert.Equal(t, "AjnaCloseToQuotePosition", op.Name)
	require.Len(t, op.Calls, 2)

	flashloan := op.Calls[0]
	assert.Equal(t, config.ActionHash("TakeFlashloan_3"), flashloan.TargetHash)
	require.Len(t, flashloan.Inner, 5)
	assert.True(t, flashloan.Inner[4].Skipped, "unwrap is skipped without ETH on either side")
	assert.True(t, flashloan.Inner[4].Optional)

	var fl actions.TakeFlashloanArgs
	require.NoError(t, actions.DecodeCall(flashloan.CallData, &fl))
	assert.True(t, fl.IsProxyFlashloan)
	assert.True(t, fl.IsDPMProxy)
	assert.Equal(t, uint8(types.FlashloanProviderBalancer), fl.Provider)
	assert.Equal(t, usdcToken.Address, fl.Asset)
	require.Len(t, fl.Calls, 5)

	var repay actions.AjnaRepayWithdrawArgs
	require.NoError(t, actions.DecodeCall(fl.Calls[1].CallData, &repay))
	assert.True(t, repay.PaybackAll)
	assert.True(t, repay.WithdrawAll)
	assert.Zero(t, repay.RepayAmount.Sign())

	var swap actions.SwapArgs
	require.NoError(t, actions.DecodeCall(fl.Calls[2].CallData, &swap))
	assert.Equal(t, wethToken.Address, swap.FromAsset)
	assert.Equal(t, usdcToken.Address, swap.ToAsset)
	assert.True(t, swap.CollectFeeInFromToken)

	var send actions.SendTokenArgs
	require.NoError(t, actions.DecodeCall(fl.Calls[3].CallData, &send))
	assert.Equal(t, executor, send.To)
	assert.Equal(t, int64(500), send.Amount.Int64())
}

func TestAjnaCloseToQuoteWithEthCollateralUnwraps(t *testing.T) {
	b := newBuilder(t)

	op, err := b.AjnaCloseToQuote(closeArgs(ethToken))
	require.NoError(t, err)
	assert.False(t, op.Calls[0].Inner[4].Skipped)
}

func TestAjnaCloseToCollateralReturnsBothTokens(t *testing.T) {
	b := newBuilder(t)

	op, err := b.AjnaCloseToCollateral(closeArgs(ethToken))
	require.NoError(t, err)
	assert.Equal(t, "AjnaCloseToCollateralPosition", op.Name)
	require.Len(t, op.Calls, 3)

	var ret actions.ReturnFundsArgs
	require.NoError(t, actions.DecodeCall(op.Calls[2].CallData, &ret))
	assert.Equal(t, types.EthAddress, ret.Asset)
}

func multiplyArgs(deposit int64) AjnaMultiplyArgs {
	return AjnaMultiplyArgs{
		Collateral:    wethToken,
		Debt:          usdcToken,
		DepositAmount: sdkmath.NewInt(deposit),
		Swap: SwapStep{
			Amount:         sdkmath.NewInt(2_000),
			ReceiveAtLeast: sdkmath.NewInt(1),
			Fee:            20,
			CollectFeeFrom: types.CollectFeeFromTargetToken,
		},
		Flashloan: types.Flashloan{Token: usdcToken, Amount: sdkmath.NewInt(2_000), Provider: types.FlashloanProviderBalancer},
		Proxy:     Proxy{Address: proxyAddr, Owner: owner},
		Addresses: AjnaAddresses{Pool: poolAddr, OperationExecutor: executor},
		Price:     sdkmath.NewInt(1e18),
	}
}

func TestAjnaOpenMultiply(t *testing.T) {
	b := newBuilder(t)

	op, err := b.AjnaOpenMultiply(multiplyArgs(10))
	require.NoError(t, err)
	assert.Equal(t, "AjnaOpenMultiplyPosition", op.Name)
	require.Len(t, op.Calls, 4)
	assert.Equal(t, []bool{false, true, false, false}, skippedFlags(op.Calls))
	require.Len(t, op.Calls[2].Inner, 4)

	var deposit actions.AjnaDepositBorrowArgs
	require.NoError(t, actions.DecodeCall(op.Calls[2].Inner[2].CallData, &deposit))
	assert.True(t, deposit.SumDepositAmounts)
	assert.Equal(t, int64(2_000), deposit.BorrowAmount.Int64())

	_, paramsMap, err := actions.DecodeExecute(op.Calls[2].Inner[2].CallData)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 0, 3, 0, 0, 0}, paramsMap)

	var created actions.PositionCreatedArgs
	require.NoError(t, actions.DecodeCall(op.Calls[3].CallData, &created))
	assert.Equal(t, "Ajna", created.Protocol)
	assert.Equal(t, "Multiply", created.PositionType)
}

func TestAjnaOpenMultiplyBorrowsFlashloanFee(t *testing.T) {
	reg, err := config.LoadRegistry("mainnet")
	require.NoError(t, err)
	f, err := actions.NewFactory(reg)
	require.NoError(t, err)
	params := config.DefaultProtocolParameters
	params.FlashloanFee = 9
	b, err := NewBuilder(f, params)
	require.NoError(t, err)

	op, err := b.AjnaOpenMultiply(multiplyArgs(10))
	require.NoError(t, err)
	inner := op.Calls[2].Inner
	require.Len(t, inner, 4)

	var deposit actions.AjnaDepositBorrowArgs
	require.NoError(t, actions.DecodeCall(inner[2].CallData, &deposit))
	var repay actions.SendTokenArgs
	require.NoError(t, actions.DecodeCall(inner[3].CallData, &repay))

	// 2000 plus 9 / 10000 of it.
	assert.Equal(t, int64(2_001), deposit.BorrowAmount.Int64())
	assert.Equal(t, repay.Amount.Int64(), deposit.BorrowAmount.Int64())
}

func TestAjnaAdjustRiskUpWithoutDeposit(t *testing.T) {
	b := newBuilder(t)

	op, err := b.AjnaAdjustRiskUp(multiplyArgs(0))
	require.NoError(t, err)
	assert.Equal(t, "AjnaAdjustRiskUp", op.Name)
	assert.Equal(t, []bool{true, true, false}, skippedFlags(op.Calls))
}

func TestAjnaAdjustRiskDown(t *testing.T) {
	b := newBuilder(t)
	args := closeArgs(wethToken)

	op, err := b.AjnaAdjustRiskDown(AjnaAdjustDownArgs{
		Collateral:     args.Collateral,
		Debt:           args.Debt,
		WithdrawAmount: sdkmath.NewInt(1_000),
		Swap:           args.Swap,
		Flashloan:      args.Flashloan,
		Proxy:          args.Proxy,
		Addresses:      args.Addresses,
		Price:          args.Price,
	})
	require.NoError(t, err)
	assert.Equal(t, "AjnaAdjustRiskDown", op.Name)
	require.Len(t, op.Calls, 3)

	var repay actions.AjnaRepayWithdrawArgs
	require.NoError(t, actions.DecodeCall(op.Calls[0].Inner[1].CallData, &repay))
	assert.False(t, repay.PaybackAll)
	assert.Equal(t, int64(500), repay.RepayAmount.Int64())
	assert.Equal(t, int64(1_000), repay.WithdrawAmount.Int64())
}

func TestAjnaOperationsRejectBadInput(t *testing.T) {
	b := newBuilder(t)

	args := closeArgs(wethToken)
	args.Addresses.Pool = common.Address{}
	_, err := b.AjnaCloseToQuote(args)
	assert.ErrorIs(t, err, ErrMissingAddress)

	args = closeArgs(usdcToken)
	_, err = b.AjnaCloseToQuote(args)
	assert.ErrorIs(t, err, ErrInvalidTokens)

	m := multiplyArgs(1)
	m.Flashloan.Amount = sdkmath.NewInt(-5)
	_, err = b.AjnaOpenMultiply(m)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFinalizeRejectsMismatchedPlan(t *testing.T) {
	b := newBuilder(t)

	ret, err := b.factory.ReturnFunds(actions.ReturnFundsArgs{Asset: usdcToken.Address})
	require.NoError(t, err)

	_, err = b.finalize(config.OperationAjnaCloseToQuote, []types.ActionCall{ret})
	assert.ErrorIs(t, err, config.ErrOperationMismatch)

	_, err = b.finalize("unknown", []types.ActionCall{ret})
	assert.ErrorIs(t, err, config.ErrUnknownOperation)
}

func TestFinalizeRejectsSkippedRequiredAction(t *testing.T) {
	b := newBuilder(t)

	op, err := b.AjnaCloseToQuote(closeArgs(wethToken))
	require.NoError(t, err)

	calls := op.Calls
	calls[1].Skipped = true
	_, err = b.finalize(config.OperationAjnaCloseToQuote, calls)
	assert.ErrorIs(t, err, config.ErrOperationMismatch)
}

func TestEncodeExecuteOpRoundTrip(t *testing.T) {
	b := newBuilder(t)

	op, err := b.AjnaCloseToQuote(closeArgs(wethToken))
	require.NoError(t, err)

	data, err := EncodeExecuteOp(op)
	require.NoError(t, err)

	decoded, err := DecodeExecuteOp(data)
	require.NoError(t, err)
	assert.Equal(t, op.Name, decoded.Name)
	require.Len(t, decoded.Calls, len(op.Calls))
	for i := range op.Calls {
		assert.Equal(t, op.Calls[i].TargetHash, decoded.Calls[i].TargetHash)
		assert.Equal(t, op.Calls[i].CallData, decoded.Calls[i].CallData)
		assert.Equal(t, op.Calls[i].Skipped, decoded.Calls[i].Skipped)
	}

	_, err = EncodeExecuteOp(types.Operation{})
	assert.Error(t, err)
}
