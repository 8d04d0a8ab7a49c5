package strategies

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/utils"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Subset of the AjnaProxyActions interface used by borrow and earn strategies.
// Amounts are in token precision, prices are WAD.
const ajnaProxyActionsABI = `[
	{"type":"function","name":"openPosition","stateMutability":"payable","inputs":[
		{"name":"pool","type":"address"},{"name":"debtAmount","type":"uint256"},
		{"name":"collateralAmount","type":"uint256"},{"name":"price","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"depositAndDraw","stateMutability":"payable","inputs":[
		{"name":"pool","type":"address"},{"name":"debtAmount","type":"uint256"},
		{"name":"collateralAmount","type":"uint256"},{"name":"price","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"repayWithdraw","stateMutability":"payable","inputs":[
		{"name":"pool","type":"address"},{"name":"debtAmount","type":"uint256"},
		{"name":"collateralAmount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"repayAndClose","stateMutability":"payable","inputs":[
		{"name":"pool","type":"address"}],"outputs":[]},
	{"type":"function","name":"openEarnPosition","stateMutability":"payable","inputs":[
		{"name":"pool","type":"address"},{"name":"depositAmount","type":"uint256"},
		{"name":"price","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"supplyQuote","stateMutability":"payable","inputs":[
		{"name":"pool","type":"address"},{"name":"amount","type":"uint256"},
		{"name":"price","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"withdrawQuote","stateMutability":"nonpayable","inputs":[
		{"name":"pool","type":"address"},{"name":"amount","type":"uint256"},
		{"name":"price","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"moveQuote","stateMutability":"nonpayable","inputs":[
		{"name":"pool","type":"address"},{"name":"oldPrice","type":"uint256"},
		{"name":"newPrice","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"supplyAndMoveQuote","stateMutability":"payable","inputs":[
		{"name":"pool","type":"address"},{"name":"amount","type":"uint256"},
		{"name":"oldPrice","type":"uint256"},{"name":"newPrice","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"withdrawAndMoveQuote","stateMutability":"nonpayable","inputs":[
		{"name":"pool","type":"address"},{"name":"amount","type":"uint256"},
		{"name":"oldPrice","type":"uint256"},{"name":"newPrice","type":"uint256"}],"outputs":[]}
]`

var proxyActions = mustParseABI(ajnaProxyActionsABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// encodeProxyCall packs an AjnaProxyActions call.
func encodeProxyCall(method string, pool common.Address, args ...*big.Int) ([]byte, error) {
	values := make([]any, 0, len(args)+1)
	values = append(values, pool)
	for _, a := range args {
		values = append(values, a)
	}
	data, err := proxyActions.Pack(method, values...)
	if err != nil {
		return nil, errors.Join(ErrEncoding, fmt.Errorf("%s: %w", method, err))
	}
	return data, nil
}

// weiOf converts a token amount to base units for the ABI encoder.
func weiOf(amount sdkmath.LegacyDec, precision int) (*big.Int, error) {
	wei, err := utils.AmountToWei(utils.OrZero(amount), precision)
	if err != nil {
		return nil, err
	}
	return wei.BigInt(), nil
}

// wadOf is a price in the pool's 18 decimal fixed point.
func wadOf(price sdkmath.LegacyDec) (*big.Int, error) {
	return weiOf(price, utils.ProtocolPrecision)
}
