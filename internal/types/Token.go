/*

This is a custom type for ERC20 tokens referenced by positions, swaps and actions.

*/

package types

import "github.com/ethereum/go-ethereum/common"

// EthAddress is the pseudo address used by the action contracts for the native gas asset.
var EthAddress = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

type Token struct {
	Symbol    string         `json:"symbol"`    // e.g., "WETH"
	Address   common.Address `json:"address"`   // e.g., "0xC02a...6Cc2"
	Precision int            `json:"precision"` // e.g., 18 for WETH, 6 for USDC
	IsEth     bool           `json:"is_eth"`    // True when the user supplies or receives native ETH
}

// ReturnAddress is the asset address handed to return-funds actions.
// Native ETH is returned under the pseudo address, everything else under the token address.
func (t Token) ReturnAddress() common.Address {
	if t.IsEth {
		return EthAddress
	}
	return t.Address
}
