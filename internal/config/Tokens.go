/*
This file contains the token address book used to resolve request symbols into tokens.

ETH is not an ERC20: positions using it hold WETH, and the token is flagged so operations wrap
and unwrap around the pool calls and return funds under the native pseudo address.

If a token is missing here, callers can still pass a full token (address and precision) in the request.
*/

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// Error definitions for zero-tolerance error handling
var (
	ErrUnknownToken   = errors.New("unknown token")
	ErrUnknownNetwork = errors.New("unknown network")
)

var (
	Tokens = map[string]map[string]types.Token{
		"mainnet": {
			"WETH":   {Symbol: "WETH", Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Precision: 18},
			"USDC":   {Symbol: "USDC", Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Precision: 6},
			"USDT":   {Symbol: "USDT", Address: common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"), Precision: 6},
			"DAI":    {Symbol: "DAI", Address: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Precision: 18},
			"WBTC":   {Symbol: "WBTC", Address: common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"), Precision: 8},
			"WSTETH": {Symbol: "WSTETH", Address: common.HexToAddress("0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0"), Precision: 18},
			"RETH":   {Symbol: "RETH", Address: common.HexToAddress("0xae78736Cd615f374D3085123A210448E74Fc6393"), Precision: 18},
		},
	}
)

// TokenBySymbol resolves a symbol on network. "ETH" resolves to WETH flagged as native.
func TokenBySymbol(network, symbol string) (types.Token, error) {
	book, ok := Tokens[network]
	if !ok {
		return types.Token{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "ETH" {
		weth, ok := book["WETH"]
		if !ok {
			return types.Token{}, fmt.Errorf("%w: WETH on %s", ErrUnknownToken, network)
		}
		weth.Symbol = "ETH"
		weth.IsEth = true
		return weth, nil
	}

	token, ok := book[symbol]
	if !ok {
		return types.Token{}, fmt.Errorf("%w: %s on %s", ErrUnknownToken, symbol, network)
	}
	return token, nil
}
