package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var ErrSwapAPI = errors.New("swap aggregator request failed")

// SwapClient quotes swaps against a 1inch-compatible /swap endpoint.
type SwapClient struct {
	baseURL string
	apiKey  string
	caller  common.Address
	http    *http.Client
}

func NewSwapClient(baseURL, apiKey string, caller common.Address) (*SwapClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: empty base url", ErrSwapAPI)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSwapAPI, err)
	}
	return &SwapClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		caller:  caller,
		http:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type swapResponse struct {
	FromTokenAmount string `json:"fromTokenAmount"`
	ToTokenAmount   string `json:"toTokenAmount"`
	Tx              struct {
		Data string `json:"data"`
	} `json:"tx"`
}

// GetSwapData requests calldata for selling amount of from. slippage is a fraction (0.01 is 1%).
func (c *SwapClient) GetSwapData(ctx context.Context, from, to common.Address, amount sdkmath.Int, slippage sdkmath.LegacyDec) (types.SwapData, error) {
	if slippage.IsNil() {
		slippage = sdkmath.LegacyZeroDec()
	}
	q := url.Values{}
	q.Set("fromTokenAddress", from.Hex())
	q.Set("toTokenAddress", to.Hex())
	q.Set("amount", amount.String())
	q.Set("fromAddress", c.caller.Hex())
	q.Set("slippage", slippage.MulInt64(100).String())
	q.Set("disableEstimate", "true")
	q.Set("allowPartialFill", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/swap?"+q.Encode(), nil)
	if err != nil {
		return types.SwapData{}, fmt.Errorf("%w: %v", ErrSwapAPI, err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return types.SwapData{}, fmt.Errorf("%w: %v", ErrSwapAPI, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return types.SwapData{}, fmt.Errorf("%w: reading body: %v", ErrSwapAPI, err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.SwapData{}, fmt.Errorf("%w: status %d: %s", ErrSwapAPI, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded swapResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return types.SwapData{}, fmt.Errorf("%w: decoding body: %v", ErrSwapAPI, err)
	}
	toAmount, ok := sdkmath.NewIntFromString(decoded.ToTokenAmount)
	if !ok || !toAmount.IsPositive() {
		return types.SwapData{}, fmt.Errorf("%w: bad toTokenAmount %q", ErrSwapAPI, decoded.ToTokenAmount)
	}
	calldata, err := hexutil.Decode(decoded.Tx.Data)
	if err != nil {
		return types.SwapData{}, fmt.Errorf("%w: bad calldata: %v", ErrSwapAPI, err)
	}

	fromAmount := amount
	if parsed, ok := sdkmath.NewIntFromString(decoded.FromTokenAmount); ok {
		fromAmount = parsed
	}

	return types.SwapData{
		FromTokenAddress: from,
		ToTokenAddress:   to,
		FromTokenAmount:  fromAmount,
		ToTokenAmount:    toAmount,
		MinToTokenAmount: sdkmath.LegacyOneDec().Sub(slippage).MulInt(toAmount).TruncateInt(),
		ExchangeCalldata: calldata,
	}, nil
}
