/*

This file contains the types for Ajna positions and the per-call simulation outputs
(deltas, swaps, flashloans) that strategies attach to them.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// BorrowPosition is a borrower's loan in an Ajna pool. Multiply positions use the same shape.
type BorrowPosition struct {
	Pool             Pool              `json:"pool"`
	Owner            common.Address    `json:"owner"`
	CollateralAmount sdkmath.LegacyDec `json:"collateral_amount"`
	DebtAmount       sdkmath.LegacyDec `json:"debt_amount"`
	CollateralPrice  sdkmath.LegacyDec `json:"collateral_price"`  // USD price of the collateral token
	QuotePrice       sdkmath.LegacyDec `json:"quote_price"`       // USD price of the quote token
	LiquidationPrice sdkmath.LegacyDec `json:"liquidation_price"` // Projected neutral price, filled on strategy targets
}

// ThresholdPrice is debt per unit of collateral, zero for a position without collateral.
func (p BorrowPosition) ThresholdPrice() sdkmath.LegacyDec {
	if p.CollateralAmount.IsNil() || p.CollateralAmount.IsZero() {
		return sdkmath.LegacyZeroDec()
	}
	return p.DebtAmount.Quo(p.CollateralAmount)
}

// RiskRatio is the loan-to-value of the position priced in USD.
func (p BorrowPosition) RiskRatio() sdkmath.LegacyDec {
	if p.CollateralAmount.IsNil() || p.CollateralAmount.IsZero() ||
		p.CollateralPrice.IsNil() || p.CollateralPrice.IsZero() {
		return sdkmath.LegacyZeroDec()
	}
	quotePrice := p.QuotePrice
	if quotePrice.IsNil() || quotePrice.IsZero() {
		quotePrice = sdkmath.LegacyOneDec()
	}
	return p.DebtAmount.Mul(quotePrice).Quo(p.CollateralAmount.Mul(p.CollateralPrice))
}

// Deposit returns a copy of the position with collateral added and debt generated.
func (p BorrowPosition) Deposit(collateral, debt sdkmath.LegacyDec) BorrowPosition {
	p.CollateralAmount = orZero(p.CollateralAmount).Add(collateral)
	p.DebtAmount = orZero(p.DebtAmount).Add(debt)
	return p
}

// Withdraw returns a copy of the position with collateral removed and debt paid back.
// Amounts past what the position holds leave it at zero.
func (p BorrowPosition) Withdraw(collateral, payback sdkmath.LegacyDec) BorrowPosition {
	p.CollateralAmount = orZero(p.CollateralAmount).Sub(collateral)
	if p.CollateralAmount.IsNegative() {
		p.CollateralAmount = sdkmath.LegacyZeroDec()
	}
	p.DebtAmount = orZero(p.DebtAmount).Sub(payback)
	if p.DebtAmount.IsNegative() {
		p.DebtAmount = sdkmath.LegacyZeroDec()
	}
	return p
}

func orZero(d sdkmath.LegacyDec) sdkmath.LegacyDec {
	if d.IsNil() {
		return sdkmath.LegacyZeroDec()
	}
	return d
}

// EarnPosition is a lender's quote token deposit in a single bucket.
type EarnPosition struct {
	Pool                  Pool              `json:"pool"`
	Owner                 common.Address    `json:"owner"`
	QuoteTokenAmount      sdkmath.LegacyDec `json:"quote_token_amount"`
	CollateralTokenAmount sdkmath.LegacyDec `json:"collateral_token_amount"`
	Price                 sdkmath.LegacyDec `json:"price"`       // Price of the bucket the deposit sits in
	PriceIndex            int64             `json:"price_index"` // Index of that bucket
	Apy                   EarnApy           `json:"apy"`
}

// EarnApy is the yield of a deposit over a day, a week and a year at the pool's lend rate.
type EarnApy struct {
	Day  sdkmath.LegacyDec `json:"day"`
	Week sdkmath.LegacyDec `json:"week"`
	Year sdkmath.LegacyDec `json:"year"`
}

// Delta is the change applied to a position by a strategy.
type Delta struct {
	Collateral sdkmath.LegacyDec `json:"collateral"`
	Debt       sdkmath.LegacyDec `json:"debt"`
}

// CollectFeeFrom names the swap side the protocol fee is taken from.
type CollectFeeFrom string

const (
	CollectFeeFromSourceToken CollectFeeFrom = "sourceToken"
	CollectFeeFromTargetToken CollectFeeFrom = "targetToken"
)

// SwapData is a quote returned by the external swap aggregator, amounts in base units.
type SwapData struct {
	FromTokenAddress common.Address `json:"from_token_address"`
	ToTokenAddress   common.Address `json:"to_token_address"`
	FromTokenAmount  sdkmath.Int    `json:"from_token_amount"`
	ToTokenAmount    sdkmath.Int    `json:"to_token_amount"`
	MinToTokenAmount sdkmath.Int    `json:"min_to_token_amount"`
	ExchangeCalldata []byte         `json:"exchange_calldata"`
}

// Swap is SwapData annotated with the protocol fee taken by the swap action.
type Swap struct {
	SwapData
	CollectFeeFrom CollectFeeFrom `json:"collect_fee_from"`
	Fee            sdkmath.Int    `json:"fee"`
}

// FlashloanProvider selects the lending venue the flashloan action borrows from.
type FlashloanProvider uint8

const (
	FlashloanProviderDssFlash FlashloanProvider = 0
	FlashloanProviderBalancer FlashloanProvider = 1
)

func (p FlashloanProvider) String() string {
	switch p {
	case FlashloanProviderDssFlash:
		return "DssFlash"
	case FlashloanProviderBalancer:
		return "Balancer"
	default:
		return "Unknown"
	}
}

// Flashloan is the borrowed-and-repaid-in-the-same-transaction amount of an operation.
type Flashloan struct {
	Token    Token             `json:"token"`
	Amount   sdkmath.Int       `json:"amount"` // Base units of Token
	Provider FlashloanProvider `json:"provider"`
}
