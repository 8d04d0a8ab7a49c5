/*

This file contains the Ajna borrow strategies: open, deposit-and-borrow and payback-and-withdraw.
Each is a single AjnaProxyActions call; the target position is projected with the origination
fee the pool adds to new debt, and its pool with the LUP the change leaves behind.

*/

package strategies

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/logger"
	"github.com/dma-labs/ajna-dma/internal/simulations"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/dma-labs/ajna-dma/internal/utils"
	"github.com/dma-labs/ajna-dma/internal/validation"
)

var strategiesLogger = logger.GetForComponent("strategy_assembler")

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidAmount       = errors.New("strategy amount is missing or negative")
	ErrPositionExists      = errors.New("position already exists")
	ErrNoPosition          = errors.New("position does not exist")
	ErrEncoding            = errors.New("failed to encode strategy calldata")
	ErrStrategyAborted     = errors.New("strategy aborted")
	ErrSwapDataUnavailable = errors.New("swap data unavailable")
	ErrInvalidRiskRatio    = errors.New("target risk ratio is out of range")

	ErrInsufficientSwapOutput = errors.New("swap output does not repay the flashloan")
)

// BorrowPayload is the request of a borrow strategy. Amounts are token amounts, not base units.
type BorrowPayload struct {
	Position         types.BorrowPosition `json:"position"`
	CollateralToken  types.Token          `json:"collateral_token"`
	QuoteToken       types.Token          `json:"quote_token"`
	CollateralAmount sdkmath.LegacyDec    `json:"collateral_amount"` // Deposited or withdrawn
	QuoteAmount      sdkmath.LegacyDec    `json:"quote_amount"`      // Borrowed or paid back
	Price            sdkmath.LegacyDec    `json:"price,omitempty"`   // Bucket price limit, the projected LUP when unset
}

func (p BorrowPayload) amounts() (collateral, quote sdkmath.LegacyDec, err error) {
	collateral = utils.OrZero(p.CollateralAmount)
	quote = utils.OrZero(p.QuoteAmount)
	if collateral.IsNegative() || quote.IsNegative() {
		return collateral, quote, fmt.Errorf("%w: collateral %s, quote %s", ErrInvalidAmount, collateral, quote)
	}
	return collateral, quote, nil
}

// normalized fills the amounts of a position that does not exist yet.
func normalized(p types.BorrowPosition) types.BorrowPosition {
	p.CollateralAmount = utils.OrZero(p.CollateralAmount)
	p.DebtAmount = utils.OrZero(p.DebtAmount)
	return p
}

// project moves target's pool through debtChange and prices its liquidation at the
// neutral price the change leaves it with.
func project(target types.BorrowPosition, debtChange sdkmath.LegacyDec) (types.BorrowPosition, error) {
	before := target.Pool
	var err error
	target.Pool, err = simulations.SimulatePool(before, debtChange, target.DebtAmount, target.CollateralAmount)
	if err != nil {
		return types.BorrowPosition{}, err
	}
	target.LiquidationPrice, err = simulations.GetNeutralPrice(before, debtChange, target.DebtAmount, target.CollateralAmount)
	if err != nil {
		return types.BorrowPosition{}, err
	}
	return target, nil
}

// BorrowOpen opens a new borrow position.
func BorrowOpen(deps Dependencies, payload BorrowPayload) (types.Strategy[types.BorrowPosition], error) {
	if utils.OrZero(payload.Position.CollateralAmount).IsPositive() {
		return types.Strategy[types.BorrowPosition]{}, ErrPositionExists
	}
	return depositBorrow(deps, payload, "openPosition")
}

// BorrowDepositBorrow adds collateral and draws debt on an existing position.
func BorrowDepositBorrow(deps Dependencies, payload BorrowPayload) (types.Strategy[types.BorrowPosition], error) {
	return depositBorrow(deps, payload, "depositAndDraw")
}

func depositBorrow(deps Dependencies, payload BorrowPayload, method string) (types.Strategy[types.BorrowPosition], error) {
	collateral, quote, err := payload.amounts()
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	position := normalized(payload.Position)
	fee := simulations.GetBorrowOriginationFee(utils.OrZero(position.Pool.InterestRate), quote)
	debtChange := quote.Add(fee)
	target, err := project(position.Deposit(collateral, debtChange), debtChange)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	d, err := validation.ValidateBorrowish(validation.BorrowishArgs{
		Position:       position,
		Target:         target,
		GenerateAmount: quote,
	})
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	price := payload.Price
	if price.IsNil() || !price.IsPositive() {
		price = target.Pool.LowestUtilizedPrice
	}
	quoteWei, err := weiOf(quote, payload.QuoteToken.Precision)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	collateralWei, err := weiOf(collateral, payload.CollateralToken.Precision)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	priceWad, err := wadOf(price)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}
	data, err := encodeProxyCall(method, position.Pool.PoolAddress, quoteWei, collateralWei, priceWad)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	txValue, err := utils.ResolveEthValue(payload.CollateralToken.IsEth, collateral)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	strategiesLogger.Debug().
		Str("method", method).
		Str("collateral", collateral.String()).
		Str("quote", quote.String()).
		Str("originationFee", fee.String()).
		Int("errors", len(d.Errors)).
		Msg("Borrow strategy assembled")

	return PrepareAjnaPayload(deps, target, d, data, txValue), nil
}

// BorrowPaybackWithdraw pays back debt and withdraws collateral. Emptying the position closes it.
func BorrowPaybackWithdraw(deps Dependencies, payload BorrowPayload) (types.Strategy[types.BorrowPosition], error) {
	collateral, quote, err := payload.amounts()
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	position := normalized(payload.Position)
	repaid := sdkmath.LegacyMinDec(quote, utils.OrZero(position.DebtAmount))
	target, err := project(position.Withdraw(collateral, quote), repaid.Neg())
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	d, err := validation.ValidateBorrowish(validation.BorrowishArgs{
		Position:           position,
		Target:             target,
		WithdrawCollateral: collateral,
		PaybackAmount:      quote,
	})
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	var data []byte
	if target.DebtAmount.IsZero() && target.CollateralAmount.IsZero() {
		data, err = encodeProxyCall("repayAndClose", position.Pool.PoolAddress)
	} else {
		quoteWei, werr := weiOf(quote, payload.QuoteToken.Precision)
		if werr != nil {
			return types.Strategy[types.BorrowPosition]{}, werr
		}
		collateralWei, werr := weiOf(collateral, payload.CollateralToken.Precision)
		if werr != nil {
			return types.Strategy[types.BorrowPosition]{}, werr
		}
		data, err = encodeProxyCall("repayWithdraw", position.Pool.PoolAddress, quoteWei, collateralWei)
	}
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	txValue, err := utils.ResolveEthValue(payload.QuoteToken.IsEth, quote)
	if err != nil {
		return types.Strategy[types.BorrowPosition]{}, err
	}

	return PrepareAjnaPayload(deps, target, d, data, txValue), nil
}
