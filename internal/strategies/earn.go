package strategies

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/pool"
	"github.com/dma-labs/ajna-dma/internal/simulations"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/dma-labs/ajna-dma/internal/utils"
	"github.com/dma-labs/ajna-dma/internal/validation"
)

// EarnPayload is the request of an earn strategy. Price is the bucket the deposit ends up in;
// left unset, deposits and withdrawals stay in the position's bucket.
type EarnPayload struct {
	Position    types.EarnPosition `json:"position"`
	QuoteToken  types.Token        `json:"quote_token"`
	QuoteAmount sdkmath.LegacyDec  `json:"quote_amount"`
	Price       sdkmath.LegacyDec  `json:"price,omitempty"`
}

// EarnOpen deposits quote token into the bucket at payload.Price.
func EarnOpen(deps Dependencies, payload EarnPayload) (types.Strategy[types.EarnPosition], error) {
	if utils.OrZero(payload.Position.QuoteTokenAmount).IsPositive() {
		return types.Strategy[types.EarnPosition]{}, ErrPositionExists
	}
	amount := utils.OrZero(payload.QuoteAmount)
	if !amount.IsPositive() {
		return types.Strategy[types.EarnPosition]{}, fmt.Errorf("%w: open needs a deposit", ErrInvalidAmount)
	}
	if payload.Price.IsNil() || !payload.Price.IsPositive() {
		return types.Strategy[types.EarnPosition]{}, fmt.Errorf("%w: open needs a bucket price", ErrInvalidAmount)
	}

	simulation, err := movedPosition(payload.Position, amount, payload.Price)
	if err != nil {
		return types.Strategy[types.EarnPosition]{}, err
	}

	amountWei, err := weiOf(amount, payload.QuoteToken.Precision)
	if err != nil {
		return types.Strategy[types.EarnPosition]{}, err
	}
	priceWad, err := wadOf(payload.Price)
	if err != nil {
		return types.Strategy[types.EarnPosition]{}, err
	}
	data, err := encodeProxyCall("openEarnPosition", payload.Position.Pool.PoolAddress, amountWei, priceWad)
	if err != nil {
		return types.Strategy[types.EarnPosition]{}, err
	}

	txValue, err := utils.ResolveEthValue(payload.QuoteToken.IsEth, amount)
	if err != nil {
		return types.Strategy[types.EarnPosition]{}, err
	}

	return EarnActionOutput(deps, validation.EarnArgs{
		Action:      validation.EarnActionOpen,
		QuoteAmount: amount,
		Position:    payload.Position,
		Simulation:  simulation,
	}, data, txValue)
}

// EarnDeposit adds quote token to a position, moving it to payload.Price when that differs.
// A zero amount with a new price only moves the deposit.
func EarnDeposit(deps Dependencies, payload EarnPayload) (types.Strategy[types.EarnPosition], error) {
	amount := utils.OrZero(payload.QuoteAmount)
	if amount.IsNegative() {
		return types.Strategy[types.EarnPosition]{}, fmt.Errorf("%w: deposit %s", ErrInvalidAmount, amount)
	}
	position := payload.Position
	if position.Price.IsNil() {
		return types.Strategy[types.EarnPosition]{}, ErrNoPosition
	}
	newPrice, moving := targetPrice(position, payload.Price)
	if !amount.IsPositive() && !moving {
		return types.Strategy[types.EarnPosition]{}, fmt.Errorf("%w: deposit changes nothing", ErrInvalidAmount)
	}

	simulation, err := movedPosition(position, utils.OrZero(position.QuoteTokenAmount).Add(amount), newPrice)
	if err != nil {
		return types.Strategy[types.EarnPosition]{}, err
	}

	data, err := encodeEarnChange(payload, amount, newPrice, moving, "supplyQuote", "supplyAndMoveQuote")
	if err != nil {
		return types.Strategy[types.EarnPosition]{}, err
	}

	txValue, err := utils.ResolveEthValue(payload.QuoteToken.IsEth, amount)
	if err != nil {
		return types.Strategy[types.EarnPosition]{}, err
	}

	return EarnActionOutput(deps, validation.EarnArgs{
		Action:      validation.EarnActionDeposit,
		QuoteAmount: amount,
		Position:    position,
		Simulation:  simulation,
	}, data, txValue)
}

// EarnWithdraw takes quote token out of a position, moving what is left when the price differs.
func EarnWithdraw(deps Dependencies, payload EarnPayload) (types.Strategy[types.EarnPosition], error) {
	amount := utils.OrZero(payload.QuoteAmount)
	if amount.IsNegative() {
		return types.Strategy[types.EarnPosition]{}, fmt.Errorf("%w: withdraw %s", ErrInvalidAmount, amount)
	}
	position := payload.Position
	if !utils.OrZero(position.QuoteTokenAmount).IsPositive() || position.Price.IsNil() {
		return types.Strategy[types.EarnPosition]{}, ErrNoPosition
	}
	newPrice, moving := targetPrice(position, payload.Price)
	if !amount.IsPositive() && !moving {
		return types.Strategy[types.EarnPosition]{}, fmt.Errorf("%w: withdraw changes nothing", ErrInvalidAmount)
	}

	left := utils.NegativeToZero(position.QuoteTokenAmount.Sub(amount))
	simulation, err := movedPosition(position, left, newPrice)
	if err != nil {
		return types.Strategy[types.EarnPosition]{}, err
	}

	data, err := encodeEarnChange(payload, amount, newPrice, moving, "withdrawQuote", "withdrawAndMoveQuote")
	if err != nil {
		return types.Strategy[types.EarnPosition]{}, err
	}

	return EarnActionOutput(deps, validation.EarnArgs{
		Action:      validation.EarnActionWithdraw,
		QuoteAmount: amount,
		Position:    position,
		Simulation:  simulation,
	}, data, "0")
}

func targetPrice(position types.EarnPosition, price sdkmath.LegacyDec) (sdkmath.LegacyDec, bool) {
	if price.IsNil() || !price.IsPositive() {
		return position.Price, false
	}
	return price, !price.Equal(position.Price)
}

// movedPosition is the position holding quote in the bucket at price.
func movedPosition(position types.EarnPosition, quote, price sdkmath.LegacyDec) (types.EarnPosition, error) {
	index, err := bucketIndex(position.Pool, price)
	if err != nil {
		return types.EarnPosition{}, err
	}
	position.QuoteTokenAmount = quote
	position.Price = price
	position.PriceIndex = index
	if position.CollateralTokenAmount.IsNil() {
		position.CollateralTokenAmount = sdkmath.LegacyZeroDec()
	}
	position.Apy, err = projectedApy(position)
	if err != nil {
		return types.EarnPosition{}, err
	}
	return position, nil
}

// projectedApy compounds the pool's lend rate daily over the deposit.
func projectedApy(position types.EarnPosition) (types.EarnApy, error) {
	daily := utils.OrZero(position.Pool.LendApr).QuoInt64(365)
	var (
		out types.EarnApy
		err error
	)
	if out.Day, err = simulations.CalculateApyPerDays(position.QuoteTokenAmount, daily, 1); err != nil {
		return types.EarnApy{}, err
	}
	if out.Week, err = simulations.CalculateApyPerDays(position.QuoteTokenAmount, daily, 7); err != nil {
		return types.EarnApy{}, err
	}
	if out.Year, err = simulations.CalculateApyPerDays(position.QuoteTokenAmount, daily, 365); err != nil {
		return types.EarnApy{}, err
	}
	return out, nil
}

// bucketIndex prefers the snapshot's own buckets and otherwise requires a price on the grid.
func bucketIndex(p types.Pool, price sdkmath.LegacyDec) (int64, error) {
	for _, b := range p.Buckets {
		if !b.Price.IsNil() && b.Price.Equal(price) {
			return b.Index, nil
		}
	}
	return pool.GridIndexOfPrice(price)
}

// encodeEarnChange picks between the plain, the combined and the move-only proxy call.
func encodeEarnChange(payload EarnPayload, amount, newPrice sdkmath.LegacyDec, moving bool, plain, combined string) ([]byte, error) {
	poolAddress := payload.Position.Pool.PoolAddress
	amountWei, err := weiOf(amount, payload.QuoteToken.Precision)
	if err != nil {
		return nil, err
	}
	newWad, err := wadOf(newPrice)
	if err != nil {
		return nil, err
	}
	if !moving {
		return encodeProxyCall(plain, poolAddress, amountWei, newWad)
	}

	oldWad, err := wadOf(payload.Position.Price)
	if err != nil {
		return nil, err
	}
	if amountWei.Cmp(big.NewInt(0)) == 0 {
		return encodeProxyCall("moveQuote", poolAddress, oldWad, newWad)
	}
	return encodeProxyCall(combined, poolAddress, amountWei, oldWad, newWad)
}
