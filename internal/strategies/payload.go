/*

This file contains the payload assembly shared by every strategy.

A strategy result carries the projected position with its diagnostics and a transaction the
caller can submit as is. Single-call strategies target the Ajna proxy actions contract, strategies
built from DMA operations target the operation executor and report the swaps they make.

*/

package strategies

import (
	"errors"

	"github.com/dma-labs/ajna-dma/internal/simulations"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/dma-labs/ajna-dma/internal/validation"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Dependencies are the contracts a strategy sends its transaction to.
type Dependencies struct {
	Network           string         `json:"network"`
	AjnaProxyActions  common.Address `json:"ajna_proxy_actions"`
	OperationExecutor common.Address `json:"operation_executor"`
}

// PrepareAjnaPayload assembles a proxy actions strategy.
func PrepareAjnaPayload[P any](deps Dependencies, targetPosition P, d types.Diagnostics, data []byte, txValue string) types.Strategy[P] {
	d = types.NewDiagnostics().Merge(d)
	return types.Strategy[P]{
		Simulation: types.Simulation[P]{
			Swaps:          []types.Swap{},
			Errors:         d.Errors,
			Warnings:       d.Warnings,
			Notices:        d.Notices,
			Successes:      d.Successes,
			TargetPosition: targetPosition,
			Position:       targetPosition,
		},
		Tx: types.Tx{
			To:    deps.AjnaProxyActions,
			Data:  hexutil.Encode(data),
			Value: txValueOrZero(txValue),
		},
	}
}

// PrepareAjnaDMAPayload assembles an operation executor strategy. Swaps already carry their fee
// and the side it is collected from.
func PrepareAjnaDMAPayload[P any](deps Dependencies, targetPosition P, d types.Diagnostics, data []byte, txValue string, swaps []types.Swap) types.Strategy[P] {
	s := PrepareAjnaPayload(deps, targetPosition, d, data, txValue)
	s.Simulation.Swaps = append(s.Simulation.Swaps, swaps...)
	s.Tx.To = deps.OperationExecutor
	return s
}

// EarnActionOutput validates an earn change and assembles its payload. Deposits and withdrawals
// of an existing position are also checked against the LUP they leave behind.
func EarnActionOutput(deps Dependencies, args validation.EarnArgs, data []byte, txValue string) (types.Strategy[types.EarnPosition], error) {
	if args.Action == validation.EarnActionDeposit || args.Action == validation.EarnActionWithdraw {
		target := args.Simulation
		lup, ok, err := simulations.CalculateNewLupWhenAdjusting(args.Position.Pool, args.Position, &target)
		if err != nil {
			return types.Strategy[types.EarnPosition]{}, err
		}
		if ok {
			index := lup.Index
			args.AfterLupIndex = &index
		}
	}

	d, err := validation.ValidateEarn(args)
	if err != nil {
		return types.Strategy[types.EarnPosition]{}, err
	}
	return PrepareAjnaPayload(deps, args.Simulation, d, data, txValue), nil
}

func txValueOrZero(v string) string {
	if v == "" {
		return "0"
	}
	return v
}

// errAbort wraps an upstream failure so no partial strategy is returned.
func errAbort(stage string, err error) error {
	return errors.Join(ErrStrategyAborted, errors.New(stage), err)
}
