/*

This file contains the operation builder shared by every operation.

A builder turns a chosen intent into the ordered calls of a registered operation. Calls are never
dropped: a step that has nothing to do is marked skipped so the plan keeps the shape the registry
expects. Before a plan is returned it is checked against the registry definition, with flashloan
inner calls flattened right after the flashloan call, and the optional flags are copied from it.

*/

package operations

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/actions"
	"github.com/dma-labs/ajna-dma/internal/config"
	"github.com/dma-labs/ajna-dma/internal/logger"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var operationsLogger = logger.GetForComponent("operation_builder")

// Error definitions for zero-tolerance error handling
var (
	ErrNilFactory     = errors.New("operation builder needs an action factory")
	ErrInvalidAmount  = errors.New("operation amount is missing or negative")
	ErrInvalidTokens  = errors.New("operation tokens are invalid")
	ErrMissingAddress = errors.New("operation address is missing")
)

var (
	executeOpSelector  = crypto.Keccak256([]byte("executeOp((bytes32,bytes,bool)[],string)"))[:4]
	executeOpArguments = abi.Arguments{
		{Name: "calls", Type: mustType("tuple[]", actions.CallComponents())},
		{Name: "operationName", Type: mustType("string", nil)},
	}
)

func mustType(typ string, components []abi.ArgumentMarshaling) abi.Type {
	t, err := abi.NewType(typ, "", components)
	if err != nil {
		panic(err)
	}
	return t
}

// Proxy is the smart account executing the operation on behalf of its owner.
type Proxy struct {
	Address    common.Address `json:"address"`
	Owner      common.Address `json:"owner"`
	IsDPMProxy bool           `json:"is_dpm_proxy"`
}

// AjnaAddresses are the contracts an Ajna operation talks to.
type AjnaAddresses struct {
	Pool              common.Address `json:"pool"`
	OperationExecutor common.Address `json:"operation_executor"`
}

// SwapStep is the swap action input: amounts in base units of the from token, fee in FeeBase units.
type SwapStep struct {
	Amount         sdkmath.Int          `json:"amount"` // Before the protocol fee
	ReceiveAtLeast sdkmath.Int          `json:"receive_at_least"`
	Fee            int64                `json:"fee"`
	Data           []byte               `json:"data"`
	CollectFeeFrom types.CollectFeeFrom `json:"collect_fee_from"`
}

// Builder builds the operations of one network.
type Builder struct {
	factory  *actions.Factory
	registry *config.Registry
	params   types.ProtocolParameters
}

func NewBuilder(factory *actions.Factory, params types.ProtocolParameters) (*Builder, error) {
	if factory == nil {
		return nil, ErrNilFactory
	}
	return &Builder{factory: factory, registry: factory.Registry(), params: params}, nil
}

// finalize checks calls against the registered definition of operation and names the plan.
func (b *Builder) finalize(operation string, calls []types.ActionCall) (types.Operation, error) {
	def, err := b.registry.Definition(operation)
	if err != nil {
		return types.Operation{}, err
	}

	flat := 0
	for _, c := range calls {
		flat += 1 + len(c.Inner)
	}
	if flat != len(def.Actions) {
		return types.Operation{}, fmt.Errorf("%w: %s expects %d actions, plan has %d",
			config.ErrOperationMismatch, def.Name, len(def.Actions), flat)
	}

	next := 0
	match := func(c *types.ActionCall) error {
		entry := def.Actions[next]
		if c.TargetHash != entry.Hash {
			return fmt.Errorf("%w: %s action %d is %s, registered %s",
				config.ErrOperationMismatch, def.Name, next, c.TargetHash.Hex(), entry.Hash.Hex())
		}
		if c.Skipped && !entry.Optional {
			return fmt.Errorf("%w: %s action %d is skipped but not optional", config.ErrOperationMismatch, def.Name, next)
		}
		c.Optional = entry.Optional
		next++
		return nil
	}

	out := make([]types.ActionCall, len(calls))
	for i, c := range calls {
		if err := match(&c); err != nil {
			return types.Operation{}, err
		}
		if c.Inner != nil {
			inner := make([]types.ActionCall, len(c.Inner))
			copy(inner, c.Inner)
			for j := range inner {
				if err := match(&inner[j]); err != nil {
					return types.Operation{}, err
				}
			}
			c.Inner = inner
		}
		out[i] = c
	}

	skipped := 0
	for _, c := range out {
		if c.Skipped {
			skipped++
		}
	}
	operationsLogger.Debug().
		Str("operation", def.Name).
		Int("calls", len(out)).
		Int("skipped", skipped).
		Msg("Operation built")

	return types.Operation{Name: def.Name, Calls: out}, nil
}

// EncodeExecuteOp encodes the operation executor call that runs op.
func EncodeExecuteOp(op types.Operation) ([]byte, error) {
	if op.Name == "" {
		return nil, errors.New("operation has no name")
	}
	calls := make([]actions.Call, 0, len(op.Calls))
	for _, c := range op.Calls {
		callData := c.CallData
		if callData == nil {
			callData = []byte{}
		}
		calls = append(calls, actions.Call{TargetHash: c.TargetHash, CallData: callData, Skipped: c.Skipped})
	}

	packed, err := executeOpArguments.Pack(calls, op.Name)
	if err != nil {
		return nil, errors.Join(actions.ErrEncoding, fmt.Errorf("executeOp %s: %w", op.Name, err))
	}

	out := make([]byte, 0, len(executeOpSelector)+len(packed))
	out = append(out, executeOpSelector...)
	return append(out, packed...), nil
}

// DecodeExecuteOp is the inverse of EncodeExecuteOp. Decoded calls carry no Optional or Inner.
func DecodeExecuteOp(data []byte) (types.Operation, error) {
	if len(data) < len(executeOpSelector) || string(data[:len(executeOpSelector)]) != string(executeOpSelector) {
		return types.Operation{}, errors.New("calldata is not an executeOp call")
	}
	values, err := executeOpArguments.Unpack(data[len(executeOpSelector):])
	if err != nil {
		return types.Operation{}, err
	}

	var calls []actions.Call
	abi.ConvertType(values[0], &calls)
	op := types.Operation{Name: values[1].(string), Calls: make([]types.ActionCall, 0, len(calls))}
	for _, c := range calls {
		op.Calls = append(op.Calls, types.ActionCall{TargetHash: c.TargetHash, CallData: c.CallData, Skipped: c.Skipped})
	}
	return op, nil
}

// bigOf converts a base-unit amount for the ABI encoder.
func bigOf(name string, amount sdkmath.Int) (*big.Int, error) {
	if amount.IsNil() || amount.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, name)
	}
	return amount.BigInt(), nil
}

// FlashloanRepayment is what the executor must get back: the loan plus the venue fee.
func (b *Builder) FlashloanRepayment(amount sdkmath.Int) sdkmath.Int {
	if b.params.FeeBase <= 0 {
		return amount
	}
	return amount.Add(amount.MulRaw(b.params.FlashloanFee).QuoRaw(b.params.FeeBase))
}

func (b *Builder) maxUint() *big.Int {
	return b.params.MaxUint.BigInt()
}
