/*

This file contains the operation registry: per network, the service registry name of every action
and the ordered action list of every operation. Operation builders check their plans against it
so a plan that would be rejected by the on-chain registry is never returned.

*/

package config

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"
)

//go:embed operations.yaml
var operationsYAML []byte

// Action keys of the registry document.
const (
	ActionPullToken         = "pull_token"
	ActionSetApproval       = "set_approval"
	ActionSwap              = "swap"
	ActionSendToken         = "send_token"
	ActionWrapEth           = "wrap_eth"
	ActionUnwrapEth         = "unwrap_eth"
	ActionReturnFunds       = "return_funds"
	ActionTakeFlashloan     = "take_flashloan"
	ActionPositionCreated   = "position_created"
	ActionAaveV3Payback     = "aave_v3_payback"
	ActionAaveV3Withdraw    = "aave_v3_withdraw"
	ActionAjnaDepositBorrow = "ajna_deposit_borrow"
	ActionAjnaRepayWithdraw = "ajna_repay_withdraw"
)

// Operation keys of the registry document.
const (
	OperationAaveV3PaybackWithdraw = "aave_v3_payback_withdraw"
	OperationAjnaOpenMultiply      = "ajna_open_multiply"
	OperationAjnaAdjustRiskUp      = "ajna_adjust_risk_up"
	OperationAjnaAdjustRiskDown    = "ajna_adjust_risk_down"
	OperationAjnaCloseToQuote      = "ajna_close_to_quote"
	OperationAjnaCloseToCollateral = "ajna_close_to_collateral"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidRegistry   = errors.New("invalid operation registry")
	ErrUnknownAction     = errors.New("unknown action")
	ErrUnknownOperation  = errors.New("unknown operation")
	ErrOperationMismatch = errors.New("operation does not match its definition")
)

type registryDocument struct {
	Networks map[string]networkEntry `yaml:"networks"`
}

type networkEntry struct {
	Actions    map[string]string         `yaml:"actions"`
	Operations map[string]operationEntry `yaml:"operations"`
}

type operationEntry struct {
	Name    string                 `yaml:"name"`
	Actions []operationActionEntry `yaml:"actions"`
}

type operationActionEntry struct {
	Action   string `yaml:"action"`
	Optional bool   `yaml:"optional"`
}

// Registry is the operation registry of a single network.
type Registry struct {
	Network    string
	actions    map[string]string
	operations map[string]operationEntry
}

// ActionHash is the service registry identifier of an action: keccak256 of its registry name.
func ActionHash(serviceName string) common.Hash {
	return crypto.Keccak256Hash([]byte(serviceName))
}

// LoadRegistry returns the embedded registry of network.
func LoadRegistry(network string) (*Registry, error) {
	return ParseRegistry(operationsYAML, network)
}

// ParseRegistry parses a registry document and selects network.
func ParseRegistry(data []byte, network string) (*Registry, error) {
	var doc registryDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrInvalidRegistry, fmt.Errorf("failed to parse registry: %w", err))
	}

	entry, ok := doc.Networks[network]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
	}

	for key, name := range entry.Actions {
		if name == "" {
			return nil, errors.Join(ErrInvalidRegistry, fmt.Errorf("action %s has no service registry name", key))
		}
	}
	for key, op := range entry.Operations {
		if op.Name == "" || len(op.Actions) == 0 {
			return nil, errors.Join(ErrInvalidRegistry, fmt.Errorf("operation %s needs a name and actions", key))
		}
		for _, a := range op.Actions {
			if _, ok := entry.Actions[a.Action]; !ok {
				return nil, errors.Join(ErrInvalidRegistry, fmt.Errorf("operation %s references unknown action %s", key, a.Action))
			}
		}
	}

	return &Registry{Network: network, actions: entry.Actions, operations: entry.Operations}, nil
}

// ServiceName returns the service registry name of an action key.
func (r *Registry) ServiceName(action string) (string, error) {
	name, ok := r.actions[action]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrUnknownAction, action, r.Network)
	}
	return name, nil
}

// OperationName returns the registered name of an operation key.
func (r *Registry) OperationName(operation string) (string, error) {
	op, ok := r.operations[operation]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrUnknownOperation, operation, r.Network)
	}
	return op.Name, nil
}

// Definition returns the registered action list of an operation key.
func (r *Registry) Definition(operation string) (types.OperationDefinition, error) {
	op, ok := r.operations[operation]
	if !ok {
		return types.OperationDefinition{}, fmt.Errorf("%w: %s on %s", ErrUnknownOperation, operation, r.Network)
	}

	def := types.OperationDefinition{Name: op.Name, Actions: make([]types.OperationAction, 0, len(op.Actions))}
	for _, a := range op.Actions {
		def.Actions = append(def.Actions, types.OperationAction{
			Hash:     ActionHash(r.actions[a.Action]),
			Optional: a.Optional,
		})
	}
	return def, nil
}
