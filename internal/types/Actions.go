/*

This file contains the types for DMA actions: single calls executed by the operation executor,
the named operations grouping them, and the static operation definitions from the registry.

*/

package types

import "github.com/ethereum/go-ethereum/common"

// ActionCall is a single, executable step of an operation.
type ActionCall struct {
	TargetHash common.Hash `json:"target_hash"` // keccak256 of the action's service registry name
	CallData   []byte      `json:"call_data"`   // Encoded execute(bytes,uint8[]) call
	Skipped    bool        `json:"skipped"`     // Executor omits the call but keeps the plan shape
	Optional   bool        `json:"optional"`    // Copied from the operation definition

	// Inner is set on flashloan calls only: the calls encoded into the flashloan payload.
	Inner []ActionCall `json:"inner,omitempty"`
}

// Operation holds the ordered calls of a named operation.
type Operation struct {
	Name  string       `json:"operation_name"`
	Calls []ActionCall `json:"calls"`
}

// OperationAction is one entry of an operation definition.
type OperationAction struct {
	Hash     common.Hash `json:"hash"`
	Optional bool        `json:"optional"`
}

// OperationDefinition mirrors what is registered on chain for an operation.
// Flashloan inner calls appear flattened right after the flashloan action.
type OperationDefinition struct {
	Name    string            `json:"name"`
	Actions []OperationAction `json:"actions"`
}
