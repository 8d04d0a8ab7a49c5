/*

This file contains the result type returned by every strategy: the projected position with its
diagnostics, and a transaction the external executor can submit without further transformation.

*/

package types

import "github.com/ethereum/go-ethereum/common"

// Tx is a submittable transaction payload.
type Tx struct {
	To    common.Address `json:"to"`
	Data  string         `json:"data"`  // 0x-prefixed calldata
	Value string         `json:"value"` // Wei, decimal string
}

// Simulation is the projected outcome of a strategy.
type Simulation[P any] struct {
	Swaps          []Swap       `json:"swaps"`
	Errors         []Diagnostic `json:"errors"`
	Warnings       []Diagnostic `json:"warnings"`
	Notices        []Diagnostic `json:"notices"`
	Successes      []Diagnostic `json:"successes"`
	TargetPosition P            `json:"target_position"`
	Position       P            `json:"position"`
}

// Strategy is the uniform strategy result.
type Strategy[P any] struct {
	Simulation Simulation[P] `json:"simulation"`
	Tx         Tx            `json:"tx"`
}

// Diagnostics regroups the simulation findings.
func (s Strategy[P]) Diagnostics() Diagnostics {
	return Diagnostics{
		Errors:    s.Simulation.Errors,
		Warnings:  s.Simulation.Warnings,
		Notices:   s.Simulation.Notices,
		Successes: s.Simulation.Successes,
	}
}
