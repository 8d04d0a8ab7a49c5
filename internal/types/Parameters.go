/*

This file contains the protocol constants the simulations and operations depend on.
They are grouped in a struct so tests and alternative deployments can override them.

*/

package types

import sdkmath "cosmossdk.io/math"

type ProtocolParameters struct {
	// --- Pool Fees ---
	OriginationFeeFloor sdkmath.LegacyDec `json:"origination_fee_floor"` // Minimum origination fee rate
	WeeksPerYear        int64             `json:"weeks_per_year"`        // Annual rate divisor giving one week of interest

	// --- Swap Fees ---
	FeeBase             int64             `json:"fee_base"`              // Denominator of fee values expressed in basis points
	DefaultSwapFee      int64             `json:"default_swap_fee"`      // Protocol swap fee, in FeeBase units
	FeeEstimateInflator sdkmath.LegacyDec `json:"fee_estimate_inflator"` // Headroom applied to fees collected after the swap

	// --- Flashloans ---
	FlashloanFee      int64             `json:"flashloan_fee"`      // Flashloan venue fee, in FeeBase units
	FlashloanProvider FlashloanProvider `json:"flashloan_provider"` // Venue used by operations that borrow atomically

	// --- Validation ---
	LupProximityThreshold sdkmath.LegacyDec `json:"lup_proximity_threshold"` // Share of the LUP at which generate warns

	// --- ABI ---
	MaxUint sdkmath.Int `json:"max_uint"` // "Everything" sentinel understood by the action contracts
}
