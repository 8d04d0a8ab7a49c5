/*

This file contains the default protocol parameters for the decision layer.

Each value mirrors what the pool and action contracts do on chain. Changing one without the matching
contract upgrade makes previews disagree with execution, so overrides belong in tests only.

*/

package config

import (
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/types"
)

// DefaultProtocolParameters provides the parameters the pool contracts and the operation executor use.
var DefaultProtocolParameters = types.ProtocolParameters{
	// --- Pool Fees ---
	OriginationFeeFloor: sdkmath.LegacyNewDecWithPrec(5, 4), // 5 bps.
	// The pool charges the greater of one week of interest or this floor on new debt.

	WeeksPerYear: 52,
	// Annual borrower rate divided by this gives the weekly rate of the origination fee.

	// --- Swap Fees ---
	FeeBase: 10000, // Fees are expressed in basis points.

	DefaultSwapFee: 20, // 0.2% collected by the swap action.

	FeeEstimateInflator: sdkmath.LegacyNewDecWithPrec(2, 1), // +20% on target-token fee estimates.
	// Fees taken from the target token depend on the executed amount, so the preview overestimates them.

	// --- Flashloans ---
	FlashloanFee:      0, // Balancer charges no flashloan fee.
	FlashloanProvider: types.FlashloanProviderBalancer,

	// --- Validation ---
	LupProximityThreshold: sdkmath.LegacyNewDecWithPrec(95, 2),
	// A threshold price above 95% of the LUP puts the position one small price move from the LUP.

	// --- ABI ---
	MaxUint: sdkmath.NewIntFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))),
}
