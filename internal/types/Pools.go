/*

This is a custom type for Ajna pools which contains all the state needed for simulating
liquidity changes. A Pool is an immutable snapshot read from chain before a simulation starts.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Bucket is a single price level of the pool's order-book-like deposit structure.
type Bucket struct {
	Price       sdkmath.LegacyDec `json:"price"`        // Bucket price in quote token per collateral token
	Index       int64             `json:"index"`        // Ajna bucket index, lower index means higher price
	QuoteTokens sdkmath.LegacyDec `json:"quote_tokens"` // Quote token deposit available in the bucket
	BucketLPs   sdkmath.LegacyDec `json:"bucket_lps"`   // Pool share units issued against the bucket
	Collateral  sdkmath.LegacyDec `json:"collateral"`   // Collateral held by the bucket
}

type Pool struct {
	PoolAddress     common.Address `json:"pool_address"`
	CollateralToken common.Address `json:"collateral_token"`
	QuoteToken      common.Address `json:"quote_token"`

	Buckets []Bucket `json:"buckets"`

	LowestUtilizedPrice        sdkmath.LegacyDec `json:"lowest_utilized_price"`
	LowestUtilizedPriceIndex   int64             `json:"lowest_utilized_price_index"`
	HighestThresholdPrice      sdkmath.LegacyDec `json:"highest_threshold_price"`
	HighestThresholdPriceIndex int64             `json:"highest_threshold_price_index"`

	Debt            sdkmath.LegacyDec `json:"debt"`             // Total pool debt including accrued interest
	T0Debt          sdkmath.LegacyDec `json:"t0_debt"`          // Debt principal at origination
	PendingInflator sdkmath.LegacyDec `json:"pending_inflator"` // Interest inflator not yet applied on chain
	InterestRate    sdkmath.LegacyDec `json:"interest_rate"`    // Annualized borrower rate, 0.05 means 5%
	LendApr         sdkmath.LegacyDec `json:"lend_apr"`         // Annualized rate paid to depositors

	LoansCount          int64 `json:"loans_count"`
	TotalAuctionsInPool int64 `json:"total_auctions_in_pool"`

	DepositSize       sdkmath.LegacyDec `json:"deposit_size"`
	PoolMinDebtAmount sdkmath.LegacyDec `json:"pool_min_debt_amount"` // Dust limit for a single loan
}

// WithBuckets returns a shallow copy of the pool holding a new bucket slice.
func (p Pool) WithBuckets(buckets []Bucket) Pool {
	p.Buckets = buckets
	return p
}

// CloneBuckets copies the bucket slice so callers can modify it without touching the snapshot.
func (p Pool) CloneBuckets() []Bucket {
	out := make([]Bucket, len(p.Buckets))
	copy(out, p.Buckets)
	return out
}
