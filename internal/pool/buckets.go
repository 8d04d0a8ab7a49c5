/*

This file contains the bucket ordering and validation rules every pool walk relies on.
Buckets are always walked ascending by index, and a higher index must always mean a lower price.

*/

package pool

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dma-labs/ajna-dma/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidBuckets   = errors.New("invalid bucket set")
	ErrInvalidPool      = errors.New("invalid pool snapshot")
	ErrIndexOutOfRange  = errors.New("bucket index out of range")
	ErrPriceOutOfRange  = errors.New("price outside of the bucket range")
	ErrBucketNotPresent = errors.New("bucket not present in pool")
)

// SortBuckets returns a copy of buckets ordered ascending by index.
func SortBuckets(buckets []types.Bucket) []types.Bucket {
	sorted := make([]types.Bucket, len(buckets))
	copy(sorted, buckets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})
	return sorted
}

// ValidateBuckets rejects bucket sets the walks cannot terminate on or would misprice:
// nil or negative amounts, duplicate indices, and prices that do not strictly fall as the index grows.
func ValidateBuckets(buckets []types.Bucket) error {
	sorted := SortBuckets(buckets)
	for i, b := range sorted {
		if b.Price.IsNil() || b.QuoteTokens.IsNil() {
			return errors.Join(ErrInvalidBuckets, fmt.Errorf("bucket %d has a missing price or deposit", b.Index))
		}
		if !b.Price.IsPositive() {
			return errors.Join(ErrInvalidBuckets, fmt.Errorf("bucket %d has non-positive price %s", b.Index, b.Price))
		}
		if b.QuoteTokens.IsNegative() {
			return errors.Join(ErrInvalidBuckets, fmt.Errorf("bucket %d has negative deposit %s", b.Index, b.QuoteTokens))
		}
		if (!b.BucketLPs.IsNil() && b.BucketLPs.IsNegative()) || (!b.Collateral.IsNil() && b.Collateral.IsNegative()) {
			return errors.Join(ErrInvalidBuckets, fmt.Errorf("bucket %d has negative LP or collateral balance", b.Index))
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if prev.Index == b.Index {
			return errors.Join(ErrInvalidBuckets, fmt.Errorf("duplicate bucket index %d", b.Index))
		}
		if !prev.Price.GT(b.Price) {
			return errors.Join(ErrInvalidBuckets, fmt.Errorf(
				"price must fall as index grows: bucket %d at %s, bucket %d at %s",
				prev.Index, prev.Price, b.Index, b.Price))
		}
	}
	return nil
}

// ValidatePool checks the bucket set plus the scalar fields the simulations read.
func ValidatePool(p types.Pool) error {
	if err := ValidateBuckets(p.Buckets); err != nil {
		return err
	}
	if p.Debt.IsNil() || p.LowestUtilizedPrice.IsNil() || p.HighestThresholdPrice.IsNil() {
		return errors.Join(ErrInvalidPool, errors.New("debt, lup and htp are required"))
	}
	if p.Debt.IsNegative() {
		return errors.Join(ErrInvalidPool, fmt.Errorf("negative pool debt %s", p.Debt))
	}
	if p.LoansCount < 0 || p.TotalAuctionsInPool < 0 {
		return errors.Join(ErrInvalidPool, errors.New("loan and auction counts must not be negative"))
	}
	return nil
}

// FindByIndex returns the position of the bucket with the given index in buckets, or -1.
func FindByIndex(buckets []types.Bucket, index int64) int {
	for i, b := range buckets {
		if b.Index == index {
			return i
		}
	}
	return -1
}
