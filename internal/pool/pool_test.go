package pool

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

func assertDec(t *testing.T, want string, got sdkmath.LegacyDec) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func bucket(index int64, price, quote string) types.Bucket {
	return types.Bucket{
		Index:       index,
		Price:       dec(price),
		QuoteTokens: dec(quote),
		BucketLPs:   dec(quote),
		Collateral:  sdkmath.LegacyZeroDec(),
	}
}

func twoBucketPool(debt string, lupIndex int64) types.Pool {
	return types.Pool{
		Buckets:                  []types.Bucket{bucket(2, "90", "200"), bucket(1, "100", "50")},
		Debt:                     dec(debt),
		LowestUtilizedPriceIndex: lupIndex,
	}
}

func TestSortBucketsDoesNotTouchInput(t *testing.T) {
	in := []types.Bucket{bucket(3, "80", "1"), bucket(1, "100", "1"), bucket(2, "90", "1")}

	sorted := SortBuckets(in)

	assert.Equal(t, []int64{1, 2, 3}, []int64{sorted[0].Index, sorted[1].Index, sorted[2].Index})
	assert.Equal(t, int64(3), in[0].Index)
}

func TestValidateBuckets(t *testing.T) {
	tests := []struct {
		name    string
		buckets []types.Bucket
		wantErr bool
	}{
		{"empty", nil, false},
		{"ordered", []types.Bucket{bucket(1, "100", "50"), bucket(2, "90", "200")}, false},
		{"unsorted input is fine", []types.Bucket{bucket(2, "90", "200"), bucket(1, "100", "50")}, false},
		{"duplicate index", []types.Bucket{bucket(1, "100", "50"), bucket(1, "100", "10")}, true},
		{"price rises with index", []types.Bucket{bucket(1, "90", "50"), bucket(2, "100", "200")}, true},
		{"flat price", []types.Bucket{bucket(1, "90", "50"), bucket(2, "90", "200")}, true},
		{"negative deposit", []types.Bucket{bucket(1, "100", "-1")}, true},
		{"zero price", []types.Bucket{bucket(1, "0", "1")}, true},
		{"missing deposit", []types.Bucket{{Index: 1, Price: dec("1")}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBuckets(tt.buckets)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBuckets)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePoolRequiresScalars(t *testing.T) {
	p := twoBucketPool("120", 2)
	assert.ErrorIs(t, ValidatePool(p), ErrInvalidPool)

	p.LowestUtilizedPrice = dec("90")
	p.HighestThresholdPrice = dec("10")
	assert.NoError(t, ValidatePool(p))

	p.LoansCount = -1
	assert.ErrorIs(t, ValidatePool(p), ErrInvalidPool)
}

func TestLiquidityAggregates(t *testing.T) {
	p := twoBucketPool("120", 2)

	assertDec(t, "250", TotalLiquidity(p.Buckets))
	assertDec(t, "130", Liquidity(p))
	assertDec(t, "130", LiquidityInLupBucket(p))
}

func TestLiquidityInLupBucketClampsAtZero(t *testing.T) {
	p := twoBucketPool("120", 1)
	assert.True(t, LiquidityInLupBucket(p).IsZero())

	p = twoBucketPool("500", 2)
	assert.True(t, LiquidityInLupBucket(p).IsZero())
	assertDec(t, "-250", Liquidity(p))
}

func TestFindByIndex(t *testing.T) {
	buckets := []types.Bucket{bucket(1, "100", "50"), bucket(2, "90", "200")}
	assert.Equal(t, 1, FindByIndex(buckets, 2))
	assert.Equal(t, -1, FindByIndex(buckets, 3))
}

func TestPriceAt(t *testing.T) {
	p, err := PriceAt(UnitPriceIndex)
	require.NoError(t, err)
	assertDec(t, "1", p)

	p, err = PriceAt(UnitPriceIndex - 1)
	require.NoError(t, err)
	assertDec(t, "1.005", p)

	p, err = PriceAt(UnitPriceIndex + 1)
	require.NoError(t, err)
	assertDec(t, "0.995024875621890547", p)

	_, err = PriceAt(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = PriceAt(MaxBucketIndex)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestPricesFallAsIndexGrows(t *testing.T) {
	prev, err := PriceAt(0)
	require.NoError(t, err)
	for _, i := range []int64{1, 100, 2000, 4156, 5000, 7387} {
		p, err := PriceAt(i)
		require.NoError(t, err)
		assert.True(t, p.LT(prev), "index %d", i)
		prev = p
	}
}

func TestIndexOfPrice(t *testing.T) {
	for _, i := range []int64{0, 1, 3000, 4156, 4157, 6000, 7387} {
		p, err := PriceAt(i)
		require.NoError(t, err)
		got, err := IndexOfPrice(p)
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}

	// Halfway between 1.005 and 1 resolves to the higher price.
	got, err := IndexOfPrice(dec("1.0025"))
	require.NoError(t, err)
	assert.Equal(t, UnitPriceIndex-1, got)

	got, err = IndexOfPrice(dec("1.001"))
	require.NoError(t, err)
	assert.Equal(t, UnitPriceIndex, got)

	_, err = IndexOfPrice(sdkmath.LegacyZeroDec())
	assert.ErrorIs(t, err, ErrPriceOutOfRange)
}

func TestGridIndexOfPrice(t *testing.T) {
	got, err := GridIndexOfPrice(sdkmath.LegacyOneDec())
	require.NoError(t, err)
	assert.Equal(t, UnitPriceIndex, got)

	got, err = GridIndexOfPrice(dec("1.002"))
	require.NoError(t, err)
	assert.Equal(t, UnitPriceIndex, got)

	// Far below the lowest bucket, IndexOfPrice alone would settle on the last index.
	tiny := sdkmath.LegacyNewDecWithPrec(1, 18)
	last, err := IndexOfPrice(tiny)
	require.NoError(t, err)
	assert.Equal(t, MaxBucketIndex-1, last)
	_, err = GridIndexOfPrice(tiny)
	assert.ErrorIs(t, err, ErrPriceOutOfRange)

	_, err = GridIndexOfPrice(dec("1000000000000"))
	assert.ErrorIs(t, err, ErrPriceOutOfRange)
}
