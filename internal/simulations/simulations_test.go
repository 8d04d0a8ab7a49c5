package simulations

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/pool"
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

func assertDecApprox(t *testing.T, want string, got sdkmath.LegacyDec, tolerance string) {
	t.Helper()
	assert.Truef(t, dec(want).Sub(got).Abs().LTE(dec(tolerance)), "want %s ± %s, got %s", want, tolerance, got)
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

func testPool(debt string, buckets ...types.Bucket) types.Pool {
	return types.Pool{
		Buckets:                    buckets,
		LowestUtilizedPrice:        dec("90"),
		LowestUtilizedPriceIndex:   2,
		HighestThresholdPrice:      dec("10"),
		HighestThresholdPriceIndex: 3695,
		Debt:                       dec(debt),
		T0Debt:                     dec(debt),
		PendingInflator:            sdkmath.LegacyOneDec(),
		InterestRate:               dec("0.05"),
		LoansCount:                 2,
		DepositSize:                dec("250"),
		PoolMinDebtAmount:          dec("10"),
	}
}

func twoBucketPool(debt string) types.Pool {
	return testPool(debt, bucket(1, "100", "50"), bucket(2, "90", "200"))
}

func TestCalculateNewLup(t *testing.T) {
	tests := []struct {
		name       string
		pool       types.Pool
		debtChange string
		wantPrice  string
		wantIndex  int64
	}{
		{"debt spills past first bucket", twoBucketPool("0"), "120", "90", 2},
		{"first bucket exactly covers", twoBucketPool("0"), "50", "100", 1},
		{"no debt keeps best bucket", twoBucketPool("0"), "0", "100", 1},
		{"existing debt counts", twoBucketPool("100"), "20", "90", 2},
		{"repayment moves lup up", twoBucketPool("120"), "-100", "100", 1},
		{"insolvent falls to worst bucket", twoBucketPool("0"), "300", "90", 2},
		{
			"insolvent with three buckets",
			testPool("0", bucket(3, "80", "10"), bucket(1, "100", "50"), bucket(2, "90", "200")),
			"261", "80", 3,
		},
		{"no buckets keeps current lup", testPool("0"), "1000", "90", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lup, err := CalculateNewLup(tt.pool, dec(tt.debtChange))
			require.NoError(t, err)
			assertDec(t, tt.wantPrice, lup.Price)
			assert.Equal(t, tt.wantIndex, lup.Index)
		})
	}
}

func TestCalculateNewLupNamesAPoolBucket(t *testing.T) {
	p := testPool("40", bucket(1, "100", "50"), bucket(2, "90", "200"), bucket(5, "70", "25"))
	for _, change := range []string{"-40", "0", "10", "11", "209", "210", "211", "235", "236", "10000"} {
		lup, err := CalculateNewLup(p, dec(change))
		require.NoError(t, err)
		assert.NotEqual(t, -1, pool.FindByIndex(p.Buckets, lup.Index), "debt change %s", change)
	}
}

func TestCalculateNewLupRejectsInvalidInput(t *testing.T) {
	p := testPool("0", bucket(1, "90", "50"), bucket(2, "100", "200"))
	_, err := CalculateNewLup(p, dec("10"))
	assert.ErrorIs(t, err, pool.ErrInvalidBuckets)

	_, err = CalculateNewLup(twoBucketPool("0"), sdkmath.LegacyDec{})
	assert.ErrorIs(t, err, ErrInvalidDebtChange)
}

func TestSimulatePoolWithoutChangeKeepsState(t *testing.T) {
	p := twoBucketPool("120")

	simulated, err := SimulatePool(p, sdkmath.LegacyZeroDec(), dec("20"), dec("4"))
	require.NoError(t, err)

	assertDec(t, "120", simulated.Debt)
	assertDec(t, "90", simulated.LowestUtilizedPrice)
	assert.Equal(t, int64(2), simulated.LowestUtilizedPriceIndex)
	assertDec(t, "10", simulated.HighestThresholdPrice)
	assert.Equal(t, p.HighestThresholdPriceIndex, simulated.HighestThresholdPriceIndex)
}

func TestSimulatePoolRaisesHtp(t *testing.T) {
	p := twoBucketPool("0")

	simulated, err := SimulatePool(p, dec("200"), dec("200"), dec("1"))
	require.NoError(t, err)

	wantIndex, err := pool.IndexOfPrice(dec("200"))
	require.NoError(t, err)
	assertDec(t, "200", simulated.Debt)
	assertDec(t, "200", simulated.HighestThresholdPrice)
	assert.Equal(t, wantIndex, simulated.HighestThresholdPriceIndex)
	assertDec(t, "90", simulated.LowestUtilizedPrice)

	// The snapshot itself is untouched.
	assertDec(t, "0", p.Debt)
	assertDec(t, "10", p.HighestThresholdPrice)
}

func TestSimulatePoolZeroCollateral(t *testing.T) {
	simulated, err := SimulatePool(twoBucketPool("120"), dec("-20"), sdkmath.LegacyZeroDec(), sdkmath.LegacyZeroDec())
	require.NoError(t, err)
	assertDec(t, "100", simulated.Debt)
	assertDec(t, "10", simulated.HighestThresholdPrice)
}

func earnPosition(price, quote string, index int64) types.EarnPosition {
	return types.EarnPosition{
		QuoteTokenAmount:      dec(quote),
		CollateralTokenAmount: sdkmath.LegacyZeroDec(),
		Price:                 dec(price),
		PriceIndex:            index,
	}
}

func threeBucketPool() types.Pool {
	return testPool("120", bucket(1, "100", "50"), bucket(2, "90", "200"), bucket(3, "80", "100"))
}

func TestCalculateNewLupWhenAdjusting(t *testing.T) {
	p := threeBucketPool()
	position := earnPosition("90", "150", 2)
	target := earnPosition("80", "150", 3)

	lup, ok, err := CalculateNewLupWhenAdjusting(p, position, &target)
	require.NoError(t, err)
	require.True(t, ok)
	assertDec(t, "80", lup.Price)
	assert.Equal(t, int64(3), lup.Index)

	// The snapshot buckets are not modified.
	assertDec(t, "200", p.Buckets[1].QuoteTokens)
	assertDec(t, "100", p.Buckets[2].QuoteTokens)
}

func TestCalculateNewLupWhenAdjustingWithoutSimulation(t *testing.T) {
	p := threeBucketPool()

	lup, ok, err := CalculateNewLupWhenAdjusting(p, earnPosition("90", "150", 2), nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assertDec(t, "90", lup.Price)
	assert.Equal(t, int64(2), lup.Index)
}

func TestCalculateNewLupWhenAdjustingMissingBucket(t *testing.T) {
	target := earnPosition("80", "10", 3)

	lup, ok, err := CalculateNewLupWhenAdjusting(threeBucketPool(), earnPosition("95", "10", 0), &target)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, lup.Price.IsZero())
	assert.Equal(t, int64(0), lup.Index)
}

func TestCalculateNewLupWhenAdjustingIntoNewBucket(t *testing.T) {
	price := func(i int64) sdkmath.LegacyDec {
		p, err := pool.PriceAt(i)
		require.NoError(t, err)
		return p
	}
	p := testPool("150",
		types.Bucket{Index: 3000, Price: price(3000), QuoteTokens: dec("100")},
		types.Bucket{Index: 3001, Price: price(3001), QuoteTokens: dec("100")},
	)
	position := types.EarnPosition{Price: price(3000), QuoteTokenAmount: dec("100"), PriceIndex: 3000}
	target := types.EarnPosition{Price: price(3005), QuoteTokenAmount: dec("100"), PriceIndex: 3005}

	lup, ok, err := CalculateNewLupWhenAdjusting(p, position, &target)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3005), lup.Index)
	assert.Len(t, p.Buckets, 2)
}

func TestCalculateNewLupWhenAdjustingUncoveredDebt(t *testing.T) {
	p := threeBucketPool()
	p.Debt = dec("340")
	position := earnPosition("90", "200", 2)
	target := earnPosition("90", "0", 2)

	lup, ok, err := CalculateNewLupWhenAdjusting(p, position, &target)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), lup.Index)
}

func TestGetBorrowOriginationFee(t *testing.T) {
	assertDec(t, "1.923076923076923000", GetBorrowOriginationFee(dec("0.1"), dec("1000")))
	assertDec(t, "0.5", GetBorrowOriginationFee(dec("0.01"), dec("1000")))
	assert.True(t, GetBorrowOriginationFee(dec("0.1"), sdkmath.LegacyZeroDec()).IsZero())
}

func TestGetNeutralPrice(t *testing.T) {
	p := twoBucketPool("120")

	np, err := GetNeutralPrice(p, sdkmath.LegacyZeroDec(), dec("60"), dec("1"))
	require.NoError(t, err)
	// (1 + 0.05) * 90 * 60 / 90
	assertDecApprox(t, "63", np, "0.000000000001")
}

func TestGetNeutralPriceEdgeCases(t *testing.T) {
	p := twoBucketPool("120")

	np, err := GetNeutralPrice(p, sdkmath.LegacyZeroDec(), dec("60"), sdkmath.LegacyZeroDec())
	require.NoError(t, err)
	assert.True(t, np.IsZero())

	p.LoansCount = 0
	np, err = GetNeutralPrice(p, sdkmath.LegacyZeroDec(), dec("60"), dec("1"))
	require.NoError(t, err)
	assert.True(t, np.IsPositive())
}

func TestCalculateApyPerDays(t *testing.T) {
	got, err := CalculateApyPerDays(dec("100"), dec("0.05"), 1)
	require.NoError(t, err)
	assertDecApprox(t, "0.051271096376024", got, "0.000000000001")

	got, err = CalculateApyPerDays(dec("100"), sdkmath.LegacyZeroDec(), 30)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = CalculateApyPerDays(sdkmath.LegacyZeroDec(), dec("0.05"), 30)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
