package state

import (
	"context"
	"os"
	"strconv"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/dma-labs/ajna-dma/internal/pool"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

func testPool() types.Pool {
	return types.Pool{
		PoolAddress: common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		Buckets: []types.Bucket{
			{Index: 1, Price: dec("100"), QuoteTokens: dec("50"), BucketLPs: dec("50"), Collateral: dec("0")},
			{Index: 2, Price: dec("90"), QuoteTokens: dec("200"), BucketLPs: dec("200"), Collateral: dec("0")},
		},
		LowestUtilizedPrice:        dec("90"),
		LowestUtilizedPriceIndex:   2,
		HighestThresholdPrice:      dec("80"),
		HighestThresholdPriceIndex: 3,
		Debt:                       dec("120"),
		T0Debt:                     dec("120"),
		PendingInflator:            dec("1"),
		InterestRate:               dec("0.05"),
		LoansCount:                 1,
		DepositSize:                dec("250"),
		PoolMinDebtAmount:          dec("10"),
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := SnapshotKey{BlockNumber: 100, Variant: "pool"}

	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, key, testPool()))
	got, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Debt.Equal(dec("120")))
	require.Len(t, got.Buckets, 2)

	// Callers get their own copy.
	got.Buckets[0].QuoteTokens = dec("1")
	again, _, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, again.Buckets[0].QuoteTokens.Equal(dec("50")))
}

func TestSnapshotCache(t *testing.T) {
	ctx := context.Background()
	var hits, misses int
	c, err := NewSnapshotCache(NewMemoryStore(), func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	})
	require.NoError(t, err)

	key := SnapshotKey{BlockNumber: 10, Variant: "pool"}
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	require.NoError(t, c.Put(ctx, key, testPool()))
	p, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.LowestUtilizedPriceIndex)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	_, err = c.Get(ctx, SnapshotKey{Variant: "pool"})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestSnapshotCacheRejectsInvalidPools(t *testing.T) {
	c, err := NewSnapshotCache(NewMemoryStore(), nil)
	require.NoError(t, err)

	bad := testPool()
	bad.Buckets[1].Price = dec("200")
	err = c.Put(context.Background(), SnapshotKey{BlockNumber: 1, Variant: "pool"}, bad)
	assert.ErrorIs(t, err, pool.ErrInvalidBuckets)

	_, err = NewSnapshotCache(nil, nil)
	assert.ErrorIs(t, err, ErrNilStorage)
}

func TestSnapshotCachePrune(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c, err := NewSnapshotCache(store, nil)
	require.NoError(t, err)

	pruned, err := c.Prune(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, pruned)

	for _, block := range []uint64{1, 5, 10, 20} {
		require.NoError(t, c.Put(ctx, SnapshotKey{BlockNumber: block, Variant: "a"}, testPool()))
	}
	require.NoError(t, c.Put(ctx, SnapshotKey{BlockNumber: 20, Variant: "b"}, testPool()))

	pruned, err = c.Prune(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	variants, err := c.Variants(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, variants)

	latest, ok, err := store.LatestBlock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(20), latest)

	_, ok, err = store.Get(ctx, SnapshotKey{BlockNumber: 10, Variant: "a"})
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestPostgresStore runs against a real database when DMA_TEST_DB_HOST is set.
func TestPostgresStore(t *testing.T) {
	host := os.Getenv("DMA_TEST_DB_HOST")
	if host == "" {
		t.Skip("DMA_TEST_DB_HOST not set")
	}
	port, err := strconv.Atoi(os.Getenv("DMA_TEST_DB_PORT"))
	if err != nil {
		port = 5432
	}
	db, err := OpenDB(DBConfig{
		Host:     host,
		Port:     port,
		User:     os.Getenv("DMA_TEST_DB_USER"),
		Password: os.Getenv("DMA_TEST_DB_PASSWORD"),
		DBName:   os.Getenv("DMA_TEST_DB_NAME"),
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	defer CloseDB(db)
	require.NoError(t, DropSchema(db))
	require.NoError(t, EnsureSchema(db))

	ctx := context.Background()
	s, err := NewPostgresStore(db)
	require.NoError(t, err)

	key := SnapshotKey{BlockNumber: 42, Variant: "pool"}
	require.NoError(t, s.Put(ctx, key, testPool()))
	got, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Debt.Equal(dec("120")))

	variants, err := s.Variants(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, []string{"pool"}, variants)

	pruned, err := s.PruneBelow(ctx, 43)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	_, ok, err = s.LatestBlock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
