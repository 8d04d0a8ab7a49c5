package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/dma-labs/ajna-dma/internal/logger"
	"github.com/dma-labs/ajna-dma/internal/pool"
	"github.com/dma-labs/ajna-dma/internal/types"
)

var cacheLogger = logger.GetForComponent("snapshot_cache")

var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotCache serves pool snapshots by (block number, variant) from an injected storage.
type SnapshotCache struct {
	storage SnapshotStorage
	observe func(hit bool)
}

// NewSnapshotCache wraps storage. observe, when set, is told about every lookup.
func NewSnapshotCache(storage SnapshotStorage, observe func(hit bool)) (*SnapshotCache, error) {
	if storage == nil {
		return nil, ErrNilStorage
	}
	if observe == nil {
		observe = func(bool) {}
	}
	return &SnapshotCache{storage: storage, observe: observe}, nil
}

func (c *SnapshotCache) Get(ctx context.Context, key SnapshotKey) (types.Pool, error) {
	if err := key.validate(); err != nil {
		return types.Pool{}, err
	}
	p, ok, err := c.storage.Get(ctx, key)
	if err != nil {
		return types.Pool{}, err
	}
	c.observe(ok)
	if !ok {
		return types.Pool{}, fmt.Errorf("%w: block %d variant %s", ErrSnapshotNotFound, key.BlockNumber, key.Variant)
	}
	return p, nil
}

// Put stores a snapshot after checking the walks can run on it.
func (c *SnapshotCache) Put(ctx context.Context, key SnapshotKey, p types.Pool) error {
	if err := key.validate(); err != nil {
		return err
	}
	if err := pool.ValidatePool(p); err != nil {
		return err
	}
	if err := c.storage.Put(ctx, key, p); err != nil {
		return err
	}
	cacheLogger.Debug().
		Uint64("block", key.BlockNumber).
		Str("variant", key.Variant).
		Int("buckets", len(p.Buckets)).
		Msg("Snapshot stored")
	return nil
}

func (c *SnapshotCache) Variants(ctx context.Context, blockNumber uint64) ([]string, error) {
	return c.storage.Variants(ctx, blockNumber)
}

// Prune drops snapshots more than retention blocks older than the newest one.
func (c *SnapshotCache) Prune(ctx context.Context, retention uint64) (int64, error) {
	latest, ok, err := c.storage.LatestBlock(ctx)
	if err != nil {
		return 0, err
	}
	if !ok || latest <= retention {
		return 0, nil
	}

	pruned, err := c.storage.PruneBelow(ctx, latest-retention)
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		cacheLogger.Info().
			Uint64("latestBlock", latest).
			Uint64("belowBlock", latest-retention).
			Int64("pruned", pruned).
			Msg("Pruned stale snapshots")
	}
	return pruned, nil
}
