/*

This file contains the storages behind the pool snapshot cache.

A snapshot is the pool state read at one block. Entries are keyed by block number and a variant
naming what was read (usually the pool address, optionally with a reader suffix), and are never
updated in place: a block's state does not change once read.

*/

package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/lib/pq"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidKey   = errors.New("snapshot key needs a block number and a variant")
	ErrNilStorage   = errors.New("snapshot cache needs a storage")
	ErrNilDatabase  = errors.New("database not initialized")
	ErrCorruptEntry = errors.New("stored snapshot cannot be decoded")
)

// SnapshotKey identifies a snapshot.
type SnapshotKey struct {
	BlockNumber uint64 `json:"block_number"`
	Variant     string `json:"variant"`
}

func (k SnapshotKey) validate() error {
	if k.BlockNumber == 0 || k.Variant == "" {
		return fmt.Errorf("%w: %d/%q", ErrInvalidKey, k.BlockNumber, k.Variant)
	}
	return nil
}

// SnapshotStorage persists pool snapshots.
type SnapshotStorage interface {
	Get(ctx context.Context, key SnapshotKey) (types.Pool, bool, error)
	Put(ctx context.Context, key SnapshotKey, pool types.Pool) error
	// Variants lists the variants stored at a block, sorted.
	Variants(ctx context.Context, blockNumber uint64) ([]string, error)
	// PruneBelow deletes every snapshot older than blockNumber and returns how many went.
	PruneBelow(ctx context.Context, blockNumber uint64) (int64, error)
	// LatestBlock is the newest block holding a snapshot, ok is false when empty.
	LatestBlock(ctx context.Context) (uint64, bool, error)
}

// MemoryStore keeps snapshots in process. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[SnapshotKey][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[SnapshotKey][]byte)}
}

// Entries are stored encoded so callers never share bucket slices or decimals with the store.
func (s *MemoryStore) Get(_ context.Context, key SnapshotKey) (types.Pool, bool, error) {
	s.mu.RLock()
	raw, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return types.Pool{}, false, nil
	}
	var p types.Pool
	if err := json.Unmarshal(raw, &p); err != nil {
		return types.Pool{}, false, errors.Join(ErrCorruptEntry, err)
	}
	return p, true, nil
}

func (s *MemoryStore) Put(_ context.Context, key SnapshotKey, pool types.Pool) error {
	raw, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = raw
	return nil
}

func (s *MemoryStore) Variants(_ context.Context, blockNumber uint64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []string{}
	for k := range s.entries {
		if k.BlockNumber == blockNumber {
			out = append(out, k.Variant)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) PruneBelow(_ context.Context, blockNumber uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pruned int64
	for k := range s.entries {
		if k.BlockNumber < blockNumber {
			delete(s.entries, k)
			pruned++
		}
	}
	return pruned, nil
}

func (s *MemoryStore) LatestBlock(_ context.Context) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest uint64
	for k := range s.entries {
		if k.BlockNumber > latest {
			latest = k.BlockNumber
		}
	}
	return latest, latest > 0, nil
}

// PostgresStore keeps snapshots in the pool_snapshots table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key SnapshotKey) (types.Pool, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM pool_snapshots WHERE block_number = $1 AND variant = $2`,
		key.BlockNumber, key.Variant,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Pool{}, false, nil
	}
	if err != nil {
		return types.Pool{}, false, wrapPQ("failed to read snapshot", err)
	}

	var p types.Pool
	if err := json.Unmarshal(raw, &p); err != nil {
		return types.Pool{}, false, errors.Join(ErrCorruptEntry, err)
	}
	return p, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, key SnapshotKey, pool types.Pool) error {
	raw, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pool_snapshots (block_number, variant, pool_address, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (block_number, variant) DO NOTHING;`,
		key.BlockNumber, key.Variant, pool.PoolAddress.Hex(), raw,
	)
	if err != nil {
		return wrapPQ("failed to save snapshot", err)
	}
	return nil
}

func (s *PostgresStore) Variants(ctx context.Context, blockNumber uint64) ([]string, error) {
	var variants pq.StringArray
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(array_agg(variant ORDER BY variant), '{}') FROM pool_snapshots WHERE block_number = $1`,
		blockNumber,
	).Scan(&variants)
	if err != nil {
		return nil, wrapPQ("failed to list snapshot variants", err)
	}
	return []string(variants), nil
}

func (s *PostgresStore) PruneBelow(ctx context.Context, blockNumber uint64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pool_snapshots WHERE block_number < $1`, blockNumber)
	if err != nil {
		return 0, wrapPQ("failed to prune snapshots", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) LatestBlock(ctx context.Context) (uint64, bool, error) {
	var latest sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(block_number) FROM pool_snapshots`).Scan(&latest); err != nil {
		return 0, false, wrapPQ("failed to read latest snapshot block", err)
	}
	if !latest.Valid {
		return 0, false, nil
	}
	return uint64(latest.Int64), true, nil
}

// wrapPQ adds the PostgreSQL error code when the driver reports one.
func wrapPQ(msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%s (pq %s): %w", msg, pqErr.Code, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
