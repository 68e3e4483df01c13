// Package walletdb is the Postgres store for wallets, asset identities,
// positions, transactions, NFTs and portfolio snapshots. Reconciliation
// writes go through the upsert methods here; every upsert is keyed by the
// uniqueness constraint of its table so re-syncs stay idempotent.
package walletdb

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
)

var (
	ErrWalletNotFound   = errors.New("wallet not found")
	ErrAssetNotFound    = errors.New("asset not found")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Store wraps a bun connection to the wallet database.
type Store struct {
	db *bun.DB
}

// NewStore creates a new postgres-backed store.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
