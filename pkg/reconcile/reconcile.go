// Package reconcile turns provider payloads into normalized rows: the
// portfolio snapshot, positions, transactions and NFT holdings of one
// wallet. Every pass is resilient to partial data: a record that cannot
// be normalized is dropped and counted, never allowed to abort the rest
// of the response.
package reconcile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/asset"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/assetcache"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/config"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/portfolio"
)

// SnapshotStore persists the per-wallet portfolio rollup.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, snap *portfolio.Snapshot) (*portfolio.Snapshot, error)
	GetSnapshot(ctx context.Context, walletID string) (*portfolio.Snapshot, error)
}

// WalletStore mutates wallet aggregates owned by sync.
type WalletStore interface {
	UpdateWalletBalance(ctx context.Context, id string, balance decimal.Decimal) error
	UpdateWalletNFTCount(ctx context.Context, id string, count int) error
}

// PositionStore persists fungible holdings.
type PositionStore interface {
	UpsertPosition(ctx context.Context, pos *portfolio.Position) (*portfolio.Position, error)
	DeactivateMissingPositions(ctx context.Context, walletID string, syncedSince time.Time) (int64, error)
}

// TransactionStore persists chain transactions.
type TransactionStore interface {
	UpsertTransaction(ctx context.Context, tx *portfolio.Transaction) (*portfolio.Transaction, error)
}

// NFTStore persists non-fungible holdings.
type NFTStore interface {
	UpsertNFT(ctx context.Context, n *portfolio.NFT) (*portfolio.NFT, error)
	DeleteDepartedNFTs(ctx context.Context, walletID string, syncedSince time.Time) (int64, error)
}

// LegacyAssetStore is the symbol-keyed lookup used while older identity
// rows migrate to contract-keyed ones.
type LegacyAssetStore interface {
	FindAssetBySymbol(ctx context.Context, symbol string, network asset.Network) (*asset.Identity, error)
}

// Store aggregates the store surface the engine writes through.
// *walletdb.Store satisfies it.
type Store interface {
	SnapshotStore
	WalletStore
	PositionStore
	TransactionStore
	NFTStore
	LegacyAssetStore
}

// AssetResolver is the cache surface used during position reconciliation.
type AssetResolver interface {
	FindOrCreate(ctx context.Context, data assetcache.Data) (*asset.Identity, error)
	BatchFindOrCreate(ctx context.Context, data []assetcache.Data) map[string]*asset.Identity
	BatchUpdatePrices(ctx context.Context, updates []assetcache.PriceUpdate) int
}

// Result summarizes one reconciliation pass for metrics and job summaries.
type Result struct {
	Processed int
	Upserted  int
	Dropped   int
	Errors    int
}

func (r Result) Add(other Result) Result {
	return Result{
		Processed: r.Processed + other.Processed,
		Upserted:  r.Upserted + other.Upserted,
		Dropped:   r.Dropped + other.Dropped,
		Errors:    r.Errors + other.Errors,
	}
}

// Engine reconciles provider payloads for one wallet at a time. It is
// stateless between calls and safe for concurrent use across jobs.
type Engine struct {
	store  Store
	assets AssetResolver
	logger *zap.Logger

	positionBatchSize int
	nftSpamThreshold  int

	now func() time.Time
}

// New builds an engine. Batch sizes and thresholds come from sync config,
// falling back to the documented defaults when unset.
func New(store Store, assets AssetResolver, cfg config.SyncConfig, logger *zap.Logger) *Engine {
	batch := cfg.PositionBatchSize
	if batch <= 0 {
		batch = 20
	}
	spam := cfg.NFTSpamThreshold
	if spam <= 0 {
		spam = 50
	}
	return &Engine{
		store:             store,
		assets:            assets,
		logger:            logger,
		positionBatchSize: batch,
		nftSpamThreshold:  spam,
		now:               time.Now,
	}
}
