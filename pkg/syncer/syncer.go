// Package syncer is the sync job orchestrator. It admits jobs against
// memory, concurrency and health-score limits, walks each wallet through
// the staged pipeline (portfolio, positions, transactions, NFTs, DeFi),
// publishes progress milestones and settles the wallet's sync status.
// One Orchestrator is built per worker process and handed to the queue
// consumers.
package syncer

import (
	"context"
	"os"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/config"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/portfolio"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/progress"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/reconcile"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/wallet"
)

// Store is the persistence surface the orchestrator drives around the
// reconciliation engine's own writes. *walletdb.Store satisfies it.
type Store interface {
	GetWallet(ctx context.Context, id string) (*wallet.Wallet, error)
	MarkWalletSyncing(ctx context.Context, id string) error
	CompleteWalletSync(ctx context.Context, id string, balance decimal.Decimal, assetCount, positionCount, nftCount int) error
	FailWalletSync(ctx context.Context, id, errMsg string) error
	UpdateWalletBalance(ctx context.Context, id string, balance decimal.Decimal) error

	CountActivePositions(ctx context.Context, walletID string) (int, error)
	CountDistinctAssets(ctx context.Context, walletID string) (int, error)
	CountNFTs(ctx context.Context, walletID string) (int, error)
	SumPositionValues(ctx context.Context, walletID string) (decimal.Decimal, error)
	ListPositions(ctx context.Context, walletID string) ([]*portfolio.Position, error)
	LatestTransactionTime(ctx context.Context, walletID string) (*time.Time, error)

	GetSnapshot(ctx context.Context, walletID string) (*portfolio.Snapshot, error)
	UpsertSnapshot(ctx context.Context, snap *portfolio.Snapshot) (*portfolio.Snapshot, error)

	ResetStaleSyncing(ctx context.Context, before time.Time) (int64, error)
	DeleteStaleFailedTransactions(ctx context.Context, before time.Time) (int64, error)
	PrunePositions(ctx context.Context, maxValueUSD decimal.Decimal, lastSyncedBefore time.Time) (int64, error)
}

// Reconciler folds provider payloads into relational state.
// *reconcile.Engine satisfies it.
type Reconciler interface {
	ReconcilePortfolio(ctx context.Context, walletID string, p *provider.Portfolio) (reconcile.Result, error)
	ReconcilePositions(ctx context.Context, walletID string, raw []provider.Position) (reconcile.Result, error)
	ReconcileTransactions(ctx context.Context, walletID string, raw []provider.Transaction) (reconcile.Result, error)
	ReconcileNFTs(ctx context.Context, walletID string, raw []provider.NFT) (reconcile.Result, error)
	ReconcileDeFi(ctx context.Context, walletID string, apps []provider.DeFiPosition) (reconcile.Result, error)
}

// PortfolioProvider is the primary upstream: valuation, positions,
// transactions and NFTs for one address. *zerion.Client satisfies it.
type PortfolioProvider interface {
	Name() string
	Enabled() bool
	Health(ctx context.Context) provider.Health
	Stats() provider.Stats
	GetPortfolio(ctx context.Context, address string) (*provider.Portfolio, error)
	GetPositions(ctx context.Context, address string) ([]provider.Position, error)
	GetTransactions(ctx context.Context, address string, q provider.TxQuery) ([]provider.Transaction, error)
	GetNFTs(ctx context.Context, address string) ([]provider.NFT, error)
}

// AppBalanceProvider is the secondary upstream used for the DeFi
// cross-check stage. *zapper.Client satisfies it.
type AppBalanceProvider interface {
	Name() string
	Enabled() bool
	Health(ctx context.Context) provider.Health
	Stats() provider.Stats
	GetAppBalances(ctx context.Context, address string) ([]provider.DeFiPosition, error)
}

// CacheInvalidator clears read-path caches after a completed sync.
// *readcache.Invalidator satisfies it.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID, walletID string)
}

// NopInvalidator stands in when no read cache is wired.
type NopInvalidator struct{}

func (NopInvalidator) Invalidate(context.Context, string, string) {}

// Orchestrator owns the live job table, the per-type health scores and
// the resource monitor for one worker process.
type Orchestrator struct {
	store    Store
	engine   Reconciler
	primary  PortfolioProvider
	appProv  AppBalanceProvider
	progress progress.Publisher
	caches   CacheInvalidator
	mirror   Mirror
	cfg      config.SyncConfig
	logger   *zap.Logger

	active    *xsync.Map[string, *Job]
	completed *completedRing
	health    *healthTracker
	memory    *memoryMonitor

	// rss and now are swapped in tests.
	rss func() uint64
	now func() time.Time
}

// New wires an orchestrator. The zapper provider may be nil when not
// configured; the DeFi stage is skipped in that case.
func New(
	store Store,
	engine Reconciler,
	primary PortfolioProvider,
	appProv AppBalanceProvider,
	pub progress.Publisher,
	caches CacheInvalidator,
	mirror Mirror,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *Orchestrator {
	if pub == nil {
		pub = progress.NopPublisher{}
	}
	if caches == nil {
		caches = NopInvalidator{}
	}
	if mirror == nil {
		mirror = NopMirror{}
	}

	memory := newMemoryMonitor(logger)
	o := &Orchestrator{
		store:     store,
		engine:    engine,
		primary:   primary,
		appProv:   appProv,
		progress:  pub,
		caches:    caches,
		mirror:    mirror,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "syncer")),
		active:    xsync.NewMap[string, *Job](),
		completed: newCompletedRing(completedRingSize),
		health:    newHealthTracker(cfg.HealthScoreAlpha),
		memory:    memory,
		now:       time.Now,
	}
	o.rss = memory.RSS
	return o
}

// memoryMonitor samples the worker's resident set. Probe failures
// degrade to zero so admission never blocks on the probe itself.
type memoryMonitor struct {
	proc   *process.Process
	logger *zap.Logger
}

func newMemoryMonitor(logger *zap.Logger) *memoryMonitor {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("process memory probe unavailable", zap.Error(err))
		proc = nil
	}
	return &memoryMonitor{proc: proc, logger: logger}
}
