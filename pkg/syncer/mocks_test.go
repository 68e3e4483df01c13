package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/asset"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/assetcache"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/portfolio"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/progress"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/reconcile"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/wallet"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/walletdb"
)

// MockStore is a mock implementation of Store plus the reconciliation
// engine's store surface, so end-to-end tests can run the real engine
// against it.
type MockStore struct {
	GetWalletFunc           func(ctx context.Context, id string) (*wallet.Wallet, error)
	MarkWalletSyncingFunc   func(ctx context.Context, id string) error
	CompleteWalletSyncFunc  func(ctx context.Context, id string, balance decimal.Decimal, assetCount, positionCount, nftCount int) error
	FailWalletSyncFunc      func(ctx context.Context, id, errMsg string) error
	UpdateWalletBalanceFunc func(ctx context.Context, id string, balance decimal.Decimal) error

	CountActivePositionsFunc  func(ctx context.Context, walletID string) (int, error)
	CountDistinctAssetsFunc   func(ctx context.Context, walletID string) (int, error)
	CountNFTsFunc             func(ctx context.Context, walletID string) (int, error)
	SumPositionValuesFunc     func(ctx context.Context, walletID string) (decimal.Decimal, error)
	ListPositionsFunc         func(ctx context.Context, walletID string) ([]*portfolio.Position, error)
	LatestTransactionTimeFunc func(ctx context.Context, walletID string) (*time.Time, error)

	GetSnapshotFunc    func(ctx context.Context, walletID string) (*portfolio.Snapshot, error)
	UpsertSnapshotFunc func(ctx context.Context, snap *portfolio.Snapshot) (*portfolio.Snapshot, error)

	ResetStaleSyncingFunc             func(ctx context.Context, before time.Time) (int64, error)
	DeleteStaleFailedTransactionsFunc func(ctx context.Context, before time.Time) (int64, error)
	PrunePositionsFunc                func(ctx context.Context, maxValueUSD decimal.Decimal, lastSyncedBefore time.Time) (int64, error)

	UpsertPositionFunc             func(ctx context.Context, pos *portfolio.Position) (*portfolio.Position, error)
	DeactivateMissingPositionsFunc func(ctx context.Context, walletID string, syncedSince time.Time) (int64, error)
	UpsertTransactionFunc          func(ctx context.Context, tx *portfolio.Transaction) (*portfolio.Transaction, error)
	UpsertNFTFunc                  func(ctx context.Context, n *portfolio.NFT) (*portfolio.NFT, error)
	DeleteDepartedNFTsFunc         func(ctx context.Context, walletID string, syncedSince time.Time) (int64, error)
	UpdateWalletNFTCountFunc       func(ctx context.Context, id string, count int) error
	FindAssetBySymbolFunc          func(ctx context.Context, symbol string, network asset.Network) (*asset.Identity, error)
}

func (m *MockStore) GetWallet(ctx context.Context, id string) (*wallet.Wallet, error) {
	if m.GetWalletFunc != nil {
		return m.GetWalletFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockStore) MarkWalletSyncing(ctx context.Context, id string) error {
	if m.MarkWalletSyncingFunc != nil {
		return m.MarkWalletSyncingFunc(ctx, id)
	}
	return nil
}

func (m *MockStore) CompleteWalletSync(ctx context.Context, id string, balance decimal.Decimal, assetCount, positionCount, nftCount int) error {
	if m.CompleteWalletSyncFunc != nil {
		return m.CompleteWalletSyncFunc(ctx, id, balance, assetCount, positionCount, nftCount)
	}
	return nil
}

func (m *MockStore) FailWalletSync(ctx context.Context, id, errMsg string) error {
	if m.FailWalletSyncFunc != nil {
		return m.FailWalletSyncFunc(ctx, id, errMsg)
	}
	return nil
}

func (m *MockStore) UpdateWalletBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	if m.UpdateWalletBalanceFunc != nil {
		return m.UpdateWalletBalanceFunc(ctx, id, balance)
	}
	return nil
}

func (m *MockStore) CountActivePositions(ctx context.Context, walletID string) (int, error) {
	if m.CountActivePositionsFunc != nil {
		return m.CountActivePositionsFunc(ctx, walletID)
	}
	return 0, nil
}

func (m *MockStore) CountDistinctAssets(ctx context.Context, walletID string) (int, error) {
	if m.CountDistinctAssetsFunc != nil {
		return m.CountDistinctAssetsFunc(ctx, walletID)
	}
	return 0, nil
}

func (m *MockStore) CountNFTs(ctx context.Context, walletID string) (int, error) {
	if m.CountNFTsFunc != nil {
		return m.CountNFTsFunc(ctx, walletID)
	}
	return 0, nil
}

func (m *MockStore) SumPositionValues(ctx context.Context, walletID string) (decimal.Decimal, error) {
	if m.SumPositionValuesFunc != nil {
		return m.SumPositionValuesFunc(ctx, walletID)
	}
	return decimal.Zero, nil
}

func (m *MockStore) ListPositions(ctx context.Context, walletID string) ([]*portfolio.Position, error) {
	if m.ListPositionsFunc != nil {
		return m.ListPositionsFunc(ctx, walletID)
	}
	return nil, nil
}

func (m *MockStore) LatestTransactionTime(ctx context.Context, walletID string) (*time.Time, error) {
	if m.LatestTransactionTimeFunc != nil {
		return m.LatestTransactionTimeFunc(ctx, walletID)
	}
	return nil, nil
}

func (m *MockStore) GetSnapshot(ctx context.Context, walletID string) (*portfolio.Snapshot, error) {
	if m.GetSnapshotFunc != nil {
		return m.GetSnapshotFunc(ctx, walletID)
	}
	return nil, walletdb.ErrSnapshotNotFound
}

func (m *MockStore) UpsertSnapshot(ctx context.Context, snap *portfolio.Snapshot) (*portfolio.Snapshot, error) {
	if m.UpsertSnapshotFunc != nil {
		return m.UpsertSnapshotFunc(ctx, snap)
	}
	return snap, nil
}

func (m *MockStore) ResetStaleSyncing(ctx context.Context, before time.Time) (int64, error) {
	if m.ResetStaleSyncingFunc != nil {
		return m.ResetStaleSyncingFunc(ctx, before)
	}
	return 0, nil
}

func (m *MockStore) DeleteStaleFailedTransactions(ctx context.Context, before time.Time) (int64, error) {
	if m.DeleteStaleFailedTransactionsFunc != nil {
		return m.DeleteStaleFailedTransactionsFunc(ctx, before)
	}
	return 0, nil
}

func (m *MockStore) PrunePositions(ctx context.Context, maxValueUSD decimal.Decimal, lastSyncedBefore time.Time) (int64, error) {
	if m.PrunePositionsFunc != nil {
		return m.PrunePositionsFunc(ctx, maxValueUSD, lastSyncedBefore)
	}
	return 0, nil
}

func (m *MockStore) UpsertPosition(ctx context.Context, pos *portfolio.Position) (*portfolio.Position, error) {
	if m.UpsertPositionFunc != nil {
		return m.UpsertPositionFunc(ctx, pos)
	}
	return pos, nil
}

func (m *MockStore) DeactivateMissingPositions(ctx context.Context, walletID string, syncedSince time.Time) (int64, error) {
	if m.DeactivateMissingPositionsFunc != nil {
		return m.DeactivateMissingPositionsFunc(ctx, walletID, syncedSince)
	}
	return 0, nil
}

func (m *MockStore) UpsertTransaction(ctx context.Context, tx *portfolio.Transaction) (*portfolio.Transaction, error) {
	if m.UpsertTransactionFunc != nil {
		return m.UpsertTransactionFunc(ctx, tx)
	}
	return tx, nil
}

func (m *MockStore) UpsertNFT(ctx context.Context, n *portfolio.NFT) (*portfolio.NFT, error) {
	if m.UpsertNFTFunc != nil {
		return m.UpsertNFTFunc(ctx, n)
	}
	return n, nil
}

func (m *MockStore) DeleteDepartedNFTs(ctx context.Context, walletID string, syncedSince time.Time) (int64, error) {
	if m.DeleteDepartedNFTsFunc != nil {
		return m.DeleteDepartedNFTsFunc(ctx, walletID, syncedSince)
	}
	return 0, nil
}

func (m *MockStore) UpdateWalletNFTCount(ctx context.Context, id string, count int) error {
	if m.UpdateWalletNFTCountFunc != nil {
		return m.UpdateWalletNFTCountFunc(ctx, id, count)
	}
	return nil
}

func (m *MockStore) FindAssetBySymbol(ctx context.Context, symbol string, network asset.Network) (*asset.Identity, error) {
	if m.FindAssetBySymbolFunc != nil {
		return m.FindAssetBySymbolFunc(ctx, symbol, network)
	}
	return nil, nil
}

// MockReconciler is a mock implementation of Reconciler.
type MockReconciler struct {
	ReconcilePortfolioFunc    func(ctx context.Context, walletID string, p *provider.Portfolio) (reconcile.Result, error)
	ReconcilePositionsFunc    func(ctx context.Context, walletID string, raw []provider.Position) (reconcile.Result, error)
	ReconcileTransactionsFunc func(ctx context.Context, walletID string, raw []provider.Transaction) (reconcile.Result, error)
	ReconcileNFTsFunc         func(ctx context.Context, walletID string, raw []provider.NFT) (reconcile.Result, error)
	ReconcileDeFiFunc         func(ctx context.Context, walletID string, apps []provider.DeFiPosition) (reconcile.Result, error)

	mu     sync.Mutex
	stages []string
}

func (m *MockReconciler) record(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, stage)
}

// Stages lists the reconciliation calls in order.
func (m *MockReconciler) Stages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.stages...)
}

func (m *MockReconciler) ReconcilePortfolio(ctx context.Context, walletID string, p *provider.Portfolio) (reconcile.Result, error) {
	m.record(DataPortfolio)
	if m.ReconcilePortfolioFunc != nil {
		return m.ReconcilePortfolioFunc(ctx, walletID, p)
	}
	return reconcile.Result{}, nil
}

func (m *MockReconciler) ReconcilePositions(ctx context.Context, walletID string, raw []provider.Position) (reconcile.Result, error) {
	m.record(DataAssets)
	if m.ReconcilePositionsFunc != nil {
		return m.ReconcilePositionsFunc(ctx, walletID, raw)
	}
	return reconcile.Result{}, nil
}

func (m *MockReconciler) ReconcileTransactions(ctx context.Context, walletID string, raw []provider.Transaction) (reconcile.Result, error) {
	m.record(DataTransactions)
	if m.ReconcileTransactionsFunc != nil {
		return m.ReconcileTransactionsFunc(ctx, walletID, raw)
	}
	return reconcile.Result{}, nil
}

func (m *MockReconciler) ReconcileNFTs(ctx context.Context, walletID string, raw []provider.NFT) (reconcile.Result, error) {
	m.record(DataNFTs)
	if m.ReconcileNFTsFunc != nil {
		return m.ReconcileNFTsFunc(ctx, walletID, raw)
	}
	return reconcile.Result{}, nil
}

func (m *MockReconciler) ReconcileDeFi(ctx context.Context, walletID string, apps []provider.DeFiPosition) (reconcile.Result, error) {
	m.record(DataDeFi)
	if m.ReconcileDeFiFunc != nil {
		return m.ReconcileDeFiFunc(ctx, walletID, apps)
	}
	return reconcile.Result{}, nil
}

// MockProvider is a mock implementation of PortfolioProvider.
type MockProvider struct {
	GetPortfolioFunc    func(ctx context.Context, address string) (*provider.Portfolio, error)
	GetPositionsFunc    func(ctx context.Context, address string) ([]provider.Position, error)
	GetTransactionsFunc func(ctx context.Context, address string, q provider.TxQuery) ([]provider.Transaction, error)
	GetNFTsFunc         func(ctx context.Context, address string) ([]provider.NFT, error)

	mu      sync.Mutex
	queries []provider.TxQuery
}

func (m *MockProvider) Name() string  { return "zerion" }
func (m *MockProvider) Enabled() bool { return true }

func (m *MockProvider) Health(ctx context.Context) provider.Health {
	return provider.Health{Healthy: true, Message: "ok"}
}

func (m *MockProvider) Stats() provider.Stats { return provider.Stats{SuccessRate: 1} }

func (m *MockProvider) GetPortfolio(ctx context.Context, address string) (*provider.Portfolio, error) {
	if m.GetPortfolioFunc != nil {
		return m.GetPortfolioFunc(ctx, address)
	}
	return &provider.Portfolio{}, nil
}

func (m *MockProvider) GetPositions(ctx context.Context, address string) ([]provider.Position, error) {
	if m.GetPositionsFunc != nil {
		return m.GetPositionsFunc(ctx, address)
	}
	return nil, nil
}

func (m *MockProvider) GetTransactions(ctx context.Context, address string, q provider.TxQuery) ([]provider.Transaction, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()
	if m.GetTransactionsFunc != nil {
		return m.GetTransactionsFunc(ctx, address, q)
	}
	return nil, nil
}

// TxQueries lists the transaction queries issued so far.
func (m *MockProvider) TxQueries() []provider.TxQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.TxQuery(nil), m.queries...)
}

func (m *MockProvider) GetNFTs(ctx context.Context, address string) ([]provider.NFT, error) {
	if m.GetNFTsFunc != nil {
		return m.GetNFTsFunc(ctx, address)
	}
	return nil, nil
}

// MockAppProvider is a mock implementation of AppBalanceProvider.
type MockAppProvider struct {
	Disabled           bool
	GetAppBalancesFunc func(ctx context.Context, address string) ([]provider.DeFiPosition, error)
}

func (m *MockAppProvider) Name() string  { return "zapper" }
func (m *MockAppProvider) Enabled() bool { return !m.Disabled }

func (m *MockAppProvider) Health(ctx context.Context) provider.Health {
	return provider.Health{Healthy: !m.Disabled, Message: "ok"}
}

func (m *MockAppProvider) Stats() provider.Stats { return provider.Stats{SuccessRate: 1} }

func (m *MockAppProvider) GetAppBalances(ctx context.Context, address string) ([]provider.DeFiPosition, error) {
	if m.GetAppBalancesFunc != nil {
		return m.GetAppBalancesFunc(ctx, address)
	}
	return nil, nil
}

// recordingPublisher captures progress events in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []progress.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, ev progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) Events() []progress.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]progress.Event(nil), p.events...)
}

// recordingInvalidator captures read-cache invalidations.
type recordingInvalidator struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userID, walletID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, userID+"|"+walletID)
}

func (r *recordingInvalidator) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// recordingMirror captures job records keyed by id, last write wins.
type recordingMirror struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	workers []WorkerStatus
}

func newRecordingMirror() *recordingMirror {
	return &recordingMirror{jobs: make(map[string]*Job)}
}

func (m *recordingMirror) RecordJob(_ context.Context, job *Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
}

func (m *recordingMirror) FetchJob(_ context.Context, jobID string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	return job, ok
}

func (m *recordingMirror) RecordWorker(_ context.Context, st WorkerStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers = append(m.workers, st)
}

func (m *recordingMirror) FetchWorker(context.Context) (*WorkerStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.workers) == 0 {
		return nil, false
	}
	st := m.workers[len(m.workers)-1]
	return &st, true
}

// fakeResolver satisfies reconcile.AssetResolver for end-to-end runs of
// the real engine.
type fakeResolver struct {
	mu         sync.Mutex
	identities map[string]*asset.Identity
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{identities: make(map[string]*asset.Identity)}
}

func (f *fakeResolver) seed(data assetcache.Data, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities[data.Key()] = &asset.Identity{
		ID:              id,
		Symbol:          data.Symbol,
		Name:            data.Name,
		Network:         data.Network,
		ContractAddress: data.ContractAddress,
		Decimals:        data.Decimals,
		Verified:        data.Verified,
	}
}

func (f *fakeResolver) FindOrCreate(_ context.Context, data assetcache.Data) (*asset.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ident, ok := f.identities[data.Key()]; ok {
		return ident, nil
	}
	return &asset.Identity{ID: data.Key(), Symbol: data.Symbol, Network: data.Network, Fallback: true}, nil
}

func (f *fakeResolver) BatchFindOrCreate(ctx context.Context, data []assetcache.Data) map[string]*asset.Identity {
	out := make(map[string]*asset.Identity, len(data))
	for _, d := range data {
		ident, _ := f.FindOrCreate(ctx, d)
		out[d.Key()] = ident
	}
	return out
}

func (f *fakeResolver) BatchUpdatePrices(_ context.Context, updates []assetcache.PriceUpdate) int {
	return len(updates)
}
