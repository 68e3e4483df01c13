// Package assetcache resolves provider asset descriptors to canonical
// identities without duplicate-creation races. The cache is a performance
// aid, not a store of truth: every persistence failure degrades to a
// fallback or a skip so asset trouble never aborts a wallet sync.
package assetcache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/internal/metrics"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/asset"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/config"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/walletdb"
)

// Store is the slice of the wallet store the cache needs.
type Store interface {
	GetAssetByContract(ctx context.Context, contractAddress string, network asset.Network) (*asset.Identity, error)
	GetNativeAsset(ctx context.Context, symbol string, network asset.Network) (*asset.Identity, error)
	UpsertContractAsset(ctx context.Context, ident *asset.Identity) (*asset.Identity, error)
	UpsertNativeAsset(ctx context.Context, ident *asset.Identity) (*asset.Identity, error)
	UpdateAssetPrice(ctx context.Context, id string, price decimal.Decimal, at time.Time) error
	ListVerifiedAssets(ctx context.Context, limit int) ([]*asset.Identity, error)
}

// Data describes an asset as reported by a provider, before it is resolved
// to a canonical identity.
type Data struct {
	Symbol          string
	Name            string
	Network         asset.Network
	ContractAddress string
	Decimals        int
	Verified        bool
	PriceUSD        decimal.Decimal
}

// Key returns the composite lookup key for the descriptor.
func (d Data) Key() string {
	return asset.Key(d.Symbol, d.Network, d.ContractAddress)
}

// PriceUpdate is one observed price for a resolved asset key.
type PriceUpdate struct {
	Key      string
	PriceUSD decimal.Decimal
}

type entry struct {
	identity  *asset.Identity
	fetchedAt time.Time
}

// inflight is the future awaited by concurrent FindOrCreate callers for
// one key. The owner resolves, fills the result and closes done.
type inflight struct {
	done     chan struct{}
	identity *asset.Identity
	err      error
}

// Cache is the shared in-process asset identity cache. One instance is
// shared by all sync jobs of a worker.
type Cache struct {
	store    Store
	cfg      config.AssetCacheConfig
	logger   *zap.Logger
	entries  *xsync.Map[string, entry]
	creating *xsync.Map[string, *inflight]
	pool     pond.Pool

	now func() time.Time
}

// New builds a cache over the given store. Zero config values fall back
// to the documented defaults.
func New(store Store, cfg config.AssetCacheConfig, logger *zap.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.PriceRefreshAge <= 0 {
		cfg.PriceRefreshAge = 10 * time.Minute
	}
	if cfg.PriceBatchSize <= 0 {
		cfg.PriceBatchSize = 50
	}
	if cfg.CreateChunkSize <= 0 {
		cfg.CreateChunkSize = 20
	}
	if cfg.CreateConcurrency <= 0 {
		cfg.CreateConcurrency = 10
	}
	if cfg.WarmupLimit <= 0 {
		cfg.WarmupLimit = 500
	}
	return &Cache{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		entries:  xsync.NewMap[string, entry](),
		creating: xsync.NewMap[string, *inflight](),
		pool:     pond.NewPool(cfg.CreateConcurrency),
		now:      time.Now,
	}
}

// Get returns the cached identity for key, re-reading the store once the
// entry outlives the TTL. A cold miss returns (nil, nil): the caller
// decides whether to create.
func (c *Cache) Get(ctx context.Context, key string) (*asset.Identity, error) {
	e, ok := c.entries.Load(key)
	if !ok {
		metrics.AssetCacheLookups.WithLabelValues("miss").Inc()
		return nil, nil
	}
	if c.now().Sub(e.fetchedAt) <= c.cfg.TTL {
		metrics.AssetCacheLookups.WithLabelValues("hit").Inc()
		return e.identity, nil
	}

	metrics.AssetCacheLookups.WithLabelValues("expired").Inc()
	refreshed, err := c.reread(ctx, e.identity)
	if err != nil {
		if errors.Is(err, walletdb.ErrAssetNotFound) {
			c.entries.Delete(key)
			return nil, nil
		}
		// Serve the stale identity rather than fail the lookup.
		c.logger.Warn("asset cache refresh failed, serving stale identity",
			zap.String("key", key),
			zap.Error(err))
		return e.identity, nil
	}
	c.entries.Store(key, entry{identity: refreshed, fetchedAt: c.now()})
	return refreshed, nil
}

func (c *Cache) reread(ctx context.Context, ident *asset.Identity) (*asset.Identity, error) {
	if ident.Native() {
		return c.store.GetNativeAsset(ctx, ident.Symbol, ident.Network)
	}
	return c.store.GetAssetByContract(ctx, ident.ContractAddress, ident.Network)
}

// FindOrCreate resolves the descriptor to a canonical identity, creating
// the row when no identity exists yet. Concurrent callers for one key
// await a single creation. On store failure the returned identity is a
// synthetic fallback that is never persisted or cached.
func (c *Cache) FindOrCreate(ctx context.Context, data Data) (*asset.Identity, error) {
	key := data.Key()
	if e, ok := c.entries.Load(key); ok && c.now().Sub(e.fetchedAt) <= c.cfg.TTL {
		metrics.AssetCacheLookups.WithLabelValues("hit").Inc()
		return e.identity, nil
	}

	fl := &inflight{done: make(chan struct{})}
	if actual, loaded := c.creating.LoadOrStore(key, fl); loaded {
		select {
		case <-actual.done:
			return actual.identity, actual.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ident, err := c.resolve(ctx, data)
	if err == nil && !ident.Fallback {
		c.entries.Store(key, entry{identity: ident, fetchedAt: c.now()})
	}
	fl.identity, fl.err = ident, err
	c.creating.Delete(key)
	close(fl.done)
	return ident, err
}

// resolve performs the store round trip. Only context cancellation is
// surfaced as an error; any other store failure degrades to a fallback.
func (c *Cache) resolve(ctx context.Context, data Data) (*asset.Identity, error) {
	var (
		ident *asset.Identity
		err   error
	)
	if data.ContractAddress == "" {
		ident, err = c.resolveNative(ctx, data)
	} else {
		ident, err = c.store.UpsertContractAsset(ctx, c.newIdentity(data))
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		metrics.ErrorsTotal.WithLabelValues("assetcache", "resolve").Inc()
		c.logger.Warn("asset resolution degraded to fallback identity",
			zap.String("key", data.Key()),
			zap.Error(err))
		return c.fallbackIdentity(data), nil
	}
	return ident, nil
}

func (c *Cache) resolveNative(ctx context.Context, data Data) (*asset.Identity, error) {
	ident, err := c.store.GetNativeAsset(ctx, data.Symbol, data.Network)
	if err != nil {
		if !errors.Is(err, walletdb.ErrAssetNotFound) {
			return nil, err
		}
		return c.store.UpsertNativeAsset(ctx, c.newIdentity(data))
	}
	if metadataDrifted(ident, data) {
		merged := *ident
		if data.Name != "" {
			merged.Name = data.Name
		}
		if data.Decimals > 0 {
			merged.Decimals = data.Decimals
		}
		merged.Verified = merged.Verified || data.Verified
		return c.store.UpsertNativeAsset(ctx, &merged)
	}
	return ident, nil
}

func metadataDrifted(ident *asset.Identity, data Data) bool {
	if data.Name != "" && ident.Name != data.Name {
		return true
	}
	if data.Decimals > 0 && ident.Decimals != data.Decimals {
		return true
	}
	return data.Verified && !ident.Verified
}

func (c *Cache) newIdentity(data Data) *asset.Identity {
	assetType := asset.TypeToken
	if data.ContractAddress == "" {
		assetType = asset.TypeCoin
	}
	name := data.Name
	if name == "" {
		name = strings.ToUpper(data.Symbol)
	}
	decimals := data.Decimals
	if decimals <= 0 {
		decimals = 18
	}
	ident := &asset.Identity{
		Symbol:          strings.ToUpper(data.Symbol),
		Name:            name,
		Network:         data.Network,
		ContractAddress: data.ContractAddress,
		Decimals:        decimals,
		AssetType:       assetType,
		Verified:        data.Verified,
		PriceUSD:        data.PriceUSD,
	}
	if !data.PriceUSD.IsZero() {
		at := c.now()
		ident.PriceUpdatedAt = &at
	}
	return ident
}

func (c *Cache) fallbackIdentity(data Data) *asset.Identity {
	ident := c.newIdentity(data)
	ident.ID = uuid.Nil.String()
	ident.PriceUpdatedAt = nil
	ident.Fallback = true
	return ident
}

// BatchFindOrCreate resolves a set of descriptors, deduplicated by key and
// chunked so one oversized wallet cannot monopolize the store. The result
// maps composite keys to identities; cancelled or failed resolutions are
// absent from the map.
func (c *Cache) BatchFindOrCreate(ctx context.Context, data []Data) map[string]*asset.Identity {
	deduped := make([]Data, 0, len(data))
	seen := make(map[string]struct{}, len(data))
	for _, d := range data {
		key := d.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, d)
	}

	results := make(map[string]*asset.Identity, len(deduped))
	for start := 0; start < len(deduped); start += c.cfg.CreateChunkSize {
		end := start + c.cfg.CreateChunkSize
		if end > len(deduped) {
			end = len(deduped)
		}
		chunk := deduped[start:end]
		resolved := make([]*asset.Identity, len(chunk))

		group := c.pool.NewGroupContext(ctx)
		for i, d := range chunk {
			group.Submit(func() {
				ident, err := c.FindOrCreate(ctx, d)
				if err != nil {
					return
				}
				resolved[i] = ident
			})
		}
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
			c.logger.Warn("asset batch resolution group failed", zap.Error(err))
		}

		for i, ident := range resolved {
			if ident != nil {
				results[chunk[i].Key()] = ident
			}
		}
		if ctx.Err() != nil {
			break
		}
	}
	return results
}

// BatchUpdatePrices writes observed prices for resolved assets, skipping
// identities whose stored price is still fresh. Failures are isolated per
// item. Returns the number of rows written.
func (c *Cache) BatchUpdatePrices(ctx context.Context, updates []PriceUpdate) int {
	due := make([]PriceUpdate, 0, len(updates))
	idents := make(map[string]*asset.Identity, len(updates))
	for _, u := range updates {
		if u.PriceUSD.IsZero() {
			continue
		}
		e, ok := c.entries.Load(u.Key)
		if !ok || e.identity.Fallback || e.identity.ID == "" {
			continue
		}
		if e.identity.PriceUpdatedAt != nil && c.now().Sub(*e.identity.PriceUpdatedAt) < c.cfg.PriceRefreshAge {
			continue
		}
		due = append(due, u)
		idents[u.Key] = e.identity
	}

	written := 0
	for start := 0; start < len(due); start += c.cfg.PriceBatchSize {
		end := start + c.cfg.PriceBatchSize
		if end > len(due) {
			end = len(due)
		}
		for _, u := range due[start:end] {
			ident := idents[u.Key]
			at := c.now()
			if err := c.store.UpdateAssetPrice(ctx, ident.ID, u.PriceUSD, at); err != nil {
				metrics.ErrorsTotal.WithLabelValues("assetcache", "price_update").Inc()
				c.logger.Warn("asset price update failed",
					zap.String("key", u.Key),
					zap.Error(err))
				continue
			}
			written++

			refreshed := *ident
			refreshed.PriceUSD = u.PriceUSD
			refreshed.PriceUpdatedAt = &at
			c.entries.Store(u.Key, entry{identity: &refreshed, fetchedAt: c.now()})
		}
		if ctx.Err() != nil {
			break
		}
	}
	return written
}

// WarmFromStore preloads verified identities so the first syncs after a
// worker restart mostly hit the cache. Best-effort.
func (c *Cache) WarmFromStore(ctx context.Context) (int, error) {
	idents, err := c.store.ListVerifiedAssets(ctx, c.cfg.WarmupLimit)
	if err != nil {
		return 0, err
	}
	now := c.now()
	for _, ident := range idents {
		c.entries.Store(ident.Key(), entry{identity: ident, fetchedAt: now})
	}
	return len(idents), nil
}

// Invalidate drops one key from the cache.
func (c *Cache) Invalidate(key string) {
	c.entries.Delete(key)
}

// Len returns the number of cached identities.
func (c *Cache) Len() int {
	return c.entries.Size()
}
