package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/internal/metrics"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/asset"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/assetcache"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/portfolio"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider"
)

// keptPosition is a raw position that survived filtering, with its asset
// descriptor derived once.
type keptPosition struct {
	raw  provider.Position
	data assetcache.Data
	key  string
}

// ReconcilePositions normalizes the wallet's fungible holdings. The pass
// runs in five steps: filter, derive asset keys, batch-resolve identities,
// batch price updates, then chunked upserts. Resolution failures drop the
// position, they never abort the batch.
func (e *Engine) ReconcilePositions(ctx context.Context, walletID string, raw []provider.Position) (Result, error) {
	start := e.now()
	res := Result{Processed: len(raw)}

	kept := make([]keptPosition, 0, len(raw))
	for _, p := range raw {
		if reason := positionDropReason(p); reason != "" {
			metrics.ItemsDropped.WithLabelValues("position", reason).Inc()
			res.Dropped++
			e.logger.Debug("dropped position",
				zap.String("wallet_id", walletID),
				zap.String("position_id", p.ID),
				zap.String("reason", reason))
			continue
		}
		data := assetcache.Data{
			Symbol:          p.Fungible.Symbol,
			Name:            p.Fungible.Name,
			Network:         asset.NetworkFromChainID(p.ChainID),
			ContractAddress: p.Fungible.ContractAddress,
			Decimals:        p.Fungible.Decimals,
			Verified:        p.Fungible.Verified,
			PriceUSD:        p.PriceUSD,
		}
		kept = append(kept, keptPosition{raw: p, data: data, key: data.Key()})
	}

	if len(kept) == 0 {
		e.finishPositions(ctx, walletID, start, &res)
		return res, ctx.Err()
	}

	descriptors := make([]assetcache.Data, len(kept))
	for i, k := range kept {
		descriptors[i] = k.data
	}
	resolved := e.assets.BatchFindOrCreate(ctx, descriptors)

	// One price observation per asset key; the cache applies its own
	// freshness threshold.
	priceSeen := make(map[string]struct{}, len(kept))
	prices := make([]assetcache.PriceUpdate, 0, len(kept))
	for _, k := range kept {
		if _, ok := priceSeen[k.key]; ok {
			continue
		}
		priceSeen[k.key] = struct{}{}
		prices = append(prices, assetcache.PriceUpdate{Key: k.key, PriceUSD: k.raw.PriceUSD})
	}
	e.assets.BatchUpdatePrices(ctx, prices)

	for batchStart := 0; batchStart < len(kept); batchStart += e.positionBatchSize {
		batchEnd := batchStart + e.positionBatchSize
		if batchEnd > len(kept) {
			batchEnd = len(kept)
		}
		for _, k := range kept[batchStart:batchEnd] {
			ident := e.resolveWithFallback(ctx, resolved[k.key], k.data)
			if ident == nil {
				metrics.ItemsDropped.WithLabelValues("position", "unresolved_asset").Inc()
				res.Dropped++
				e.logger.Warn("position dropped, asset could not be resolved",
					zap.String("wallet_id", walletID),
					zap.String("asset_key", k.key))
				continue
			}

			pos := &portfolio.Position{
				WalletID:         walletID,
				AssetID:          ident.ID,
				Balance:          k.raw.Quantity,
				BalanceFormatted: k.raw.QuantityFloat,
				ValueUSD:         k.raw.ValueUSD,
				Change24hPercent: k.raw.Change24hPercent,
				PositionType:     positionType(k.raw),
				Protocol:         k.raw.Protocol,
				IsActive:         true,
				LastSyncedAt:     e.now(),
			}
			if _, err := e.store.UpsertPosition(ctx, pos); err != nil {
				metrics.ErrorsTotal.WithLabelValues("reconcile", "position_upsert").Inc()
				res.Errors++
				e.logger.Warn("position upsert failed",
					zap.String("wallet_id", walletID),
					zap.String("asset_key", k.key),
					zap.Error(err))
				continue
			}
			metrics.RowsUpserted.WithLabelValues("position").Inc()
			res.Upserted++
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
	}

	e.finishPositions(ctx, walletID, start, &res)

	e.logger.Info("Position reconciliation completed",
		zap.String("wallet_id", walletID),
		zap.Int("processed", res.Processed),
		zap.Int("upserted", res.Upserted),
		zap.Int("dropped", res.Dropped),
		zap.Int("errors", res.Errors),
		zap.Duration("duration", e.now().Sub(start)))
	return res, nil
}

// finishPositions deactivates rows this pass did not touch. Skipped when
// any upsert failed, so a partial store outage cannot mass-deactivate
// holdings that are still there.
func (e *Engine) finishPositions(ctx context.Context, walletID string, start time.Time, res *Result) {
	if res.Errors > 0 {
		return
	}
	deactivated, err := e.store.DeactivateMissingPositions(ctx, walletID, start)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("reconcile", "position_deactivate").Inc()
		res.Errors++
		e.logger.Warn("failed to deactivate departed positions",
			zap.String("wallet_id", walletID),
			zap.Error(err))
		return
	}
	if deactivated > 0 {
		e.logger.Debug("deactivated departed positions",
			zap.String("wallet_id", walletID),
			zap.Int64("count", deactivated))
	}
}

// resolveWithFallback returns the identity to persist against, or nil when
// the asset cannot be resolved at all. A fallback identity from the cache
// triggers the legacy symbol lookup.
func (e *Engine) resolveWithFallback(ctx context.Context, ident *asset.Identity, data assetcache.Data) *asset.Identity {
	if ident != nil && !ident.Fallback {
		return ident
	}
	legacy, err := e.store.FindAssetBySymbol(ctx, data.Symbol, data.Network)
	if err != nil {
		return nil
	}
	return legacy
}

func positionDropReason(p provider.Position) string {
	switch {
	case p.Kind != provider.KindPosition:
		return "non_position"
	case p.Fungible == nil || p.Fungible.Symbol == "":
		return "missing_fungible"
	case p.IsTrash:
		return "trash"
	case p.Quantity.IsNegative() || p.QuantityFloat.IsNegative():
		return "negative_balance"
	case !p.PriceUSD.IsPositive():
		return "unpriced"
	default:
		return ""
	}
}

func positionType(p provider.Position) string {
	if p.PositionType == "" {
		return "wallet"
	}
	return p.PositionType
}
