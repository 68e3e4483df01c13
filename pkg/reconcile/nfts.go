package reconcile

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/internal/metrics"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/asset"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/portfolio"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider"
)

// ReconcileNFTs records the wallet's non-fungible holdings. Holdings whose
// spam score meets the configured threshold are dropped before they reach
// the store. After a clean pass, rows the provider no longer reports are
// deleted and the wallet's NFT count is refreshed.
func (e *Engine) ReconcileNFTs(ctx context.Context, walletID string, raw []provider.NFT) (Result, error) {
	start := e.now()
	res := Result{Processed: len(raw)}

	for _, n := range raw {
		if reason := e.nftDropReason(n); reason != "" {
			metrics.ItemsDropped.WithLabelValues("nft", reason).Inc()
			res.Dropped++
			e.logger.Debug("dropped nft",
				zap.String("wallet_id", walletID),
				zap.String("contract", n.ContractAddress),
				zap.String("token_id", n.TokenID),
				zap.String("reason", reason))
			continue
		}

		record := &portfolio.NFT{
			WalletID:        walletID,
			ContractAddress: strings.ToLower(n.ContractAddress),
			TokenID:         n.TokenID,
			Network:         asset.NetworkFromChainID(n.ChainID),
			Name:            n.Name,
			CollectionName:  n.CollectionName,
			Description:     n.Description,
			ImageURL:        n.ImageURL,
			EstimatedValue:  n.EstimatedValue,
			FloorPrice:      n.FloorPrice,
			RarityRank:      n.RarityRank,
			Standard:        n.Standard,
			IsSpam:          false,
			IsNSFW:          n.IsNSFW,
			LastSyncedAt:    e.now(),
		}
		if _, err := e.store.UpsertNFT(ctx, record); err != nil {
			metrics.ErrorsTotal.WithLabelValues("reconcile", "nft_upsert").Inc()
			res.Errors++
			e.logger.Warn("nft upsert failed",
				zap.String("wallet_id", walletID),
				zap.String("contract", n.ContractAddress),
				zap.String("token_id", n.TokenID),
				zap.Error(err))
			continue
		}
		metrics.RowsUpserted.WithLabelValues("nft").Inc()
		res.Upserted++

		if ctx.Err() != nil {
			return res, ctx.Err()
		}
	}

	e.finishNFTs(ctx, walletID, start, &res)

	e.logger.Info("NFT reconciliation completed",
		zap.String("wallet_id", walletID),
		zap.Int("processed", res.Processed),
		zap.Int("upserted", res.Upserted),
		zap.Int("dropped", res.Dropped),
		zap.Int("errors", res.Errors),
		zap.Duration("duration", e.now().Sub(start)))
	return res, nil
}

// finishNFTs removes departed rows and refreshes the wallet's NFT count.
// Both are skipped when any upsert failed: a partial pass cannot wipe
// holdings it merely failed to rewrite, and its row count would undercount
// what the store actually holds.
func (e *Engine) finishNFTs(ctx context.Context, walletID string, start time.Time, res *Result) {
	if res.Errors > 0 {
		return
	}

	deleted, err := e.store.DeleteDepartedNFTs(ctx, walletID, start)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("reconcile", "nft_delete").Inc()
		res.Errors++
		e.logger.Warn("failed to delete departed nfts",
			zap.String("wallet_id", walletID),
			zap.Error(err))
		return
	}
	if deleted > 0 {
		e.logger.Debug("deleted departed nfts",
			zap.String("wallet_id", walletID),
			zap.Int64("count", deleted))
	}

	if err := e.store.UpdateWalletNFTCount(ctx, walletID, res.Upserted); err != nil {
		metrics.ErrorsTotal.WithLabelValues("reconcile", "nft_count").Inc()
		res.Errors++
		e.logger.Warn("failed to update wallet nft count",
			zap.String("wallet_id", walletID),
			zap.Error(err))
	}
}

func (e *Engine) nftDropReason(n provider.NFT) string {
	switch {
	case n.ContractAddress == "" || n.TokenID == "":
		return "missing_identity"
	case n.SpamScore >= e.nftSpamThreshold:
		return "spam"
	default:
		return ""
	}
}
