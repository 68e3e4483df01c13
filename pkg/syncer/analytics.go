package syncer

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/portfolio"
)

// CalculatePortfolio recomputes a wallet's aggregate balance from stored
// positions, without touching any provider. Runs on the analytics queue
// after bulk imports and prunes.
func (o *Orchestrator) CalculatePortfolio(ctx context.Context, walletID string) error {
	total, err := o.store.SumPositionValues(ctx, walletID)
	if err != nil {
		return apperrors.PersistenceError(err, "failed to sum position values")
	}
	if err := o.store.UpdateWalletBalance(ctx, walletID, total); err != nil {
		return apperrors.PersistenceError(err, "failed to update wallet balance")
	}
	o.logger.Info("Recalculated wallet balance",
		zap.String("wallet_id", walletID),
		zap.String("total_usd", total.String()))
	return nil
}

// CreateSnapshot rebuilds the wallet's portfolio snapshot from stored
// positions. Provider-derived fields that cannot be recomputed from rows
// (chain distribution, 24h change) are carried over from the previous
// snapshot when one exists.
func (o *Orchestrator) CreateSnapshot(ctx context.Context, walletID string) error {
	positions, err := o.store.ListPositions(ctx, walletID)
	if err != nil {
		return apperrors.PersistenceError(err, "failed to list positions")
	}

	total := decimal.Zero
	byType := make(map[string]decimal.Decimal)
	for _, pos := range positions {
		if !pos.IsActive {
			continue
		}
		total = total.Add(pos.ValueUSD)
		byType[pos.PositionType] = byType[pos.PositionType].Add(pos.ValueUSD)
	}

	snap := &portfolio.Snapshot{
		WalletID:         walletID,
		TotalValue:       total,
		WalletValue:      byType["wallet"],
		DepositedValue:   byType["deposited"],
		BorrowedValue:    byType["borrowed"],
		LockedValue:      byType["locked"],
		StakedValue:      byType["staked"],
		TypeDistribution: byType,
		SnapshotAt:       o.now(),
	}
	if previous, err := o.store.GetSnapshot(ctx, walletID); err == nil {
		snap.ChainDistribution = previous.ChainDistribution
		snap.Change24hPercent = previous.Change24hPercent
	}

	if _, err := o.store.UpsertSnapshot(ctx, snap); err != nil {
		return apperrors.PersistenceError(err, "failed to upsert snapshot")
	}
	o.logger.Info("Rebuilt portfolio snapshot",
		zap.String("wallet_id", walletID),
		zap.String("total_usd", total.String()),
		zap.Int("positions", len(positions)))
	return nil
}
