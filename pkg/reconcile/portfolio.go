package reconcile

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/internal/metrics"
	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/portfolio"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider"
)

// ReconcilePortfolio overwrites the wallet's snapshot row with the
// provider's aggregate valuation. The wallet's own balance column is only
// updated when the total passes the sanity guard, so provider garbage
// cannot silently corrupt balances.
func (e *Engine) ReconcilePortfolio(ctx context.Context, walletID string, p *provider.Portfolio) (Result, error) {
	snap := &portfolio.Snapshot{
		WalletID:         walletID,
		TotalValue:       p.TotalUSD,
		WalletValue:      p.WalletUSD,
		DepositedValue:   p.DepositedUSD,
		BorrowedValue:    p.BorrowedUSD,
		LockedValue:      p.LockedUSD,
		StakedValue:      p.StakedUSD,
		Change24hPercent: p.Change24hPercent,
		TypeDistribution: map[string]decimal.Decimal{
			"wallet":    p.WalletUSD,
			"deposited": p.DepositedUSD,
			"borrowed":  p.BorrowedUSD,
			"locked":    p.LockedUSD,
			"staked":    p.StakedUSD,
		},
		SnapshotAt: e.now(),
	}
	if len(p.ChainTotals) > 0 {
		snap.ChainDistribution = make(map[string]decimal.Decimal, len(p.ChainTotals))
		for chainID, total := range p.ChainTotals {
			snap.ChainDistribution[chainID] = total
		}
	}

	if _, err := e.store.UpsertSnapshot(ctx, snap); err != nil {
		metrics.ErrorsTotal.WithLabelValues("reconcile", "snapshot_upsert").Inc()
		return Result{Processed: 1, Errors: 1},
			apperrors.PersistenceError(err, fmt.Sprintf("portfolio snapshot for wallet %s", walletID))
	}
	metrics.RowsUpserted.WithLabelValues("snapshot").Inc()

	if p.TotalUSD.IsNegative() {
		metrics.ItemsDropped.WithLabelValues("portfolio", "negative_total").Inc()
		e.logger.Warn("provider reported a negative portfolio total, wallet balance left unchanged",
			zap.String("wallet_id", walletID),
			zap.String("total_usd", p.TotalUSD.String()))
		return Result{Processed: 1, Upserted: 1, Dropped: 1}, nil
	}

	if err := e.store.UpdateWalletBalance(ctx, walletID, p.TotalUSD); err != nil {
		metrics.ErrorsTotal.WithLabelValues("reconcile", "wallet_balance").Inc()
		return Result{Processed: 1, Upserted: 1, Errors: 1},
			apperrors.PersistenceError(err, fmt.Sprintf("wallet balance for wallet %s", walletID))
	}

	return Result{Processed: 1, Upserted: 1}, nil
}
