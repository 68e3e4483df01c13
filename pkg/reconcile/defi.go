package reconcile

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/internal/metrics"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/walletdb"
)

// divergenceThreshold is the relative gap between the secondary provider's
// app balance total and the snapshot's protocol subtotals above which the
// two providers are considered to disagree.
var divergenceThreshold = decimal.NewFromFloat(0.25)

// ReconcileDeFi cross-checks the secondary provider's app-level balances
// against the protocol subtotals already recorded in the snapshot. The pass
// writes nothing; its output is logs and a divergence warning when the two
// providers disagree materially.
func (e *Engine) ReconcileDeFi(ctx context.Context, walletID string, apps []provider.DeFiPosition) (Result, error) {
	start := e.now()
	res := Result{Processed: len(apps)}

	total := decimal.Zero
	for _, app := range apps {
		if !app.BalanceUSD.IsPositive() {
			metrics.ItemsDropped.WithLabelValues("defi", "empty_balance").Inc()
			res.Dropped++
			continue
		}
		total = total.Add(app.BalanceUSD)
		e.logger.Debug("defi app balance",
			zap.String("wallet_id", walletID),
			zap.String("app", app.AppID),
			zap.String("chain", app.ChainID),
			zap.String("balance_usd", app.BalanceUSD.String()))
	}

	snap, err := e.store.GetSnapshot(ctx, walletID)
	if err != nil {
		if !errors.Is(err, walletdb.ErrSnapshotNotFound) {
			metrics.ErrorsTotal.WithLabelValues("reconcile", "snapshot_read").Inc()
			e.logger.Warn("could not load snapshot for defi cross-check",
				zap.String("wallet_id", walletID),
				zap.Error(err))
		}
		return res, nil
	}

	subtotal := snap.DepositedValue.
		Add(snap.BorrowedValue).
		Add(snap.LockedValue).
		Add(snap.StakedValue)
	if diverges(total, subtotal) {
		e.logger.Warn("defi app balances diverge from snapshot subtotals",
			zap.String("wallet_id", walletID),
			zap.String("app_total_usd", total.String()),
			zap.String("snapshot_subtotal_usd", subtotal.String()))
	}

	e.logger.Info("DeFi cross-check completed",
		zap.String("wallet_id", walletID),
		zap.Int("processed", res.Processed),
		zap.Int("dropped", res.Dropped),
		zap.String("app_total_usd", total.String()),
		zap.Duration("duration", e.now().Sub(start)))
	return res, nil
}

// diverges reports whether the two totals differ by more than the threshold
// relative to the larger of the two. Zero on either side never diverges;
// one provider simply not covering the wallet is not a disagreement.
func diverges(a, b decimal.Decimal) bool {
	if !a.IsPositive() || !b.IsPositive() {
		return false
	}
	larger := decimal.Max(a, b)
	gap := a.Sub(b).Abs()
	return gap.GreaterThan(larger.Mul(divergenceThreshold))
}
