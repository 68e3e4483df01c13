package reconcile

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/internal/metrics"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/asset"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/portfolio"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider"
)

// ReconcileTransactions classifies and records the wallet's transaction
// history. Records are keyed by (hash, network) in the store, so replaying
// the same page is idempotent. A record that fails to persist is logged and
// skipped, it never aborts the pass.
func (e *Engine) ReconcileTransactions(ctx context.Context, walletID string, raw []provider.Transaction) (Result, error) {
	start := e.now()
	res := Result{Processed: len(raw)}

	for _, tx := range raw {
		if reason := transactionDropReason(tx); reason != "" {
			metrics.ItemsDropped.WithLabelValues("transaction", reason).Inc()
			res.Dropped++
			e.logger.Debug("dropped transaction",
				zap.String("wallet_id", walletID),
				zap.String("hash", tx.Hash),
				zap.String("reason", reason))
			continue
		}

		record := e.buildTransaction(walletID, tx)
		if _, err := e.store.UpsertTransaction(ctx, record); err != nil {
			metrics.ErrorsTotal.WithLabelValues("reconcile", "transaction_upsert").Inc()
			res.Errors++
			e.logger.Warn("transaction upsert failed",
				zap.String("wallet_id", walletID),
				zap.String("hash", tx.Hash),
				zap.Error(err))
			continue
		}
		metrics.RowsUpserted.WithLabelValues("transaction").Inc()
		res.Upserted++

		if ctx.Err() != nil {
			return res, ctx.Err()
		}
	}

	e.logger.Info("Transaction reconciliation completed",
		zap.String("wallet_id", walletID),
		zap.Int("processed", res.Processed),
		zap.Int("upserted", res.Upserted),
		zap.Int("dropped", res.Dropped),
		zap.Int("errors", res.Errors),
		zap.Duration("duration", e.now().Sub(start)))
	return res, nil
}

func (e *Engine) buildTransaction(walletID string, tx provider.Transaction) *portfolio.Transaction {
	txType := classifyType(tx)
	direction := txDirection(tx.Transfers)
	value, symbol := txValue(tx.Transfers, direction)

	return &portfolio.Transaction{
		WalletID:    walletID,
		Hash:        tx.Hash,
		Network:     asset.NetworkFromChainID(tx.ChainID),
		TxType:      txType,
		Direction:   direction,
		Status:      txStatus(tx.Status),
		FromAddress: tx.From,
		ToAddress:   tx.To,
		ValueUSD:    value,
		FeeUSD:      tx.FeeUSD,
		AssetSymbol: symbol,
		Category:    categorize(tx, txType),
		Tags:        buildTags(tx, txType),
		Notes:       describe(tx, txType),
		MinedAt:     tx.MinedAt,
	}
}

func transactionDropReason(tx provider.Transaction) string {
	switch {
	case tx.Kind != "" && tx.Kind != "transactions":
		return "unknown_kind"
	case tx.Hash == "":
		return "missing_hash"
	case tx.MinedAt.IsZero():
		return "missing_timestamp"
	default:
		return ""
	}
}

func txDirection(transfers []provider.Transfer) portfolio.Direction {
	in, out := transferFlows(transfers)
	switch {
	case in && out:
		return portfolio.DirectionSelf
	case out:
		return portfolio.DirectionOut
	case in:
		return portfolio.DirectionIn
	default:
		// No transfers, e.g. an approval. The wallet acted on itself.
		return portfolio.DirectionSelf
	}
}

// txValue totals the transfers on the side matching the direction and picks
// the symbol of the largest movement. Two-sided transactions report
// whichever side is bigger, which keeps swap values meaningful.
func txValue(transfers []provider.Transfer, direction portfolio.Direction) (decimal.Decimal, string) {
	var inSum, outSum decimal.Decimal
	var topValue decimal.Decimal
	var topSymbol string

	for _, t := range transfers {
		switch t.Direction {
		case provider.TransferIn:
			inSum = inSum.Add(t.ValueUSD)
		case provider.TransferOut:
			outSum = outSum.Add(t.ValueUSD)
		case provider.TransferSelf:
			inSum = inSum.Add(t.ValueUSD)
		}
		if t.Symbol != "" && (topSymbol == "" || t.ValueUSD.GreaterThan(topValue)) {
			topValue = t.ValueUSD
			topSymbol = t.Symbol
		}
	}

	switch direction {
	case portfolio.DirectionOut:
		return outSum, topSymbol
	case portfolio.DirectionIn:
		return inSum, topSymbol
	default:
		if outSum.GreaterThan(inSum) {
			return outSum, topSymbol
		}
		return inSum, topSymbol
	}
}

func txStatus(status string) portfolio.TxStatus {
	switch status {
	case "pending":
		return portfolio.TxPending
	case "failed":
		return portfolio.TxFailedTx
	default:
		return portfolio.TxConfirmed
	}
}
