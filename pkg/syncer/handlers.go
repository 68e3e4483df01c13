package syncer

import (
	"context"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/queue"
)

// SyncHandlers binds the sync-queue job types to the orchestrator.
func (o *Orchestrator) SyncHandlers() queue.Handlers {
	return queue.Handlers{
		queue.JobSyncWallet:       o.handleSync,
		queue.JobSyncWalletFull:   o.handleSync,
		queue.JobSyncTransactions: o.handleSync,
	}
}

// AnalyticsHandlers binds the analytics-queue job types.
func (o *Orchestrator) AnalyticsHandlers() queue.Handlers {
	return queue.Handlers{
		queue.JobCalculatePortfolio: o.handleCalculatePortfolio,
		queue.JobCreateSnapshot:     o.handleCreateSnapshot,
	}
}

func (o *Orchestrator) handleSync(ctx context.Context, env queue.Envelope) error {
	payload, err := queue.DecodePayload[queue.SyncPayload](env)
	if err != nil {
		return err
	}
	return o.Sync(ctx, Params{
		JobID:     env.JobID,
		Type:      env.Type,
		UserID:    payload.UserID,
		WalletID:  payload.WalletID,
		DataTypes: payload.DataTypes,
	})
}

func (o *Orchestrator) handleCalculatePortfolio(ctx context.Context, env queue.Envelope) error {
	payload, err := queue.DecodePayload[queue.AnalyticsPayload](env)
	if err != nil {
		return err
	}
	return o.CalculatePortfolio(ctx, payload.WalletID)
}

func (o *Orchestrator) handleCreateSnapshot(ctx context.Context, env queue.Envelope) error {
	payload, err := queue.DecodePayload[queue.AnalyticsPayload](env)
	if err != nil {
		return err
	}
	return o.CreateSnapshot(ctx, payload.WalletID)
}
