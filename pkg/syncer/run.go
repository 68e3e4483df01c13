package syncer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/internal/metrics"
	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/progress"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/queue"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/retry"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/wallet"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/walletdb"
)

// Sync runs one wallet sync job end to end. The returned error is what
// the queue consumer settles the delivery with: input and admission
// failures are terminal, a failed mandatory stage is worth a redelivery.
func (o *Orchestrator) Sync(ctx context.Context, p Params) error {
	if p.JobID == "" || p.UserID == "" || p.WalletID == "" {
		return apperrors.BadRequestError(nil, "jobId, userId and walletId are required")
	}
	if err := o.admit(p.Type); err != nil {
		metrics.SyncJobsTotal.WithLabelValues(string(p.Type), "rejected").Inc()
		return err
	}

	start := o.now()
	startRSS := o.rss()
	job := &Job{
		ID:        p.JobID,
		Type:      p.Type,
		UserID:    p.UserID,
		WalletID:  p.WalletID,
		Status:    JobActive,
		State:     progress.StateQueued,
		StartedAt: start,
	}
	o.active.Store(job.ID, job)
	metrics.ActiveJobs.Set(float64(o.active.Size()))
	o.mirror.RecordJob(ctx, job)
	o.publish(ctx, job, "Sync queued")

	job, synced, runErr := o.execute(ctx, job, p)
	elapsed := o.now().Sub(start)
	o.settle(ctx, job, synced, elapsed, startRSS, runErr)

	metrics.SyncJobDuration.WithLabelValues(string(p.Type)).Observe(elapsed.Seconds())
	if runErr != nil {
		metrics.SyncJobsTotal.WithLabelValues(string(p.Type), "failed").Inc()
		return runErr
	}
	metrics.SyncJobsTotal.WithLabelValues(string(p.Type), "completed").Inc()
	return nil
}

// execute walks the stage machine. Optional stage failures are absorbed
// so the remaining stages still run; only the mandatory portfolio stage,
// a transactions-only job's single stage, and the final status write can
// fail the job.
func (o *Orchestrator) execute(ctx context.Context, job *Job, p Params) (*Job, []string, error) {
	w, err := o.fetchWallet(ctx, p.WalletID)
	if err != nil {
		return job, nil, err
	}
	if w.UserID != p.UserID {
		return job, nil, apperrors.ResourceNotFoundError(nil, "WALLET_NOT_FOUND", "wallet not found")
	}

	job = o.track(ctx, job, progress.StateSyncing, 10, "Sync started")
	if err := o.store.MarkWalletSyncing(ctx, w.ID); err != nil {
		return job, nil, apperrors.PersistenceError(err, "failed to mark wallet syncing")
	}

	txOnly := p.Type == queue.JobSyncTransactions
	full := p.Type == queue.JobSyncWalletFull

	synced := make([]string, 0, 5)
	var pf *provider.Portfolio

	if !txOnly {
		pf, err = o.stagePortfolio(ctx, w)
		if err != nil {
			// Without a fresh valuation the snapshot and wallet totals
			// would go stale silently, so this stage fails the job.
			return job, synced, err
		}
		synced = append(synced, DataPortfolio)
		job = o.track(ctx, job, progress.StateSyncingAssets, 15, "Portfolio captured")

		if p.requested(DataAssets) {
			if err := o.stagePositions(ctx, w); err != nil {
				o.logStageFailure(job, DataAssets, err)
			} else {
				synced = append(synced, DataAssets)
			}
			job = o.track(ctx, job, progress.StateSyncingAssets, 35, "Positions reconciled")
		}
	}

	if txOnly || p.requested(DataTransactions) {
		job = o.track(ctx, job, progress.StateSyncingTransactions, 50, "Syncing transactions")
		if err := o.stageTransactions(ctx, w, full); err != nil {
			if txOnly {
				return job, synced, err
			}
			o.logStageFailure(job, DataTransactions, err)
		} else {
			synced = append(synced, DataTransactions)
		}
		job = o.track(ctx, job, progress.StateSyncingTransactions, 60, "Transactions reconciled")
	}

	if !txOnly && p.requested(DataNFTs) {
		job = o.track(ctx, job, progress.StateSyncingNFTs, 75, "Syncing NFTs")
		if err := o.stageNFTs(ctx, w); err != nil {
			o.logStageFailure(job, DataNFTs, err)
		} else {
			synced = append(synced, DataNFTs)
		}
	}

	if !txOnly && p.requested(DataDeFi) && o.appProv != nil && o.appProv.Enabled() {
		job = o.track(ctx, job, progress.StateSyncing, 85, "Checking DeFi apps")
		if err := o.stageDeFi(ctx, w); err != nil {
			o.logStageFailure(job, DataDeFi, err)
		} else {
			synced = append(synced, DataDeFi)
		}
	}

	job = o.track(ctx, job, progress.StateSyncing, 95, "Finalizing sync")
	if err := o.completeWallet(ctx, w, pf); err != nil {
		return job, synced, err
	}
	o.caches.Invalidate(ctx, p.UserID, w.ID)
	return job, synced, nil
}

// fetchWallet retries the wallet read briefly before surfacing not
// found: a job enqueued right after registration can race the insert's
// commit becoming visible.
func (o *Orchestrator) fetchWallet(ctx context.Context, walletID string) (*wallet.Wallet, error) {
	retries := o.cfg.WalletFetchRetries
	if retries <= 0 {
		retries = 1
	}
	cfg := retry.Config{
		MaxRetries:    retries,
		InitialDelay:  o.cfg.WalletFetchRetryDelay,
		MaxDelay:      2 * time.Second,
		Multiplier:    2.0,
		JitterEnabled: true,
	}

	var w *wallet.Wallet
	err := retry.WithBackoff(ctx, cfg, o.logger, "fetch_wallet", func() error {
		var err error
		w, err = o.store.GetWallet(ctx, walletID)
		return err
	})
	if err != nil {
		if errors.Is(err, walletdb.ErrWalletNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "WALLET_NOT_FOUND", "wallet not found")
		}
		return nil, apperrors.PersistenceError(err, "failed to load wallet")
	}
	return w, nil
}

func (o *Orchestrator) stagePortfolio(ctx context.Context, w *wallet.Wallet) (*provider.Portfolio, error) {
	defer o.observeStage(DataPortfolio)()

	pf, err := o.primary.GetPortfolio(ctx, w.Address)
	if err != nil {
		return nil, err
	}
	if _, err := o.engine.ReconcilePortfolio(ctx, w.ID, pf); err != nil {
		return nil, err
	}
	return pf, nil
}

func (o *Orchestrator) stagePositions(ctx context.Context, w *wallet.Wallet) error {
	defer o.observeStage(DataAssets)()

	positions, err := o.primary.GetPositions(ctx, w.Address)
	if err != nil {
		return err
	}
	_, err = o.engine.ReconcilePositions(ctx, w.ID, positions)
	return err
}

func (o *Orchestrator) stageTransactions(ctx context.Context, w *wallet.Wallet, full bool) error {
	defer o.observeStage(DataTransactions)()

	q := provider.TxQuery{Limit: o.cfg.TxPageSize}
	if !full {
		since, err := o.store.LatestTransactionTime(ctx, w.ID)
		switch {
		case err != nil:
			o.logger.Warn("failed to read last transaction time, fetching full history",
				zap.String("wallet_id", w.ID), zap.Error(err))
		case since != nil:
			q.Since = since
		}
	}

	txs, err := o.primary.GetTransactions(ctx, w.Address, q)
	if err != nil {
		return err
	}
	_, err = o.engine.ReconcileTransactions(ctx, w.ID, txs)
	return err
}

func (o *Orchestrator) stageNFTs(ctx context.Context, w *wallet.Wallet) error {
	defer o.observeStage(DataNFTs)()

	nfts, err := o.primary.GetNFTs(ctx, w.Address)
	if err != nil {
		return err
	}
	_, err = o.engine.ReconcileNFTs(ctx, w.ID, nfts)
	return err
}

func (o *Orchestrator) stageDeFi(ctx context.Context, w *wallet.Wallet) error {
	defer o.observeStage(DataDeFi)()

	apps, err := o.appProv.GetAppBalances(ctx, w.Address)
	if err != nil {
		return err
	}
	_, err = o.engine.ReconcileDeFi(ctx, w.ID, apps)
	return err
}

// completeWallet writes the final status row: balance from the fresh
// valuation when the portfolio stage ran, recomputed counts either way.
func (o *Orchestrator) completeWallet(ctx context.Context, w *wallet.Wallet, pf *provider.Portfolio) error {
	assets, err := o.store.CountDistinctAssets(ctx, w.ID)
	if err != nil {
		return apperrors.PersistenceError(err, "failed to count wallet assets")
	}
	positions, err := o.store.CountActivePositions(ctx, w.ID)
	if err != nil {
		return apperrors.PersistenceError(err, "failed to count wallet positions")
	}
	nfts, err := o.store.CountNFTs(ctx, w.ID)
	if err != nil {
		return apperrors.PersistenceError(err, "failed to count wallet nfts")
	}

	balance := w.TotalBalance
	if pf != nil {
		balance = pf.TotalUSD
	}
	if err := o.store.CompleteWalletSync(ctx, w.ID, balance, assets, positions, nfts); err != nil {
		return apperrors.PersistenceError(err, "failed to complete wallet sync")
	}
	return nil
}

// settle closes out a job on both paths: wallet status on failure, the
// terminal progress event, health score, ring insert, active map removal
// and memory accounting.
func (o *Orchestrator) settle(ctx context.Context, job *Job, synced []string, elapsed time.Duration, startRSS uint64, runErr error) {
	now := o.now()
	final := *job
	final.DataTypes = synced
	final.CompletedAt = &now

	if runErr == nil {
		final.Status = JobCompleted
		final.State = progress.StateCompleted
		final.Progress = 100
	} else {
		final.Status = JobFailed
		final.State = progress.StateFailed
		final.Error = errorSummary(runErr)
		if err := o.store.FailWalletSync(ctx, job.WalletID, final.Error); err != nil {
			o.logger.Error("failed to mark wallet failed",
				zap.String("wallet_id", job.WalletID), zap.Error(err))
		}
	}

	o.health.Record(job.Type, runErr == nil)
	o.completed.add(&final)
	o.active.Delete(job.ID)
	metrics.ActiveJobs.Set(float64(o.active.Size()))
	o.mirror.RecordJob(ctx, &final)

	event := progress.Event{
		JobID:            final.ID,
		WalletID:         final.WalletID,
		State:            final.State,
		Progress:         final.Progress,
		Message:          "Sync completed",
		DataTypes:        final.DataTypes,
		ProcessingTimeMs: elapsed.Milliseconds(),
		Error:            final.Error,
	}
	if runErr != nil {
		event.Message = "Sync failed"
	}
	o.progress.Publish(ctx, final.UserID, event)

	o.logMemoryDelta(&final, startRSS)
	o.releaseAboveHighWater()

	logFn := o.logger.Info
	if runErr != nil {
		logFn = o.logger.Warn
	}
	logFn("Sync job settled",
		zap.String("job_id", final.ID),
		zap.String("wallet_id", final.WalletID),
		zap.String("status", string(final.Status)),
		zap.Strings("data_types", synced),
		zap.Duration("elapsed", elapsed),
		zap.Error(runErr))
}

// track records a milestone into the live tables and publishes it.
func (o *Orchestrator) track(ctx context.Context, job *Job, state progress.State, pct int, message string) *Job {
	next := *job
	next.State = state
	next.Progress = pct
	o.active.Store(next.ID, &next)
	o.mirror.RecordJob(ctx, &next)
	o.progress.Publish(ctx, next.UserID, progress.Event{
		JobID:    next.ID,
		WalletID: next.WalletID,
		State:    state,
		Progress: pct,
		Message:  message,
	})
	return &next
}

// publish emits the job's current state without advancing it.
func (o *Orchestrator) publish(ctx context.Context, job *Job, message string) {
	o.progress.Publish(ctx, job.UserID, progress.Event{
		JobID:    job.ID,
		WalletID: job.WalletID,
		State:    job.State,
		Progress: job.Progress,
		Message:  message,
	})
}

func (o *Orchestrator) observeStage(stage string) func() {
	start := time.Now()
	return func() {
		metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// logStageFailure absorbs an optional stage's error: the job completes
// with the stage missing from dataTypes.
func (o *Orchestrator) logStageFailure(job *Job, stage string, err error) {
	metrics.ErrorsTotal.WithLabelValues("syncer", stage).Inc()
	o.logger.Warn("sync stage failed",
		zap.String("job_id", job.ID),
		zap.String("wallet_id", job.WalletID),
		zap.String("stage", stage),
		zap.Error(err))
}

func (o *Orchestrator) logMemoryDelta(job *Job, startRSS uint64) {
	endRSS := o.rss()
	if startRSS == 0 || endRSS == 0 {
		return
	}
	o.logger.Debug("job memory delta",
		zap.String("job_id", job.ID),
		zap.Int64("delta_mb", (int64(endRSS)-int64(startRSS))/mb),
		zap.Uint64("rss_mb", endRSS/mb))
}

// errorSummary is what lands on the wallet row and in the failed event:
// the classified message when there is one, truncated raw text otherwise.
func errorSummary(err error) string {
	var svcErr *apperrors.ServiceError
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	msg := err.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return msg
}
