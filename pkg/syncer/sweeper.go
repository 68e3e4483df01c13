package syncer

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/internal/metrics"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/progress"
)

// sweepTimeout bounds each maintenance run.
const sweepTimeout = time.Minute

// SweepStaleJobs drops active-map entries older than the stale age and
// fails the matching wallet rows. Entries this old mean a handler
// goroutine died without settling; leaving them would pin the
// concurrency cap forever.
func (o *Orchestrator) SweepStaleJobs(ctx context.Context) (int, error) {
	staleAge := o.cfg.StaleJobAge
	if staleAge <= 0 {
		return 0, nil
	}
	cutoff := o.now().Add(-staleAge)

	var stale []*Job
	o.active.Range(func(id string, job *Job) bool {
		if job.StartedAt.Before(cutoff) {
			stale = append(stale, job)
		}
		return true
	})

	for _, job := range stale {
		o.active.Delete(job.ID)
		now := o.now()
		final := *job
		final.Status = JobFailed
		final.State = progress.StateFailed
		final.Error = "sync timed out"
		final.CompletedAt = &now
		o.completed.add(&final)
		o.mirror.RecordJob(ctx, &final)
		o.health.Record(job.Type, false)
		o.logger.Warn("purged stale sync job",
			zap.String("job_id", job.ID),
			zap.String("wallet_id", job.WalletID),
			zap.Time("started_at", job.StartedAt))
	}
	metrics.ActiveJobs.Set(float64(o.active.Size()))

	reset, err := o.store.ResetStaleSyncing(ctx, cutoff)
	if err != nil {
		return len(stale), err
	}
	if len(stale) > 0 || reset > 0 {
		o.logger.Info("Stale job sweep completed",
			zap.Int("jobs_purged", len(stale)),
			zap.Int64("wallets_reset", reset))
	}
	return len(stale), nil
}

// EnforceTxRetention deletes failed transactions older than the
// retention window.
func (o *Orchestrator) EnforceTxRetention(ctx context.Context) (int64, error) {
	window := o.cfg.TxRetentionWindow
	if window <= 0 {
		return 0, nil
	}
	deleted, err := o.store.DeleteStaleFailedTransactions(ctx, o.now().Add(-window))
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		o.logger.Info("Transaction retention enforced", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}

// PruneDustPositions removes near-zero positions that have not been
// re-synced within the prune age.
func (o *Orchestrator) PruneDustPositions(ctx context.Context) (int64, error) {
	age := o.cfg.PositionPruneAge
	if age <= 0 {
		return 0, nil
	}
	threshold, err := decimal.NewFromString(o.cfg.PositionPruneValueUSD)
	if err != nil || !threshold.IsPositive() {
		threshold = decimal.NewFromFloat(0.01)
	}

	pruned, err := o.store.PrunePositions(ctx, threshold, o.now().Add(-age))
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		o.logger.Info("Pruned dust positions",
			zap.Int64("pruned", pruned),
			zap.String("threshold_usd", threshold.String()))
	}
	return pruned, nil
}

// Sweeper schedules the orchestrator's periodic maintenance. Empty cron
// specs disable the matching job.
type Sweeper struct {
	cron   *cron.Cron
	orch   *Orchestrator
	logger *zap.Logger
}

func NewSweeper(o *Orchestrator, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		cron:   cron.New(),
		orch:   o,
		logger: logger.With(zap.String("component", "sweeper")),
	}
}

// Start registers the configured schedules and starts the cron loop.
func (s *Sweeper) Start() error {
	cfg := s.orch.cfg
	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{"stale_jobs", cfg.StaleJobSweepSpec, func(ctx context.Context) error {
			_, err := s.orch.SweepStaleJobs(ctx)
			return err
		}},
		{"tx_retention", cfg.TxRetentionSpec, func(ctx context.Context) error {
			_, err := s.orch.EnforceTxRetention(ctx)
			return err
		}},
		{"position_prune", cfg.PositionPruneSpec, func(ctx context.Context) error {
			_, err := s.orch.PruneDustPositions(ctx)
			return err
		}},
		{"heartbeat", cfg.HeartbeatSpec, func(ctx context.Context) error {
			s.orch.Heartbeat(ctx)
			return nil
		}},
	}

	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		name, run := job.name, job.run
		_, err := s.cron.AddFunc(job.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
			defer cancel()
			if err := run(ctx); err != nil {
				metrics.ErrorsTotal.WithLabelValues("sweeper", name).Inc()
				s.logger.Error("maintenance job failed", zap.String("job", name), zap.Error(err))
			}
		})
		if err != nil {
			return err
		}
		s.logger.Info("Scheduled maintenance job",
			zap.String("job", name),
			zap.String("spec", job.spec))
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
