package syncer

import (
	"context"

	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
)

// JobStatus returns the current view of a job: running here, recently
// finished here, or mirrored by a worker in another process.
func (o *Orchestrator) JobStatus(ctx context.Context, jobID string) (*Job, error) {
	if job, ok := o.active.Load(jobID); ok {
		return job, nil
	}
	if job, ok := o.completed.find(jobID); ok {
		return job, nil
	}
	if job, ok := o.mirror.FetchJob(ctx, jobID); ok {
		return job, nil
	}
	return nil, apperrors.ResourceNotFoundError(nil, "JOB_NOT_FOUND", "job not found")
}

// Status reports the worker's live state: active jobs, per-type health
// scores, memory and provider availability.
func (o *Orchestrator) Status(ctx context.Context) WorkerStatus {
	st := WorkerStatus{
		ActiveJobs:   o.active.Size(),
		HealthScores: o.health.Snapshot(),
		MemoryMB:     o.rss() / mb,
		ReportedAt:   o.now().UTC(),
	}
	if o.primary != nil {
		st.Providers = append(st.Providers, ProviderStatus{
			Name:    o.primary.Name(),
			Enabled: o.primary.Enabled(),
			Health:  o.primary.Health(ctx),
			Stats:   o.primary.Stats(),
		})
	}
	if o.appProv != nil {
		st.Providers = append(st.Providers, ProviderStatus{
			Name:    o.appProv.Name(),
			Enabled: o.appProv.Enabled(),
			Health:  o.appProv.Health(ctx),
			Stats:   o.appProv.Stats(),
		})
	}
	return st
}

// Heartbeat mirrors the worker's self-report so the API server can fold
// it into service health responses.
func (o *Orchestrator) Heartbeat(ctx context.Context) {
	o.mirror.RecordWorker(ctx, o.Status(ctx))
}
