package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider"
)

const (
	jobKeyPrefix    = "sync-jobs:"
	workerStatusKey = "sync-worker:status"

	defaultJobTTL   = time.Hour
	workerStatusTTL = 3 * time.Minute
)

// ProviderStatus is one upstream's availability as seen by this worker.
type ProviderStatus struct {
	Name    string          `json:"name"`
	Enabled bool            `json:"enabled"`
	Health  provider.Health `json:"health"`
	Stats   provider.Stats  `json:"stats"`
}

// WorkerStatus is the worker's periodic self-report. The API server
// reads it from the mirror to answer health queries for state that only
// exists inside the worker process.
type WorkerStatus struct {
	ActiveJobs   int                `json:"activeJobs"`
	HealthScores map[string]float64 `json:"healthScores,omitempty"`
	MemoryMB     uint64             `json:"memoryMb"`
	Providers    []ProviderStatus   `json:"providers,omitempty"`
	ReportedAt   time.Time          `json:"reportedAt"`
}

// Mirror records job and worker state outside the process so status
// queries survive worker restarts and cross the binary boundary.
// Implementations are best-effort: failures log and return nothing.
type Mirror interface {
	RecordJob(ctx context.Context, job *Job)
	FetchJob(ctx context.Context, jobID string) (*Job, bool)
	RecordWorker(ctx context.Context, st WorkerStatus)
	FetchWorker(ctx context.Context) (*WorkerStatus, bool)
}

// RedisMirror keeps each job under sync-jobs:{jobID} with a TTL, and the
// worker self-report under a single well-known key.
type RedisMirror struct {
	client *redis.Client
	jobTTL time.Duration
	logger *zap.Logger
}

func NewRedisMirror(client *redis.Client, jobTTL time.Duration, logger *zap.Logger) *RedisMirror {
	if jobTTL <= 0 {
		jobTTL = defaultJobTTL
	}
	return &RedisMirror{
		client: client,
		jobTTL: jobTTL,
		logger: logger.With(zap.String("component", "job_mirror")),
	}
}

func jobKey(jobID string) string { return jobKeyPrefix + jobID }

func (m *RedisMirror) RecordJob(ctx context.Context, job *Job) {
	payload, err := json.Marshal(job)
	if err != nil {
		m.logger.Warn("failed to encode job record", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if err := m.client.Set(ctx, jobKey(job.ID), payload, m.jobTTL).Err(); err != nil {
		m.logger.Warn("job mirror write failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (m *RedisMirror) FetchJob(ctx context.Context, jobID string) (*Job, bool) {
	raw, err := m.client.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			m.logger.Warn("job mirror read failed", zap.String("job_id", jobID), zap.Error(err))
		}
		return nil, false
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		m.logger.Warn("job mirror record corrupt", zap.String("job_id", jobID), zap.Error(err))
		return nil, false
	}
	return &job, true
}

func (m *RedisMirror) RecordWorker(ctx context.Context, st WorkerStatus) {
	payload, err := json.Marshal(st)
	if err != nil {
		m.logger.Warn("failed to encode worker status", zap.Error(err))
		return
	}
	if err := m.client.Set(ctx, workerStatusKey, payload, workerStatusTTL).Err(); err != nil {
		m.logger.Warn("worker status write failed", zap.Error(err))
	}
}

func (m *RedisMirror) FetchWorker(ctx context.Context) (*WorkerStatus, bool) {
	raw, err := m.client.Get(ctx, workerStatusKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			m.logger.Warn("worker status read failed", zap.Error(err))
		}
		return nil, false
	}
	var st WorkerStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		m.logger.Warn("worker status record corrupt", zap.Error(err))
		return nil, false
	}
	return &st, true
}

// NopMirror drops all records, for tests and single-process setups.
type NopMirror struct{}

func (NopMirror) RecordJob(context.Context, *Job)            {}
func (NopMirror) RecordWorker(context.Context, WorkerStatus) {}

func (NopMirror) FetchJob(context.Context, string) (*Job, bool) { return nil, false }

func (NopMirror) FetchWorker(context.Context) (*WorkerStatus, bool) { return nil, false }
