package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncJobsTotal counts sync jobs by job type and outcome
	SyncJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletsync_jobs_total",
			Help: "Total number of wallet sync jobs",
		},
		[]string{"job_type", "status"},
	)

	// SyncJobDuration tracks end-to-end job processing time
	SyncJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walletsync_job_duration_seconds",
			Help:    "Sync job processing duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"job_type"},
	)

	// StageDuration tracks per-stage processing time within a sync job
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walletsync_stage_duration_seconds",
			Help:    "Sync stage processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// ActiveJobs tracks the number of jobs currently running
	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "walletsync_active_jobs",
			Help: "Number of sync jobs currently running",
		},
	)

	// AdmissionRejections counts jobs rejected before execution
	AdmissionRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletsync_admission_rejections_total",
			Help: "Total number of jobs rejected by admission control",
		},
		[]string{"reason"},
	)

	// ProviderRequests counts upstream provider calls by outcome
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletsync_provider_requests_total",
			Help: "Total number of provider API requests",
		},
		[]string{"provider", "operation", "status"},
	)

	// ProviderLatency tracks upstream provider call latency
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walletsync_provider_latency_seconds",
			Help:    "Provider API request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "operation"},
	)

	// BreakerState tracks circuit breaker state per provider (0 closed, 1 half-open, 2 open)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "walletsync_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	// AssetCacheLookups counts asset cache lookups by result
	AssetCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletsync_asset_cache_lookups_total",
			Help: "Total number of asset cache lookups",
		},
		[]string{"result"},
	)

	// RowsUpserted counts persisted rows by entity
	RowsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletsync_rows_upserted_total",
			Help: "Total number of rows written during reconciliation",
		},
		[]string{"entity"},
	)

	// ItemsDropped counts provider items dropped during reconciliation
	ItemsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletsync_items_dropped_total",
			Help: "Total number of provider items dropped during reconciliation",
		},
		[]string{"entity", "reason"},
	)

	// QueueMessages counts queue messages by queue and disposition
	QueueMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletsync_queue_messages_total",
			Help: "Total number of queue messages consumed",
		},
		[]string{"queue", "disposition"},
	)

	// ProcessMemoryBytes tracks worker resident memory
	ProcessMemoryBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "walletsync_process_memory_bytes",
			Help: "Worker resident set size in bytes",
		},
	)

	// JobHealthScore tracks the rolling health score per job type
	JobHealthScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "walletsync_job_health_score",
			Help: "Exponential moving average of job success rate by job type (0-1)",
		},
		[]string{"job_type"},
	)

	// ErrorsTotal counts errors by component and category
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletsync_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
