package syncer

import (
	"fmt"

	"github.com/noFAYZ/mappr-backend-new-sub000/internal/metrics"
	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/queue"
)

// admit decides whether a new job may start. A rejection is backpressure
// aimed at the queue's redelivery policy, not a failure of the job.
func (o *Orchestrator) admit(jobType queue.JobType) error {
	if ceiling := o.cfg.MemoryCeilingMB; ceiling > 0 {
		if rss := o.rss(); rss > ceiling*mb {
			metrics.AdmissionRejections.WithLabelValues("memory").Inc()
			return apperrors.ResourceExhaustedError(nil,
				fmt.Sprintf("worker memory %dMB above the %dMB ceiling, retry later", rss/mb, ceiling))
		}
	}

	if limit := o.cfg.MaxConcurrentJobs; limit > 0 && o.active.Size() >= limit {
		metrics.AdmissionRejections.WithLabelValues("concurrency").Inc()
		return apperrors.ResourceExhaustedError(nil,
			fmt.Sprintf("%d sync jobs already running, retry later", limit))
	}

	if floor := o.cfg.HealthScoreFloor; floor > 0 {
		if score := o.health.Score(jobType); score < floor {
			metrics.AdmissionRejections.WithLabelValues("health").Inc()
			return apperrors.ResourceExhaustedError(nil,
				fmt.Sprintf("recent %s jobs are failing (health %.2f below %.2f), retry later", jobType, score, floor))
		}
	}
	return nil
}
