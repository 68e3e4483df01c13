package syncer

import (
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/noFAYZ/mappr-backend-new-sub000/internal/metrics"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/queue"
)

const defaultHealthAlpha = 0.2

// healthTracker keeps an exponential moving average of job success per
// job type. Scores start at 1.0 so a cold worker admits everything.
type healthTracker struct {
	alpha  float64
	scores *xsync.Map[string, float64]
}

func newHealthTracker(alpha float64) *healthTracker {
	if alpha <= 0 || alpha >= 1 {
		alpha = defaultHealthAlpha
	}
	return &healthTracker{
		alpha:  alpha,
		scores: xsync.NewMap[string, float64](),
	}
}

// Record folds one job outcome into the type's score and returns the
// updated value.
func (h *healthTracker) Record(jobType queue.JobType, ok bool) float64 {
	outcome := 0.0
	if ok {
		outcome = 1.0
	}

	var updated float64
	h.scores.Compute(string(jobType), func(old float64, loaded bool) (float64, xsync.ComputeOp) {
		if !loaded {
			old = 1.0
		}
		updated = h.alpha*outcome + (1-h.alpha)*old
		return updated, xsync.UpdateOp
	})
	metrics.JobHealthScore.WithLabelValues(string(jobType)).Set(updated)
	return updated
}

// Score returns the type's current score, 1.0 when unseen.
func (h *healthTracker) Score(jobType queue.JobType) float64 {
	if score, ok := h.scores.Load(string(jobType)); ok {
		return score
	}
	return 1.0
}

// Snapshot copies all scores for health reporting.
func (h *healthTracker) Snapshot() map[string]float64 {
	out := make(map[string]float64, h.scores.Size())
	h.scores.Range(func(jobType string, score float64) bool {
		out[jobType] = score
		return true
	})
	return out
}
