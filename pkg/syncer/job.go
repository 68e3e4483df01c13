package syncer

import (
	"sync"
	"time"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/progress"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/queue"
)

// Data type names carried in sync options, progress events and job
// records. Portfolio is the mandatory stage and always runs.
const (
	DataPortfolio    = "portfolio"
	DataAssets       = "assets"
	DataTransactions = "transactions"
	DataNFTs         = "nfts"
	DataDeFi         = "defi"
)

// completedRingSize bounds how many finished jobs stay queryable in
// process memory. Older lookups fall through to the Redis mirror.
const completedRingSize = 256

// JobStatus is the coarse lifecycle of a job record.
type JobStatus string

const (
	JobActive    JobStatus = "active"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is one sync job's externally visible state. Values stored in the
// active map are never mutated; every transition stores a fresh copy so
// status reads cannot race the running job.
type Job struct {
	ID          string         `json:"jobId"`
	Type        queue.JobType  `json:"type"`
	UserID      string         `json:"userId"`
	WalletID    string         `json:"walletId"`
	Status      JobStatus      `json:"status"`
	State       progress.State `json:"state"`
	Progress    int            `json:"progress"`
	DataTypes   []string       `json:"dataTypes,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// Params carries one sync job into the pipeline.
type Params struct {
	JobID    string
	Type     queue.JobType
	UserID   string
	WalletID string
	// DataTypes narrows the optional stages; empty runs everything.
	DataTypes []string
}

// requested reports which optional stages this job should attempt.
func (p Params) requested(dataType string) bool {
	if len(p.DataTypes) == 0 {
		return true
	}
	for _, dt := range p.DataTypes {
		if dt == dataType {
			return true
		}
	}
	return false
}

// completedRing keeps the most recent finished jobs for status lookups.
type completedRing struct {
	mu   sync.Mutex
	buf  []*Job
	next int
}

func newCompletedRing(size int) *completedRing {
	return &completedRing{buf: make([]*Job, size)}
}

func (r *completedRing) add(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = job
	r.next = (r.next + 1) % len(r.buf)
}

func (r *completedRing) find(jobID string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.buf {
		if j != nil && j.ID == jobID {
			return j, true
		}
	}
	return nil, false
}
