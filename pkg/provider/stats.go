package provider

import (
	"sync"
	"time"
)

const ringSize = 256

// Stats is a snapshot of a provider's recent call activity.
type Stats struct {
	Requests    uint64        `json:"requests"`
	Failures    uint64        `json:"failures"`
	SuccessRate float64       `json:"successRate"`
	AvgLatency  time.Duration `json:"avgLatency"`
	LastError   string        `json:"lastError,omitempty"`
	LastErrorAt *time.Time    `json:"lastErrorAt,omitempty"`
}

type outcome struct {
	ok      bool
	latency time.Duration
}

// tracker keeps lifetime counters plus a ring of the most recent call
// outcomes, so success rate and latency reflect current behavior rather
// than process history.
type tracker struct {
	mu        sync.Mutex
	requests  uint64
	failures  uint64
	ring      [ringSize]outcome
	count     int
	next      int
	lastErr   string
	lastErrAt time.Time
}

func newTracker() *tracker {
	return &tracker{}
}

func (t *tracker) Record(latency time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.requests++
	if err != nil {
		t.failures++
		t.lastErr = err.Error()
		t.lastErrAt = time.Now().UTC()
	}

	t.ring[t.next] = outcome{ok: err == nil, latency: latency}
	t.next = (t.next + 1) % ringSize
	if t.count < ringSize {
		t.count++
	}
}

func (t *tracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Stats{
		Requests: t.requests,
		Failures: t.failures,
	}
	if t.lastErr != "" {
		at := t.lastErrAt
		stats.LastError = t.lastErr
		stats.LastErrorAt = &at
	}

	if t.count == 0 {
		stats.SuccessRate = 1.0
		return stats
	}

	var ok int
	var total time.Duration
	for i := 0; i < t.count; i++ {
		if t.ring[i].ok {
			ok++
		}
		total += t.ring[i].latency
	}
	stats.SuccessRate = float64(ok) / float64(t.count)
	stats.AvgLatency = total / time.Duration(t.count)
	return stats
}
