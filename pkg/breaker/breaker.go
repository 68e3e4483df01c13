// Package breaker implements a three-state circuit breaker used to shed
// load from failing upstream providers.
package breaker

import (
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	// Closed lets all calls through.
	Closed State = iota
	// HalfOpen lets a single probe call through after the cooldown.
	HalfOpen
	// Open rejects all calls until the cooldown elapses.
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case HalfOpen:
		return "half-open"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

// Breaker trips open after a run of consecutive failures and recovers
// through a single half-open probe once the cooldown has elapsed.
type Breaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration

	state       State
	failures    int
	openedUntil time.Time
	probing     bool

	now func() time.Time
}

// New creates a breaker that opens after threshold consecutive failures and
// stays open for cooldown before probing.
func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     Closed,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. In the half-open state only one
// probe is admitted at a time; callers rejected here should fail fast.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().After(b.openedUntil) {
			b.state = HalfOpen
			b.probing = true
			return true
		}
		return false
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return false
}

// Success records a successful call and closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	b.state = Closed
}

// Failure records a failed call. A failed half-open probe reopens the
// breaker for a full cooldown.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.probing = false
		b.state = Open
		b.openedUntil = b.now().Add(b.cooldown)
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.state = Open
		b.openedUntil = b.now().Add(b.cooldown)
	}
}

// State returns the current state, accounting for an elapsed cooldown.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && b.now().After(b.openedUntil) {
		return HalfOpen
	}
	return b.state
}
