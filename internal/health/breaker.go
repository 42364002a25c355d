// Package health tracks whether the last probe of OpenRouter succeeded,
// driving the ConnectionStatus exposed at /health. It reuses the
// closed/open/half-open shape of a circuit breaker, repurposed here to
// classify connectivity rather than to reject calls.
package health

import (
	"sync"
	"time"
)

// probeState mirrors a circuit breaker's three states, renamed to the
// vocabulary this tracker actually reports in.
type probeState int

const (
	stateHealthy probeState = iota
	stateDown
	stateProbing
)

// Tracker records the outcome of upstream probes (key validation, chat
// completions, model fetches) and derives a ConnectionStatus from them.
// A burst of failures trips it to "down"; after a cooldown it allows one
// probe through before declaring recovery.
type Tracker struct {
	mu              sync.RWMutex
	state           probeState
	failureCount    int
	failureThreshold int
	cooldown        time.Duration
	lastFailure     time.Time
	configured      bool
}

// NewTracker builds a Tracker that trips after failureThreshold
// consecutive failures and allows a recovery probe after cooldown.
func NewTracker(failureThreshold int, cooldown time.Duration) *Tracker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Tracker{failureThreshold: failureThreshold, cooldown: cooldown}
}

// SetConfigured records whether a managed key is currently available.
// While unconfigured, Status always reports NOT_CONFIGURED regardless of
// probe history.
func (t *Tracker) SetConfigured(configured bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.configured = configured
}

// Allow reports whether a probe should actually be attempted right now
// (false while tripped and still within the cooldown window).
func (t *Tracker) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case stateHealthy, stateProbing:
		return true
	case stateDown:
		if time.Since(t.lastFailure) >= t.cooldown {
			t.state = stateProbing
			return true
		}
		return false
	}
	return false
}

// RecordSuccess clears the failure streak and closes the tracker.
func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failureCount = 0
	t.state = stateHealthy
}

// RecordFailure counts a failure, tripping to down once the threshold is
// reached (or immediately, if the failure happened during a recovery
// probe).
func (t *Tracker) RecordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failureCount++
	t.lastFailure = time.Now()

	if t.state == stateProbing {
		t.state = stateDown
		return
	}
	if t.failureCount >= t.failureThreshold {
		t.state = stateDown
	}
}
