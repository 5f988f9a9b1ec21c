package health

import (
	"sync"
	"time"
)

// retention bounds how long outcomes are kept; windows longer than this undercount.
const retention = 30 * time.Minute

// Outcome is the result of one /conditions request as seen by health evaluation.
type Outcome int

const (
	// OutcomeSuccess is a request that returned an observation.
	OutcomeSuccess Outcome = iota
	// OutcomeNoData is a request that resolved but found no usable observation. Not an error.
	OutcomeNoData
	// OutcomeError is an upstream failure or timeout.
	OutcomeError
	// OutcomeDenied is a rate-limit denial (429).
	OutcomeDenied
)

// Tracker keeps sliding windows of request outcomes. It feeds overload (all traffic including
// denials), idle (served queries) and degraded (error rate) evaluation.
type Tracker struct {
	mu    sync.Mutex
	times [4][]time.Time
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record stores an outcome at the current time.
func (t *Tracker) Record(o Outcome) {
	t.RecordN(o, 1)
}

// RecordN stores n outcomes at the current time.
func (t *Tracker) RecordN(o Outcome, n int) {
	if o < OutcomeSuccess || o > OutcomeDenied || n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	for i := 0; i < n; i++ {
		t.times[o] = append(t.times[o], now)
	}
	t.pruneLocked(now)
}

// RequestCount returns every outcome in the window, denials included.
func (t *Tracker) RequestCount(window time.Duration) int {
	return t.count(window, OutcomeSuccess, OutcomeNoData, OutcomeError, OutcomeDenied)
}

// QueryCount returns requests that reached the resolver in the window.
func (t *Tracker) QueryCount(window time.Duration) int {
	return t.count(window, OutcomeSuccess, OutcomeNoData, OutcomeError)
}

// DenialCount returns rate-limit denials in the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	return t.count(window, OutcomeDenied)
}

// ErrorRate returns (errors, total) in the window. Denials are excluded from both;
// no-data outcomes count toward total only.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	errors = t.count(window, OutcomeError)
	return errors, errors + t.count(window, OutcomeSuccess, OutcomeNoData)
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.times {
		t.times[i] = nil
	}
}

func (t *Tracker) count(window time.Duration, outcomes ...Outcome) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	n := 0
	for _, o := range outcomes {
		for _, ts := range t.times[o] {
			if !ts.Before(cutoff) {
				n++
			}
		}
	}
	return n
}

// pruneLocked drops timestamps older than retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	for o, times := range t.times {
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			t.times[o] = append(times[:0], times[i:]...)
		}
	}
}
