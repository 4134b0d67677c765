package graph

import (
	"sync"
	"time"
)

// FailureTracker suppresses repeated lookups of ids the store keeps
// reporting missing. The canvas can hold references to nodes that are
// mid-deletion; after a few consecutive misses there is no point
// hammering the service for the same id until a cooldown passes.
//
// The tracker is owned by whoever constructs the client, so tests can
// reset it deterministically instead of fighting process-wide state.
type FailureTracker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	misses    map[string]int
	blocked   map[string]time.Time
}

const (
	defaultFailureThreshold = 3
	defaultFailureCooldown  = 5 * time.Minute
)

// NewFailureTracker creates a tracker that blocks an id after
// threshold consecutive misses, for the given cooldown. Zero values
// select the defaults.
func NewFailureTracker(threshold int, cooldown time.Duration) *FailureTracker {
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = defaultFailureCooldown
	}
	return &FailureTracker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		misses:    make(map[string]int),
		blocked:   make(map[string]time.Time),
	}
}

// Blocked reports whether requests for id are currently suppressed.
func (t *FailureTracker) Blocked(id string) bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	until, ok := t.blocked[id]
	if !ok {
		return false
	}
	if t.now().After(until) {
		delete(t.blocked, id)
		delete(t.misses, id)
		return false
	}
	return true
}

// RecordMiss counts a not-found result for id. Crossing the threshold
// starts the cooldown.
func (t *FailureTracker) RecordMiss(id string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.misses[id]++
	if t.misses[id] >= t.threshold {
		t.blocked[id] = t.now().Add(t.cooldown)
	}
}

// RecordHit clears the miss count for id after a successful lookup.
func (t *FailureTracker) RecordHit(id string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.misses, id)
	delete(t.blocked, id)
}

// Reset clears all tracked state.
func (t *FailureTracker) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.misses = make(map[string]int)
	t.blocked = make(map[string]time.Time)
}
