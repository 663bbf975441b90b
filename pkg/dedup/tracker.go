// Package dedup ensures one exposure summary per logical experience
// within a session.
package dedup

import (
	"sync"

	"flagsync/pkg/telemetry"
)

// Tracker records which experience ids have already been summarized.
// Cleared only on explicit session rotation, never by a timer.
type Tracker struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	rejected uint64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]struct{})}
}

// ShouldTrack returns true and records the id on first occurrence, false
// on repeat. Under concurrent calls for the same id exactly one caller
// wins.
func (t *Tracker) ShouldTrack(experienceID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.seen[experienceID]; dup {
		return false
	}
	t.seen[experienceID] = struct{}{}
	return true
}

// Admit validates required summary fields and applies deduplication.
// A summary missing any required field is rejected, never coerced.
func (t *Tracker) Admit(s telemetry.Summary) bool {
	if s.ExperienceID == "" || s.ConfigID == "" || s.VariationID == "" || s.Version == "" {
		t.mu.Lock()
		t.rejected++
		t.mu.Unlock()
		return false
	}
	return t.ShouldTrack(s.ExperienceID)
}

// Reset clears the tracker for a new session.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.seen = make(map[string]struct{})
	t.mu.Unlock()
}

// Seen returns the number of recorded experience ids.
func (t *Tracker) Seen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// Rejected returns how many summaries failed required-field validation.
func (t *Tracker) Rejected() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rejected
}
