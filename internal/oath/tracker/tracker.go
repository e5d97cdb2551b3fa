// Package tracker keeps the per-process bookkeeping of live auth requests:
// which ones still owe an "authentication started" notice and which expiry
// timers are armed.
package tracker

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Tracker is safe for concurrent use. One mutex guards both the pending set
// and the timer handles.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]struct{}
	timers  map[string]*time.Timer
	closed  atomic.Bool
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{
		pending: make(map[string]struct{}),
		timers:  make(map[string]*time.Timer),
	}
}

// Track marks id pending and arms a timer that calls expire after d. It is a
// no-op once the tracker is closed.
func (t *Tracker) Track(id string, d time.Duration, expire func()) {
	if t.closed.Load() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending[id] = struct{}{}
	if old, ok := t.timers[id]; ok {
		old.Stop()
	}

	t.timers[id] = time.AfterFunc(d, func() {
		t.mu.Lock()
		delete(t.timers, id)
		t.mu.Unlock()

		if t.closed.Load() {
			return
		}
		expire()
	})
}

// Take removes id from the pending set and reports whether it was there.
// Only one caller ever gets true for a given id.
func (t *Tracker) Take(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[id]; !ok {
		return false
	}
	delete(t.pending, id)

	return true
}

// Forget drops id from the pending set and stops its timer.
func (t *Tracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.pending, id)
	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
}

// IsPending reports whether id still owes a start notice.
func (t *Tracker) IsPending(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.pending[id]
	return ok
}

// Armed returns the number of timers not yet fired or stopped.
func (t *Tracker) Armed() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.timers)
}

// Close stops every timer. Timers that already fired skip their callback.
func (t *Tracker) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
	clear(t.pending)

	return nil
}
