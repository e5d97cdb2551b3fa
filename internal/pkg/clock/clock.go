// Package clock lets expiry and certificate cache logic run against a fake
// time source in tests.
package clock

import (
	"sync"
	"time"
)

type Clocker interface {
	Now() time.Time
}

// New returns the wall clock.
func New() Clocker { return system{} }

type system struct{}

func (system) Now() time.Time { return time.Now() }

// Millis is Now as Unix milliseconds, the unit auth request issued and
// expires times are stored in.
func Millis(c Clocker) int64 { return c.Now().UnixMilli() }

// Manual only moves when told to.
type Manual struct {
	mu  sync.RWMutex
	now time.Time
}

func NewManual(t time.Time) *Manual { return &Manual{now: t} }

func (m *Manual) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
