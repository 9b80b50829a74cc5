// Package clockx abstracts wall-clock time and one-shot timers so that
// timeout logic can be driven deterministically in tests.
package clockx

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Timer is a cancellable one-shot timer.
type Timer interface {
	// Stop prevents the timer from firing. It reports whether the call
	// stopped the timer before it fired.
	Stop() bool
}

// Clock is the time source used by the idle timer and the session manager.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type wallClock struct {
	c clock.Clock
}

// New returns the Clock backed by the system time.
func New() Clock {
	return wallClock{c: clock.New()}
}

func (w wallClock) Now() time.Time { return w.c.Now() }

func (w wallClock) AfterFunc(d time.Duration, fn func()) Timer {
	return w.c.AfterFunc(d, fn)
}

// Mock is a Clock that only moves when Add or Set is called. Timers due
// within the advanced window fire in deadline order; each callback runs on
// its own goroutine.
type Mock struct {
	*clock.Mock
}

// NewMock returns a Mock whose current time is start.
func NewMock(start time.Time) *Mock {
	m := clock.NewMock()
	m.Set(start)
	return &Mock{Mock: m}
}

func (m *Mock) AfterFunc(d time.Duration, fn func()) Timer {
	return m.Mock.AfterFunc(d, fn)
}
