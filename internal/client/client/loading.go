package client

import "sync/atomic"

// LoadingNotifier is told when a backend call starts and finishes. It is
// handed to the transport at construction, so no call can run before one
// is attached.
type LoadingNotifier interface {
	BeginLoading(op string)
	EndLoading(op string)
}

// LoadingCounter counts in-flight calls.
type LoadingCounter struct {
	n atomic.Int64
}

func (c *LoadingCounter) BeginLoading(string) { c.n.Add(1) }
func (c *LoadingCounter) EndLoading(string)   { c.n.Add(-1) }

// Pending returns the number of calls currently in flight.
func (c *LoadingCounter) Pending() int64 { return c.n.Load() }

type nopLoading struct{}

func (nopLoading) BeginLoading(string) {}
func (nopLoading) EndLoading(string)   {}
