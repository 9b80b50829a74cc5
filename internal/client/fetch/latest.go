// Package fetch runs backend reads where only the newest request matters.
package fetch

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by Do when a newer call started before this one
// finished. Its result has been discarded.
var ErrSuperseded = errors.New("superseded by a newer request")

// Latest serialises results of one kind of request: starting a call cancels
// the one in flight, and only the most recent call may commit its result.
type Latest[T any] struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Do runs fn with a context that is cancelled when ctx is done or when a
// newer Do starts. commit is called with fn's result, under the Latest lock,
// only if this call is still the newest one when fn returns without error.
func (l *Latest[T]) Do(ctx context.Context, fn func(ctx context.Context) (T, error), commit func(T)) (T, error) {
	var zero T

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.seq++
	seq := l.seq
	callCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()

	v, err := fn(callCtx)

	l.mu.Lock()
	defer l.mu.Unlock()

	current := seq == l.seq
	if current {
		l.cancel = nil
	}
	cancel()

	if !current {
		return zero, ErrSuperseded
	}
	if err != nil {
		return zero, err
	}
	if commit != nil {
		commit(v)
	}
	return v, nil
}

// Cancel aborts the call in flight, if any. Its result will not be committed.
func (l *Latest[T]) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.seq++
}
