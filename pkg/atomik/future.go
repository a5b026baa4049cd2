package atomik

import (
	"context"
	"sync/atomic"
)

// Future states.
const (
	futurePending int32 = iota
	futureRunning
	futureDone
)

// Future represents the eventual completion of a deferred mutation.
// It is the only construct in the package that suspends a caller.
type Future struct {
	state atomic.Int32
	done  chan struct{}
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// start transitions the future to running. Returns false if the work item
// was cancelled before a worker picked it up.
func (f *Future) start() bool {
	return f.state.CompareAndSwap(futurePending, futureRunning)
}

// complete resolves the future. err is nil on success.
func (f *Future) complete(err error) {
	if f.state.Swap(futureDone) == futureDone {
		return
	}
	f.err = err
	close(f.done)
}

// Cancel withdraws the mutation if it has not begun executing.
// Once a wave has started it always runs to completion, so Cancel returns
// false for running or finished work. A cancelled future resolves with
// ErrCancelled.
func (f *Future) Cancel() bool {
	if !f.state.CompareAndSwap(futurePending, futureDone) {
		return false
	}
	f.err = ErrCancelled
	close(f.done)
	return true
}

// Done returns a channel closed when the future resolves.
func (f *Future) Done() <-chan struct{} { return f.done }

// Err returns the resolution error, or nil if the future has not resolved
// or resolved successfully.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the future resolves or ctx is done, returning the
// mutation's error or the context's.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
