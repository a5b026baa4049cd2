package atomik

import "errors"

// applyMutation is the single entry point behind every mutation of a source
// node: Set, Reset, Dispatch, and their deferred counterparts. It owns the
// concurrency discipline: the full mutate-and-propagate step runs under the
// graph mutation lock, so no two waves ever interleave; dispatch and error
// reporting happen after the lock is released.
//
// The returned error is nil unless the mutation was rejected (lifecycle
// error) or the wave produced compute errors that no handler was installed
// to receive.
func (g *Graph) applyMutation(n *node, newValue any) error {
	if n.inert.Load() {
		return ErrInert
	}
	if n.kind != kindSource {
		return ErrDerivedMutation
	}

	g.mu.Lock()
	// Cleanup may have detached the node while we waited for the lock;
	// committing now would write (and persist) on a dead node.
	if n.inert.Load() {
		g.mu.Unlock()
		return ErrInert
	}
	old := n.value()
	for _, mw := range n.middleware {
		newValue = mw(old, newValue)
	}
	if n.equals(old, newValue) {
		// Equal values never bump the revision or notify subscribers.
		g.mu.Unlock()
		return nil
	}
	n.setValue(newValue)
	res := g.propagate(n)
	g.mu.Unlock()

	if n.persist != nil {
		n.persist(newValue)
	}

	err := g.reportWaveErrors(res.errs)

	if bs := g.currentBatch(); bs != nil {
		bs.enqueue(res.changed)
	} else {
		g.dispatch(res.changed)
	}
	return err
}

// reportWaveErrors routes each wave error through its node's handler chain.
// Errors for which no handler is installed anywhere are joined and returned
// to the originating mutation call instead.
func (g *Graph) reportWaveErrors(errs []waveErr) error {
	if len(errs) == 0 {
		return nil
	}
	var unhandled []error
	for _, we := range errs {
		if we.n != nil && we.n.handler() != nil {
			g.handleError(we.n, we.err)
			continue
		}
		if g.defaultHandler.Load() != nil {
			g.handleError(nil, we.err)
			continue
		}
		unhandled = append(unhandled, we.err)
	}
	return errors.Join(unhandled...)
}

// applyAsync enqueues the same mutation onto the worker pool and returns a
// handle for its eventual completion. Validation runs eagerly so programmer
// errors surface on the calling goroutine; the locked mutate-propagate-
// dispatch step runs on a worker. Deferred mutations to the same node
// execute in submission order.
func (g *Graph) applyAsync(n *node, newValue any) *Future {
	f := newFuture()
	if n.inert.Load() {
		f.complete(ErrInert)
		return f
	}
	if n.kind != kindSource {
		f.complete(ErrDerivedMutation)
		return f
	}
	if err := g.pool.submit(n.id, func() {
		f.complete(g.applyMutation(n, newValue))
	}, f); err != nil {
		f.complete(err)
	}
	return f
}
