package atomik

import "runtime"

// batchState accumulates the changed nodes of one goroutine's open batch.
// A batch scope belongs to the goroutine that opened it; concurrent batches
// on other goroutines serialize through the mutation lock like any other
// mutation.
type batchState struct {
	depth int

	// pending holds changed nodes in first-change order.
	pending []*node

	// seen deduplicates pending by node id, so a node that changed many
	// times inside the batch is notified exactly once with its final value.
	seen map[uint64]struct{}
}

// enqueue records changed nodes for dispatch when the outermost scope closes.
func (b *batchState) enqueue(changed []*node) {
	for _, n := range changed {
		if _, dup := b.seen[n.id]; dup {
			continue
		}
		b.seen[n.id] = struct{}{}
		b.pending = append(b.pending, n)
	}
}

// getGoroutineID extracts the current goroutine's id from the runtime stack.
// Implementation detail of batch scoping; never exposed.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack trace starts with "goroutine <id> ".
	var id uint64
	for i := 10; i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// currentBatch returns this goroutine's open batch, or nil.
func (g *Graph) currentBatch() *batchState {
	if bs, ok := g.batches.Load(getGoroutineID()); ok {
		return bs.(*batchState)
	}
	return nil
}

// Batch groups the mutations issued by fn into a single notification phase.
// Every mutation is applied to the graph immediately, so reads inside the
// batch observe up-to-date values, but subscriber notifications are
// deferred, deduplicated by node, and fired once when the outermost batch
// closes, reflecting each node's final value.
//
// Batches nest; only the outermost close dispatches. A mutation issued with
// no batch open behaves as an implicit one-mutation batch.
//
// Example:
//
//	g.Batch(func() {
//	    low.Set(5.0)
//	    high.Set(40.0)
//	})
//	// Subscribers of low, high, and their dependents fire once.
func (g *Graph) Batch(fn func()) {
	gid := getGoroutineID()
	var bs *batchState
	if v, ok := g.batches.Load(gid); ok {
		bs = v.(*batchState)
	} else {
		bs = &batchState{seen: make(map[uint64]struct{})}
		g.batches.Store(gid, bs)
	}
	bs.depth++

	defer func() {
		bs.depth--
		if bs.depth == 0 {
			g.batches.Delete(gid)
			g.dispatch(bs.pending)
		}
	}()

	fn()
}

// BatchNamed runs fn as a named batch, logging its boundaries when graph
// debug logging is enabled.
func (g *Graph) BatchNamed(name string, fn func()) {
	if g.debug {
		g.logger.Debug("atomik: batch start", "name", name)
		defer g.logger.Debug("atomik: batch end", "name", name)
	}
	g.Batch(fn)
}
