package atomik

import (
	"sync"
	"sync/atomic"
)

// nodeKind distinguishes directly mutable sources from computed nodes.
type nodeKind int

const (
	kindSource nodeKind = iota
	kindDerived
)

// String returns a human-readable name for the node kind.
func (k nodeKind) String() string {
	switch k {
	case kindSource:
		return "source"
	case kindDerived:
		return "derived"
	default:
		return "unknown"
	}
}

// boxed wraps a node value so atomic.Value always stores one concrete type.
type boxed struct{ v any }

// subscriber is one registered observer callback.
type subscriber struct {
	id uint64
	fn func(any)
}

// node is the arena entry behind a Source or Derived handle.
//
// Value and revision are published atomically so reads never block on the
// graph mutation lock. All structural state (edges, subscribers, middleware)
// is written only under the graph mutation lock.
type node struct {
	id   uint64
	kind nodeKind

	// val holds the current value as a boxed slot.
	// Written under the graph lock, read lock-free.
	val atomic.Value

	// rev is bumped on every committed value change. Two reads of the same
	// revision imply identical value.
	rev atomic.Uint64

	// inert is set by Cleanup. Inert nodes reject reads, mutation, and
	// subscription.
	inert atomic.Bool

	// initial is the construction-time value, restored by Reset.
	// Source nodes only.
	initial any

	// compute evaluates the node's value from its declared dependencies.
	// Derived nodes only.
	compute func(get Getter) (any, error)

	// fallback, when set, substitutes for a failed computation and
	// propagates as the new value.
	fallback    any
	hasFallback bool

	// deps is the ordered dependency list, fixed at construction.
	// Derived nodes only.
	deps []uint64

	// depSet is the declared-dependency lookup used by the Getter.
	// Built once at construction; never mutated.
	depSet map[uint64]struct{}

	// equal gates change detection for this node. nil means defaultEquals.
	equal func(a, b any) bool

	// dependents are back-references to derived nodes that declared this
	// node as a dependency, in registration order. Maintained by the graph;
	// ids rather than pointers so no ownership cycle exists.
	dependents []uint64

	// lastWave is the id of the last wave that visited this node.
	// Debug/inspection aid; atomic because dispatch and the inspect
	// surfaces read it while later waves write it.
	lastWave atomic.Uint64

	// subs are the observer callbacks in insertion order.
	subs  []subscriber
	subMu sync.RWMutex

	// errHandler overrides the graph default for this node, if non-nil.
	errHandler atomic.Pointer[ErrorHandler]

	// middleware transforms values on the mutation path, in Use order.
	// Source nodes only; written under the graph lock.
	middleware []func(old, next any) any

	// persist, if non-nil, is invoked after every committed mutation of
	// this node.
	persist func(value any)
}

// value returns the current published value.
func (n *node) value() any {
	return n.val.Load().(boxed).v
}

// setValue publishes a new value and bumps the revision.
// Caller must hold the graph mutation lock.
func (n *node) setValue(v any) {
	n.val.Store(boxed{v})
	n.rev.Add(1)
}

// equals applies the node's change-detection function.
func (n *node) equals(a, b any) bool {
	if n.equal != nil {
		return n.equal(a, b)
	}
	return defaultEquals(a, b)
}

// handler returns the node's error handler, or nil if none installed.
func (n *node) handler() ErrorHandler {
	if p := n.errHandler.Load(); p != nil {
		return *p
	}
	return nil
}

// snapshotSubs copies the subscriber list so dispatch never holds the
// subscriber lock while invoking callbacks.
func (n *node) snapshotSubs() []subscriber {
	n.subMu.RLock()
	defer n.subMu.RUnlock()
	out := make([]subscriber, len(n.subs))
	copy(out, n.subs)
	return out
}

// addSub appends a subscriber, preserving insertion order.
func (n *node) addSub(s subscriber) {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	n.subs = append(n.subs, s)
}

// removeSub removes a subscriber by id, preserving the order of the rest.
func (n *node) removeSub(id uint64) {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	for i, s := range n.subs {
		if s.id == id {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			return
		}
	}
}

// clearSubs drops all subscribers. Used by Cleanup.
func (n *node) clearSubs() {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	n.subs = nil
}
