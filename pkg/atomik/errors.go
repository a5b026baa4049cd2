package atomik

import (
	"errors"
	"fmt"
)

// =============================================================================
// Configuration errors (construction time)
// =============================================================================

// ErrNoDeps is returned by NewDerived when the dependency list is empty.
// A derived node must declare at least one dependency; its dependency set is
// fixed for the node's lifetime.
var ErrNoDeps = errors.New("atomik: derived node requires at least one dependency")

// ErrCycle is returned by NewDerived when the declared dependencies would
// introduce a cycle. The dependency relation is validated eagerly so that
// cycles are a construction failure, never a runtime one.
var ErrCycle = errors.New("atomik: dependency cycle detected")

// ErrForeignDep is returned by NewDerived when a dependency belongs to a
// different graph. Edges never cross graph boundaries.
var ErrForeignDep = errors.New("atomik: dependency belongs to a different graph")

// =============================================================================
// Lifecycle errors
// =============================================================================

// ErrInert is returned when reading, mutating, or subscribing to a node
// after Cleanup detached it from the graph.
var ErrInert = errors.New("atomik: node has been cleaned up")

// ErrDerivedMutation is returned when a derived node is mutated directly.
// Derived values are only ever produced by their compute function.
var ErrDerivedMutation = errors.New("atomik: cannot set derived node directly")

// ErrQueueClosed is returned when a deferred mutation is submitted after the
// graph's worker pool has been shut down.
var ErrQueueClosed = errors.New("atomik: graph closed")

// ErrCancelled is reported through a Future whose work item was cancelled
// before it began executing.
var ErrCancelled = errors.New("atomik: deferred mutation cancelled")

// =============================================================================
// Wave errors — routed through the error-handler chain
// =============================================================================

// ComputeError reports a derived node's compute function failing during a
// propagation wave. The node keeps its prior cached value and propagation
// along that path halts; dispatch to unrelated nodes continues.
type ComputeError struct {
	// NodeID identifies the derived node whose computation failed.
	NodeID uint64

	// Err is the underlying failure: the error returned by the compute
	// function, or a recovered panic.
	Err error
}

// Error implements the error interface.
func (e *ComputeError) Error() string {
	return fmt.Sprintf("atomik: node %d compute failed: %v", e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ComputeError) Unwrap() error { return e.Err }

// ObserverError reports a subscriber callback panicking during dispatch.
// The remaining subscribers and changed nodes are still notified; the
// committed value is never rolled back.
type ObserverError struct {
	// NodeID identifies the node whose subscriber failed.
	NodeID uint64

	// SubscriptionID identifies the failing subscription.
	SubscriptionID uint64

	// Err is the recovered panic value.
	Err error
}

// Error implements the error interface.
func (e *ObserverError) Error() string {
	return fmt.Sprintf("atomik: node %d subscriber %d panicked: %v", e.NodeID, e.SubscriptionID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ObserverError) Unwrap() error { return e.Err }

// PersistError reports a persistence adapter failing to load or save a
// persistent source. Adapter failures never block the in-memory commit.
type PersistError struct {
	// Key is the storage key of the persistent source.
	Key string

	// Op is "load" or "save".
	Op string

	// Err is the adapter error.
	Err error
}

// Error implements the error interface.
func (e *PersistError) Error() string {
	return fmt.Sprintf("atomik: persist %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *PersistError) Unwrap() error { return e.Err }

// errUndeclaredDep is the panic payload raised by the Getter when a compute
// function reads a node it did not declare, or a dependency that is no
// longer available. Recovered by the recompute engine into a ComputeError.
type errUndeclaredDep struct {
	nodeID uint64
	reason string
}

func (e errUndeclaredDep) Error() string {
	return fmt.Sprintf("atomik: dependency %d %s", e.nodeID, e.reason)
}
