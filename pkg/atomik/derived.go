package atomik

// Dep is any node handle usable as a derived node's dependency.
// Both Source and Derived handles satisfy it.
type Dep interface {
	depNode() *node
}

// Compute produces a derived node's value from its declared dependencies.
// It must be pure: read dependencies through get, mutate nothing. Returning
// an error (or panicking) marks the node failed for the current wave; the
// prior cached value is kept and propagation along this path halts.
type Compute[T any] func(get Getter) (T, error)

// Derived is a node whose value is computed from a fixed, ordered set of
// dependencies declared at construction. Its value is recomputed eagerly
// and exactly once per propagation wave, after all dependencies have
// settled, so Get never observes a stale value.
type Derived[T any] struct {
	g *Graph
	n *node
}

// NewDerived creates a derived node.
//
// The dependency list must be non-empty, belong to the same graph, and be
// acyclic; violations fail construction with ErrNoDeps, ErrForeignDep, or
// ErrCycle. The computation runs once eagerly to seed the value; a failing
// initial computation fails construction with a ComputeError.
func NewDerived[T any](g *Graph, compute Compute[T], deps ...Dep) (*Derived[T], error) {
	return newDerived(g, compute, nil, deps)
}

// NewDerivedWithFallback creates a derived node that substitutes fallback
// whenever its computation fails. The fallback is treated as the computed
// value for change detection and propagation, so dependents keep working
// through failures.
func NewDerivedWithFallback[T any](g *Graph, compute Compute[T], fallback T, deps ...Dep) (*Derived[T], error) {
	fb := any(fallback)
	return newDerived(g, compute, &fb, deps)
}

func newDerived[T any](g *Graph, compute Compute[T], fallback *any, deps []Dep) (*Derived[T], error) {
	if len(deps) == 0 {
		return nil, ErrNoDeps
	}

	n := &node{
		id:   nextID(),
		kind: kindDerived,
		compute: func(get Getter) (any, error) {
			return compute(get)
		},
	}
	if fallback != nil {
		n.fallback = *fallback
		n.hasFallback = true
	}
	// Dependency validation happens under the mutation lock so a dep
	// cannot be cleaned up between the check and edge registration.
	g.mu.Lock()
	n.deps = make([]uint64, 0, len(deps))
	n.depSet = make(map[uint64]struct{}, len(deps))
	for _, d := range deps {
		dn := d.depNode()
		if _, ok := g.nodes[dn.id]; !ok {
			g.mu.Unlock()
			return nil, ErrForeignDep
		}
		if dn.inert.Load() {
			g.mu.Unlock()
			return nil, ErrInert
		}
		if _, dup := n.depSet[dn.id]; dup {
			// Dependencies form an ordered set; duplicates collapse.
			continue
		}
		n.deps = append(n.deps, dn.id)
		n.depSet[dn.id] = struct{}{}
	}

	// The dependency relation must stay acyclic. A node cannot be depended
	// on before it exists, so this walk only trips on corrupted edges, but
	// cycles are a construction failure by contract, never a runtime one.
	if g.reaches(n.deps, n.id) {
		g.mu.Unlock()
		return nil, ErrCycle
	}

	// Seed the value eagerly so the node is readable immediately.
	v, err := evalCompute(n, Getter{g: g, allowed: n.depSet})
	if err != nil {
		if !n.hasFallback {
			g.mu.Unlock()
			return nil, &ComputeError{NodeID: n.id, Err: err}
		}
		v = n.fallback
	}
	n.val.Store(boxed{v})

	// Register back-references on every dependency.
	for _, depID := range n.deps {
		dep := g.nodes[depID]
		dep.dependents = append(dep.dependents, n.id)
	}
	g.addNode(n)
	g.mu.Unlock()

	if g.debug {
		g.logger.Debug("atomik: derived created", "node", n.id, "deps", len(n.deps))
	}
	return &Derived[T]{g: g, n: n}, nil
}

// reaches reports whether target is transitively reachable by following
// dependency edges upward from the given roots. Caller holds the mutation
// lock.
func (g *Graph) reaches(roots []uint64, target uint64) bool {
	seen := map[uint64]struct{}{}
	stack := append([]uint64(nil), roots...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == target {
			return true
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if n, ok := g.nodes[id]; ok {
			stack = append(stack, n.deps...)
		}
	}
	return false
}

// ID returns the node's process-unique identifier.
func (d *Derived[T]) ID() uint64 { return d.n.id }

// Revision returns the node's revision counter.
func (d *Derived[T]) Revision() uint64 { return d.n.rev.Load() }

// Get returns the current committed value. Derived values are maintained
// eagerly by the recompute engine, so no computation happens on read.
// Fails with ErrInert after Cleanup.
func (d *Derived[T]) Get() (T, error) {
	if d.n.inert.Load() {
		var zero T
		return zero, ErrInert
	}
	return d.n.value().(T), nil
}

// Subscribe registers fn to run after every committed change of this node.
// See Source.Subscribe for dispatch semantics.
func (d *Derived[T]) Subscribe(fn func(T)) (Subscription, error) {
	return d.g.subscribeNode(d.n, func(v any) { fn(v.(T)) })
}

// SetErrorHandler installs a per-node error handler. Compute failures of
// this node route here before falling back to the graph default.
func (d *Derived[T]) SetErrorHandler(h ErrorHandler) {
	if h == nil {
		d.n.errHandler.Store(nil)
		return
	}
	d.n.errHandler.Store(&h)
}

// WithEquals overrides change detection for this node.
func (d *Derived[T]) WithEquals(fn func(a, b T) bool) *Derived[T] {
	d.g.mu.Lock()
	d.n.equal = func(a, b any) bool { return fn(a.(T), b.(T)) }
	d.g.mu.Unlock()
	return d
}

// Cleanup detaches the node from the graph. See Source.Cleanup.
func (d *Derived[T]) Cleanup() {
	d.g.cleanupNode(d.n)
}

// From reads this node's settled value inside another derived computation.
// Only valid for nodes declared in the dependency list.
func (d *Derived[T]) From(get Getter) T {
	return get.value(d.n.id).(T)
}

// depNode implements Dep.
func (d *Derived[T]) depNode() *node { return d.n }
