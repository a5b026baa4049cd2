package atomik

// Source is a directly mutable node. Create with NewSource; mutate through
// Set (synchronous) or SetAsync (deferred onto the graph's worker pool).
// Both paths serialize on the graph mutation lock and propagate to every
// reachable derived node before subscribers fire.
type Source[T any] struct {
	g *Graph
	n *node
}

// NewSource creates a source node holding initial.
func NewSource[T any](g *Graph, initial T) *Source[T] {
	n := &node{
		id:      nextID(),
		kind:    kindSource,
		initial: initial,
	}
	n.val.Store(boxed{initial})

	g.mu.Lock()
	g.addNode(n)
	g.mu.Unlock()

	if g.debug {
		g.logger.Debug("atomik: source created", "node", n.id)
	}
	return &Source[T]{g: g, n: n}
}

// ID returns the node's process-unique identifier.
func (s *Source[T]) ID() uint64 { return s.n.id }

// Revision returns the node's revision counter. It bumps on every committed
// value change; two reads of the same revision imply identical values.
func (s *Source[T]) Revision() uint64 { return s.n.rev.Load() }

// Get returns the current committed value. Reads are lock-free: the value
// slot is published atomically, so a read during an in-flight wave observes
// either the pre-wave or the settled value, never a torn one.
// Fails with ErrInert after Cleanup.
func (s *Source[T]) Get() (T, error) {
	if s.n.inert.Load() {
		var zero T
		return zero, ErrInert
	}
	return s.n.value().(T), nil
}

// Set commits a new value, propagates to all reachable derived nodes, and
// (unless a batch is open on this goroutine) notifies subscribers before
// returning. Setting a value equal to the current one is a no-op: no
// revision bump, no notification.
func (s *Source[T]) Set(value T) error {
	return s.g.applyMutation(s.n, value)
}

// SetAsync enqueues the same mutation onto the graph's worker pool and
// returns a handle for its eventual completion. Deferred mutations to the
// same node execute in submission order.
func (s *Source[T]) SetAsync(value T) *Future {
	return s.g.applyAsync(s.n, value)
}

// Update atomically derives the new value from the current one.
func (s *Source[T]) Update(fn func(T) T) error {
	v, err := s.Get()
	if err != nil {
		return err
	}
	return s.Set(fn(v))
}

// Reset restores the construction-time initial value, propagating like any
// other mutation. Subscribers fire only if the value actually changes.
func (s *Source[T]) Reset() error {
	return s.g.applyMutation(s.n, s.n.initial)
}

// ResetAsync is the deferred counterpart of Reset.
func (s *Source[T]) ResetAsync() *Future {
	return s.g.applyAsync(s.n, s.n.initial)
}

// Subscribe registers fn to run after every committed change of this node,
// with the node's new value. Callbacks run in insertion order after the
// owning wave settles; a panicking callback is isolated through the
// error-handler chain.
func (s *Source[T]) Subscribe(fn func(T)) (Subscription, error) {
	return s.g.subscribeNode(s.n, func(v any) { fn(v.(T)) })
}

// SetErrorHandler installs a per-node error handler, overriding the graph
// default for errors attributed to this node. nil removes the override.
func (s *Source[T]) SetErrorHandler(h ErrorHandler) {
	if h == nil {
		s.n.errHandler.Store(nil)
		return
	}
	s.n.errHandler.Store(&h)
}

// WithEquals overrides change detection for this node. Useful when
// reflect.DeepEqual is too expensive or has the wrong semantics.
func (s *Source[T]) WithEquals(fn func(a, b T) bool) *Source[T] {
	s.g.mu.Lock()
	s.n.equal = func(a, b any) bool { return fn(a.(T), b.(T)) }
	s.g.mu.Unlock()
	return s
}

// Use appends a write middleware, applied in Use order to every mutation
// (Set, SetAsync, Reset) before change detection and commit. The middleware
// receives the current and proposed values and returns the value to commit.
//
// Example:
//
//	temp.Use(func(old, next float64) float64 {
//	    return math.Round(next*10) / 10
//	})
func (s *Source[T]) Use(mw func(old, next T) T) *Source[T] {
	s.g.mu.Lock()
	s.n.middleware = append(s.n.middleware, func(old, next any) any {
		return mw(old.(T), next.(T))
	})
	s.g.mu.Unlock()
	return s
}

// Cleanup detaches the node from the graph: removes it from every
// dependent's reachable set, clears its subscribers, and marks it inert.
// Subsequent reads, mutations, and subscriptions fail with ErrInert.
// Idempotent; neighboring nodes stay structurally valid.
func (s *Source[T]) Cleanup() {
	s.g.cleanupNode(s.n)
}

// From reads this node's settled value inside a derived computation.
// Only valid for nodes declared in the dependency list.
func (s *Source[T]) From(get Getter) T {
	return get.value(s.n.id).(T)
}

// depNode implements Dep.
func (s *Source[T]) depNode() *node { return s.n }
