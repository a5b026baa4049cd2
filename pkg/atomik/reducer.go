package atomik

// Reducer wraps a source whose mutations flow through a reducer function,
// so every state transition is a named action rather than a raw write.
type Reducer[T, A any] struct {
	*Source[T]
	reduce func(state T, action A) T
}

// NewReducer creates a reducer-driven source.
//
// Example:
//
//	counter := atomik.NewReducer(g, 0, func(state int, action string) int {
//	    switch action {
//	    case "incr":
//	        return state + 1
//	    case "decr":
//	        return state - 1
//	    }
//	    return state
//	})
//	counter.Dispatch("incr")
func NewReducer[T, A any](g *Graph, initial T, reduce func(state T, action A) T) *Reducer[T, A] {
	return &Reducer[T, A]{
		Source: NewSource(g, initial),
		reduce: reduce,
	}
}

// Dispatch applies an action through the reducer and commits the result.
func (r *Reducer[T, A]) Dispatch(action A) error {
	state, err := r.Get()
	if err != nil {
		return err
	}
	return r.Set(r.reduce(state, action))
}

// DispatchAsync is the deferred counterpart of Dispatch. The reducer runs
// against the state current at submission time.
func (r *Reducer[T, A]) DispatchAsync(action A) *Future {
	state, err := r.Get()
	if err != nil {
		f := newFuture()
		f.complete(err)
		return f
	}
	return r.SetAsync(r.reduce(state, action))
}
