package atomik

import "fmt"

// ValidationError is returned when a write to a validated source fails its
// validator and no repair function is configured.
type ValidationError struct {
	// NodeID identifies the validated source.
	NodeID uint64

	// Value is the rejected value.
	Value any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("atomik: node %d rejected value %v", e.NodeID, e.Value)
}

// Validated wraps a source that checks every incoming value before commit.
// Invalid values are repaired by the configured OnInvalid function, or the
// write fails with ValidationError.
type Validated[T any] struct {
	*Source[T]
	validate  func(T) bool
	onInvalid func(T) T
}

// NewValidated creates a validated source. onInvalid may be nil, in which
// case invalid writes are rejected. The initial value must pass validation.
//
// Example:
//
//	temp, err := atomik.NewValidated(g, 20.0, atomik.InRange(-40, 85), atomik.Clamp(-40, 85))
func NewValidated[T any](g *Graph, initial T, validate func(T) bool, onInvalid func(T) T) (*Validated[T], error) {
	if !validate(initial) {
		return nil, &ValidationError{Value: initial}
	}
	return &Validated[T]{
		Source:    NewSource(g, initial),
		validate:  validate,
		onInvalid: onInvalid,
	}, nil
}

// Set validates value before committing. Invalid values are repaired via
// OnInvalid or rejected with ValidationError.
func (v *Validated[T]) Set(value T) error {
	checked, err := v.check(value)
	if err != nil {
		return err
	}
	return v.Source.Set(checked)
}

// SetAsync is the deferred counterpart of Set. Validation happens eagerly
// on the calling goroutine.
func (v *Validated[T]) SetAsync(value T) *Future {
	checked, err := v.check(value)
	if err != nil {
		f := newFuture()
		f.complete(err)
		return f
	}
	return v.Source.SetAsync(checked)
}

func (v *Validated[T]) check(value T) (T, error) {
	if v.validate(value) {
		return value, nil
	}
	if v.onInvalid != nil {
		return v.onInvalid(value), nil
	}
	var zero T
	return zero, &ValidationError{NodeID: v.ID(), Value: value}
}

// InRange builds a validator accepting values in [min, max].
func InRange(min, max float64) func(float64) bool {
	return func(v float64) bool { return v >= min && v <= max }
}

// Clamp builds a repair function pinning values to [min, max].
func Clamp(min, max float64) func(float64) float64 {
	return func(v float64) float64 {
		if v < min {
			return min
		}
		if v > max {
			return max
		}
		return v
	}
}
