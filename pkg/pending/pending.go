// Package pending implements a staged value that only takes effect once it is
// confirmed with an exact match. Ownership transfers and aggregator rotation
// are both built on it.
//
// A Pending is not safe for concurrent use; the component that owns it is
// expected to guard it with its own lock together with the rest of its state.
package pending

import "errors"

var (
	// ErrNothingPending indicates that no value has been staged.
	ErrNothingPending = errors.New("nothing pending")
	// ErrMismatch indicates that the confirmation does not match the staged value.
	ErrMismatch = errors.New("confirmation does not match pending value")
)

// Pending holds at most one staged value of type T.
type Pending[T any] struct {
	value  T
	staged bool
}

// Stage replaces any previously staged value.
func (p *Pending[T]) Stage(v T) {
	p.value = v
	p.staged = true
}

// Get returns the staged value and whether one is present.
func (p *Pending[T]) Get() (T, bool) {
	return p.value, p.staged
}

// Consume returns and clears the staged value if match accepts it. On
// failure nothing changes.
func (p *Pending[T]) Consume(match func(T) bool) (T, error) {
	var zero T
	if !p.staged {
		return zero, ErrNothingPending
	}
	if !match(p.value) {
		return zero, ErrMismatch
	}
	v := p.value
	p.Clear()
	return v, nil
}

// Clear drops the staged value.
func (p *Pending[T]) Clear() {
	var zero T
	p.value = zero
	p.staged = false
}
